package datastore

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/rs/zerolog"

	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/logging"
	"github.com/kudato/fcosinstall/pkg/remote"
)

type remoteDataStore struct {
	exec   remote.Executor
	path   string
	become bool
	logger zerolog.Logger
}

// New creates a DataStore keeping the marker at path on the host behind
// exec. become writes the marker with elevated privileges.
func New(exec remote.Executor, path string, become bool) DataStore {
	return &remoteDataStore{
		exec:   exec,
		path:   path,
		become: become,
		logger: logging.GetLogger("datastore").With().Str("marker", path).Logger(),
	}
}

func (s *remoteDataStore) Path() string { return s.path }

func (s *remoteDataStore) GetMarker(ctx context.Context) (*Marker, error) {
	data, err := s.exec.ReadFile(ctx, s.path)
	if stderrors.Is(err, remote.ErrNotFound) {
		s.logger.Debug().Msg("No installation marker")
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrMarkerRead, "cannot read installation marker %s", s.path).
			WithStage(errors.StageCheckMarker)
	}

	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Warn().Err(err).Msg("Installation marker is unreadable, treating it as present")
		return &Marker{Corrupt: true}, nil
	}
	s.logger.Debug().
		Str("fingerprint", m.Fingerprint).
		Time("installed_at", m.InstalledAt).
		Msg("Found installation marker")
	return &m, nil
}

func (s *remoteDataStore) NeedsInstall(ctx context.Context, force bool) (bool, *Marker, error) {
	if force {
		s.logger.Info().Msg("Force set, marker not consulted")
		return true, nil, nil
	}
	m, err := s.GetMarker(ctx)
	if err != nil {
		return false, nil, err
	}
	return m == nil, m, nil
}

func (s *remoteDataStore) RecordInstall(ctx context.Context, m Marker) error {
	data, err := m.Encode()
	if err != nil {
		return errors.Wrap(err, errors.ErrMarkerWrite, "cannot encode installation marker").
			WithStage(errors.StageWriteMarker)
	}

	if err := s.exec.Copy(ctx, data, s.path, remote.CopyOptions{Mode: 0644, Become: s.become}); err != nil {
		return errors.Wrapf(err, errors.ErrMarkerWrite, "cannot write installation marker %s", s.path).
			WithStage(errors.StageWriteMarker)
	}

	s.logger.Info().Str("fingerprint", m.Fingerprint).Msg("Recorded installation marker")
	return nil
}
