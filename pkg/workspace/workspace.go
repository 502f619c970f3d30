// Package workspace manages the local temporary files of one run.
package workspace

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/logging"
)

// Workspace is a private temporary directory. It is safe for concurrent use.
type Workspace struct {
	fs  afero.Fs
	dir string

	mu      sync.Mutex
	files   []string
	cleaned bool
}

// New creates a workspace directory under base. An empty base uses the
// system temp dir.
func New(fs afero.Fs, base string) (*Workspace, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := fs.MkdirAll(base, 0700); err != nil {
		return nil, errors.Wrapf(err, errors.ErrInternal, "cannot create workspace base %s", base)
	}
	dir, err := afero.TempDir(fs, base, "fcosinstall-")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "cannot create workspace")
	}

	logger := logging.GetLogger("workspace")
	logger.Debug().Str("dir", dir).Msg("Created workspace")
	return &Workspace{fs: fs, dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// WriteFile stores content in a new uniquely named file and returns its path.
func (w *Workspace) WriteFile(content []byte, suffix string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cleaned {
		return "", errors.New(errors.ErrInternal, "workspace already cleaned up")
	}

	path := filepath.Join(w.dir, uuid.NewString()+suffix)
	if err := afero.WriteFile(w.fs, path, content, 0600); err != nil {
		return "", errors.Wrapf(err, errors.ErrInternal, "cannot write %s", path)
	}
	w.files = append(w.files, path)
	return path, nil
}

// Remove deletes one file written by WriteFile.
func (w *Workspace) Remove(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, f := range w.files {
		if f == path {
			w.files = append(w.files[:i], w.files[i+1:]...)
			if err := w.fs.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
			return nil
		}
	}
	return nil
}

// Cleanup removes every file and then the directory. Calling it again is a
// no-op. All failures are reported together.
func (w *Workspace) Cleanup() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cleaned {
		return nil
	}
	w.cleaned = true

	var result *multierror.Error
	for _, f := range w.files {
		if err := w.fs.Remove(f); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, err)
		}
	}
	w.files = nil

	if err := w.fs.RemoveAll(w.dir); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		logger := logging.GetLogger("workspace")
		logger.Warn().Err(err).Str("dir", w.dir).Msg("Workspace cleanup incomplete")
		return err
	}
	return nil
}
