package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/kudato/fcosinstall/pkg/butane"
	"github.com/kudato/fcosinstall/pkg/command"
	"github.com/kudato/fcosinstall/pkg/datastore"
	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/internal/hashutil"
	"github.com/kudato/fcosinstall/pkg/logging"
	"github.com/kudato/fcosinstall/pkg/pipeline"
	"github.com/kudato/fcosinstall/pkg/remote"
	"github.com/kudato/fcosinstall/pkg/templates"
)

// Builder produces the merged document.
type Builder interface {
	Build(ctx context.Context, plan pipeline.Plan) (pipeline.Build, error)
}

// Deps are the collaborators of an Orchestrator. Store defaults to a
// marker store on the connected executor.
type Deps struct {
	Fs      afero.Fs
	Builder Builder
	// Connect opens the target. It is called at most once per run and only
	// after the local build has succeeded. When nil, Executor is used.
	Connect  func(ctx context.Context) (remote.Executor, error)
	Executor remote.Executor
	Store    datastore.DataStore
	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator runs installations. One Orchestrator serves one target.
type Orchestrator struct {
	fs      afero.Fs
	builder Builder
	connect func(ctx context.Context) (remote.Executor, error)
	exec    remote.Executor
	store   datastore.DataStore
	now     func() time.Time
	opts    Options
	logger  zerolog.Logger
}

// New creates an Orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	connect := deps.Connect
	if connect == nil {
		connect = func(context.Context) (remote.Executor, error) { return deps.Executor, nil }
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		fs:      deps.Fs,
		builder: deps.Builder,
		connect: connect,
		store:   deps.Store,
		now:     now,
		opts:    opts,
		logger:  logging.GetLogger("orchestrator"),
	}
}

type run struct {
	res    Result
	logger zerolog.Logger
}

func (r *run) enter(s State) {
	r.res.State = s
	r.res.Transitions = append(r.res.Transitions, s)
	r.logger.Debug().Str("state", string(s)).Msg("Entering state")
}

func (r *run) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.res.Warnings = append(r.res.Warnings, msg)
	r.logger.Warn().Msg(msg)
}

func (r *run) fail(err error) (Result, error) {
	stage := errors.Stage(err)
	if stage == "" {
		stage = string(r.res.State)
	}
	r.enter(StateFailed)
	r.res.Changed = false
	r.res.ManualIntervention = errors.RequiresManualIntervention(err)
	r.res.Msg = fmt.Sprintf("%s failed: %v", stage, err)
	if r.res.ManualIntervention {
		r.res.Msg += "\nthe target disk may be partially written and must be inspected manually"
	}
	r.logger.Error().Err(err).Str("stage", stage).Msg("Installation failed")
	return r.res, err
}

// Run executes req. The error is non-nil exactly when State is Failed; a
// marker write failure only adds a warning.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	r := &run{
		logger: o.logger.With().
			Str("device", req.TargetDevice).
			Str("spec_version", req.SpecVersion).
			Logger(),
	}
	done := logging.LogOperationStart(r.logger, "install")
	defer done()

	r.enter(StateBuild)
	if err := o.validateRequest(req); err != nil {
		return r.fail(err)
	}

	fingerprint, err := datastore.Fingerprint(o.fs, req.SpecVersion, req.TargetDevice, req.Templates)
	if err != nil {
		return r.fail(err)
	}
	r.res.Fingerprint = fingerprint

	marker := datastore.Marker{
		InstalledAt: o.now().UTC(),
		Fingerprint: fingerprint,
		Device:      req.TargetDevice,
		SpecVersion: req.SpecVersion,
		Templates:   req.Templates,
	}

	build, err := o.builder.Build(ctx, o.plan(req, marker))
	if err != nil {
		return r.fail(err)
	}
	merged := build.Merged
	r.res.Document = merged.Bytes()
	r.res.DocumentChecksum = merged.Checksum()

	if err := ctx.Err(); err != nil {
		return r.fail(errors.Wrap(err, errors.ErrCancelled, "cancelled before contacting the target").
			WithStage(errors.StageCheckMarker))
	}

	r.enter(StateCheckMarker)
	if err := o.open(ctx); err != nil {
		return r.fail(err)
	}
	needs, existing, err := o.checkMarker(ctx, req.Force)
	if err != nil {
		return r.fail(err)
	}
	r.res.Marker = existing
	if !needs {
		r.enter(StateSkip)
		if existing != nil && !existing.Corrupt && !existing.Matches(fingerprint) {
			r.warn("installation inputs changed since the recorded install (%s); rerun with force to reinstall", existing.Fingerprint)
		}
		r.res.Msg = fmt.Sprintf("Fedora CoreOS already installed (marker %s present)", o.store.Path())
		return r.res, nil
	}
	r.enter(StateProceed)

	if req.Check {
		r.res.Changed = true
		r.res.Msg = fmt.Sprintf("Would install Fedora CoreOS on %s (document %s)", req.TargetDevice, r.res.DocumentChecksum)
		return r.res, nil
	}

	if err := ctx.Err(); err != nil {
		return r.fail(errors.Wrap(err, errors.ErrCancelled, "cancelled before transfer; target unchanged").
			WithStage(errors.StageTransfer))
	}

	r.enter(StateTransfer)
	if err := o.transfer(ctx, merged.Bytes(), r.res.DocumentChecksum); err != nil {
		return r.fail(err)
	}

	if err := ctx.Err(); err != nil {
		o.removeDocument(ctx, r)
		return r.fail(errors.Wrap(err, errors.ErrCancelled, "cancelled before install; target disk untouched").
			WithStage(errors.StageInstall))
	}

	r.enter(StateInstall)
	if err := o.install(ctx, r, req.TargetDevice); err != nil {
		return r.fail(err)
	}

	r.enter(StateWriteMarker)
	if err := o.writeMarker(ctx, marker); err != nil {
		r.warn("install succeeded but the marker could not be written, the next run will not detect this install: %v", err)
	}

	r.enter(StateDone)
	r.res.Changed = true
	r.res.Msg = fmt.Sprintf("Fedora CoreOS installed on %s", req.TargetDevice)
	r.logger.Info().Str("fingerprint", fingerprint).Msg("Installation complete")
	return r.res, nil
}

func (o *Orchestrator) validateRequest(req Request) error {
	if _, err := butane.ParseSpecVersion(req.SpecVersion); err != nil {
		return err
	}
	if req.TargetDevice == "" {
		return errors.New(errors.ErrInvalidInput, "target device is required").WithStage(errors.StageInput)
	}
	if !path.IsAbs(req.TargetDevice) {
		return errors.Newf(errors.ErrInvalidInput, "target device %q must be an absolute path", req.TargetDevice).
			WithStage(errors.StageInput)
	}
	for _, t := range req.Templates {
		info, err := o.fs.Stat(t)
		if err != nil {
			code := errors.ErrInvalidInput
			if os.IsNotExist(err) {
				code = errors.ErrTemplateNotFound
			}
			return errors.Wrapf(err, code, "template %s is not readable", t).
				WithDetail("template", t).
				WithStage(errors.StageInput)
		}
		if info.IsDir() {
			return errors.Newf(errors.ErrInvalidInput, "template %s is a directory", t).
				WithDetail("template", t).
				WithStage(errors.StageInput)
		}
	}
	return nil
}

func (o *Orchestrator) plan(req Request, marker datastore.Marker) pipeline.Plan {
	plan := pipeline.Plan{
		SpecVersion:  req.SpecVersion,
		TargetDevice: req.TargetDevice,
		Templates:    req.Templates,
		Vars:         templates.Context(req.Vars),
	}
	if o.opts.EmbedMarker {
		// Encode only fails on unencodable values; Marker has none.
		data, _ := marker.Encode()
		plan.MarkerJSON = data
		plan.MarkerPath = o.opts.MarkerPath
	}
	return plan
}

// open connects to the target once.
func (o *Orchestrator) open(ctx context.Context) error {
	if o.exec != nil {
		return nil
	}
	exec, err := o.connect(ctx)
	if err != nil {
		if coded, ok := err.(*errors.Error); ok {
			return coded.WithStage(errors.StageCheckMarker)
		}
		return errors.Wrap(err, errors.ErrRemoteConnect, "cannot connect to the target").
			WithStage(errors.StageCheckMarker)
	}
	if exec == nil {
		return errors.New(errors.ErrInternal, "no executor for the target").WithStage(errors.StageCheckMarker)
	}
	o.exec = exec
	if o.store == nil {
		o.store = datastore.New(exec, o.opts.MarkerPath, o.opts.Become)
	}
	return nil
}

func (o *Orchestrator) checkMarker(ctx context.Context, force bool) (bool, *datastore.Marker, error) {
	mctx, cancel := withTimeout(ctx, o.opts.MarkerTimeout)
	defer cancel()
	return o.store.NeedsInstall(mctx, force)
}

func (o *Orchestrator) transfer(ctx context.Context, doc []byte, checksum string) error {
	tctx, cancel := withTimeout(ctx, o.opts.TransferTimeout)
	defer cancel()

	dest := o.opts.DocumentPath
	if err := o.exec.Copy(tctx, doc, dest, remote.CopyOptions{Mode: 0600, Become: o.opts.Become}); err != nil {
		return errors.Wrapf(err, errors.ErrTransfer, "cannot copy document to %s", dest).
			WithDetail("remote_path", dest).
			WithStage(errors.StageTransfer)
	}

	if o.opts.VerifyTransfer {
		res, err := o.exec.Run(tctx, remote.Command{Args: []string{"sha256sum", "--", dest}, Become: o.opts.Become})
		if err != nil {
			return errors.Wrapf(err, errors.ErrTransfer, "cannot verify %s", dest).
				WithStage(errors.StageTransfer)
		}
		if !res.Success() {
			return command.Failure(errors.ErrTransfer, errors.StageTransfer, "sha256sum", res.ExitCode, res.Stdout, res.Stderr)
		}
		fields := strings.Fields(string(res.Stdout))
		want := hashutil.HexDigest(checksum)
		if len(fields) == 0 || fields[0] != want {
			return errors.Newf(errors.ErrTransfer, "transferred document %s does not match: expected %s", dest, want).
				WithDetail(errors.DetailStdout, string(res.Stdout)).
				WithStage(errors.StageTransfer)
		}
	}

	o.logger.Info().Str("remote_path", dest).Int("bytes", len(doc)).Msg("Transferred document")
	return nil
}

// removeDocument deletes the transferred document after a cancellation. It
// is best effort: a failure only adds a warning.
func (o *Orchestrator) removeDocument(ctx context.Context, r *run) {
	rctx, cancel := withTimeout(context.WithoutCancel(ctx), o.opts.TransferTimeout)
	defer cancel()

	dest := o.opts.DocumentPath
	res, err := o.exec.Run(rctx, remote.Command{Args: []string{"rm", "-f", "--", dest}, Become: o.opts.Become})
	switch {
	case err != nil:
		r.warn("could not remove %s from the target: %v", dest, err)
	case !res.Success():
		r.warn("could not remove %s from the target: %s", dest, strings.TrimSpace(string(res.Stderr)))
	default:
		r.logger.Debug().Str("remote_path", dest).Msg("Removed transferred document")
	}
}

// install runs the installer once. It is detached from ctx: a started
// install is never interrupted by the caller, only by its own timeout.
func (o *Orchestrator) install(ctx context.Context, r *run, device string) error {
	ictx, cancel := withTimeout(context.WithoutCancel(ctx), o.opts.InstallTimeout)
	defer cancel()

	args := []string{o.opts.Installer, "install", "--ignition-file", o.opts.DocumentPath, device}
	r.logger.Info().Strs("args", args).Msg("Starting installer")

	res, err := o.exec.Run(ictx, remote.Command{Args: args, Become: o.opts.Become})

	if ctx.Err() != nil {
		r.warn("cancellation was requested while %s was running; the install was allowed to finish", o.opts.Installer)
	}

	if err != nil {
		msg := fmt.Sprintf("lost track of %s; remote state unknown", o.opts.Installer)
		if errors.IsErrorCode(err, errors.ErrTimeout) || ictx.Err() != nil {
			msg = fmt.Sprintf("%s did not finish within %s; remote state unknown", o.opts.Installer, o.opts.InstallTimeout)
		}
		return errors.Wrap(err, errors.ErrInstall, msg).
			WithDetail(errors.DetailManualIntervention, true).
			WithStage(errors.StageInstall)
	}
	if !res.Success() {
		return command.Failure(errors.ErrInstall, errors.StageInstall, o.opts.Installer, res.ExitCode, res.Stdout, res.Stderr).
			WithDetail(errors.DetailManualIntervention, true)
	}

	r.logger.Info().Msg("Installer finished")
	return nil
}

func (o *Orchestrator) writeMarker(ctx context.Context, m datastore.Marker) error {
	mctx, cancel := withTimeout(context.WithoutCancel(ctx), o.opts.MarkerTimeout)
	defer cancel()
	m.InstalledAt = o.now().UTC()
	return o.store.RecordInstall(mctx, m)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
