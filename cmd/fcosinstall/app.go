package fcosinstall

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kudato/fcosinstall/pkg/butane"
	"github.com/kudato/fcosinstall/pkg/command"
	"github.com/kudato/fcosinstall/pkg/config"
	"github.com/kudato/fcosinstall/pkg/ignition"
	"github.com/kudato/fcosinstall/pkg/logging"
	"github.com/kudato/fcosinstall/pkg/output"
	"github.com/kudato/fcosinstall/pkg/paths"
	"github.com/kudato/fcosinstall/pkg/pipeline"
	"github.com/kudato/fcosinstall/pkg/remote"
	"github.com/kudato/fcosinstall/pkg/templates"
	"github.com/kudato/fcosinstall/pkg/workspace"
)

// Seams replaced in tests.
var (
	newRunner = func() command.Runner { return command.NewExec() }
	dial      = func(ctx context.Context, cfg *config.Config) (remote.Executor, error) {
		client, err := remote.Dial(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
)

// app is the state one command invocation works with.
type app struct {
	cfg      *config.Config
	paths    paths.Paths
	fs       afero.Fs
	out      *output.Renderer
	logger   zerolog.Logger
	cleanups []func()
}

// newApp resolves paths, output and configuration for cmd. Errors are
// rendered before they are returned.
func newApp(cmd *cobra.Command, g *globals) (*app, error) {
	format, err := output.ParseFormat(g.output)
	if err != nil {
		return nil, fmt.Errorf(MsgErrOutput, err)
	}
	styles := output.DefaultStyles()
	if g.stylesFile != "" {
		if styles, err = output.LoadStylesFromFile(g.stylesFile); err != nil {
			return nil, fmt.Errorf(MsgErrStyles, err)
		}
	}

	a := &app{
		fs:     afero.NewOsFs(),
		out:    output.NewRenderer(cmd.OutOrStdout(), format, styles),
		logger: logging.GetLogger("cmd." + cmd.Name()),
	}

	if a.paths, err = paths.New(); err != nil {
		return nil, a.fail(fmt.Errorf(MsgErrInitPaths, err))
	}

	a.cfg, err = config.Load(config.LoadOptions{
		File:        g.configFile,
		DefaultFile: a.paths.ConfigFile(),
		Overrides:   g.overrides(cmd.Flags()),
	})
	if err != nil {
		return nil, a.fail(err)
	}

	a.logger.Debug().
		Str("transport", a.cfg.Remote.Transport).
		Str("host", a.cfg.Remote.Host).
		Int("workers", a.cfg.Pipeline.Workers).
		Msg("Configuration loaded")
	return a, nil
}

// fail renders err and marks it as shown.
func (a *app) fail(err error) error {
	if renderErr := a.out.RenderError(err); renderErr != nil {
		return err
	}
	return reported(err)
}

func (a *app) onClose(fn func()) { a.cleanups = append(a.cleanups, fn) }

// close runs the cleanups in reverse order.
func (a *app) close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}

// builder wires the local pipeline. Its workspace is removed by close.
func (a *app) builder() (*pipeline.Builder, error) {
	ws, err := workspace.New(a.fs, a.paths.WorkDir())
	if err != nil {
		return nil, err
	}
	a.onClose(func() {
		if err := ws.Cleanup(); err != nil {
			a.logger.Warn().Err(err).Msg(MsgErrCleanup)
		}
	})

	cfg := a.cfg
	runner := newRunner()
	return pipeline.NewBuilder(
		templates.NewRenderer(a.fs),
		butane.NewCompiler(runner, cfg.Tools.Butane, cfg.Timeouts.Compile, cfg.Pipeline.FilesDir),
		ignition.NewValidator(runner, ws, cfg.Tools.IgnitionValidate, cfg.Timeouts.Validate),
		pipeline.Options{
			Workers:        cfg.Pipeline.Workers,
			ValidateMerged: cfg.Pipeline.ValidateMerged,
		},
	), nil
}

// connect opens the target. The connection is closed by close.
func (a *app) connect(ctx context.Context) (remote.Executor, error) {
	exec, err := dial(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	a.onClose(func() {
		if err := exec.Close(); err != nil {
			a.logger.Warn().Err(err).Msg(MsgErrCloseConn)
		}
	})
	return exec, nil
}
