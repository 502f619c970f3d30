package fcosinstall

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/kudato/fcosinstall/cmd/fcosinstall/commands/install"
	"github.com/kudato/fcosinstall/cmd/fcosinstall/commands/render"
	"github.com/kudato/fcosinstall/cmd/fcosinstall/commands/status"
	"github.com/kudato/fcosinstall/internal/version"
	"github.com/kudato/fcosinstall/pkg/butane"
	"github.com/kudato/fcosinstall/pkg/datastore"
	"github.com/kudato/fcosinstall/pkg/orchestrator"
	"github.com/kudato/fcosinstall/pkg/output"
	"github.com/kudato/fcosinstall/pkg/pipeline"
	"github.com/kudato/fcosinstall/pkg/templates"
	"github.com/kudato/fcosinstall/pkg/vars"
)

func newInstallCmd(g *globals) *cobra.Command {
	f := &install.Flags{}
	cmd := install.NewCommand(f)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, g)
		if err != nil {
			return err
		}
		defer a.close()

		values, err := vars.NewLoader(a.fs).Load(f.VarsFiles, f.Vars)
		if err != nil {
			return a.fail(err)
		}
		req := f.Request(values)

		a.logger.Info().
			Str("device", req.TargetDevice).
			Str("spec_version", req.SpecVersion).
			Strs("templates", req.Templates).
			Bool("force", req.Force).
			Bool("check", req.Check).
			Msg("Starting install")

		// Catch bad input before a connection is opened.
		if _, err := butane.ParseSpecVersion(req.SpecVersion); err != nil {
			return a.fail(err)
		}

		builder, err := a.builder()
		if err != nil {
			return a.fail(err)
		}

		// The target is dialed by the orchestrator once the build succeeded.
		orch := orchestrator.New(orchestrator.Deps{
			Fs:      a.fs,
			Builder: builder,
			Connect: a.connect,
		}, orchestrator.OptionsFromConfig(a.cfg))

		res, runErr := orch.Run(cmd.Context(), req)
		if err := a.out.RenderReport(output.Report{
			SpecVersion: req.SpecVersion,
			Device:      req.TargetDevice,
			Templates:   req.Templates,
			Check:       req.Check,
			Result:      res,
		}); err != nil {
			log.Error().Err(err).Msg("Failed to render result")
			return runErr
		}
		return reported(runErr)
	}
	return cmd
}

func newRenderCmd(g *globals) *cobra.Command {
	f := &render.Flags{}
	cmd := render.NewCommand(f)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, g)
		if err != nil {
			return err
		}
		defer a.close()

		values, err := vars.NewLoader(a.fs).Load(f.VarsFiles, f.Vars)
		if err != nil {
			return a.fail(err)
		}
		if _, err := butane.ParseSpecVersion(f.SpecVersion); err != nil {
			return a.fail(err)
		}

		builder, err := a.builder()
		if err != nil {
			return a.fail(err)
		}
		build, err := builder.Build(cmd.Context(), pipeline.Plan{
			SpecVersion:  f.SpecVersion,
			TargetDevice: f.Device,
			Templates:    f.Templates,
			Vars:         templates.Context(values),
		})
		if err != nil {
			return a.fail(err)
		}

		raw := build.Merged.Bytes()
		doc := make([]byte, 0, len(raw)+1)
		doc = append(append(doc, raw...), '\n')
		if f.Out == "" {
			_, err := cmd.OutOrStdout().Write(doc)
			return err
		}
		if err := afero.WriteFile(a.fs, f.Out, doc, 0600); err != nil {
			return a.fail(fmt.Errorf(MsgErrWriteOut, f.Out, err))
		}
		fmt.Fprintf(cmd.ErrOrStderr(), MsgWroteDocument, f.Out, build.Merged.Checksum())
		return nil
	}
	return cmd
}

func newStatusCmd(g *globals) *cobra.Command {
	cmd := status.NewCommand()
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, g)
		if err != nil {
			return err
		}
		defer a.close()

		exec, err := a.connect(cmd.Context())
		if err != nil {
			return a.fail(err)
		}

		store := datastore.New(exec, a.cfg.Marker.Path, a.cfg.Remote.Become)
		m, err := store.GetMarker(cmd.Context())
		if err != nil {
			return a.fail(err)
		}
		return a.out.RenderMarker(store.Path(), m)
	}
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		Args:    cobra.NoArgs,
		GroupID: "misc",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), MsgVersionFormat, version.Version, version.Commit, version.Date)
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		GroupID:               "misc",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			}
		},
	}
}

func newManCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:     "man",
		Short:   MsgManShort,
		Args:    cobra.NoArgs,
		GroupID: "misc",
		Hidden:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
			header := &doc.GenManHeader{Title: "FCOSINSTALL", Section: "1"}
			if err := doc.GenManTree(cmd.Root(), header, dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), MsgManWritten, dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "man", MsgFlagManDir)
	return cmd
}
