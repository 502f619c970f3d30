package fcosinstall

import (
	"embed"
	stderrors "errors"
	"fmt"
	"io/fs"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kudato/fcosinstall/internal/version"
	"github.com/kudato/fcosinstall/pkg/cobrax/topics"
	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/logging"
	"github.com/kudato/fcosinstall/pkg/paths"
)

//go:embed topics/*.md
var topicsFS embed.FS

// globals are the flags every command shares.
type globals struct {
	verbosity  int
	configFile string
	output     string
	stylesFile string

	host      string
	port      int
	user      string
	identity  string
	transport string
	insecure  bool
	workers   int
}

// overrides maps the connection flags that were set onto config keys.
func (g *globals) overrides(flags *pflag.FlagSet) map[string]interface{} {
	out := map[string]interface{}{}
	set := func(flag, key string, value interface{}) {
		if flags.Changed(flag) {
			out[key] = value
		}
	}
	set("host", "remote.host", g.host)
	set("port", "remote.port", g.port)
	set("user", "remote.user", g.user)
	set("identity", "remote.identity_file", g.identity)
	set("transport", "remote.transport", g.transport)
	set("insecure-ignore-host-key", "remote.insecure_ignore_host_key", g.insecure)
	set("workers", "pipeline.workers", g.workers)
	return out
}

// NewRootCmd creates the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&globals{})
}

func newRootCmd(g *globals) *cobra.Command {
	initTemplateFormatting()

	rootCmd := &cobra.Command{
		Use:     "fcosinstall",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(g.verbosity, logFile())
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return fmt.Errorf(MsgErrNoCommand)
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.CountVarP(&g.verbosity, "verbose", "v", MsgFlagVerbose)
	pf.StringVar(&g.configFile, "config", "", MsgFlagConfig)
	pf.StringVar(&g.output, "output", "auto", MsgFlagOutput)
	pf.StringVar(&g.stylesFile, "styles", "", MsgFlagStyles)
	pf.StringVar(&g.host, "host", "", MsgFlagHost)
	pf.IntVar(&g.port, "port", 22, MsgFlagPort)
	pf.StringVar(&g.user, "user", "", MsgFlagUser)
	pf.StringVar(&g.identity, "identity", "", MsgFlagIdentity)
	pf.StringVar(&g.transport, "transport", "", MsgFlagTransport)
	pf.BoolVar(&g.insecure, "insecure-ignore-host-key", false, MsgFlagInsecure)
	pf.IntVar(&g.workers, "workers", 0, MsgFlagWorkers)

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "COMMANDS:"})
	rootCmd.AddGroup(&cobra.Group{ID: "misc", Title: "MISC:"})
	rootCmd.SetUsageTemplate(MsgUsageTemplate)

	rootCmd.AddCommand(newInstallCmd(g))
	rootCmd.AddCommand(newRenderCmd(g))
	rootCmd.AddCommand(newStatusCmd(g))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(newManCmd())

	initTopics(rootCmd)

	return rootCmd
}

// logFile is the log file under the state dir, or "" when the state dir
// cannot be resolved.
func logFile() string {
	p, err := paths.New()
	if err != nil {
		return ""
	}
	return p.LogFilePath()
}

func initTopics(rootCmd *cobra.Command) {
	sub, err := fs.Sub(topicsFS, "topics")
	if err != nil {
		log.Warn().Err(err).Msg("Help topics unavailable")
		return
	}
	var renderer topics.Renderer = &topics.PlainRenderer{}
	if stdoutIsTerminal() {
		renderer = topics.NewGlamourRenderer()
	}
	if _, err := topics.Initialize(rootCmd, sub, topics.Options{Renderer: renderer}); err != nil {
		log.Warn().Err(err).Msg("Help topics unavailable")
	}
}

// reportedError marks an error the output renderer has already shown.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// Reported reports whether err was already written to the output.
func Reported(err error) bool {
	var r *reportedError
	return stderrors.As(err, &r)
}

// Exit codes.
const (
	ExitOK                 = 0
	ExitFailure            = 1
	ExitManualIntervention = 3
)

// ExitCode maps the error returned by the root command to a process exit
// code. A failure that may have left the target disk partially written
// gets its own code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.RequiresManualIntervention(err):
		return ExitManualIntervention
	default:
		return ExitFailure
	}
}
