package fcosinstall

import (
	_ "embed"
	"strings"
)

const (
	MsgRootShort       = "Provision Fedora CoreOS from Butane templates"
	MsgVersionShort    = "Print version information"
	MsgCompletionShort = "Generate shell completion script"
	MsgManShort        = "Generate man pages"

	MsgFlagVerbose   = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagConfig    = "Config file (default is $XDG_CONFIG_HOME/fcosinstall/config.toml)"
	MsgFlagOutput    = "Output format: auto, term, text or json"
	MsgFlagStyles    = "YAML file overriding the terminal styles"
	MsgFlagHost      = "Target host (remote.host)"
	MsgFlagPort      = "SSH port of the target host (remote.port)"
	MsgFlagUser      = "SSH user (remote.user)"
	MsgFlagIdentity  = "SSH private key file (remote.identity_file)"
	MsgFlagTransport = "Transport to the target: ssh or local (remote.transport)"
	MsgFlagInsecure  = "Skip SSH host key verification (remote.insecure_ignore_host_key)"
	MsgFlagWorkers   = "Fragments processed in parallel (pipeline.workers)"

	MsgVersionFormat = "fcosinstall version %s\n  commit: %s\n  built:  %s\n"
	MsgWroteDocument = "Wrote %s (%s)\n"
	MsgManWritten    = "Man pages written to %s\n"
	MsgFlagManDir    = "Directory to write the man pages to"

	MsgErrNoCommand  = "no command specified"
	MsgErrInitPaths  = "failed to initialize paths: %w"
	MsgErrOutput     = "invalid --output: %w"
	MsgErrStyles     = "failed to load styles: %w"
	MsgErrWriteOut   = "failed to write %s: %w"
	MsgErrCloseConn  = "Failed to close connection"
	MsgErrCleanup    = "Failed to clean up workspace"
	MsgUsageTemplate = `{{boldUpper "usage"}}:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

{{boldUpper "aliases"}}:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

{{boldUpper "examples"}}:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

{{boldUpper "commands"}}:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{bold .Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

{{boldUpper "flags"}}:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

{{boldUpper "global flags"}}:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}
`
)

var (
	//go:embed root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)
)
