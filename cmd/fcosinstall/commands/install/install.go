package install

import (
	"github.com/spf13/cobra"

	"github.com/kudato/fcosinstall/pkg/orchestrator"
)

// Flags holds the values of the install flags.
type Flags struct {
	SpecVersion string
	Device      string
	Templates   []string
	Force       bool
	Check       bool
	Vars        []string
	VarsFiles   []string
}

// Request converts the flags into a run request with resolved vars.
func (f *Flags) Request(vars map[string]any) orchestrator.Request {
	return orchestrator.Request{
		SpecVersion:  f.SpecVersion,
		TargetDevice: f.Device,
		Templates:    f.Templates,
		Force:        f.Force,
		Check:        f.Check,
		Vars:         vars,
	}
}

// AddTemplateFlags registers the flags shared with render.
func AddTemplateFlags(cmd *cobra.Command, f *Flags) {
	cmd.Flags().StringVar(&f.SpecVersion, "spec-version", "", MsgFlagSpecVersion)
	cmd.Flags().StringVar(&f.Device, "device", "", MsgFlagDevice)
	cmd.Flags().StringArrayVarP(&f.Templates, "template", "t", nil, MsgFlagTemplate)
	cmd.Flags().StringArrayVar(&f.Vars, "var", nil, MsgFlagVar)
	cmd.Flags().StringArrayVar(&f.VarsFiles, "vars-file", nil, MsgFlagVarsFile)
	_ = cmd.MarkFlagRequired("spec-version")
	_ = cmd.MarkFlagRequired("device")
}

// NewCommand creates the install command. RunE is attached by the root
// command.
func NewCommand(f *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "install",
		Short:   MsgShort,
		Long:    MsgLong,
		Example: MsgExample,
		Args:    cobra.NoArgs,
		GroupID: "core",
	}

	AddTemplateFlags(cmd, f)
	cmd.Flags().BoolVar(&f.Force, "force", false, MsgFlagForce)
	cmd.Flags().BoolVar(&f.Check, "check", false, MsgFlagCheck)

	return cmd
}
