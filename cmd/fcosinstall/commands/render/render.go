package render

import (
	"github.com/spf13/cobra"

	"github.com/kudato/fcosinstall/cmd/fcosinstall/commands/install"
)

// Flags holds the values of the render flags.
type Flags struct {
	install.Flags
	Out string
}

// NewCommand creates the render command. RunE is attached by the root
// command.
func NewCommand(f *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "render",
		Short:   MsgShort,
		Long:    MsgLong,
		Example: MsgExample,
		Args:    cobra.NoArgs,
		GroupID: "core",
	}

	install.AddTemplateFlags(cmd, &f.Flags)
	cmd.Flags().StringVarP(&f.Out, "out", "o", "", MsgFlagOut)

	return cmd
}
