package status

import (
	"github.com/spf13/cobra"
)

// NewCommand creates the status command. RunE is attached by the root
// command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   MsgShort,
		Long:    MsgLong,
		Example: MsgExample,
		Args:    cobra.NoArgs,
		GroupID: "core",
	}
}
