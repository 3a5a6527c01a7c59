package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the logvault client.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "logvault",
		Short: "logvault client commands",
	}
	root.AddCommand(NewLogsCommand(baseURL))
	return root
}
