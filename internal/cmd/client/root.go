package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the xwork client.
// It registers the job and deadletter command groups.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "xwork",
		Short: "xwork client commands",
	}
	root.AddCommand(NewJobCommand(baseURL))
	root.AddCommand(NewDeadLetterCommand(baseURL))
	return root
}
