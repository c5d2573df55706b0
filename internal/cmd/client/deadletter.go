package client

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/rzbill/xwork/internal/cmd/client/transports"
)

// NewDeadLetterCommand returns the `deadletter` command group.
func NewDeadLetterCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "deadletter", Short: "Inspect and recover dead-letter jobs"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List dead-letter jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out map[string]any
			if err := transports.NewHTTPTransport(baseURL).Do(cmd.Context(), http.MethodGet, "/v1/deadletter", listQuery(cmd), nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	addListFlags(list)

	errCmd := &cobra.Command{
		Use:   "error <id>",
		Short: "Print the error details of a dead-letter job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := transports.NewHTTPTransport(baseURL).Do(cmd.Context(), http.MethodGet, "/v1/deadletter/"+url.PathEscape(args[0])+"/error", nil, nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}

	requeue := &cobra.Command{
		Use:   "requeue <id>",
		Short: "Move a dead-letter job back to the executable table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			retries, _ := cmd.Flags().GetInt("retries")
			var out map[string]any
			path := "/v1/deadletter/" + url.PathEscape(args[0]) + "/executable"
			if err := transports.NewHTTPTransport(baseURL).Do(cmd.Context(), http.MethodPost, path, nil, map[string]any{"retries": retries}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	requeue.Flags().Int("retries", 3, "retries to give the job")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a dead-letter job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := transports.NewHTTPTransport(baseURL).Do(cmd.Context(), http.MethodDelete, "/v1/deadletter/"+url.PathEscape(args[0]), nil, nil, nil); err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"id": args[0], "status": "deleted"})
		},
	}

	cmd.AddCommand(list, errCmd, requeue, del)
	return cmd
}
