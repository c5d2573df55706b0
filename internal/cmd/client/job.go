package client

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	xworkv1 "github.com/rzbill/xwork/api/xwork/v1"
	"github.com/rzbill/xwork/internal/cmd/client/transports"
)

// NewJobCommand returns the `job` command group.
func NewJobCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "job", Short: "Create, acquire and settle external worker jobs"}
	cmd.PersistentFlags().String("transport", "http", "worker protocol transport: http or grpc")
	cmd.AddCommand(
		newJobCreateCmd(baseURL),
		newJobListCmd(baseURL),
		newJobGetCmd(baseURL),
		newJobAcquireCmd(baseURL),
		newJobSettleCmd(baseURL, "complete"),
		newJobSettleCmd(baseURL, "terminate"),
		newJobFailCmd(baseURL),
		newJobUnacquireCmd(baseURL),
		newJobUnacquireAllCmd(baseURL),
		newJobErrorCmd(baseURL),
		newJobDeadLetterCmd(baseURL),
	)
	return cmd
}

func newJobCreateCmd(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an external worker job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			scopeID, _ := cmd.Flags().GetString("scope-id")
			scopeType, _ := cmd.Flags().GetString("scope-type")
			tenant, _ := cmd.Flags().GetString("tenant")
			corr, _ := cmd.Flags().GetString("correlation-id")
			element, _ := cmd.Flags().GetString("element-id")
			exclusive, _ := cmd.Flags().GetBool("exclusive")
			retries, _ := cmd.Flags().GetInt("retries")
			users, _ := cmd.Flags().GetStringSlice("user")
			groups, _ := cmd.Flags().GetStringSlice("group")
			pairs, _ := cmd.Flags().GetStringArray("var")
			vars, err := parseVars(pairs)
			if err != nil {
				return err
			}
			body := map[string]any{
				"topic":          topic,
				"scopeId":        scopeID,
				"scopeType":      scopeType,
				"tenantId":       tenant,
				"correlationId":  corr,
				"elementId":      element,
				"exclusive":      exclusive,
				"scopeVariables": vars,
				"users":          users,
				"groups":         groups,
			}
			if retries >= 0 {
				body["retries"] = retries
			}
			var out map[string]any
			if err := transports.NewHTTPTransport(baseURL).Do(cmd.Context(), http.MethodPost, "/v1/jobs", nil, body, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().String("topic", "", "job topic")
	cmd.Flags().String("scope-id", "", "owning scope instance id")
	cmd.Flags().String("scope-type", "", "scope type, e.g. bpmn or cmmn")
	cmd.Flags().String("tenant", "", "tenant id")
	cmd.Flags().String("correlation-id", "", "correlation id (generated when empty)")
	cmd.Flags().String("element-id", "", "element id")
	cmd.Flags().Bool("exclusive", false, "lock the scope while the job is held")
	cmd.Flags().Int("retries", -1, "initial retries (server default when negative)")
	cmd.Flags().StringSlice("user", nil, "candidate user ids")
	cmd.Flags().StringSlice("group", nil, "candidate group ids")
	cmd.Flags().StringArray("var", nil, "scope variable name=value (repeatable)")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func newJobListCmd(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := listQuery(cmd)
			var out map[string]any
			if err := transports.NewHTTPTransport(baseURL).Do(cmd.Context(), http.MethodGet, "/v1/jobs", q, nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	addListFlags(cmd)
	cmd.Flags().String("worker", "", "filter by lock owner")
	cmd.Flags().Bool("locked", false, "only locked jobs")
	cmd.Flags().Bool("unlocked", false, "only jobs a poll could claim now")
	return cmd
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().String("id", "", "filter by job id")
	cmd.Flags().String("topic", "", "filter by topic")
	cmd.Flags().String("type", "", "filter by job type")
	cmd.Flags().String("scope-id", "", "filter by scope id")
	cmd.Flags().String("scope-type", "", "filter by scope type")
	cmd.Flags().String("tenant", "", "filter by tenant id")
	cmd.Flags().Bool("with-exception", false, "only jobs that carry an exception")
	cmd.Flags().String("after", "", "page after this job id")
	cmd.Flags().Int("limit", 0, "maximum number of jobs")
}

func listQuery(cmd *cobra.Command) url.Values {
	q := url.Values{}
	for flag, param := range map[string]string{
		"topic":      "topic",
		"type":       "type",
		"scope-id":   "scopeId",
		"scope-type": "scopeType",
		"tenant":     "tenantId",
		"worker":     "workerId",
		"id":         "jobId",
		"after":      "after",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Value.String() != "" {
			q.Set(param, f.Value.String())
		}
	}
	for flag, param := range map[string]string{"locked": "locked", "unlocked": "unlocked", "with-exception": "withException"} {
		if v, err := cmd.Flags().GetBool(flag); err == nil && v {
			q.Set(param, "true")
		}
	}
	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

func newJobGetCmd(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := transports.NewHTTPTransport(baseURL).Do(cmd.Context(), http.MethodGet, "/v1/jobs/"+url.PathEscape(args[0]), nil, nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func newJobAcquireCmd(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Acquire and lock jobs for a topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tr, err := workerTransport(cmd, baseURL)
			if err != nil {
				return err
			}
			topic, _ := cmd.Flags().GetString("topic")
			worker, _ := cmd.Flags().GetString("worker")
			if worker == "" {
				worker = defaultWorkerID()
			}
			maxJobs, _ := cmd.Flags().GetInt32("max")
			lock, _ := cmd.Flags().GetDuration("lock-duration")
			wait, _ := cmd.Flags().GetDuration("wait")
			scopeType, _ := cmd.Flags().GetString("scope-type")
			tenant, _ := cmd.Flags().GetString("tenant")
			user, _ := cmd.Flags().GetString("user")
			groups, _ := cmd.Flags().GetStringSlice("group")
			jobs, err := tr.Acquire(cmd.Context(), &xworkv1.AcquireRequest{
				Topic:          topic,
				WorkerID:       worker,
				MaxJobs:        maxJobs,
				LockDurationMs: lock.Milliseconds(),
				ScopeType:      scopeType,
				TenantID:       tenant,
				UserID:         user,
				GroupIDs:       groups,
				WaitMs:         wait.Milliseconds(),
			})
			if err != nil {
				return err
			}
			if jobs == nil {
				jobs = []xworkv1.Job{}
			}
			return printJSON(cmd, map[string]any{"workerId": worker, "jobs": jobs})
		},
	}
	cmd.Flags().String("topic", "", "topic to acquire from")
	cmd.Flags().String("worker", "", "worker id (generated when empty)")
	cmd.Flags().Int32("max", 1, "maximum number of jobs")
	cmd.Flags().Duration("lock-duration", 0, "lock duration (server default when zero)")
	cmd.Flags().Duration("wait", 0, "long-poll for up to this long when nothing is available")
	cmd.Flags().String("scope-type", "", "only jobs of this scope type")
	cmd.Flags().String("tenant", "", "only jobs of this tenant")
	cmd.Flags().String("user", "", "candidate user for identity filtering")
	cmd.Flags().StringSlice("group", nil, "candidate groups for identity filtering")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

// newJobSettleCmd builds complete or terminate; they differ only in the
// transport call.
func newJobSettleCmd(baseURL BaseURLFunc, verb string) *cobra.Command {
	short := "Complete an acquired job"
	if verb == "terminate" {
		short = "Terminate the scope of an acquired job"
	}
	cmd := &cobra.Command{
		Use:   verb + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := workerTransport(cmd, baseURL)
			if err != nil {
				return err
			}
			worker, _ := cmd.Flags().GetString("worker")
			pairs, _ := cmd.Flags().GetStringArray("var")
			vars, err := parseVars(pairs)
			if err != nil {
				return err
			}
			req := &xworkv1.CompleteRequest{JobID: args[0], WorkerID: worker, Variables: vars}
			if verb == "terminate" {
				err = tr.Terminate(cmd.Context(), req)
			} else {
				err = tr.Complete(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"id": args[0], "status": verb + "d"})
		},
	}
	cmd.Flags().String("worker", "", "worker id holding the lock")
	cmd.Flags().StringArray("var", nil, "output variable name=value (repeatable)")
	_ = cmd.MarkFlagRequired("worker")
	return cmd
}

func newJobFailCmd(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fail <id>",
		Short: "Report a failure for an acquired job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := workerTransport(cmd, baseURL)
			if err != nil {
				return err
			}
			worker, _ := cmd.Flags().GetString("worker")
			msg, _ := cmd.Flags().GetString("message")
			details, _ := cmd.Flags().GetString("details")
			timeout, _ := cmd.Flags().GetDuration("retry-timeout")
			req := &xworkv1.FailRequest{
				JobID:          args[0],
				WorkerID:       worker,
				ErrorMessage:   msg,
				ErrorDetails:   details,
				RetryTimeoutMs: timeout.Milliseconds(),
			}
			if cmd.Flags().Changed("retries") {
				r, _ := cmd.Flags().GetInt32("retries")
				req.Retries = &r
			}
			if err := tr.Fail(cmd.Context(), req); err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"id": args[0], "status": "failed"})
		},
	}
	cmd.Flags().String("worker", "", "worker id holding the lock")
	cmd.Flags().Int32("retries", 0, "remaining retries (decrements by one when unset)")
	cmd.Flags().Duration("retry-timeout", 0, "hold the job back for this long")
	cmd.Flags().String("message", "", "error message")
	cmd.Flags().String("details", "", "error details, e.g. a stack trace")
	_ = cmd.MarkFlagRequired("worker")
	return cmd
}

func newJobUnacquireCmd(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unacquire <id>",
		Short: "Release the lock on an acquired job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := workerTransport(cmd, baseURL)
			if err != nil {
				return err
			}
			worker, _ := cmd.Flags().GetString("worker")
			if err := tr.Unacquire(cmd.Context(), &xworkv1.UnacquireRequest{JobID: args[0], WorkerID: worker}); err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"id": args[0], "status": "unacquired"})
		},
	}
	cmd.Flags().String("worker", "", "worker id holding the lock")
	_ = cmd.MarkFlagRequired("worker")
	return cmd
}

func newJobUnacquireAllCmd(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unacquire-all",
		Short: "Release every lock held by a worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tr, err := workerTransport(cmd, baseURL)
			if err != nil {
				return err
			}
			worker, _ := cmd.Flags().GetString("worker")
			req := &xworkv1.UnacquireAllRequest{WorkerID: worker}
			if cmd.Flags().Changed("tenant") {
				t, _ := cmd.Flags().GetString("tenant")
				req.TenantID = &t
			}
			if err := tr.UnacquireAll(cmd.Context(), req); err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"workerId": worker, "status": "unacquired"})
		},
	}
	cmd.Flags().String("worker", "", "worker id")
	cmd.Flags().String("tenant", "", "only jobs of this tenant")
	_ = cmd.MarkFlagRequired("worker")
	return cmd
}

func newJobErrorCmd(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "error <id>",
		Short: "Print the error details recorded for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := transports.NewHTTPTransport(baseURL).Do(cmd.Context(), http.MethodGet, "/v1/jobs/"+url.PathEscape(args[0])+"/error", nil, nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func newJobDeadLetterCmd(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "deadletter <id>",
		Short: "Move a job to the dead-letter table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := transports.NewHTTPTransport(baseURL).Do(cmd.Context(), http.MethodPost, "/v1/jobs/"+url.PathEscape(args[0])+"/deadletter", nil, nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

