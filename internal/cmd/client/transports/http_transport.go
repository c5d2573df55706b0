package transports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	xworkv1 "github.com/rzbill/xwork/api/xwork/v1"
)

// HTTPTransport implements WorkerTransport and the admin calls over the
// REST API.
type HTTPTransport struct {
	baseURL func() string
	client  *http.Client
}

// NewHTTPTransport constructs an HTTPTransport against baseURL().
func NewHTTPTransport(baseURL func() string) *HTTPTransport {
	return &HTTPTransport{baseURL: baseURL, client: &http.Client{}}
}

// APIError is a non-2xx answer carrying the server's message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// Do sends body as JSON and decodes a JSON answer into out when out is set.
func (t *HTTPTransport) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := t.baseURL() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type httpJob struct {
	xworkv1.Job
	HandlerConfiguration string `json:"handlerConfiguration"`
}

func (t *HTTPTransport) Acquire(ctx context.Context, req *xworkv1.AcquireRequest) ([]xworkv1.Job, error) {
	body := map[string]any{
		"topic":     req.Topic,
		"workerId":  req.WorkerID,
		"maxJobs":   req.MaxJobs,
		"scopeType": req.ScopeType,
		"tenantId":  req.TenantID,
		"userId":    req.UserID,
		"groupIds":  req.GroupIDs,
	}
	if req.LockDurationMs > 0 {
		body["lockDuration"] = (time.Duration(req.LockDurationMs) * time.Millisecond).String()
	}
	if req.WaitMs > 0 {
		body["wait"] = (time.Duration(req.WaitMs) * time.Millisecond).String()
	}
	var res struct {
		Jobs []httpJob `json:"jobs"`
	}
	if err := t.Do(ctx, http.MethodPost, "/v1/acquire", nil, body, &res); err != nil {
		return nil, err
	}
	jobs := make([]xworkv1.Job, 0, len(res.Jobs))
	for _, j := range res.Jobs {
		j.Job.Topic = j.HandlerConfiguration
		jobs = append(jobs, j.Job)
	}
	return jobs, nil
}

func (t *HTTPTransport) Complete(ctx context.Context, req *xworkv1.CompleteRequest) error {
	return t.Do(ctx, http.MethodPost, "/v1/jobs/"+url.PathEscape(req.JobID)+"/complete", nil,
		map[string]any{"workerId": req.WorkerID, "variables": req.Variables}, nil)
}

func (t *HTTPTransport) Terminate(ctx context.Context, req *xworkv1.CompleteRequest) error {
	return t.Do(ctx, http.MethodPost, "/v1/jobs/"+url.PathEscape(req.JobID)+"/terminate", nil,
		map[string]any{"workerId": req.WorkerID, "variables": req.Variables}, nil)
}

func (t *HTTPTransport) Fail(ctx context.Context, req *xworkv1.FailRequest) error {
	body := map[string]any{
		"workerId":     req.WorkerID,
		"errorMessage": req.ErrorMessage,
		"errorDetails": req.ErrorDetails,
	}
	if req.Retries != nil {
		body["retries"] = *req.Retries
	}
	if req.RetryTimeoutMs > 0 {
		body["retryTimeout"] = (time.Duration(req.RetryTimeoutMs) * time.Millisecond).String()
	}
	return t.Do(ctx, http.MethodPost, "/v1/jobs/"+url.PathEscape(req.JobID)+"/fail", nil, body, nil)
}

func (t *HTTPTransport) Unacquire(ctx context.Context, req *xworkv1.UnacquireRequest) error {
	return t.Do(ctx, http.MethodPost, "/v1/jobs/"+url.PathEscape(req.JobID)+"/unacquire", nil,
		map[string]any{"workerId": req.WorkerID}, nil)
}

func (t *HTTPTransport) UnacquireAll(ctx context.Context, req *xworkv1.UnacquireAllRequest) error {
	body := map[string]any{}
	if req.TenantID != nil {
		body["tenantId"] = *req.TenantID
	}
	return t.Do(ctx, http.MethodPost, "/v1/workers/"+url.PathEscape(req.WorkerID)+"/unacquire", nil, body, nil)
}
