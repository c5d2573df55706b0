package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cfgpkg "github.com/rzbill/xwork/internal/config"
	"github.com/rzbill/xwork/internal/runtime"
	"github.com/rzbill/xwork/internal/services/extworker"
	pebblestore "github.com/rzbill/xwork/internal/storage/pebble"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

func newServerForTest(t *testing.T) *Server {
	t.Helper()
	rt, err := runtime.Open(context.Background(), runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	svc, err := extworker.New(rt)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})
	return New(rt, svc, logger)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHealthHandler(t *testing.T) {
	s := newServerForTest(t)
	w := do(t, s, http.MethodGet, "/v1/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestWorkerProtocol(t *testing.T) {
	s := newServerForTest(t)

	w := do(t, s, http.MethodPost, "/v1/jobs", `{"topic":"orders","scopeId":"p1","scopeVariables":{"amount":12}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decode(t, w, &created)

	w = do(t, s, http.MethodPost, "/v1/acquire", `{"topic":"orders","workerId":"w1","maxJobs":5,"lockDuration":"1m"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("acquire status: %d %s", w.Code, w.Body.String())
	}
	var acquired struct {
		Jobs []struct {
			ID        string         `json:"id"`
			LockOwner string         `json:"lockOwner"`
			Variables map[string]any `json:"variables"`
		} `json:"jobs"`
	}
	decode(t, w, &acquired)
	if len(acquired.Jobs) != 1 || acquired.Jobs[0].ID != created.ID || acquired.Jobs[0].LockOwner != "w1" {
		t.Fatalf("unexpected acquire result: %+v", acquired)
	}
	if acquired.Jobs[0].Variables["amount"] != 12.0 {
		t.Fatalf("variables: %v", acquired.Jobs[0].Variables)
	}

	w = do(t, s, http.MethodPost, "/v1/jobs/"+created.ID+"/complete", `{"workerId":"w2"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("foreign complete status: %d", w.Code)
	}
	var e struct {
		Error string `json:"error"`
	}
	decode(t, w, &e)
	if e.Error != "w2 does not hold a lock on the requested job" {
		t.Fatalf("error message: %q", e.Error)
	}

	w = do(t, s, http.MethodPost, "/v1/jobs/"+created.ID+"/complete", `{"workerId":"w1","variables":{"approved":true}}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("complete status: %d %s", w.Code, w.Body.String())
	}

	w = do(t, s, http.MethodGet, "/v1/scopes/p1", "")
	var scope struct {
		Variables map[string]any `json:"variables"`
	}
	decode(t, w, &scope)
	if scope.Variables["approved"] != true {
		t.Fatalf("scope variables: %v", scope.Variables)
	}

	w = do(t, s, http.MethodGet, "/v1/jobs/"+created.ID, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("completed job still present: %d", w.Code)
	}
}

func TestFailToDeadLetterAndRequeue(t *testing.T) {
	s := newServerForTest(t)
	w := do(t, s, http.MethodPost, "/v1/jobs", `{"topic":"t","retries":1}`)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, w, &created)
	do(t, s, http.MethodPost, "/v1/acquire", `{"topic":"t","workerId":"w1","maxJobs":1}`)

	w = do(t, s, http.MethodPost, "/v1/jobs/"+created.ID+"/fail", `{"workerId":"w1","errorMessage":"bad input","errorDetails":"stack"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("fail status: %d %s", w.Code, w.Body.String())
	}

	w = do(t, s, http.MethodGet, "/v1/deadletter", "")
	var dls struct {
		Jobs []struct {
			ID               string `json:"id"`
			ExceptionMessage string `json:"exceptionMessage"`
		} `json:"jobs"`
	}
	decode(t, w, &dls)
	if len(dls.Jobs) != 1 || dls.Jobs[0].ExceptionMessage != "bad input" {
		t.Fatalf("dead letters: %+v", dls)
	}

	w = do(t, s, http.MethodGet, "/v1/deadletter/"+created.ID+"/error", "")
	var details struct {
		Details string `json:"details"`
	}
	decode(t, w, &details)
	if details.Details != "stack" {
		t.Fatalf("details: %q", details.Details)
	}

	w = do(t, s, http.MethodPost, "/v1/deadletter/"+created.ID+"/executable", `{"retries":0}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("zero retries status: %d", w.Code)
	}
	w = do(t, s, http.MethodPost, "/v1/deadletter/"+created.ID+"/executable", `{"retries":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("requeue status: %d %s", w.Code, w.Body.String())
	}
	w = do(t, s, http.MethodDelete, "/v1/deadletter/"+created.ID, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete of requeued job: %d", w.Code)
	}
}

func TestValidationAndLookupErrors(t *testing.T) {
	s := newServerForTest(t)
	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/v1/acquire", `{"workerId":"w1","maxJobs":1}`, http.StatusBadRequest},
		{http.MethodPost, "/v1/acquire", `{not json`, http.StatusBadRequest},
		{http.MethodPost, "/v1/jobs/nope/unacquire", `{"workerId":"w1"}`, http.StatusNotFound},
		{http.MethodGet, "/v1/jobs/nope/error", "", http.StatusNotFound},
		{http.MethodPost, "/v1/identity-links", `{"links":[{"correlationId":"c"}]}`, http.StatusBadRequest},
		{http.MethodGet, "/v1/scopes/none", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		if w := do(t, s, tc.method, tc.path, tc.body); w.Code != tc.want {
			t.Fatalf("%s %s: got %d want %d (%s)", tc.method, tc.path, w.Code, tc.want, w.Body.String())
		}
	}
}

func TestUnacquireAllTenantMismatch(t *testing.T) {
	s := newServerForTest(t)
	do(t, s, http.MethodPost, "/v1/jobs", `{"topic":"t","tenantId":"a"}`)
	do(t, s, http.MethodPost, "/v1/jobs", `{"topic":"t","tenantId":"b"}`)
	do(t, s, http.MethodPost, "/v1/acquire", `{"topic":"t","workerId":"w1","maxJobs":2}`)

	w := do(t, s, http.MethodPost, "/v1/workers/w1/unacquire", `{"tenantId":"a"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
	w = do(t, s, http.MethodPost, "/v1/workers/w1/unacquire", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status: %d", w.Code)
	}
	w = do(t, s, http.MethodGet, "/v1/jobs?workerId=w1", "")
	var list struct {
		Jobs []any `json:"jobs"`
	}
	decode(t, w, &list)
	if len(list.Jobs) != 0 {
		t.Fatalf("leases remain: %v", list.Jobs)
	}
}
