package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rzbill/xwork/internal/extjob"
	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/services/extworker"
	"github.com/rzbill/xwork/internal/store"
)

// JobsController handles the worker-facing job endpoints and job admin.
type JobsController struct {
	svc *extworker.Service
}

// NewJobsController creates a new jobs controller.
func NewJobsController(svc *extworker.Service) *JobsController {
	return &JobsController{svc: svc}
}

// RegisterRoutes registers job routes on r.
func (c *JobsController) RegisterRoutes(r chi.Router) {
	// Worker protocol
	r.Post("/v1/acquire", c.handleAcquire)
	r.Post("/v1/jobs/{id}/complete", c.handleComplete)
	r.Post("/v1/jobs/{id}/terminate", c.handleTerminate)
	r.Post("/v1/jobs/{id}/fail", c.handleFail)
	r.Post("/v1/jobs/{id}/unacquire", c.handleUnacquire)
	r.Post("/v1/workers/{workerId}/unacquire", c.handleUnacquireAll)

	// Admin
	r.Get("/v1/jobs", c.handleList)
	r.Post("/v1/jobs", c.handleCreate)
	r.Get("/v1/jobs/{id}", c.handleGet)
	r.Get("/v1/jobs/{id}/error", c.handleErrorDetails)
	r.Post("/v1/jobs/{id}/deadletter", c.handleMoveToDeadLetter)
}

func (c *JobsController) handleAcquire(w http.ResponseWriter, r *http.Request) {
	var req AcquireReq
	if !decodeBody(w, r, &req) {
		return
	}
	jobs, err := c.svc.Acquire(r.Context(), extworker.AcquireParams{
		AcquireRequest: extjob.AcquireRequest{
			Topic:        req.Topic,
			LockDuration: req.LockDuration.Std(),
			MaxJobs:      req.MaxJobs,
			WorkerID:     req.WorkerID,
			ScopeType:    req.ScopeType,
			TenantID:     req.TenantID,
			UserID:       req.UserID,
			GroupIDs:     req.GroupIDs,
		},
		Wait: req.Wait.Std(),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []job.AcquiredJob{}
	}
	writeJSON(w, AcquireResp{Jobs: jobs})
}

func (c *JobsController) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req CompleteReq
	if !decodeBody(w, r, &req) {
		return
	}
	if err := c.svc.Complete(r.Context(), chi.URLParam(r, "id"), req.WorkerID, req.Variables); err != nil {
		writeServiceError(w, err)
		return
	}
	writeNoContent(w)
}

func (c *JobsController) handleTerminate(w http.ResponseWriter, r *http.Request) {
	var req CompleteReq
	if !decodeBody(w, r, &req) {
		return
	}
	if err := c.svc.Terminate(r.Context(), chi.URLParam(r, "id"), req.WorkerID, req.Variables); err != nil {
		writeServiceError(w, err)
		return
	}
	writeNoContent(w)
}

func (c *JobsController) handleFail(w http.ResponseWriter, r *http.Request) {
	var req FailReq
	if !decodeBody(w, r, &req) {
		return
	}
	err := c.svc.Fail(r.Context(), chi.URLParam(r, "id"), req.WorkerID, extjob.FailOptions{
		Retries:      req.Retries,
		RetryTimeout: req.RetryTimeout.Std(),
		ErrorMessage: req.ErrorMessage,
		ErrorDetails: req.ErrorDetails,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeNoContent(w)
}

func (c *JobsController) handleUnacquire(w http.ResponseWriter, r *http.Request) {
	var req UnacquireReq
	if !decodeBody(w, r, &req) {
		return
	}
	if err := c.svc.Unacquire(r.Context(), chi.URLParam(r, "id"), req.WorkerID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeNoContent(w)
}

func (c *JobsController) handleUnacquireAll(w http.ResponseWriter, r *http.Request) {
	var req UnacquireAllReq
	if !decodeBody(w, r, &req) {
		return
	}
	if err := c.svc.UnacquireAll(r.Context(), chi.URLParam(r, "workerId"), req.TenantID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeNoContent(w)
}

// handleList lists active jobs. Query parameters: jobId, type, topic,
// scopeId, scopeType, workerId, tenantId, locked, unlocked, withException,
// after, limit.
func (c *JobsController) handleList(w http.ResponseWriter, r *http.Request) {
	q := queryFromURL(r)
	jobs, err := c.svc.ListJobs(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []job.Job{}
	}
	writeJSON(w, JobsResp{Jobs: jobs})
}

func (c *JobsController) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateJobReq
	if !decodeBody(w, r, &req) {
		return
	}
	j, err := c.svc.Create(r.Context(), extjob.CreateRequest{
		Type:              req.Type,
		Topic:             req.Topic,
		HandlerType:       req.HandlerType,
		ElementID:         req.ElementID,
		CorrelationID:     req.CorrelationID,
		ScopeID:           req.ScopeID,
		ScopeType:         req.ScopeType,
		ScopeDefinitionID: req.ScopeDefinitionID,
		SubScopeID:        req.SubScopeID,
		TenantID:          req.TenantID,
		Exclusive:         req.Exclusive,
		Retries:           req.Retries,
		InputMappings:     req.InputMappings,
		OutputMappings:    req.OutputMappings,
		ScopeVariables:    req.ScopeVariables,
		Users:             req.Users,
		Groups:            req.Groups,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, j)
}

func (c *JobsController) handleGet(w http.ResponseWriter, r *http.Request) {
	j, err := c.svc.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, j)
}

func (c *JobsController) handleErrorDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	details, err := c.svc.ErrorDetails(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, ErrorDetailsResp{ID: id, Details: details})
}

func (c *JobsController) handleMoveToDeadLetter(w http.ResponseWriter, r *http.Request) {
	dl, err := c.svc.MoveToDeadLetter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, dl)
}

func queryFromURL(r *http.Request) store.JobQuery {
	v := r.URL.Query()
	q := store.JobQuery{
		ID:            v.Get("jobId"),
		Topic:         v.Get("topic"),
		ScopeID:       v.Get("scopeId"),
		ScopeType:     job.ScopeType(v.Get("scopeType")),
		LockOwner:     v.Get("workerId"),
		TenantID:      v.Get("tenantId"),
		Locked:        parseBool(v.Get("locked")),
		Unlocked:      parseBool(v.Get("unlocked")),
		WithException: parseBool(v.Get("withException")),
		AfterID:       v.Get("after"),
		Limit:         parseLimit(v.Get("limit")),
	}
	for _, t := range v["type"] {
		q.Types = append(q.Types, job.Type(t))
	}
	return q
}
