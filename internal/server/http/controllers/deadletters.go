package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/services/extworker"
)

// DeadLettersController handles dead-letter inspection and requeue.
type DeadLettersController struct {
	svc *extworker.Service
}

// NewDeadLettersController creates a new dead-letter controller.
func NewDeadLettersController(svc *extworker.Service) *DeadLettersController {
	return &DeadLettersController{svc: svc}
}

// RegisterRoutes registers dead-letter routes on r.
func (c *DeadLettersController) RegisterRoutes(r chi.Router) {
	r.Get("/v1/deadletter", c.handleList)
	r.Get("/v1/deadletter/{id}/error", c.handleErrorDetails)
	r.Post("/v1/deadletter/{id}/executable", c.handleMoveToExecutable)
	r.Delete("/v1/deadletter/{id}", c.handleDelete)
}

func (c *DeadLettersController) handleList(w http.ResponseWriter, r *http.Request) {
	jobs, err := c.svc.ListDeadLetters(r.Context(), queryFromURL(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []job.DeadLetterJob{}
	}
	writeJSON(w, DeadLettersResp{Jobs: jobs})
}

func (c *DeadLettersController) handleErrorDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	details, err := c.svc.DeadLetterErrorDetails(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, ErrorDetailsResp{ID: id, Details: details})
}

func (c *DeadLettersController) handleMoveToExecutable(w http.ResponseWriter, r *http.Request) {
	var req ExecutableReq
	if !decodeBody(w, r, &req) {
		return
	}
	j, err := c.svc.MoveToExecutable(r.Context(), chi.URLParam(r, "id"), req.Retries)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, j)
}

func (c *DeadLettersController) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := c.svc.DeleteDeadLetter(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeNoContent(w)
}
