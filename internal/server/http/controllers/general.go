package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rzbill/xwork/internal/runtime"
	"github.com/rzbill/xwork/internal/services/extworker"
)

// GeneralController serves health, identity links and scope instances.
type GeneralController struct {
	rt  *runtime.Runtime
	svc *extworker.Service
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime, svc *extworker.Service) *GeneralController {
	return &GeneralController{rt: rt, svc: svc}
}

// RegisterRoutes registers general routes on r.
func (c *GeneralController) RegisterRoutes(r chi.Router) {
	r.Get("/v1/healthz", c.handleHealth)
	r.Post("/v1/identity-links", c.handleAddLinks)
	r.Delete("/v1/identity-links", c.handleRemoveLinks)
	r.Get("/v1/scopes/{id}", c.handleGetScope)
}

// handleHealth returns 200 {"status":"ok"} if healthy, 503 otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (c *GeneralController) handleAddLinks(w http.ResponseWriter, r *http.Request) {
	var req IdentityLinksReq
	if !decodeBody(w, r, &req) {
		return
	}
	if err := c.svc.AddIdentityLinks(r.Context(), req.Links...); err != nil {
		writeServiceError(w, err)
		return
	}
	writeNoContent(w)
}

func (c *GeneralController) handleRemoveLinks(w http.ResponseWriter, r *http.Request) {
	var req IdentityLinksReq
	if !decodeBody(w, r, &req) {
		return
	}
	if err := c.svc.RemoveIdentityLinks(r.Context(), req.Links...); err != nil {
		writeServiceError(w, err)
		return
	}
	writeNoContent(w)
}

func (c *GeneralController) handleGetScope(w http.ResponseWriter, r *http.Request) {
	s, err := c.svc.GetScope(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, s)
}
