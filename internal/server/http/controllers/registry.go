package controllers

import (
	"github.com/go-chi/chi/v5"

	"github.com/rzbill/xwork/internal/runtime"
	"github.com/rzbill/xwork/internal/services/extworker"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general     *GeneralController
	jobs        *JobsController
	deadLetters *DeadLettersController
}

// NewControllerRegistry creates the controllers over one service.
func NewControllerRegistry(rt *runtime.Runtime, svc *extworker.Service) *ControllerRegistry {
	return &ControllerRegistry{
		general:     NewGeneralController(rt, svc),
		jobs:        NewJobsController(svc),
		deadLetters: NewDeadLettersController(svc),
	}
}

// RegisterAllRoutes registers all controller routes on r.
func (c *ControllerRegistry) RegisterAllRoutes(r chi.Router) {
	c.general.RegisterRoutes(r)
	c.jobs.RegisterRoutes(r)
	c.deadLetters.RegisterRoutes(r)
}
