package extjob

import (
	"context"

	"github.com/google/uuid"

	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/store"
	"github.com/rzbill/xwork/internal/variables"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

// CreateRequest describes a new job. Type defaults to EXTERNAL_WORKER, which
// requires a Topic. Retries nil means the engine default.
type CreateRequest struct {
	Type              job.Type
	Topic             string
	HandlerType       string
	ElementID         string
	CorrelationID     string
	ScopeID           string
	ScopeType         job.ScopeType
	ScopeDefinitionID string
	SubScopeID        string
	TenantID          string
	Exclusive         bool
	Retries           *int
	InputMappings     []variables.Mapping
	OutputMappings    []variables.Mapping
	// ScopeVariables are merged into the scope instance, creating it if needed.
	ScopeVariables map[string]any
	// Users and Groups become identity links on the correlation id.
	Users  []string
	Groups []string
}

// CreateContext is passed to interceptors. BeforeCreate may rewrite Job
// (its topic, for instance); AfterCreate sees the stored job.
type CreateContext struct {
	Request CreateRequest
	Job     *job.Job
}

// CreateJobInterceptor hooks job creation. An error from BeforeCreate
// aborts the creation.
type CreateJobInterceptor interface {
	BeforeCreate(c *CreateContext) error
	AfterCreate(c *CreateContext)
}

// linkApplier is implemented by identity indexes that cache links.
type linkApplier interface {
	Apply(links ...job.IdentityLink)
}

// Creator stores new jobs.
type Creator struct {
	*deps
	interceptors []CreateJobInterceptor
	logger       logpkg.Logger
}

// Create validates req, runs the interceptors and stores the job together
// with its scope variables and identity links.
func (c *Creator) Create(ctx context.Context, req CreateRequest) (job.Job, error) {
	if req.Type == "" {
		req.Type = job.TypeExternalWorker
	}
	if !req.Type.Valid() {
		return job.Job{}, invalid("unknown job type %q", req.Type)
	}
	if req.Retries != nil && *req.Retries < 0 {
		return job.Job{}, invalid("retries must not be negative")
	}
	for _, m := range append(append([]variables.Mapping{}, req.InputMappings...), req.OutputMappings...) {
		if err := m.Validate(); err != nil {
			return job.Job{}, invalid("%v", err)
		}
		if m.Expression != "" {
			if err := c.resolver.Compile(m.Expression); err != nil {
				return job.Job{}, invalid("mapping %q: %v", m.Expression, err)
			}
		}
	}

	now := c.clock.Now()
	j := job.Job{
		ID:                   c.ids.NextString(),
		Type:                 req.Type,
		ElementID:            req.ElementID,
		CorrelationID:        req.CorrelationID,
		ScopeID:              req.ScopeID,
		ScopeType:            req.ScopeType,
		ScopeDefinitionID:    req.ScopeDefinitionID,
		SubScopeID:           req.SubScopeID,
		HandlerType:          req.HandlerType,
		HandlerConfiguration: req.Topic,
		Retries:              c.retries,
		TenantID:             req.TenantID,
		Exclusive:            req.Exclusive,
		InputMappings:        req.InputMappings,
		OutputMappings:       req.OutputMappings,
		CreateTime:           now,
	}
	if req.Retries != nil {
		j.Retries = *req.Retries
	}
	if j.CorrelationID == "" {
		j.CorrelationID = uuid.NewString()
	}
	if j.Type == job.TypeExternalWorker && j.HandlerType == "" {
		j.HandlerType = job.HandlerExternalWorker
	}

	cc := &CreateContext{Request: req, Job: &j}
	for _, ic := range c.interceptors {
		if err := ic.BeforeCreate(cc); err != nil {
			return job.Job{}, err
		}
	}
	if j.Type == job.TypeExternalWorker && j.HandlerConfiguration == "" {
		return job.Job{}, invalid("topic must not be empty")
	}

	var links []job.IdentityLink
	for _, u := range req.Users {
		links = append(links, job.IdentityLink{CorrelationID: j.CorrelationID, UserID: u})
	}
	for _, g := range req.Groups {
		links = append(links, job.IdentityLink{CorrelationID: j.CorrelationID, GroupID: g})
	}

	err := c.store.Update(ctx, func(tx store.Tx) error {
		if err := tx.PutJob(j); err != nil {
			return err
		}
		if j.ScopeID != "" {
			s, err := getScope(tx, j.ScopeID, j.ScopeType)
			if err != nil {
				return err
			}
			for k, v := range req.ScopeVariables {
				s.Variables[k] = v
			}
			if err := tx.PutScope(s); err != nil {
				return err
			}
		}
		for _, l := range links {
			if err := tx.PutIdentityLink(l); err != nil {
				return invalid("%v", err)
			}
		}
		return nil
	})
	if err != nil {
		return job.Job{}, err
	}
	if la, ok := c.identity.(linkApplier); ok && len(links) > 0 {
		la.Apply(links...)
	}
	for _, ic := range c.interceptors {
		ic.AfterCreate(cc)
	}
	c.logger.Debug("job created",
		logpkg.Str("job_id", j.ID), logpkg.Str("type", string(j.Type)), logpkg.Str("topic", j.Topic()))
	if j.Type == job.TypeExternalWorker {
		c.available(j.Topic())
	}
	return j, nil
}
