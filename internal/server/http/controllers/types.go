package controllers

import (
	"github.com/rzbill/xwork/internal/config"
	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/variables"
)

// Request and response bodies of the v1 API.

type errorResp struct {
	Error string `json:"error"`
}

// AcquireReq polls a topic. Wait turns the call into a long poll.
type AcquireReq struct {
	Topic        string          `json:"topic"`
	WorkerID     string          `json:"workerId"`
	MaxJobs      int             `json:"maxJobs"`
	LockDuration config.Duration `json:"lockDuration,omitempty"`
	ScopeType    job.ScopeType   `json:"scopeType,omitempty"`
	TenantID     string          `json:"tenantId,omitempty"`
	UserID       string          `json:"userId,omitempty"`
	GroupIDs     []string        `json:"groupIds,omitempty"`
	Wait         config.Duration `json:"wait,omitempty"`
}

type AcquireResp struct {
	Jobs []job.AcquiredJob `json:"jobs"`
}

// CompleteReq serves complete and terminate.
type CompleteReq struct {
	WorkerID  string         `json:"workerId"`
	Variables map[string]any `json:"variables,omitempty"`
}

type FailReq struct {
	WorkerID     string          `json:"workerId"`
	Retries      *int            `json:"retries,omitempty"`
	RetryTimeout config.Duration `json:"retryTimeout,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	ErrorDetails string          `json:"errorDetails,omitempty"`
}

type UnacquireReq struct {
	WorkerID string `json:"workerId"`
}

type UnacquireAllReq struct {
	TenantID *string `json:"tenantId,omitempty"`
}

type CreateJobReq struct {
	Type              job.Type            `json:"type,omitempty"`
	Topic             string              `json:"topic,omitempty"`
	HandlerType       string              `json:"handlerType,omitempty"`
	ElementID         string              `json:"elementId,omitempty"`
	CorrelationID     string              `json:"correlationId,omitempty"`
	ScopeID           string              `json:"scopeId,omitempty"`
	ScopeType         job.ScopeType       `json:"scopeType,omitempty"`
	ScopeDefinitionID string              `json:"scopeDefinitionId,omitempty"`
	SubScopeID        string              `json:"subScopeId,omitempty"`
	TenantID          string              `json:"tenantId,omitempty"`
	Exclusive         bool                `json:"exclusive,omitempty"`
	Retries           *int                `json:"retries,omitempty"`
	InputMappings     []variables.Mapping `json:"inputMappings,omitempty"`
	OutputMappings    []variables.Mapping `json:"outputMappings,omitempty"`
	ScopeVariables    map[string]any      `json:"scopeVariables,omitempty"`
	Users             []string            `json:"users,omitempty"`
	Groups            []string            `json:"groups,omitempty"`
}

type JobsResp struct {
	Jobs []job.Job `json:"jobs"`
}

type DeadLettersResp struct {
	Jobs []job.DeadLetterJob `json:"jobs"`
}

type ErrorDetailsResp struct {
	ID      string `json:"id"`
	Details string `json:"details"`
}

type ExecutableReq struct {
	Retries int `json:"retries"`
}

type IdentityLinksReq struct {
	Links []job.IdentityLink `json:"links"`
}
