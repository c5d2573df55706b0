// Package job defines the records the external worker queue stores: active
// jobs, dead-letter jobs, scope instances and identity links.
package job

import (
	"fmt"
	"time"

	"github.com/rzbill/xwork/internal/variables"
)

// Type tags the kind of work a job represents. Active and dead-letter jobs
// share the same record; only the table differs.
type Type string

const (
	TypeExternalWorker Type = "EXTERNAL_WORKER"
	TypeMessage        Type = "MESSAGE"
	TypeTimer          Type = "TIMER"
	TypeAsync          Type = "ASYNC"
)

// Valid reports whether t is a known job type.
func (t Type) Valid() bool {
	switch t {
	case TypeExternalWorker, TypeMessage, TypeTimer, TypeAsync:
		return true
	}
	return false
}

// ScopeType names the kind of workflow instance that owns a job.
type ScopeType string

const (
	ScopeBPMN ScopeType = "bpmn"
	ScopeCMMN ScopeType = "cmmn"
)

// Handler types of the follow-up jobs created when an external worker
// reports back.
const (
	HandlerExternalWorker          = "external-worker-command"
	HandlerExternalWorkerComplete  = "external-worker-complete"
	HandlerExternalWorkerTerminate = "external-worker-terminate"
)

// Job is the unit of work. LockOwner and LockExpirationTime are set together
// while a worker holds the lease. After a failed attempt with retries left
// LockOwner is nil and LockExpirationTime marks the end of the hold-off.
type Job struct {
	ID                   string              `json:"id"`
	Type                 Type                `json:"type"`
	ElementID            string              `json:"elementId,omitempty"`
	CorrelationID        string              `json:"correlationId"`
	ScopeID              string              `json:"scopeId,omitempty"`
	ScopeType            ScopeType           `json:"scopeType,omitempty"`
	ScopeDefinitionID    string              `json:"scopeDefinitionId,omitempty"`
	SubScopeID           string              `json:"subScopeId,omitempty"`
	HandlerType          string              `json:"handlerType,omitempty"`
	HandlerConfiguration string              `json:"handlerConfiguration,omitempty"`
	Retries              int                 `json:"retries"`
	ExceptionMessage     string              `json:"exceptionMessage,omitempty"`
	StacktraceRef        string              `json:"stacktraceRef,omitempty"`
	LockOwner            *string             `json:"lockOwner,omitempty"`
	LockExpirationTime   *time.Time          `json:"lockExpirationTime,omitempty"`
	TenantID             string              `json:"tenantId,omitempty"`
	Exclusive            bool                `json:"exclusive"`
	InputMappings        []variables.Mapping `json:"inputMappings,omitempty"`
	OutputMappings       []variables.Mapping `json:"outputMappings,omitempty"`
	CreateTime           time.Time           `json:"createTime"`
}

// Topic is the worker topic of an external worker job.
func (j Job) Topic() string { return j.HandlerConfiguration }

// Locked reports whether a lock expiry is recorded, live or not.
func (j Job) Locked() bool { return j.LockExpirationTime != nil }

// Acquirable reports whether a poll at now may claim the job: never locked,
// or the lease or hold-off has lapsed.
func (j Job) Acquirable(now time.Time) bool {
	return j.LockExpirationTime == nil || j.LockExpirationTime.Before(now)
}

// OwnedBy reports whether worker holds the lock.
func (j Job) OwnedBy(worker string) bool {
	return j.LockOwner != nil && *j.LockOwner == worker
}

// Lock records a lease for owner until the given time.
func (j *Job) Lock(owner string, until time.Time) {
	o, u := owner, until
	j.LockOwner, j.LockExpirationTime = &o, &u
}

// Unlock clears owner and expiry.
func (j *Job) Unlock() {
	j.LockOwner, j.LockExpirationTime = nil, nil
}

// HoldOff clears the owner and keeps the job unacquirable until the given time.
func (j *Job) HoldOff(until time.Time) {
	u := until
	j.LockOwner, j.LockExpirationTime = nil, &u
}

// String is the identity used in diagnostics.
func (j Job) String() string {
	kind := "Job"
	if j.Type == TypeExternalWorker {
		kind = "ExternalWorkerJob"
	}
	return fmt.Sprintf("%s[id=%s, jobHandlerConfiguration=%s, scopeType=%s, scopeId=%s, elementId=%s]",
		kind, j.ID, j.HandlerConfiguration, j.ScopeType, j.ScopeID, j.ElementID)
}

// AcquiredJob is the view handed to a worker: the job plus its resolved
// input variables. It is never stored.
type AcquiredJob struct {
	Job
	Variables map[string]any `json:"variables"`
}

// DeadLetterJob is a job whose retries are exhausted. It is never locked.
type DeadLetterJob struct {
	Job
}

// ScopeInstance is the workflow instance owning jobs. Exclusive jobs lock it.
type ScopeInstance struct {
	ID        string         `json:"id"`
	ScopeType ScopeType      `json:"scopeType,omitempty"`
	LockOwner *string        `json:"lockOwner,omitempty"`
	LockTime  *time.Time     `json:"lockTime,omitempty"`
	Variables map[string]any `json:"variables"`
}

// LiveLockedByOther reports whether someone other than worker holds an
// unexpired lock on the instance.
func (s ScopeInstance) LiveLockedByOther(worker string, now time.Time) bool {
	if s.LockOwner == nil || *s.LockOwner == worker {
		return false
	}
	return s.LockTime != nil && !s.LockTime.Before(now)
}

// IdentityLink authorizes a user or a group on a correlation id. Exactly one
// of UserID and GroupID is set.
type IdentityLink struct {
	CorrelationID string `json:"correlationId"`
	UserID        string `json:"userId,omitempty"`
	GroupID       string `json:"groupId,omitempty"`
}

// Validate checks the one-of rule.
func (l IdentityLink) Validate() error {
	if l.CorrelationID == "" {
		return fmt.Errorf("identity link needs a correlation id")
	}
	if (l.UserID == "") == (l.GroupID == "") {
		return fmt.Errorf("identity link needs exactly one of user or group")
	}
	return nil
}
