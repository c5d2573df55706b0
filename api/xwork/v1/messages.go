package xworkv1

import "time"

type AcquireRequest struct {
	Topic          string   `json:"topic"`
	WorkerID       string   `json:"workerId"`
	MaxJobs        int32    `json:"maxJobs"`
	LockDurationMs int64    `json:"lockDurationMs,omitempty"`
	ScopeType      string   `json:"scopeType,omitempty"`
	TenantID       string   `json:"tenantId,omitempty"`
	UserID         string   `json:"userId,omitempty"`
	GroupIDs       []string `json:"groupIds,omitempty"`
	// WaitMs long-polls for up to this many milliseconds.
	WaitMs int64 `json:"waitMs,omitempty"`
}

// Job is an acquired external worker job with its input variables.
type Job struct {
	ID                 string         `json:"id"`
	Topic              string         `json:"topic"`
	ElementID          string         `json:"elementId,omitempty"`
	CorrelationID      string         `json:"correlationId"`
	ScopeID            string         `json:"scopeId,omitempty"`
	ScopeType          string         `json:"scopeType,omitempty"`
	TenantID           string         `json:"tenantId,omitempty"`
	Retries            int32          `json:"retries"`
	ExceptionMessage   string         `json:"exceptionMessage,omitempty"`
	LockOwner          string         `json:"lockOwner,omitempty"`
	LockExpirationTime *time.Time     `json:"lockExpirationTime,omitempty"`
	Exclusive          bool           `json:"exclusive"`
	CreateTime         time.Time      `json:"createTime"`
	Variables          map[string]any `json:"variables,omitempty"`
}

type AcquireResponse struct {
	Jobs []Job `json:"jobs"`
}

// CompleteRequest serves Complete and Terminate.
type CompleteRequest struct {
	JobID     string         `json:"jobId"`
	WorkerID  string         `json:"workerId"`
	Variables map[string]any `json:"variables,omitempty"`
}

type FailRequest struct {
	JobID          string `json:"jobId"`
	WorkerID       string `json:"workerId"`
	Retries        *int32 `json:"retries,omitempty"`
	RetryTimeoutMs int64  `json:"retryTimeoutMs,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	ErrorDetails   string `json:"errorDetails,omitempty"`
}

type UnacquireRequest struct {
	JobID    string `json:"jobId"`
	WorkerID string `json:"workerId"`
}

type UnacquireAllRequest struct {
	WorkerID string  `json:"workerId"`
	TenantID *string `json:"tenantId,omitempty"`
}

type Empty struct{}
