// Package store defines the transactional job store used by the external
// worker engine. Backends live in subpackages (pebble, postgres).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rzbill/xwork/internal/job"
)

// ErrNotFound is returned by getters when the record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store runs transactions. Update transactions are serializable with respect
// to each other; View sees a consistent snapshot.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(r Reader) error) error
	Close() error
}

// Reader is the read half of a transaction.
type Reader interface {
	GetJob(id string) (job.Job, error)
	// ScanJobs calls fn for active jobs matching q in id order until fn returns false.
	ScanJobs(q JobQuery, fn func(job.Job) (bool, error)) error

	GetDeadLetter(id string) (job.DeadLetterJob, error)
	ScanDeadLetters(q JobQuery, fn func(job.DeadLetterJob) (bool, error)) error

	GetErrorDetails(ref string) (string, error)
	GetScope(id string) (job.ScopeInstance, error)

	// ScanIdentityLinks visits every link, optionally restricted to one correlation id.
	ScanIdentityLinks(correlationID string, fn func(job.IdentityLink) error) error
}

// Tx is a read-write transaction. Writes are visible to later reads in the
// same transaction and are discarded when the transaction function fails.
type Tx interface {
	Reader

	// PutJob inserts or replaces an active job.
	PutJob(j job.Job) error
	DeleteJob(id string) error
	// ClaimJob locks job id for owner until the given time if, at now, the
	// job is acquirable. It reports false when the job is gone or held.
	ClaimJob(id, owner string, until, now time.Time) (bool, error)

	PutDeadLetter(j job.DeadLetterJob) error
	DeleteDeadLetter(id string) error

	PutErrorDetails(ref, details string) error
	DeleteErrorDetails(ref string) error

	PutScope(s job.ScopeInstance) error

	PutIdentityLink(l job.IdentityLink) error
	DeleteIdentityLink(l job.IdentityLink) error
}
