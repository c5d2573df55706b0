package store

import (
	"time"

	"github.com/rzbill/xwork/internal/job"
)

// JobQuery filters active and dead-letter jobs. Zero fields match everything.
type JobQuery struct {
	ID        string
	Types     []job.Type
	Topic     string
	ScopeID   string
	ScopeType job.ScopeType
	LockOwner string
	TenantID  string
	// Locked keeps jobs with a recorded lock expiry; Unlocked keeps jobs that
	// a poll at Now could claim. Setting both matches nothing.
	Locked   bool
	Unlocked bool
	// WithException keeps jobs that recorded an error message.
	WithException bool
	Now           time.Time
	// AfterID resumes a listing after the given id.
	AfterID string
	Limit   int
}

// ExternalWorker returns a query for external worker jobs on topic.
func ExternalWorker(topic string) JobQuery {
	return JobQuery{Types: []job.Type{job.TypeExternalWorker}, Topic: topic}
}

// Matches applies every filter to j. Backends may pre-filter on indexed
// fields but always call Matches before handing a job out.
func (q JobQuery) Matches(j job.Job) bool {
	if q.ID != "" && j.ID != q.ID {
		return false
	}
	if len(q.Types) > 0 {
		ok := false
		for _, t := range q.Types {
			if j.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if q.Topic != "" && j.HandlerConfiguration != q.Topic {
		return false
	}
	if q.ScopeID != "" && j.ScopeID != q.ScopeID {
		return false
	}
	if q.ScopeType != "" && j.ScopeType != q.ScopeType {
		return false
	}
	if q.LockOwner != "" && !j.OwnedBy(q.LockOwner) {
		return false
	}
	if q.TenantID != "" && j.TenantID != q.TenantID {
		return false
	}
	if q.Locked && !j.Locked() {
		return false
	}
	if q.Unlocked && !j.Acquirable(q.Now) {
		return false
	}
	if q.WithException && j.ExceptionMessage == "" {
		return false
	}
	if q.AfterID != "" && j.ID <= q.AfterID {
		return false
	}
	return true
}

// Collect runs a scan and gathers up to q.Limit matches (all when Limit <= 0).
func Collect(r Reader, q JobQuery) ([]job.Job, error) {
	var out []job.Job
	err := r.ScanJobs(q, func(j job.Job) (bool, error) {
		out = append(out, j)
		return q.Limit <= 0 || len(out) < q.Limit, nil
	})
	return out, err
}

// CollectDeadLetters is Collect for the dead-letter table.
func CollectDeadLetters(r Reader, q JobQuery) ([]job.DeadLetterJob, error) {
	var out []job.DeadLetterJob
	err := r.ScanDeadLetters(q, func(j job.DeadLetterJob) (bool, error) {
		out = append(out, j)
		return q.Limit <= 0 || len(out) < q.Limit, nil
	})
	return out, err
}
