package extjob

import (
	"errors"
	"time"

	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/store"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

// ScopeInstanceLocker writes the lock fields of a scope instance inside a
// transaction.
type ScopeInstanceLocker interface {
	Lock(tx store.Tx, scopeID string, scopeType job.ScopeType, owner string, until time.Time) error
	Unlock(tx store.Tx, scopeID string) error
}

// StoreLocker keeps the scope lock on the scope instance record.
type StoreLocker struct{}

func (StoreLocker) Lock(tx store.Tx, scopeID string, scopeType job.ScopeType, owner string, until time.Time) error {
	s, err := getScope(tx, scopeID, scopeType)
	if err != nil {
		return err
	}
	o, u := owner, until
	s.LockOwner, s.LockTime = &o, &u
	return tx.PutScope(s)
}

func (StoreLocker) Unlock(tx store.Tx, scopeID string) error {
	s, err := tx.GetScope(scopeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.LockOwner, s.LockTime = nil, nil
	return tx.PutScope(s)
}

// getScope loads a scope instance, or a fresh one when it does not exist yet.
func getScope(r store.Reader, scopeID string, scopeType job.ScopeType) (job.ScopeInstance, error) {
	s, err := r.GetScope(scopeID)
	if errors.Is(err, store.ErrNotFound) {
		return job.ScopeInstance{ID: scopeID, ScopeType: scopeType, Variables: map[string]any{}}, nil
	}
	if err != nil {
		return job.ScopeInstance{}, err
	}
	if s.Variables == nil {
		s.Variables = map[string]any{}
	}
	return s, nil
}

// InstanceLockCoordinator locks the scope instance of exclusive jobs. The
// lock is counted per worker: it stays while the worker holds any live
// exclusive job of the instance.
type InstanceLockCoordinator struct {
	locker ScopeInstanceLocker
	logger logpkg.Logger
}

func scoped(j job.Job) bool { return j.Exclusive && j.ScopeID != "" }

// Blocked reports whether another worker's live lock on j's scope instance
// keeps owner from taking j.
func (c *InstanceLockCoordinator) Blocked(tx store.Reader, j job.Job, owner string, now time.Time) (bool, error) {
	if !scoped(j) {
		return false, nil
	}
	s, err := tx.GetScope(j.ScopeID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.LiveLockedByOther(owner, now), nil
}

// Lock takes or extends owner's lock on j's scope instance. A relock by the
// same owner keeps the later of the two expiries.
func (c *InstanceLockCoordinator) Lock(tx store.Tx, j job.Job, owner string, until time.Time) error {
	if !scoped(j) {
		return nil
	}
	s, err := getScope(tx, j.ScopeID, j.ScopeType)
	if err != nil {
		return err
	}
	if s.LockOwner != nil && *s.LockOwner == owner && s.LockTime != nil && s.LockTime.After(until) {
		until = *s.LockTime
	}
	return c.locker.Lock(tx, j.ScopeID, j.ScopeType, owner, until)
}

// Release drops owner's lock on j's scope instance unless owner still holds
// another live exclusive job of the same instance. Call it after j itself
// has been released in tx.
func (c *InstanceLockCoordinator) Release(tx store.Tx, j job.Job, owner string, now time.Time) error {
	if !scoped(j) {
		return nil
	}
	s, err := tx.GetScope(j.ScopeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.LockOwner == nil || *s.LockOwner != owner {
		return nil
	}
	held := false
	err = tx.ScanJobs(store.JobQuery{ScopeID: j.ScopeID, LockOwner: owner}, func(other job.Job) (bool, error) {
		if other.ID != j.ID && other.Exclusive && !other.Acquirable(now) {
			held = true
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if held {
		c.logger.Debug("scope lock kept", logpkg.Str("scope_id", j.ScopeID), logpkg.Str("worker_id", owner))
		return nil
	}
	return c.locker.Unlock(tx, j.ScopeID)
}
