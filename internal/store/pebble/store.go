// Package pebblejobs implements store.Store on an embedded Pebble database.
// Jobs are JSON records keyed by id; secondary indexes on topic, lock owner
// and scope id point back at them.
package pebblejobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/xwork/internal/job"
	pebblestore "github.com/rzbill/xwork/internal/storage/pebble"
	"github.com/rzbill/xwork/internal/store"
)

const schemaVersion = "1"

// scanPage bounds how many keys are read before the iterator is closed and
// callbacks run, so callbacks may write to the same batch.
const scanPage = 128

// Store is a store.Store backed by Pebble.
type Store struct {
	db *pebblestore.DB
}

var _ store.Store = (*Store)(nil)

// Open wraps an opened database and records the schema version on first use.
func Open(db *pebblestore.DB) (*Store, error) {
	v, err := db.Get([]byte(keySchema))
	switch {
	case errors.Is(err, pebblestore.ErrNotFound):
		if err := db.Set([]byte(keySchema), []byte(schemaVersion)); err != nil {
			return nil, fmt.Errorf("write schema version: %w", err)
		}
	case err != nil:
		return nil, err
	case string(v) != schemaVersion:
		return nil, fmt.Errorf("unsupported pebble schema version %q", v)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.db.Update(ctx, func(b *pebble.Batch) error {
		return fn(&tx{reader: reader{db: s.db, r: b}, b: b})
	})
}

func (s *Store) View(ctx context.Context, fn func(r store.Reader) error) error {
	return s.db.View(ctx, func(r pebble.Reader) error {
		return fn(&reader{db: s.db, r: r})
	})
}

type reader struct {
	db *pebblestore.DB
	r  pebble.Reader
}

func (r *reader) getJSON(key []byte, v any) error {
	b, err := r.db.GetFrom(r.r, key)
	if errors.Is(err, pebblestore.ErrNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (r *reader) GetJob(id string) (job.Job, error) {
	var j job.Job
	err := r.getJSON(jobKey(id), &j)
	return j, err
}

func (r *reader) GetDeadLetter(id string) (job.DeadLetterJob, error) {
	var j job.DeadLetterJob
	err := r.getJSON(dlqKey(id), &j)
	return j, err
}

func (r *reader) GetErrorDetails(ref string) (string, error) {
	b, err := r.db.GetFrom(r.r, errDetailKey(ref))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return "", store.ErrNotFound
	}
	return string(b), err
}

func (r *reader) GetScope(id string) (job.ScopeInstance, error) {
	var s job.ScopeInstance
	err := r.getJSON(scopeKey(id), &s)
	return s, err
}

func (r *reader) ScanJobs(q store.JobQuery, fn func(job.Job) (bool, error)) error {
	if q.ID != "" {
		j, err := r.GetJob(q.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil || !q.Matches(j) {
			return err
		}
		_, err = fn(j)
		return err
	}

	var prefix []byte
	viaIndex := true
	switch {
	case q.Topic != "":
		prefix = indexPrefix(prefixTopicIdx, q.Topic)
	case q.LockOwner != "":
		prefix = indexPrefix(prefixOwnerIdx, q.LockOwner)
	case q.ScopeID != "":
		prefix = indexPrefix(prefixScopeIdx, q.ScopeID)
	default:
		prefix = []byte(prefixJob)
		viaIndex = false
	}

	return r.pagedScan(prefix, func(key, value []byte) (bool, error) {
		var j job.Job
		if viaIndex {
			var err error
			j, err = r.GetJob(idFromIndexKey(key))
			if errors.Is(err, store.ErrNotFound) {
				return true, nil
			}
			if err != nil {
				return false, err
			}
		} else if err := json.Unmarshal(value, &j); err != nil {
			return false, err
		}
		if !q.Matches(j) {
			return true, nil
		}
		return fn(j)
	})
}

func (r *reader) ScanDeadLetters(q store.JobQuery, fn func(job.DeadLetterJob) (bool, error)) error {
	if q.ID != "" {
		j, err := r.GetDeadLetter(q.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil || !q.Matches(j.Job) {
			return err
		}
		_, err = fn(j)
		return err
	}
	return r.pagedScan([]byte(prefixDLQ), func(_, value []byte) (bool, error) {
		var j job.DeadLetterJob
		if err := json.Unmarshal(value, &j); err != nil {
			return false, err
		}
		if !q.Matches(j.Job) {
			return true, nil
		}
		return fn(j)
	})
}

func (r *reader) ScanIdentityLinks(correlationID string, fn func(job.IdentityLink) error) error {
	prefix := []byte(prefixIDLink)
	if correlationID != "" {
		prefix = linkPrefix(correlationID)
	}
	return r.pagedScan(prefix, func(key, _ []byte) (bool, error) {
		parts := bytes.Split(key[len(prefixIDLink):], []byte{sep})
		if len(parts) != 3 {
			return false, fmt.Errorf("malformed identity link key %q", key)
		}
		l := job.IdentityLink{CorrelationID: string(parts[0])}
		if string(parts[1]) == "u" {
			l.UserID = string(parts[2])
		} else {
			l.GroupID = string(parts[2])
		}
		return true, fn(l)
	})
}

type kv struct{ key, value []byte }

// pagedScan reads up to scanPage entries, closes the iterator, then runs fn
// on them, and repeats from the last key.
func (r *reader) pagedScan(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	lower := prefix
	upper := pebblestore.PrefixEnd(prefix)
	for {
		page := make([]kv, 0, scanPage)
		it, err := r.r.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
		if err != nil {
			return err
		}
		for ok := it.First(); ok && len(page) < scanPage; ok = it.Next() {
			page = append(page, kv{key: bytes.Clone(it.Key()), value: bytes.Clone(it.Value())})
		}
		err = it.Error()
		if cerr := it.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		for _, e := range page {
			more, err := fn(e.key, e.value)
			if err != nil || !more {
				return err
			}
		}
		if len(page) < scanPage {
			return nil
		}
		lower = append(bytes.Clone(page[len(page)-1].key), 0)
	}
}

type tx struct {
	reader
	b *pebble.Batch
}

func (t *tx) putJSON(key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.b.Set(key, b, nil)
}

func (t *tx) PutJob(j job.Job) error {
	if j.ID == "" {
		return errors.New("job id required")
	}
	old, err := t.GetJob(j.ID)
	switch {
	case err == nil:
		if err := t.deleteIndexes(old); err != nil {
			return err
		}
	case !errors.Is(err, store.ErrNotFound):
		return err
	}
	if err := t.putJSON(jobKey(j.ID), j); err != nil {
		return err
	}
	return t.putIndexes(j)
}

func (t *tx) putIndexes(j job.Job) error {
	if j.HandlerConfiguration != "" {
		if err := t.b.Set(indexKey(prefixTopicIdx, j.HandlerConfiguration, j.ID), nil, nil); err != nil {
			return err
		}
	}
	if j.LockOwner != nil {
		if err := t.b.Set(indexKey(prefixOwnerIdx, *j.LockOwner, j.ID), nil, nil); err != nil {
			return err
		}
	}
	if j.ScopeID != "" {
		if err := t.b.Set(indexKey(prefixScopeIdx, j.ScopeID, j.ID), nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) deleteIndexes(j job.Job) error {
	if j.HandlerConfiguration != "" {
		if err := t.b.Delete(indexKey(prefixTopicIdx, j.HandlerConfiguration, j.ID), nil); err != nil {
			return err
		}
	}
	if j.LockOwner != nil {
		if err := t.b.Delete(indexKey(prefixOwnerIdx, *j.LockOwner, j.ID), nil); err != nil {
			return err
		}
	}
	if j.ScopeID != "" {
		if err := t.b.Delete(indexKey(prefixScopeIdx, j.ScopeID, j.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) DeleteJob(id string) error {
	old, err := t.GetJob(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := t.deleteIndexes(old); err != nil {
		return err
	}
	return t.b.Delete(jobKey(id), nil)
}

func (t *tx) ClaimJob(id, owner string, until, now time.Time) (bool, error) {
	j, err := t.GetJob(id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !j.Acquirable(now) {
		return false, nil
	}
	j.Lock(owner, until)
	return true, t.PutJob(j)
}

func (t *tx) PutDeadLetter(j job.DeadLetterJob) error {
	if j.ID == "" {
		return errors.New("job id required")
	}
	return t.putJSON(dlqKey(j.ID), j)
}

func (t *tx) DeleteDeadLetter(id string) error { return t.b.Delete(dlqKey(id), nil) }

func (t *tx) PutErrorDetails(ref, details string) error {
	return t.b.Set(errDetailKey(ref), []byte(details), nil)
}

func (t *tx) DeleteErrorDetails(ref string) error { return t.b.Delete(errDetailKey(ref), nil) }

func (t *tx) PutScope(s job.ScopeInstance) error {
	if s.ID == "" {
		return errors.New("scope id required")
	}
	return t.putJSON(scopeKey(s.ID), s)
}

func (t *tx) PutIdentityLink(l job.IdentityLink) error {
	if err := l.Validate(); err != nil {
		return err
	}
	return t.b.Set(identityKey(l), nil, nil)
}

func (t *tx) DeleteIdentityLink(l job.IdentityLink) error {
	if err := l.Validate(); err != nil {
		return err
	}
	return t.b.Delete(identityKey(l), nil)
}

func identityKey(l job.IdentityLink) []byte {
	if l.UserID != "" {
		return linkKey(l.CorrelationID, "u", l.UserID)
	}
	return linkKey(l.CorrelationID, "g", l.GroupID)
}
