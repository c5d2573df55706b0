// Package postgres implements store.Store on PostgreSQL through pgx. Update
// transactions run at serializable isolation and are retried on
// serialization failures, which gives the same guarantees as the pebble
// backend's single writer.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/store"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

const (
	scanPage   = 128
	maxRetries = 8
)

// Store is a store.Store backed by a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger logpkg.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn.
func Open(ctx context.Context, dsn string, logger logpkg.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	return &Store{pool: pool, logger: logger.WithComponent("postgres")}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = s.runTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ptx pgx.Tx) error {
			return fn(&tx{reader: reader{ctx: ctx, q: ptx}})
		})
		if !retryable(err) {
			return err
		}
		s.logger.Debug("retrying serialization failure", logpkg.Int("attempt", attempt+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 5 * time.Millisecond):
		}
	}
	return err
}

func (s *Store) View(ctx context.Context, fn func(r store.Reader) error) error {
	return s.runTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(ptx pgx.Tx) error {
		return fn(&reader{ctx: ctx, q: ptx})
	})
}

func (s *Store) runTx(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	ptx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer ptx.Rollback(ctx)
	if err := fn(ptx); err != nil {
		return err
	}
	return ptx.Commit(ctx)
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

type reader struct {
	ctx context.Context
	q   pgx.Tx
}

func (r *reader) GetJob(id string) (job.Job, error) {
	row := r.q.QueryRow(r.ctx, `SELECT lock_owner, lock_expiration_time, data FROM xw_jobs WHERE id = $1`, id)
	return scanJob(row)
}

func scanJob(row pgx.Row) (job.Job, error) {
	var (
		j     job.Job
		owner *string
		exp   *time.Time
		data  []byte
	)
	if err := row.Scan(&owner, &exp, &data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return j, store.ErrNotFound
		}
		return j, err
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return j, err
	}
	// the columns are authoritative for the lease; ClaimJob only touches them
	j.LockOwner, j.LockExpirationTime = owner, exp
	return j, nil
}

func (r *reader) GetDeadLetter(id string) (job.DeadLetterJob, error) {
	var data []byte
	err := r.q.QueryRow(r.ctx, `SELECT data FROM xw_dead_letter_jobs WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return job.DeadLetterJob{}, store.ErrNotFound
	}
	if err != nil {
		return job.DeadLetterJob{}, err
	}
	var j job.DeadLetterJob
	return j, json.Unmarshal(data, &j)
}

func (r *reader) GetErrorDetails(ref string) (string, error) {
	var details string
	err := r.q.QueryRow(r.ctx, `SELECT details FROM xw_error_details WHERE ref = $1`, ref).Scan(&details)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", store.ErrNotFound
	}
	return details, err
}

func (r *reader) GetScope(id string) (job.ScopeInstance, error) {
	var data []byte
	err := r.q.QueryRow(r.ctx, `SELECT data FROM xw_scope_instances WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return job.ScopeInstance{}, store.ErrNotFound
	}
	if err != nil {
		return job.ScopeInstance{}, err
	}
	var s job.ScopeInstance
	return s, json.Unmarshal(data, &s)
}

// where renders the indexed filters of q. The rest is applied by q.Matches.
func where(q store.JobQuery, withOwner bool) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if q.ID != "" {
		add("id = ?", q.ID)
	}
	if q.Topic != "" {
		add("topic = ?", q.Topic)
	}
	if q.ScopeID != "" {
		add("scope_id = ?", q.ScopeID)
	}
	if q.TenantID != "" {
		add("tenant_id = ?", q.TenantID)
	}
	if withOwner && q.LockOwner != "" {
		add("lock_owner = ?", q.LockOwner)
	}
	if len(conds) == 0 {
		return "TRUE", args
	}
	return strings.Join(conds, " AND "), args
}

func (r *reader) ScanJobs(q store.JobQuery, fn func(job.Job) (bool, error)) error {
	cond, args := where(q, true)
	after := q.AfterID
	for {
		// rows must be drained before fn runs; fn may issue statements on this tx
		sql := fmt.Sprintf(`SELECT lock_owner, lock_expiration_time, data FROM xw_jobs WHERE %s AND id > $%d ORDER BY id LIMIT %d`,
			cond, len(args)+1, scanPage)
		rows, err := r.q.Query(r.ctx, sql, append(args, after)...)
		if err != nil {
			return err
		}
		page, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (job.Job, error) { return scanJob(row) })
		if err != nil {
			return err
		}
		for _, j := range page {
			if !q.Matches(j) {
				continue
			}
			more, err := fn(j)
			if err != nil || !more {
				return err
			}
		}
		if len(page) < scanPage {
			return nil
		}
		after = page[len(page)-1].ID
	}
}

func (r *reader) ScanDeadLetters(q store.JobQuery, fn func(job.DeadLetterJob) (bool, error)) error {
	cond, args := where(q, false)
	after := q.AfterID
	for {
		sql := fmt.Sprintf(`SELECT data FROM xw_dead_letter_jobs WHERE %s AND id > $%d ORDER BY id LIMIT %d`,
			cond, len(args)+1, scanPage)
		rows, err := r.q.Query(r.ctx, sql, append(args, after)...)
		if err != nil {
			return err
		}
		page, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (job.DeadLetterJob, error) {
			var data []byte
			var j job.DeadLetterJob
			if err := row.Scan(&data); err != nil {
				return j, err
			}
			return j, json.Unmarshal(data, &j)
		})
		if err != nil {
			return err
		}
		for _, j := range page {
			if !q.Matches(j.Job) {
				continue
			}
			more, err := fn(j)
			if err != nil || !more {
				return err
			}
		}
		if len(page) < scanPage {
			return nil
		}
		after = page[len(page)-1].ID
	}
}

func (r *reader) ScanIdentityLinks(correlationID string, fn func(job.IdentityLink) error) error {
	sql := `SELECT correlation_id, kind, name FROM xw_identity_links`
	var args []any
	if correlationID != "" {
		sql += ` WHERE correlation_id = $1`
		args = append(args, correlationID)
	}
	rows, err := r.q.Query(r.ctx, sql+` ORDER BY correlation_id, kind, name`, args...)
	if err != nil {
		return err
	}
	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (job.IdentityLink, error) {
		var corr, kind, name string
		if err := row.Scan(&corr, &kind, &name); err != nil {
			return job.IdentityLink{}, err
		}
		l := job.IdentityLink{CorrelationID: corr}
		if kind == "u" {
			l.UserID = name
		} else {
			l.GroupID = name
		}
		return l, nil
	})
	if err != nil {
		return err
	}
	for _, l := range links {
		if err := fn(l); err != nil {
			return err
		}
	}
	return nil
}

type tx struct {
	reader
}

func (t *tx) PutJob(j job.Job) error {
	if j.ID == "" {
		return errors.New("job id required")
	}
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(t.ctx, `
INSERT INTO xw_jobs (id, type, topic, scope_id, tenant_id, lock_owner, lock_expiration_time, data)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	type = EXCLUDED.type, topic = EXCLUDED.topic, scope_id = EXCLUDED.scope_id,
	tenant_id = EXCLUDED.tenant_id, lock_owner = EXCLUDED.lock_owner,
	lock_expiration_time = EXCLUDED.lock_expiration_time, data = EXCLUDED.data`,
		j.ID, string(j.Type), j.HandlerConfiguration, j.ScopeID, j.TenantID, j.LockOwner, j.LockExpirationTime, data)
	return err
}

func (t *tx) DeleteJob(id string) error {
	_, err := t.q.Exec(t.ctx, `DELETE FROM xw_jobs WHERE id = $1`, id)
	return err
}

func (t *tx) ClaimJob(id, owner string, until, now time.Time) (bool, error) {
	tag, err := t.q.Exec(t.ctx, `
UPDATE xw_jobs SET lock_owner = $2, lock_expiration_time = $3
WHERE id = $1 AND (lock_expiration_time IS NULL OR lock_expiration_time < $4)`,
		id, owner, until, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *tx) PutDeadLetter(j job.DeadLetterJob) error {
	if j.ID == "" {
		return errors.New("job id required")
	}
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(t.ctx, `
INSERT INTO xw_dead_letter_jobs (id, topic, scope_id, tenant_id, data) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET topic = EXCLUDED.topic, scope_id = EXCLUDED.scope_id,
	tenant_id = EXCLUDED.tenant_id, data = EXCLUDED.data`,
		j.ID, j.HandlerConfiguration, j.ScopeID, j.TenantID, data)
	return err
}

func (t *tx) DeleteDeadLetter(id string) error {
	_, err := t.q.Exec(t.ctx, `DELETE FROM xw_dead_letter_jobs WHERE id = $1`, id)
	return err
}

func (t *tx) PutErrorDetails(ref, details string) error {
	_, err := t.q.Exec(t.ctx, `
INSERT INTO xw_error_details (ref, details) VALUES ($1, $2)
ON CONFLICT (ref) DO UPDATE SET details = EXCLUDED.details`, ref, details)
	return err
}

func (t *tx) DeleteErrorDetails(ref string) error {
	_, err := t.q.Exec(t.ctx, `DELETE FROM xw_error_details WHERE ref = $1`, ref)
	return err
}

func (t *tx) PutScope(s job.ScopeInstance) error {
	if s.ID == "" {
		return errors.New("scope id required")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(t.ctx, `
INSERT INTO xw_scope_instances (id, data) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`, s.ID, data)
	return err
}

func linkRow(l job.IdentityLink) (kind, name string) {
	if l.UserID != "" {
		return "u", l.UserID
	}
	return "g", l.GroupID
}

func (t *tx) PutIdentityLink(l job.IdentityLink) error {
	if err := l.Validate(); err != nil {
		return err
	}
	kind, name := linkRow(l)
	_, err := t.q.Exec(t.ctx, `
INSERT INTO xw_identity_links (correlation_id, kind, name) VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING`, l.CorrelationID, kind, name)
	return err
}

func (t *tx) DeleteIdentityLink(l job.IdentityLink) error {
	if err := l.Validate(); err != nil {
		return err
	}
	kind, name := linkRow(l)
	_, err := t.q.Exec(t.ctx, `DELETE FROM xw_identity_links WHERE correlation_id = $1 AND kind = $2 AND name = $3`,
		l.CorrelationID, kind, name)
	return err
}
