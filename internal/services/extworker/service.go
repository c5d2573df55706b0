package extworker

import (
	"context"
	"time"

	"github.com/rzbill/xwork/internal/clock"
	"github.com/rzbill/xwork/internal/extjob"
	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/runtime"
	"github.com/rzbill/xwork/internal/store"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

// Options tunes a Service. Zero values take defaults.
type Options struct {
	Logger       logpkg.Logger
	Clock        clock.Clock
	Interceptors []extjob.CreateJobInterceptor
	// PollInterval is the re-poll tick of a waiting Acquire.
	PollInterval time.Duration
}

// Service exposes the external worker job operations with configured
// defaults applied.
type Service struct {
	rt     *runtime.Runtime
	engine *extjob.Engine
	logger logpkg.Logger

	defaultLockDuration time.Duration
	maxJobs             int
	maxWait             time.Duration
	defaultTenant       string
	pollInterval        time.Duration
}

// New creates a Service with default settings.
func New(rt *runtime.Runtime) (*Service, error) {
	return NewWithOptions(rt, Options{})
}

// NewWithOptions creates a Service over rt.
func NewWithOptions(rt *runtime.Runtime, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	logger = logger.WithComponent("extworker")
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}

	cfg := rt.Config()
	n := rt.Notifier()
	engine, err := extjob.New(extjob.Options{
		Store:               rt.Store(),
		Clock:               opts.Clock,
		Identity:            rt.Identity(),
		Logger:              logger,
		DefaultRetries:      cfg.Jobs.DefaultRetries,
		DefaultRetryTimeout: cfg.Jobs.DefaultRetryTimeout.Std(),
		Interceptors:        opts.Interceptors,
		OnAvailable: func(topic string) {
			if err := n.Publish(context.Background(), topic); err != nil {
				logger.Warn("notify failed", logpkg.Str("topic", topic), logpkg.Err(err))
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return &Service{
		rt:                  rt,
		engine:              engine,
		logger:              logger,
		defaultLockDuration: cfg.Jobs.DefaultLockDuration.Std(),
		maxJobs:             cfg.Jobs.MaxJobsPerAcquire,
		maxWait:             cfg.Acquire.MaxWait.Std(),
		defaultTenant:       cfg.DefaultTenantID,
		pollInterval:        opts.PollInterval,
	}, nil
}

// Engine returns the underlying engine.
func (s *Service) Engine() *extjob.Engine { return s.engine }

// AcquireParams is an acquire request plus an optional wait. A zero
// LockDuration takes the configured default; MaxJobs above the configured
// cap is lowered to it.
type AcquireParams struct {
	extjob.AcquireRequest
	Wait time.Duration
}

// Acquire claims jobs. With a wait it keeps polling until at least one job
// is claimed, the wait runs out or ctx is done; it then returns whatever the
// last poll found, possibly nothing.
func (s *Service) Acquire(ctx context.Context, p AcquireParams) ([]job.AcquiredJob, error) {
	req := p.AcquireRequest
	if req.LockDuration == 0 {
		req.LockDuration = s.defaultLockDuration
	}
	if req.MaxJobs > s.maxJobs {
		req.MaxJobs = s.maxJobs
	}
	wait := p.Wait
	if wait > s.maxWait {
		wait = s.maxWait
	}
	if wait <= 0 {
		return s.engine.Acquirer.Acquire(ctx, req)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	tick := time.NewTicker(s.pollInterval)
	defer tick.Stop()
	for {
		// watch before polling so a publish between the two is not lost
		woken := s.rt.Notifier().Watch(req.Topic)
		jobs, err := s.engine.Acquirer.Acquire(ctx, req)
		if err != nil || len(jobs) > 0 {
			return jobs, err
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-deadline.C:
			return nil, nil
		case <-woken:
		case <-tick.C:
		}
	}
}

func (s *Service) Complete(ctx context.Context, jobID, workerID string, vars map[string]any) error {
	return s.engine.Completer.Complete(ctx, jobID, workerID, vars)
}

func (s *Service) Terminate(ctx context.Context, jobID, workerID string, vars map[string]any) error {
	return s.engine.Completer.Terminate(ctx, jobID, workerID, vars)
}

func (s *Service) Fail(ctx context.Context, jobID, workerID string, opts extjob.FailOptions) error {
	return s.engine.Failer.Fail(ctx, jobID, workerID, opts)
}

func (s *Service) Unacquire(ctx context.Context, jobID, workerID string) error {
	return s.engine.Unacquirer.UnacquireJob(ctx, jobID, workerID)
}

// UnacquireAll releases every lease of workerID, limited to tenantID when set.
func (s *Service) UnacquireAll(ctx context.Context, workerID string, tenantID *string) error {
	return s.engine.Unacquirer.UnacquireAllForWorker(ctx, workerID, tenantID)
}

// Create stores a job, giving it the default tenant when it names none.
func (s *Service) Create(ctx context.Context, req extjob.CreateRequest) (job.Job, error) {
	if req.TenantID == "" {
		req.TenantID = s.defaultTenant
	}
	return s.engine.Creator.Create(ctx, req)
}

// AddIdentityLinks links users and groups to correlation ids.
func (s *Service) AddIdentityLinks(ctx context.Context, links ...job.IdentityLink) error {
	for _, l := range links {
		if err := l.Validate(); err != nil {
			return extjob.Invalid(err)
		}
	}
	return s.rt.Identity().Add(ctx, links...)
}

// RemoveIdentityLinks removes links.
func (s *Service) RemoveIdentityLinks(ctx context.Context, links ...job.IdentityLink) error {
	return s.rt.Identity().Remove(ctx, links...)
}

func (s *Service) ListJobs(ctx context.Context, q store.JobQuery) ([]job.Job, error) {
	return s.engine.Queries.ListJobs(ctx, q)
}

func (s *Service) GetJob(ctx context.Context, id string) (job.Job, error) {
	return s.engine.Queries.GetJob(ctx, id)
}

func (s *Service) ErrorDetails(ctx context.Context, id string) (string, error) {
	return s.engine.Queries.ErrorDetails(ctx, id)
}

func (s *Service) GetScope(ctx context.Context, id string) (job.ScopeInstance, error) {
	return s.engine.Queries.GetScope(ctx, id)
}

func (s *Service) MoveToDeadLetter(ctx context.Context, id string) (job.DeadLetterJob, error) {
	return s.engine.DeadLetters.MoveToDeadLetter(ctx, id)
}

func (s *Service) ListDeadLetters(ctx context.Context, q store.JobQuery) ([]job.DeadLetterJob, error) {
	return s.engine.Queries.ListDeadLetters(ctx, q)
}

func (s *Service) DeadLetterErrorDetails(ctx context.Context, id string) (string, error) {
	return s.engine.Queries.DeadLetterErrorDetails(ctx, id)
}

func (s *Service) MoveToExecutable(ctx context.Context, id string, retries int) (job.Job, error) {
	return s.engine.DeadLetters.MoveToExecutable(ctx, id, retries)
}

func (s *Service) DeleteDeadLetter(ctx context.Context, id string) error {
	return s.engine.DeadLetters.Delete(ctx, id)
}

// CheckHealth reports runtime health.
func (s *Service) CheckHealth(ctx context.Context) error { return s.rt.CheckHealth(ctx) }
