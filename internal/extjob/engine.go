package extjob

import (
	"errors"
	"time"

	"github.com/rzbill/xwork/internal/clock"
	"github.com/rzbill/xwork/internal/identity"
	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/store"
	"github.com/rzbill/xwork/internal/variables"
	"github.com/rzbill/xwork/pkg/id"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

const (
	DefaultRetries      = 3
	DefaultRetryTimeout = 10 * time.Second
)

// ParticipantFinder resolves the identity links of a correlation id within
// the calling transaction.
type ParticipantFinder interface {
	Participants(r store.Reader, correlationID string) (identity.Participants, error)
}

// IDGenerator hands out creation-ordered job ids.
type IDGenerator interface {
	NextString() string
}

// Options wires an Engine.
type Options struct {
	Store    store.Store
	Clock    clock.Clock
	Resolver *variables.Resolver
	Identity ParticipantFinder
	IDs      IDGenerator
	Locker   ScopeInstanceLocker
	Logger   logpkg.Logger

	// DefaultRetries is given to new jobs and follow-up jobs.
	DefaultRetries int
	// DefaultRetryTimeout is the hold-off after a failure that names none.
	DefaultRetryTimeout time.Duration

	Interceptors []CreateJobInterceptor
	// OnAvailable is called after a commit that made jobs on topic acquirable.
	OnAvailable func(topic string)
}

// deps is shared by every component of one Engine.
type deps struct {
	store        store.Store
	clock        clock.Clock
	resolver     *variables.Resolver
	identity     ParticipantFinder
	ids          IDGenerator
	locks        *InstanceLockCoordinator
	logger       logpkg.Logger
	retries      int
	retryTimeout time.Duration
	onAvailable  func(topic string)
}

func (d *deps) available(topic string) {
	if d.onAvailable != nil && topic != "" {
		d.onAvailable(topic)
	}
}

// loadOwned loads an external worker job and checks that worker holds its lock.
func (d *deps) loadOwned(tx store.Reader, jobID, workerID string) (job.Job, error) {
	j, err := tx.GetJob(jobID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && j.Type != job.TypeExternalWorker) {
		return job.Job{}, newError(ErrNotFound, "no external worker job found with id %s", jobID)
	}
	if err != nil {
		return job.Job{}, err
	}
	if !j.OwnedBy(workerID) {
		return job.Job{}, newError(ErrNotLockOwner, "%s does not hold a lock on the requested job", workerID)
	}
	return j, nil
}

// Engine groups the external worker job components over one store.
type Engine struct {
	Acquirer    *Acquirer
	Completer   *Completer
	Failer      *Failer
	Unacquirer  *Unacquirer
	DeadLetters *DeadLetterManager
	Creator     *Creator
	Queries     *Queries
	Locks       *InstanceLockCoordinator
}

// New builds an Engine. Store is required; everything else has a default.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("extjob: store required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Resolver == nil {
		opts.Resolver = variables.NewResolver()
	}
	if opts.Identity == nil {
		opts.Identity = identity.NewIndex(opts.Store)
	}
	if opts.IDs == nil {
		opts.IDs = id.NewGenerator()
	}
	if opts.Locker == nil {
		opts.Locker = StoreLocker{}
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	if opts.DefaultRetries <= 0 {
		opts.DefaultRetries = DefaultRetries
	}
	if opts.DefaultRetryTimeout <= 0 {
		opts.DefaultRetryTimeout = DefaultRetryTimeout
	}

	d := &deps{
		store:        opts.Store,
		clock:        opts.Clock,
		resolver:     opts.Resolver,
		identity:     opts.Identity,
		ids:          opts.IDs,
		logger:       opts.Logger,
		retries:      opts.DefaultRetries,
		retryTimeout: opts.DefaultRetryTimeout,
		onAvailable:  opts.OnAvailable,
	}
	d.locks = &InstanceLockCoordinator{locker: opts.Locker, logger: opts.Logger.WithComponent("instancelock")}

	return &Engine{
		Acquirer:    &Acquirer{deps: d, logger: opts.Logger.WithComponent("acquire")},
		Completer:   &Completer{deps: d, logger: opts.Logger.WithComponent("complete")},
		Failer:      &Failer{deps: d, logger: opts.Logger.WithComponent("fail")},
		Unacquirer:  &Unacquirer{deps: d, logger: opts.Logger.WithComponent("unacquire")},
		DeadLetters: &DeadLetterManager{deps: d, logger: opts.Logger.WithComponent("deadletter")},
		Creator:     &Creator{deps: d, interceptors: opts.Interceptors, logger: opts.Logger.WithComponent("create")},
		Queries:     &Queries{deps: d},
		Locks:       d.locks,
	}, nil
}
