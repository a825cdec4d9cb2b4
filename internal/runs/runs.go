// Package runs tracks long-running operations as explicit handles with a
// status, a log and cancel-before-start semantics.
package runs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/justestif/discat/internal/metrics"
)

// Sentinel errors.
var (
	// ErrBusy is returned when another run is already active.
	ErrBusy = errors.New("another run is in progress")

	// ErrNotPending is returned when starting or cancelling a run that has
	// already left the pending state.
	ErrNotPending = errors.New("run is not pending")

	// ErrNotFound is returned for unknown run ids.
	ErrNotFound = errors.New("run not found")
)

// Kind names what a run does.
type Kind string

// Run kinds.
const (
	KindDownload Kind = "download"
	KindSync     Kind = "sync"
	KindOrganize Kind = "organize"
)

// Status is the lifecycle state of a run.
type Status string

// Run statuses.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Done reports whether s is terminal.
func (s Status) Done() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Task is the work a run performs. It logs through logger and returns a
// JSON-serializable result.
type Task func(ctx context.Context, logger zerolog.Logger) (any, error)

// Ledger records finished runs.
type Ledger interface {
	Record(ctx context.Context, v View) error
}

// Run is a handle on one operation.
type Run struct {
	id      string
	kind    Kind
	preview any
	task    Task

	registry *Registry
	logger   zerolog.Logger
	done     chan struct{}

	mu        sync.Mutex
	status    Status
	lines     []string
	partial   []byte
	result    any
	err       error
	createdAt time.Time
	startedAt *time.Time
	endedAt   *time.Time
}

// View is a point-in-time copy of a run.
type View struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Status    Status     `json:"status"`
	Preview   any        `json:"preview,omitempty"`
	Result    any        `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	Log       []string   `json:"log"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// ID returns the run id.
func (r *Run) ID() string { return r.id }

// Kind returns the run kind.
func (r *Run) Kind() Kind { return r.kind }

// Status returns the current status.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Write appends log output. Complete lines are kept; a trailing partial line
// waits for its newline.
func (r *Run) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.partial = append(r.partial, p...)
	for {
		i := bytes.IndexByte(r.partial, '\n')
		if i < 0 {
			break
		}
		r.lines = append(r.lines, string(r.partial[:i]))
		r.partial = r.partial[i+1:]
	}
	return len(p), nil
}

// Cancel abandons a pending run. Once started a run cannot be cancelled.
func (r *Run) Cancel() error {
	r.mu.Lock()
	if r.status != StatusPending {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotPending, r.status)
	}
	now := time.Now().UTC()
	r.status = StatusCancelled
	r.endedAt = &now
	r.mu.Unlock()

	r.registry.finish(r)
	close(r.done)
	return nil
}

// Start moves a pending run to running and executes its task on a new
// goroutine. ctx bounds the task, not the call.
func (r *Run) Start(ctx context.Context) error {
	if err := r.registry.acquire(r); err != nil {
		return err
	}

	r.mu.Lock()
	if r.status != StatusPending {
		status := r.status
		r.mu.Unlock()
		r.registry.release(r)
		return fmt.Errorf("%w: %s", ErrNotPending, status)
	}
	now := time.Now().UTC()
	r.status = StatusRunning
	r.startedAt = &now
	r.mu.Unlock()

	go r.execute(ctx)
	return nil
}

func (r *Run) execute(ctx context.Context) {
	level := r.logger.GetLevel()
	if level == zerolog.Disabled {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(r.registry.output, zerolog.ConsoleWriter{
		Out:        r,
		NoColor:    true,
		TimeFormat: time.TimeOnly,
	})).Level(level).With().Timestamp().Str("run", r.id).Str("kind", string(r.kind)).Logger()
	ctx = logger.WithContext(ctx)

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("run panicked: %v", p)
			}
		}()
		result, err = r.task(ctx, logger)
	}()

	r.mu.Lock()
	now := time.Now().UTC()
	r.endedAt = &now
	r.result = result
	r.err = err
	if err != nil {
		r.status = StatusFailed
	} else {
		r.status = StatusSucceeded
	}
	r.mu.Unlock()

	if err != nil {
		logger.Error().Err(err).Msg("run failed")
	} else {
		logger.Info().Msg("run finished")
	}

	r.registry.release(r)
	r.registry.finish(r)
	close(r.done)
}

// Wait blocks until the run reaches a terminal state or ctx is done.
func (r *Run) Wait(ctx context.Context) (View, error) {
	select {
	case <-r.done:
		v := r.View()
		if v.Status == StatusFailed {
			return v, r.err
		}
		return v, nil
	case <-ctx.Done():
		return r.View(), ctx.Err()
	}
}

// View returns a snapshot of the run.
func (r *Run) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := View{
		ID:        r.id,
		Kind:      r.kind,
		Status:    r.status,
		Preview:   r.preview,
		Result:    r.result,
		Log:       append([]string{}, r.lines...),
		CreatedAt: r.createdAt,
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
	}
	if r.err != nil {
		v.Error = r.err.Error()
	}
	return v
}

// Registry creates runs and allows at most one to be running.
type Registry struct {
	mu     sync.Mutex
	runs   map[string]*Run
	order  []string // ids by creation time
	active *Run
	retain int

	logger zerolog.Logger
	output zerolog.LevelWriter
	ledger Ledger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger. Run loggers inherit its level, or
// log at info when it is disabled.
func WithLogger(l zerolog.Logger) Option {
	return func(reg *Registry) {
		reg.logger = l
	}
}

// WithOutput sets where run logs are mirrored in addition to the run itself.
func WithOutput(w zerolog.LevelWriter) Option {
	return func(reg *Registry) {
		reg.output = w
	}
}

// DefaultRetention is how many runs a registry keeps by default.
const DefaultRetention = 100

// WithRetention caps how many runs the registry keeps. Older finished runs
// are dropped first, then the oldest pending runs are cancelled and dropped.
// Running runs are never dropped.
func WithRetention(n int) Option {
	return func(reg *Registry) {
		reg.retain = n
	}
}

// WithLedger records every finished run.
func WithLedger(l Ledger) Option {
	return func(reg *Registry) {
		reg.ledger = l
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	reg := &Registry{
		runs:   make(map[string]*Run),
		logger: zerolog.Nop(),
		output: zerolog.LevelWriterAdapter{Writer: io.Discard},
		retain: DefaultRetention,
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Create registers a pending run. preview is what the operator confirms
// before starting it.
func (reg *Registry) Create(kind Kind, preview any, task Task) *Run {
	r := &Run{
		id:        uuid.NewString(),
		kind:      kind,
		preview:   preview,
		task:      task,
		registry:  reg,
		logger:    reg.logger,
		done:      make(chan struct{}),
		status:    StatusPending,
		createdAt: time.Now().UTC(),
	}

	reg.mu.Lock()
	reg.runs[r.id] = r
	reg.order = append(reg.order, r.id)
	stale := reg.prune(r)
	reg.mu.Unlock()

	for _, old := range stale {
		_ = old.Cancel()
	}
	return r
}

// prune drops runs beyond the retention limit, never keep. It returns the
// dropped pending runs, which the caller cancels once the lock is released.
// Callers hold reg.mu.
func (reg *Registry) prune(keep *Run) []*Run {
	if reg.retain <= 0 {
		return nil
	}
	var stale []*Run
	for len(reg.order) > reg.retain {
		i := reg.oldest(keep, func(s Status) bool { return s.Done() })
		if i < 0 {
			i = reg.oldest(keep, func(s Status) bool { return s == StatusPending })
		}
		if i < 0 {
			break
		}
		id := reg.order[i]
		r := reg.runs[id]
		if r.Status() == StatusPending {
			stale = append(stale, r)
		}
		delete(reg.runs, id)
		reg.order = append(reg.order[:i], reg.order[i+1:]...)
	}
	return stale
}

// oldest returns the index in order of the oldest run other than keep whose
// status matches, or -1.
func (reg *Registry) oldest(keep *Run, match func(Status) bool) int {
	for i, id := range reg.order {
		r := reg.runs[id]
		if r == keep || r == reg.active {
			continue
		}
		if match(r.Status()) {
			return i
		}
	}
	return -1
}

// Get returns a run by id.
func (reg *Registry) Get(id string) (*Run, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// Active returns the running run, if any.
func (reg *Registry) Active() *Run {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.active
}

func (reg *Registry) acquire(r *Run) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.active != nil && reg.active != r {
		return fmt.Errorf("%w: %s %s", ErrBusy, reg.active.kind, reg.active.id)
	}
	reg.active = r
	return nil
}

func (reg *Registry) release(r *Run) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.active == r {
		reg.active = nil
	}
}

// finish records metrics and the ledger entry of a terminal run.
func (reg *Registry) finish(r *Run) {
	v := r.View()
	if v.StartedAt != nil && v.EndedAt != nil {
		metrics.RunDuration.WithLabelValues(string(v.Kind), string(v.Status)).Observe(v.EndedAt.Sub(*v.StartedAt).Seconds())
	}
	if reg.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := reg.ledger.Record(ctx, v); err != nil {
		reg.logger.Warn().Err(err).Str("run", v.ID).Msg("recording run failed")
	}
}
