// Package execute applies planned write-backs to the remote collection.
// Each item is attempted once; a failure is recorded and the batch goes on.
package execute

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/justestif/discat/internal/collection"
	"github.com/justestif/discat/internal/logging"
	"github.com/justestif/discat/internal/metrics"
	"github.com/justestif/discat/internal/pace"
	"github.com/justestif/discat/internal/plan"
)

// Writer abstracts the Discogs write endpoints for testing.
type Writer interface {
	UpdateField(ctx context.Context, ref collection.Ref, fieldID int, value string) error
	MoveInstance(ctx context.Context, ref collection.Ref, folderID int64) error
}

// Pacing holds a steady request rate. Every Checkpoint items the executor
// sleeps off any lead over Target per item; otherwise it waits Delay.
type Pacing struct {
	Target     time.Duration
	Checkpoint int
	Delay      time.Duration
}

// DefaultPacing aims for about 40 writes per minute.
func DefaultPacing() Pacing {
	return Pacing{
		Target:     1500 * time.Millisecond,
		Checkpoint: 10,
		Delay:      800 * time.Millisecond,
	}
}

// Failure is one item whose write failed.
type Failure struct {
	Title      string `json:"title"`
	InstanceID int64  `json:"instance_id"`
	Err        string `json:"error"`
}

// Result summarizes an execution.
type Result struct {
	Attempted int           `json:"attempted"`
	Updated   int           `json:"updated"`
	Failed    []Failure     `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Executor runs plans against a Writer.
type Executor struct {
	writer  Writer
	pacing  Pacing
	sleeper pace.Sleeper
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithPacing overrides the default pacing.
func WithPacing(p Pacing) Option {
	return func(e *Executor) {
		e.pacing = p
	}
}

// WithSleeper replaces the sleeper.
func WithSleeper(s pace.Sleeper) Option {
	return func(e *Executor) {
		e.sleeper = s
	}
}

// WithClock replaces the wall clock used for checkpoint pacing.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// WithLogger sets the executor logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// New creates an Executor.
func New(w Writer, opts ...Option) *Executor {
	e := &Executor{
		writer:  w,
		pacing:  DefaultPacing(),
		sleeper: pace.Real,
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply writes every change of p in order. Field constraints are not
// re-checked. It stops early only when ctx is cancelled.
func (e *Executor) Apply(ctx context.Context, p *plan.SyncPlan) (*Result, error) {
	e.log(ctx).Info().Str("field", p.FieldName).Int("changes", len(p.Changes)).Msg("syncing field")

	return e.run(ctx, "field", len(p.Changes), func(i int) (string, int64, error) {
		c := p.Changes[i]
		e.log(ctx).Info().
			Int("item", i+1).
			Int("of", len(p.Changes)).
			Str("title", c.Title).
			Str("value", c.Proposed).
			Msg("updating")
		return c.Title, c.InstanceID, e.writer.UpdateField(ctx, c.Ref(), c.FieldID, c.Proposed)
	})
}

// Move reassigns every item of p in order under the same rules as Apply.
func (e *Executor) Move(ctx context.Context, p *plan.FolderPlan) (*Result, error) {
	e.log(ctx).Info().Str("folder", p.Folder.Name).Int("moves", len(p.Moves)).Msg("organizing folder")

	return e.run(ctx, "folder", len(p.Moves), func(i int) (string, int64, error) {
		m := p.Moves[i]
		e.log(ctx).Info().
			Int("item", i+1).
			Int("of", len(p.Moves)).
			Str("title", m.Title).
			Int64("to", m.ToFolderID).
			Msg("moving")
		return m.Title, m.InstanceID, e.writer.MoveInstance(ctx, m.Ref(), m.ToFolderID)
	})
}

func (e *Executor) run(ctx context.Context, kind string, n int, write func(i int) (string, int64, error)) (*Result, error) {
	res := &Result{Failed: []Failure{}}
	start := e.now()
	defer func() { res.Elapsed = e.now().Sub(start) }()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Attempted++
		title, instanceID, err := write(i)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			e.log(ctx).Error().Err(err).Str("title", title).Msg("write failed")
			res.Failed = append(res.Failed, Failure{Title: title, InstanceID: instanceID, Err: err.Error()})
			metrics.WriteBacks.WithLabelValues(kind, "failed").Inc()
		} else {
			e.log(ctx).Info().Int("item", i+1).Int("of", n).Str("title", title).Msg("updated")
			res.Updated++
			metrics.WriteBacks.WithLabelValues(kind, "updated").Inc()
		}

		idx := i + 1
		if idx == n {
			break
		}
		if err := e.sleeper.Sleep(ctx, e.pause(ctx, idx, start)); err != nil {
			return res, err
		}
	}

	e.log(ctx).Info().Int("updated", res.Updated).Int("failed", len(res.Failed)).Msg("write-back done")
	return res, nil
}

// log returns the run logger carried by ctx, or the executor logger.
func (e *Executor) log(ctx context.Context) *zerolog.Logger {
	return logging.FromContext(ctx, &e.logger)
}

// pause returns how long to wait after the idx-th write.
func (e *Executor) pause(ctx context.Context, idx int, start time.Time) time.Duration {
	if e.pacing.Checkpoint <= 0 || idx%e.pacing.Checkpoint != 0 {
		return e.pacing.Delay
	}
	expected := time.Duration(idx) * e.pacing.Target
	elapsed := e.now().Sub(start)
	if elapsed >= expected {
		return 0
	}
	shortfall := expected - elapsed
	e.log(ctx).Info().Dur("pause", shortfall).Msg("rate limit pause")
	return shortfall
}
