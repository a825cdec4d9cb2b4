// Package enrich fetches the per-item overlays the collection listing omits:
// custom field values (annotations) and detailed release metadata.
//
// Both passes are strictly sequential and keep input order. A failure on one
// item attaches an empty placeholder and the pass moves on.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/justestif/discat/internal/collection"
	"github.com/justestif/discat/internal/discogs"
	"github.com/justestif/discat/internal/logging"
	"github.com/justestif/discat/internal/metrics"
	"github.com/justestif/discat/internal/pace"
)

// Fetcher abstracts the Discogs client for testing.
type Fetcher interface {
	InstanceFields(ctx context.Context, ref collection.Ref) ([]collection.FieldValue, error)
	Release(ctx context.Context, id int64) (*collection.Release, error)
	Master(ctx context.Context, id int64) (*collection.Release, error)
}

// Pacing controls the delays between enrichment calls.
type Pacing struct {
	AnnotationDelay time.Duration // between annotation calls
	MetadataDelay   time.Duration // between metadata calls
	BatchSize       int           // every BatchSize metadata calls...
	BatchPause      time.Duration // ...pause this long instead of MetadataDelay
	ProgressEvery   int           // annotation progress log interval
}

// DefaultPacing returns the pacing used against the live API.
func DefaultPacing() Pacing {
	return Pacing{
		AnnotationDelay: 700 * time.Millisecond,
		MetadataDelay:   800 * time.Millisecond,
		BatchSize:       10,
		BatchPause:      2 * time.Second,
		ProgressEvery:   50,
	}
}

// EstimateMetadata returns the expected duration of a metadata pass over n items.
func (p Pacing) EstimateMetadata(n int) time.Duration {
	// One request plus pacing per item averages about 1.5s.
	return time.Duration(n) * 1500 * time.Millisecond
}

// PassReport summarizes one enrichment pass.
type PassReport struct {
	Attempted int      `json:"attempted"`
	Fetched   int      `json:"fetched"`
	Fallbacks int      `json:"fallbacks"`
	Failed    int      `json:"failed"`
	Failures  []string `json:"failures,omitempty"` // titles of items given a placeholder
}

// Pipeline runs the enrichment passes.
type Pipeline struct {
	fetcher Fetcher
	pacing  Pacing
	sleeper pace.Sleeper
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPacing overrides the default pacing.
func WithPacing(p Pacing) Option {
	return func(pl *Pipeline) {
		pl.pacing = p
	}
}

// WithSleeper replaces the sleeper used between calls.
func WithSleeper(s pace.Sleeper) Option {
	return func(pl *Pipeline) {
		pl.sleeper = s
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l zerolog.Logger) Option {
	return func(pl *Pipeline) {
		pl.logger = l
	}
}

// New creates an enrichment pipeline.
func New(fetcher Fetcher, opts ...Option) *Pipeline {
	pl := &Pipeline{
		fetcher: fetcher,
		pacing:  DefaultPacing(),
		sleeper: pace.Real,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Pacing returns the pipeline's pacing.
func (pl *Pipeline) Pacing() Pacing {
	return pl.pacing
}

// Annotations attaches custom field values to every item. Items that fail
// get an empty list. The input slice is not modified.
func (pl *Pipeline) Annotations(ctx context.Context, items []collection.Item) ([]collection.Item, PassReport, error) {
	out := make([]collection.Item, len(items))
	report := PassReport{}
	start := pl.now()

	pl.log(ctx).Info().Int("items", len(items)).Msg("fetching custom field values")

	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		idx := i + 1
		if pl.pacing.ProgressEvery > 0 && idx%pl.pacing.ProgressEvery == 0 {
			pl.logProgress(ctx, "annotations", idx, len(items), start)
		}

		report.Attempted++
		values, err := pl.fetcher.InstanceFields(ctx, it.Ref())
		if err != nil {
			if ctx.Err() != nil {
				return nil, report, ctx.Err()
			}
			pl.log(ctx).Warn().Err(err).Int("item", idx).Str("title", it.Title()).Msg("custom field fetch failed")
			values = []collection.FieldValue{}
			report.Failed++
			report.Failures = append(report.Failures, it.Title())
			metrics.EnrichmentItems.WithLabelValues("annotations", "failed").Inc()
		} else {
			report.Fetched++
			metrics.EnrichmentItems.WithLabelValues("annotations", "fetched").Inc()
		}
		if values == nil {
			values = []collection.FieldValue{}
		}
		it.CustomFieldValues = values
		out[i] = it

		if idx < len(items) {
			if err := pl.sleeper.Sleep(ctx, pl.pacing.AnnotationDelay); err != nil {
				return nil, report, err
			}
		}
	}

	pl.log(ctx).Info().Int("fetched", report.Fetched).Int("failed", report.Failed).Msg("custom field values done")
	return out, report, nil
}

// Metadata attaches detailed release metadata to every item. A 404 on the
// release is retried once against the master release when the item has one.
// Any other failure, or a failed substitute, attaches an empty Release.
func (pl *Pipeline) Metadata(ctx context.Context, items []collection.Item) ([]collection.Item, PassReport, error) {
	out := make([]collection.Item, len(items))
	report := PassReport{}
	start := pl.now()

	pl.log(ctx).Info().Int("items", len(items)).Msg("enriching with release metadata")

	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		idx := i + 1
		pl.log(ctx).Debug().Int("item", idx).Int("of", len(items)).Str("title", it.Title()).Msg("fetching release")

		report.Attempted++
		rel, outcome, err := pl.fetchMetadata(ctx, it)
		if ctx.Err() != nil {
			return nil, report, ctx.Err()
		}
		switch outcome {
		case "fetched":
			report.Fetched++
		case "fallback":
			report.Fallbacks++
		default:
			pl.log(ctx).Warn().Err(err).Int("item", idx).Str("title", it.Title()).Msg("metadata fetch failed")
			report.Failed++
			report.Failures = append(report.Failures, it.Title())
		}
		metrics.EnrichmentItems.WithLabelValues("metadata", outcome).Inc()

		it.DetailedMetadata = rel
		out[i] = it

		if idx >= len(items) {
			break
		}
		delay := pl.pacing.MetadataDelay
		if pl.pacing.BatchSize > 0 && idx%pl.pacing.BatchSize == 0 {
			pl.logProgress(ctx, "metadata", idx, len(items), start)
			delay = pl.pacing.BatchPause
		}
		if err := pl.sleeper.Sleep(ctx, delay); err != nil {
			return nil, report, err
		}
	}

	pl.log(ctx).Info().
		Int("fetched", report.Fetched).
		Int("fallbacks", report.Fallbacks).
		Int("failed", report.Failed).
		Msg("release metadata done")
	return out, report, nil
}

// fetchMetadata returns the metadata to attach and the outcome label.
// The returned release is never nil.
func (pl *Pipeline) fetchMetadata(ctx context.Context, it collection.Item) (*collection.Release, string, error) {
	releaseID := it.BasicInformation.ID
	if releaseID == 0 {
		releaseID = it.ReleaseID
	}

	rel, err := pl.fetcher.Release(ctx, releaseID)
	if err == nil && rel != nil {
		return rel, "fetched", nil
	}

	if master := it.MasterID(); discogs.IsNotFound(err) && master != 0 {
		pl.log(ctx).Info().Int64("release", releaseID).Int64("master", master).Msg("release not found, trying master")
		mrel, merr := pl.fetcher.Master(ctx, master)
		if merr == nil && mrel != nil {
			return mrel, "fallback", nil
		}
		if merr == nil {
			merr = fmt.Errorf("empty master %d", master)
		}
		err = fmt.Errorf("master fallback: %w", merr)
	}
	if err == nil {
		err = fmt.Errorf("empty release %d", releaseID)
	}
	return &collection.Release{}, "failed", err
}

// log returns the run logger carried by ctx, or the pipeline logger.
func (pl *Pipeline) log(ctx context.Context) *zerolog.Logger {
	return logging.FromContext(ctx, &pl.logger)
}

func (pl *Pipeline) logProgress(ctx context.Context, pass string, done, total int, start time.Time) {
	elapsed := pl.now().Sub(start)
	var perMinute float64
	if elapsed > 0 {
		perMinute = float64(done) / elapsed.Minutes()
	}
	pl.log(ctx).Info().
		Str("pass", pass).
		Int("done", done).
		Int("total", total).
		Float64("requests_per_minute", perMinute).
		Msg("progress")
}
