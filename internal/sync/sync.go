// Package sync runs the incremental download: fetch the collection,
// reconcile it against the cached snapshot, enrich only the work set and
// persist the merged result.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/justestif/discat/internal/cache"
	"github.com/justestif/discat/internal/collection"
	"github.com/justestif/discat/internal/enrich"
	"github.com/justestif/discat/internal/logging"
	"github.com/justestif/discat/internal/metrics"
	"github.com/justestif/discat/internal/reconcile"
)

// Source lists the remote collection.
type Source interface {
	FetchCollection(ctx context.Context) ([]collection.Item, error)
	Folders(ctx context.Context) ([]collection.Folder, error)
	Fields(ctx context.Context) ([]collection.Field, error)
}

// Mirror receives a copy of every downloaded collection.
type Mirror interface {
	ReplaceAll(ctx context.Context, items []collection.Item, syncedAt time.Time) error
}

// Service runs downloads.
type Service struct {
	source   Source
	pipeline *enrich.Pipeline
	store    cache.Store
	latest   *cache.CollectionFile
	mirror   Mirror
	logger   zerolog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMirror also writes each downloaded collection to m.
func WithMirror(m Mirror) Option {
	return func(s *Service) {
		s.mirror = m
	}
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithClock replaces the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a download service.
func New(source Source, pipeline *enrich.Pipeline, store cache.Store, latest *cache.CollectionFile, opts ...Option) *Service {
	s := &Service{
		source:   source,
		pipeline: pipeline,
		store:    store,
		latest:   latest,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DownloadOptions select what a download does.
type DownloadOptions struct {
	// UseCache reconciles against the stored snapshot and saves the new one.
	UseCache bool
	// ClearCache deletes the stored snapshot before the run.
	ClearCache bool
	// Annotations fetches custom field values for the work set.
	Annotations bool
	// Metadata fetches detailed release metadata for the work set.
	Metadata bool
	// ConfirmMetadata, when set, is asked before the metadata pass with the
	// work-set size and estimated duration. Returning false skips the pass.
	ConfirmMetadata func(items int, estimate time.Duration) bool
}

// Result reports the outcome of a download.
type Result struct {
	Total           int                 `json:"total"`
	Counts          reconcile.Counts    `json:"counts"`
	Folders         []collection.Folder `json:"folders"`
	Fields          []collection.Field  `json:"fields"`
	Annotations     *enrich.PassReport  `json:"annotations,omitempty"`
	Metadata        *enrich.PassReport  `json:"metadata,omitempty"`
	MetadataSkipped bool                `json:"metadata_skipped"`
	CacheSaved      bool                `json:"cache_saved"`
	SyncedAt        time.Time           `json:"synced_at"`
	Items           []collection.Item   `json:"-"`
}

// Download runs one incremental download. The snapshot is written only after
// every enrichment pass has finished.
func (s *Service) Download(ctx context.Context, opts DownloadOptions) (*Result, error) {
	if opts.ClearCache {
		if err := s.store.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clearing cache: %w", err)
		}
		s.log(ctx).Info().Msg("cache cleared")
	}

	var snap *collection.Snapshot
	if opts.UseCache {
		snap = s.loadSnapshot(ctx)
	}

	folders, err := s.source.Folders(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching folders: %w", err)
	}
	s.log(ctx).Info().Int("folders", len(folders)).Msg("found folders")

	fresh, err := s.source.FetchCollection(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching collection: %w", err)
	}

	rec := reconcile.Reconcile(fresh, snap, opts.UseCache)
	counts := rec.Counts()
	metrics.RecordReconcile(counts.New, counts.Changed, counts.Unchanged)
	s.log(ctx).Info().
		Int("new", counts.New).
		Int("changed", counts.Changed).
		Int("unchanged", counts.Unchanged).
		Msg("reconciled collection")

	fields, err := s.source.Fields(ctx)
	if err != nil {
		s.log(ctx).Warn().Err(err).Msg("could not list custom fields, skipping field values")
		fields = nil
	}

	res := &Result{Counts: counts, Folders: folders, Fields: fields}
	work := rec.WorkSet()

	if opts.Annotations && len(fields) > 0 && len(work) > 0 {
		enriched, report, err := s.pipeline.Annotations(ctx, work)
		if err != nil {
			return nil, fmt.Errorf("fetching custom field values: %w", err)
		}
		work = enriched
		res.Annotations = &report
	}

	if opts.Metadata && len(work) > 0 {
		estimate := s.pipeline.Pacing().EstimateMetadata(len(work))
		if opts.ConfirmMetadata != nil && !opts.ConfirmMetadata(len(work), estimate) {
			s.log(ctx).Info().Msg("metadata enrichment skipped")
			res.MetadataSkipped = true
		} else {
			enriched, report, err := s.pipeline.Metadata(ctx, work)
			if err != nil {
				return nil, fmt.Errorf("enriching metadata: %w", err)
			}
			work = enriched
			res.Metadata = &report
		}
	}

	merged := rec.Merge(work)
	syncedAt := s.now().UTC()
	res.Items = merged
	res.Total = len(merged)
	res.SyncedAt = syncedAt

	if opts.UseCache {
		if err := s.store.Save(ctx, collection.SnapshotOf(merged, syncedAt)); err != nil {
			return nil, fmt.Errorf("saving cache: %w", err)
		}
		res.CacheSaved = true
		s.log(ctx).Info().Int("items", len(merged)).Msg("cache saved")
	}

	if err := s.latest.Save(merged); err != nil {
		return nil, fmt.Errorf("saving collection: %w", err)
	}

	if s.mirror != nil {
		if err := s.mirror.ReplaceAll(ctx, merged, syncedAt); err != nil {
			s.log(ctx).Warn().Err(err).Msg("mirroring collection failed")
		}
	}

	return res, nil
}

// log returns the run logger carried by ctx, or the service logger.
func (s *Service) log(ctx context.Context) *zerolog.Logger {
	return logging.FromContext(ctx, &s.logger)
}

// loadSnapshot returns the stored snapshot. An unreadable snapshot is
// treated as empty so the run re-fetches everything.
func (s *Service) loadSnapshot(ctx context.Context) *collection.Snapshot {
	snap, err := s.store.Load(ctx)
	if err != nil {
		s.log(ctx).Warn().Err(err).Msg("cache unreadable, starting fresh")
		return collection.NewSnapshot()
	}
	if snap == nil {
		s.log(ctx).Info().Msg("no cache found, starting fresh")
		return collection.NewSnapshot()
	}
	ev := s.log(ctx).Info().Int("items", snap.Len())
	if snap.LastUpdated != nil {
		ev = ev.Time("last_updated", *snap.LastUpdated)
	}
	ev.Msg("loaded cache")
	return snap
}

// LastSynced returns when the stored snapshot was written.
// Returns nil if nothing has been cached.
func (s *Service) LastSynced(ctx context.Context) (*time.Time, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading cache: %w", err)
	}
	if snap == nil {
		return nil, nil
	}
	return snap.LastUpdated, nil
}
