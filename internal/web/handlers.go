package web

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/justestif/discat/internal/cache"
	"github.com/justestif/discat/internal/collection"
	"github.com/justestif/discat/internal/execute"
	"github.com/justestif/discat/internal/extract"
	"github.com/justestif/discat/internal/plan"
	"github.com/justestif/discat/internal/runs"
	"github.com/justestif/discat/internal/sync"
)

// Downloader runs incremental downloads.
type Downloader interface {
	Download(ctx context.Context, opts sync.DownloadOptions) (*sync.Result, error)
}

// CollectionLoader loads the latest downloaded collection.
type CollectionLoader interface {
	Load() ([]collection.Item, error)
}

// Applier executes plans.
type Applier interface {
	Apply(ctx context.Context, p *plan.SyncPlan) (*execute.Result, error)
	Move(ctx context.Context, p *plan.FolderPlan) (*execute.Result, error)
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	downloads  Downloader
	catalog    plan.Catalog
	planner    *plan.Planner
	collection CollectionLoader
	executor   Applier
	registry   *runs.Registry
	runCtx     context.Context
}

// NewHandlers creates a new Handlers instance. Runs started through the
// handlers are bound to runCtx.
func NewHandlers(cfg ServerConfig, runCtx context.Context) *Handlers {
	return &Handlers{
		downloads:  cfg.Downloads,
		catalog:    cfg.Catalog,
		planner:    plan.NewPlanner(cfg.Catalog),
		collection: cfg.Collection,
		executor:   cfg.Executor,
		registry:   cfg.Registry,
		runCtx:     runCtx,
	}
}

// DownloadRequest is the body of POST /api/downloads.
type DownloadRequest struct {
	UseCache        bool `json:"use_cache"`
	ClearCache      bool `json:"clear_cache"`
	SkipAnnotations bool `json:"skip_annotations"`
	SkipMetadata    bool `json:"skip_metadata"`
}

// SyncRequest is the body of POST /api/sync/preview.
type SyncRequest struct {
	Field            string `json:"field"`
	Source           string `json:"source"`
	SkipExisting     bool   `json:"skip_existing"`
	Filter           string `json:"filter"`
	IgnoreValidation bool   `json:"ignore_validation"`
}

// OrganizeRequest is the body of POST /api/organize/preview.
type OrganizeRequest struct {
	Folder string `json:"folder"`
	Source string `json:"source"`
}

// PreviewResponse pairs a plan with the pending run that would execute it.
// Run is nil when there is nothing to execute.
type PreviewResponse struct {
	Plan any        `json:"plan"`
	Run  *runs.View `json:"run"`
}

// StartDownload creates and starts a download run (POST /api/downloads).
func (h *Handlers) StartDownload(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if !decodeBody(w, r, &req) {
		return
	}

	opts := sync.DownloadOptions{
		UseCache:    req.UseCache,
		ClearCache:  req.ClearCache,
		Annotations: !req.SkipAnnotations,
		Metadata:    !req.SkipMetadata,
	}
	run := h.registry.Create(runs.KindDownload, req, func(ctx context.Context, logger zerolog.Logger) (any, error) {
		logger.Info().Bool("use_cache", opts.UseCache).Bool("metadata", opts.Metadata).Msg("download started")
		res, err := h.downloads.Download(ctx, opts)
		if err != nil {
			return nil, err
		}
		logger.Info().
			Int("total", res.Total).
			Int("new", res.Counts.New).
			Int("changed", res.Counts.Changed).
			Int("unchanged", res.Counts.Unchanged).
			Msg("download complete")
		return res, nil
	})

	if err := run.Start(h.runCtx); err != nil {
		_ = run.Cancel()
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run.View())
}

// PreviewSync plans a field sync and registers a pending run for it
// (POST /api/sync/preview).
func (h *Handlers) PreviewSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}
	strategy, ok := h.parseSource(w, req.Source)
	if !ok {
		return
	}
	items, ok := h.loadCollection(w)
	if !ok {
		return
	}

	p, err := h.planner.Plan(r.Context(), items, req.Field, strategy, plan.Options{
		SkipIfHasValue: req.SkipExisting,
		Filter:         req.Filter,
	})
	if errors.Is(err, plan.ErrFieldNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := PreviewResponse{Plan: p}
	if p.Ready(req.IgnoreValidation) {
		run := h.registry.Create(runs.KindSync, p, func(ctx context.Context, logger zerolog.Logger) (any, error) {
			logger.Info().Str("field", p.FieldName).Int("changes", len(p.Changes)).Msg("sync started")
			res, err := h.executor.Apply(ctx, p)
			if res != nil {
				logger.Info().Int("updated", res.Updated).Int("failed", len(res.Failed)).Msg("sync complete")
			}
			return res, err
		})
		v := run.View()
		resp.Run = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

// PreviewOrganize plans a folder reassignment and registers a pending run
// for it (POST /api/organize/preview).
func (h *Handlers) PreviewOrganize(w http.ResponseWriter, r *http.Request) {
	var req OrganizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Folder == "" {
		writeError(w, http.StatusBadRequest, "folder is required")
		return
	}
	strategy, ok := h.parseSource(w, req.Source)
	if !ok {
		return
	}
	items, ok := h.loadCollection(w)
	if !ok {
		return
	}

	p, err := h.planner.PlanFolder(r.Context(), items, req.Folder, strategy)
	if errors.Is(err, plan.ErrFolderNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := PreviewResponse{Plan: p}
	if len(p.Moves) > 0 {
		run := h.registry.Create(runs.KindOrganize, p, func(ctx context.Context, logger zerolog.Logger) (any, error) {
			logger.Info().Str("folder", p.Folder.Name).Int("moves", len(p.Moves)).Msg("organize started")
			res, err := h.executor.Move(ctx, p)
			if res != nil {
				logger.Info().Int("moved", res.Updated).Int("failed", len(res.Failed)).Msg("organize complete")
			}
			return res, err
		})
		v := run.View()
		resp.Run = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRun returns a run (GET /api/runs/{id}).
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

// StartRun starts a pending run (POST /api/runs/{id}/start).
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeRunError(w, err)
		return
	}
	if err := run.Start(h.runCtx); err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run.View())
}

// CancelRun cancels a pending run (POST /api/runs/{id}/cancel).
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeRunError(w, err)
		return
	}
	if err := run.Cancel(); err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

// Fields lists the custom field definitions (GET /api/fields).
func (h *Handlers) Fields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.catalog.Fields(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

// Folders lists the collection folders (GET /api/folders).
func (h *Handlers) Folders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.catalog.Folders(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

func (h *Handlers) parseSource(w http.ResponseWriter, name string) (extract.Strategy, bool) {
	strategy, err := extract.Parse(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return strategy, true
}

func (h *Handlers) loadCollection(w http.ResponseWriter) ([]collection.Item, bool) {
	items, err := h.collection.Load()
	if errors.Is(err, cache.ErrNoCollection) {
		writeError(w, http.StatusConflict, "no downloaded collection; run a download first")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return items, true
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid JSON body")
	return false
}

func writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runs.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, runs.ErrBusy), errors.Is(err, runs.ErrNotPending):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
