package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"coachcatalog/api/internal/auth"
	"coachcatalog/api/internal/catalog"
	"coachcatalog/api/internal/config"
	"coachcatalog/api/internal/export"
	"coachcatalog/api/internal/ingest"
	"coachcatalog/api/internal/observability"
	"coachcatalog/api/internal/rbac"
	"coachcatalog/api/internal/search"
	"coachcatalog/api/internal/util"
	"coachcatalog/api/internal/vocab"
)

// Session is the authenticated caller.
type Session struct {
	CoachID string
	Name    string
	Role    rbac.Role
	Plan    string
	Limit   int
}

// VideoUploader stores a video file and returns the selection to attach.
type VideoUploader interface {
	Upload(ctx context.Context, coachID, fileName string, body io.Reader, size int64, contentType string) (catalog.MediaSelection, error)
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators wired in main.
type Deps struct {
	Catalog catalog.CatalogClient
	Drafts  catalog.DraftCache
	Media   catalog.MediaCollaborator
	Videos  VideoUploader
	Search  *search.Service
	DB      pinger
	Logger  *slog.Logger
}

type Service struct {
	cfg     config.Config
	authCfg auth.Config
	deps    Deps
	vocab   *vocab.Vocabulary
	logger  *slog.Logger
	metrics catalog.Observer

	mu         sync.Mutex
	workspaces map[catalog.Key]*catalog.Workspace
}

func New(cfg config.Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Search == nil {
		deps.Search = search.NewService(nil, logger)
	}
	return &Service{
		cfg:        cfg,
		authCfg:    auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		deps:       deps,
		vocab:      cfg.NewVocabulary(),
		logger:     logger,
		metrics:    observability.NewRecorder(),
		workspaces: make(map[catalog.Key]*catalog.Workspace),
	}
}

// SessionFromToken validates a bearer token and resolves the caller's plan limit.
func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken(s.authCfg, token)
	if err != nil {
		return Session{}, err
	}
	plan := claims.Plan
	if strings.TrimSpace(plan) == "" {
		plan = s.cfg.DefaultPlan
	}
	return Session{
		CoachID: claims.CoachID,
		Name:    claims.Name,
		Role:    rbac.Normalize(claims.Role),
		Plan:    plan,
		Limit:   s.cfg.PlanLimit(plan),
	}, nil
}

// Ready reports the health of each backing service.
func (s *Service) Ready(ctx context.Context) (bool, map[string]any) {
	ok := true
	checks := map[string]any{}
	if s.deps.DB != nil {
		if err := s.deps.DB.PingContext(ctx); err != nil {
			ok = false
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		} else {
			checks["database"] = map[string]any{"status": "ok"}
		}
	}
	if p, isPinger := s.deps.Drafts.(interface{ Ping(context.Context) error }); isPinger {
		if err := p.Ping(ctx); err != nil {
			ok = false
			checks["drafts"] = map[string]any{"status": "error", "error": err.Error()}
		} else {
			checks["drafts"] = map[string]any{"status": "ok"}
		}
	}
	return ok, checks
}

// Workspace returns the opened workspace for the caller's program and
// category, creating it on first use.
func (s *Service) Workspace(ctx context.Context, sess Session, programID string, category catalog.Category) (*catalog.Workspace, error) {
	key := catalog.Key{CoachID: sess.CoachID, ProgramID: programID, Category: category}

	s.mu.Lock()
	ws, ok := s.workspaces[key]
	switch {
	case !ok:
		ws = s.newWorkspace(key, sess.Limit)
		s.workspaces[key] = ws
	case ws.Limit() != sess.Limit:
		// plan changed; the local state and its intent stay
		ws.SetLimit(sess.Limit)
	}
	s.mu.Unlock()

	if _, err := ws.Open(ctx); err != nil {
		return nil, err
	}
	return ws, nil
}

// ResetDraft drops the workspace's draft and evicts it, so the next request
// builds a fresh one from the persisted catalog.
func (s *Service) ResetDraft(ctx context.Context, ws *catalog.Workspace) error {
	if err := ws.ResetDraft(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	if s.workspaces[ws.Key()] == ws {
		delete(s.workspaces, ws.Key())
	}
	s.mu.Unlock()
	return nil
}

func (s *Service) newWorkspace(key catalog.Key, limit int) *catalog.Workspace {
	logger := s.logger.With("coach_id", key.CoachID)
	pipeline := ingest.New(ingest.Options{
		Vocabulary: s.vocab,
		Logger:     logger,
		Observer:   observability.RecordIngestEvent,
	})
	return catalog.NewWorkspace(key, catalog.Options{
		Client:     s.deps.Catalog,
		Drafts:     s.deps.Drafts,
		Media:      s.deps.Media,
		Ingester:   pipeline,
		Vocabulary: s.vocab,
		Limit:      limit,
		Logger:     logger,
		Observer:   s.metrics,
		NewID:      func() string { return util.NewID("tmp") },
	})
}

// Selector picks rows for a bulk operation: explicit ids, every row, or one
// page, minus the ids in Except.
type Selector struct {
	IDs      []string `json:"ids"`
	All      bool     `json:"all"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
	Except   []string `json:"except"`
}

// Resolve returns the selected identities in canonical order.
func (sel Selector) Resolve(items []catalog.Item) []string {
	selection := catalog.NewSelection(sel.IDs...)
	if sel.All {
		selection.SelectAll(items)
	} else if sel.Page > 0 {
		selection.SelectPage(catalog.Paginate(items, sel.Page, sel.PageSize))
	}
	for _, id := range sel.Except {
		if selection.Has(id) {
			selection.Toggle(id)
		}
	}
	return selection.IDs(items)
}

// Delete hard-deletes the selected rows and drops them from the search index.
func (s *Service) Delete(ctx context.Context, ws *catalog.Workspace, identities []string) (int, error) {
	var persisted []int64
	for _, it := range ws.Snapshot() {
		for _, id := range identities {
			if catalog.HasIdentity(it, id) && it.PersistedID > 0 {
				persisted = append(persisted, it.PersistedID)
				break
			}
		}
	}
	n, err := ws.Delete(ctx, identities)
	if err != nil {
		return 0, err
	}
	s.deps.Search.Remove(persisted)
	return n, nil
}

// RemoveBatch drops one upload batch and unindexes any rows of it that had
// already been saved.
func (s *Service) RemoveBatch(ctx context.Context, ws *catalog.Workspace, batchID string) (int, error) {
	var persisted []int64
	for _, it := range ws.Snapshot() {
		if it.Batch != nil && it.Batch.ID == batchID && it.PersistedID > 0 {
			persisted = append(persisted, it.PersistedID)
		}
	}
	n, err := ws.RemoveBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}
	s.deps.Search.Remove(persisted)
	return n, nil
}

// Submit writes the workspace to its program, then reindexes and records metrics.
func (s *Service) Submit(ctx context.Context, ws *catalog.Workspace) (catalog.SubmitReport, error) {
	report, err := ws.Submit(ctx)
	key := ws.Key()
	observability.RecordSubmit(key.Category, report.Saved, report.Assigned)
	if report.Saved > 0 {
		s.deps.Search.Index(key.CoachID, ws.Snapshot())
	}
	return report, err
}

// Search looks up rows by name within the workspace's category.
func (s *Service) Search(ws *catalog.Workspace, text string, activeOnly bool, limit, offset int) search.Response {
	key := ws.Key()
	return s.deps.Search.Search(search.Query{
		CoachID:    key.CoachID,
		Category:   key.Category,
		Text:       text,
		ActiveOnly: activeOnly,
		Limit:      limit,
		Offset:     offset,
	}, ws.Snapshot())
}

// UploadVideo stores a video file for later attachment.
func (s *Service) UploadVideo(ctx context.Context, sess Session, fileName string, body io.Reader, size int64, contentType string) (catalog.MediaSelection, error) {
	if s.deps.Videos == nil {
		return catalog.MediaSelection{}, domainError(http.StatusServiceUnavailable, "MEDIA_DISABLED",
			"La carga de videos no está disponible.", nil)
	}
	sel, err := s.deps.Videos.Upload(ctx, sess.CoachID, fileName, body, size, contentType)
	if err != nil {
		return catalog.MediaSelection{}, fmt.Errorf("upload video: %w", err)
	}
	return sel, nil
}

// Template renders the reference upload file.
func (s *Service) Template(category catalog.Category, format export.Format) (*export.Result, error) {
	return export.Template(category, format)
}
