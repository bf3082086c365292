package catalog

import (
	"context"
	"io"
	"time"
)

// CatalogClient is the persisted catalog: read, write, hard delete and usage.
// Save writes rows and assigns them to programID; Update rewrites persisted
// rows without touching their program assignments.
type CatalogClient interface {
	List(ctx context.Context, coachID string, category Category) ([]Item, error)
	Save(ctx context.Context, coachID, programID string, items []Item) ([]int64, error)
	Update(ctx context.Context, coachID string, items []Item) error
	Delete(ctx context.Context, coachID, programID string, ids []int64) error
	Usage(ctx context.Context, coachID string, id int64) ([]string, error)
}

// DraftCache keeps the in-progress row list of one workspace for the
// duration of a session.
type DraftCache interface {
	Load(ctx context.Context, key string) ([]Item, bool, error)
	Save(ctx context.Context, key string, items []Item) error
	Reset(ctx context.Context, key string) error
}

// MediaCollaborator is notified when a video reference is dropped.
type MediaCollaborator interface {
	Release(ctx context.Context, ref VideoRef) error
}

// UploadBatch groups the rows produced by one upload.
type UploadBatch struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	Timestamp time.Time `json:"timestamp"`
	RowIDs    []string  `json:"rowIds"`
}

// IngestRequest is one uploaded file plus the state it is evaluated against.
type IngestRequest struct {
	FileName string
	Body     io.Reader
	Category Category
	Visible  []Item
	Limit    int
}

// UploadOutcome is what the ingestion pipeline hands to the workspace.
type UploadOutcome struct {
	Batch      UploadBatch     `json:"batch"`
	Accepted   []Item          `json:"accepted"`
	Parsed     int             `json:"parsed"`
	Dropped    int             `json:"dropped"`
	Duplicates DuplicateReport `json:"duplicates"`
	Warnings   []string        `json:"warnings"`
}

// Ingester parses an upload into tagged, normalized rows.
type Ingester interface {
	Ingest(ctx context.Context, req IngestRequest) (UploadOutcome, error)
}

// Observer receives engine events, typically for metrics.
type Observer interface {
	Reloaded(category Category, outcome ReloadOutcome)
	QuotaBlocked(category Category, blocked int)
}

type nopObserver struct{}

func (nopObserver) Reloaded(Category, ReloadOutcome) {}
func (nopObserver) QuotaBlocked(Category, int)       {}
