package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"coachcatalog/api/internal/vocab"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	submitChunk       = 50
	DefaultUsageChunk = 20
)

// Key scopes a workspace to one coach, program and category.
type Key struct {
	CoachID   string
	ProgramID string
	Category  Category
}

// DraftKey is the session cache key. Drafts are per program, split by
// category since each category has its own workspace.
func (k Key) DraftKey() string {
	return k.ProgramID + ":" + string(k.Category)
}

type Options struct {
	Client     CatalogClient
	Drafts     DraftCache
	Media      MediaCollaborator
	Ingester   Ingester
	Vocabulary *vocab.Vocabulary
	// Limit is the plan's maximum catalog size; Unlimited disables it.
	Limit            int
	Logger           *slog.Logger
	Observer         Observer
	NewID            func() string
	UsageParallelism int
}

// Workspace runs the lifecycle operations of one catalog. User operations
// are serialized; background reloads may interleave and are arbitrated by
// the reconciler.
type Workspace struct {
	key      Key
	client   CatalogClient
	drafts   DraftCache
	media    MediaCollaborator
	ingester Ingester
	vocab    *vocab.Vocabulary
	limit    atomic.Int64
	logger   *slog.Logger
	observer Observer
	newID    func() string
	parallel int

	recon  *Reconciler
	mu     sync.Mutex
	opened bool

	usageMu sync.RWMutex
	usage   map[int64][]string
}

func NewWorkspace(key Key, opts Options) *Workspace {
	w := &Workspace{
		key:      key,
		client:   opts.Client,
		drafts:   opts.Drafts,
		media:    opts.Media,
		ingester: opts.Ingester,
		vocab:    opts.Vocabulary,
		logger:   opts.Logger,
		observer: opts.Observer,
		newID:    opts.NewID,
		parallel: opts.UsageParallelism,
		recon:    NewReconciler(),
		usage:    make(map[int64][]string),
	}
	w.limit.Store(int64(opts.Limit))
	if w.vocab == nil {
		w.vocab = vocab.Default()
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With("program_id", key.ProgramID, "category", string(key.Category))
	if w.observer == nil {
		w.observer = nopObserver{}
	}
	if w.newID == nil {
		w.newID = uuid.NewString
	}
	if w.parallel <= 0 {
		w.parallel = 4
	}
	return w
}

func (w *Workspace) Key() Key { return w.key }

func (w *Workspace) Limit() int { return int(w.limit.Load()) }

// SetLimit applies a plan change in place. Rows above the new limit stay;
// only later additions are checked against it.
func (w *Workspace) SetLimit(limit int) { w.limit.Store(int64(limit)) }

func (w *Workspace) Intent() Intent { return w.recon.Intent() }

// Snapshot returns the canonical list.
func (w *Workspace) Snapshot() []Item { return w.recon.Items() }

// Open initializes the workspace on first visit: it seeds the draft cache
// when empty, reads the persisted catalog and merges both. Later calls
// return the current list.
func (w *Workspace) Open(ctx context.Context) ([]Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.opened {
		return w.recon.Items(), nil
	}

	var cached []Item
	if w.drafts != nil {
		items, ok, err := w.drafts.Load(ctx, w.key.DraftKey())
		switch {
		case err != nil:
			w.logger.Warn("draft cache load failed", "error", err)
		case ok:
			cached = items
		default:
			if err := w.drafts.Save(ctx, w.key.DraftKey(), []Item{}); err != nil {
				w.logger.Warn("draft cache init failed", "error", err)
			}
		}
	}

	existing, err := w.client.List(ctx, w.key.CoachID, w.key.Category)
	if err != nil {
		return nil, NewPersistenceError("list catalog", err)
	}
	items := w.recon.Load(Sources{Existing: existing, Draft: Anchor(cached)})
	w.opened = true
	w.persistDraft(ctx, items)
	w.logger.Info("catalog opened", "existing", len(existing), "draft", len(cached), "visible", len(items))
	return items, nil
}

// Reload re-reads the persisted catalog in the background. Local mutations
// made while the read was in flight win over its response.
func (w *Workspace) Reload(ctx context.Context) (ReloadOutcome, []Item, error) {
	ticket := w.recon.BeginReload()
	existing, err := w.client.List(ctx, w.key.CoachID, w.key.Category)
	if err != nil {
		return "", w.recon.Items(), NewPersistenceError("list catalog", err)
	}
	outcome, items := w.recon.ApplyReload(ticket, existing)
	w.observer.Reloaded(w.key.Category, outcome)
	w.logger.Debug("catalog reload", "outcome", string(outcome), "existing", len(existing))
	if outcome == ReloadApplied {
		w.persistDraft(ctx, items)
	}
	return outcome, items, nil
}

// Create adds a manual row after checking the name and one quota slot.
func (w *Workspace) Create(ctx context.Context, form Form) (Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	name := strings.TrimSpace(form.Name)
	if name == "" {
		return Item{}, ErrNameRequired
	}
	current := w.recon.Items()
	limit := w.Limit()
	if slots := EvaluateSlots(len(current), 1, limit); slots.Allowed == 0 {
		w.observer.QuotaBlocked(w.key.Category, slots.Blocked)
		return Item{}, &QuotaError{Category: w.key.Category, Limit: limit, Current: len(current), Requested: 1}
	}

	attrs, issues := Normalize(w.key.Category, form, w.vocab)
	it := Item{
		TempID:      w.newID(),
		Category:    w.key.Category,
		Name:        name,
		Description: strings.TrimSpace(form.Description),
		Attrs:       attrs,
		Active:      true,
		Provenance:  ProvenanceManual,
		Issues:      issues,
	}
	it.Identity = IdentityOf(it, -1)
	items := w.recon.Update(func(src *Sources) {
		src.Draft = append(src.Draft, it)
	})
	w.persistDraft(ctx, items)
	return findIn(items, it.Identity)
}

// Form returns the edit form of a row.
func (w *Workspace) Form(identity string) (Form, error) {
	it, ok := w.recon.Find(identity)
	if !ok {
		return Form{}, ErrNotFound
	}
	return FormOf(it), nil
}

// Edit replaces the attributes of a row, keeping its identity.
func (w *Workspace) Edit(ctx context.Context, identity string, form Form) (Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	it, ok := w.recon.Find(identity)
	if !ok {
		return Item{}, ErrNotFound
	}
	name := strings.TrimSpace(form.Name)
	if name == "" {
		return Item{}, ErrNameRequired
	}
	attrs, issues := Normalize(it.Category, form, w.vocab)
	it.Name = name
	it.Description = strings.TrimSpace(form.Description)
	it.Attrs = attrs
	it.Issues = issues
	items := w.recon.Update(func(src *Sources) {
		upsertDraft(src, it)
	})
	w.persistDraft(ctx, items)
	return findIn(items, it.Identity)
}

// ActivationReport lists the rows toggled and the ones refused.
type ActivationReport struct {
	Changed     []string `json:"changed"`
	Refused     []string `json:"refused"`
	Diagnostics []string `json:"diagnostics"`
}

// SetActive soft-disables or reactivates the given rows. The change is
// applied optimistically; persisted rows are then rewritten in place and the
// whole operation is rolled back if the write fails. The write never assigns
// rows to the program. Persisted rows not assigned to the workspace program
// are never reactivated; each refusal is reported.
func (w *Workspace) SetActive(ctx context.Context, identities []string, active bool) (ActivationReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	report := ActivationReport{Changed: []string{}, Refused: []string{}, Diagnostics: []string{}}
	var changed []Item
	for _, id := range identities {
		it, ok := w.recon.Find(id)
		if !ok {
			report.Refused = append(report.Refused, id)
			report.Diagnostics = append(report.Diagnostics, fmt.Sprintf("fila %s no encontrada", id))
			continue
		}
		if active && it.PersistedID > 0 && !it.AssignedTo(w.key.ProgramID) {
			report.Refused = append(report.Refused, it.Identity)
			report.Diagnostics = append(report.Diagnostics,
				fmt.Sprintf("%q no está asignado a este programa y no se puede reactivar", it.Name))
			continue
		}
		if it.Active == active {
			continue
		}
		it.Active = active
		changed = append(changed, it)
	}
	if len(changed) == 0 {
		return report, nil
	}

	snap := w.recon.Sources()
	items := w.recon.Update(func(src *Sources) {
		for _, it := range changed {
			upsertDraft(src, it)
			for i := range src.Existing {
				if Matches(src.Existing[i], it) {
					src.Existing[i].Active = it.Active
				}
			}
		}
	})

	var persisted []Item
	for _, it := range changed {
		if it.PersistedID > 0 {
			persisted = append(persisted, it)
		}
	}
	if len(persisted) > 0 {
		if err := w.client.Update(ctx, w.key.CoachID, persisted); err != nil {
			w.recon.Restore(snap)
			w.logger.Warn("activation rolled back", "rows", len(persisted), "error", err)
			return ActivationReport{}, NewPersistenceError("update activation", err)
		}
	}
	for _, it := range changed {
		report.Changed = append(report.Changed, it.Identity)
	}
	w.persistDraft(ctx, items)
	return report, nil
}

// Delete hard-deletes rows. Persisted rows are deleted on the server first;
// nothing changes locally unless the server confirms.
func (w *Workspace) Delete(ctx context.Context, identities []string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var keys []string
	var ids []int64
	for _, id := range identities {
		it, ok := w.recon.Find(id)
		if !ok {
			continue
		}
		keys = append(keys, it.Identity)
		if it.PersistedID > 0 {
			ids = append(ids, it.PersistedID)
		}
	}
	if len(keys) == 0 {
		return 0, ErrNotFound
	}
	return len(keys), w.removeRows(ctx, keys, ids)
}

func (w *Workspace) removeRows(ctx context.Context, keys []string, ids []int64) error {
	var items []Item
	if len(ids) > 0 {
		if err := w.client.Delete(ctx, w.key.CoachID, w.key.ProgramID, ids); err != nil {
			w.logger.Warn("hard delete rejected", "rows", len(ids), "error", err)
			return NewPersistenceError("delete catalog items", err)
		}
		items = w.recon.Remove(keys)
	} else {
		items = w.recon.Discard(keys)
	}
	w.usageMu.Lock()
	for _, id := range ids {
		delete(w.usage, id)
	}
	w.usageMu.Unlock()
	w.persistDraft(ctx, items)
	return nil
}

// AttachVideo sets the video of a row. A replaced video is released first.
func (w *Workspace) AttachVideo(ctx context.Context, identity string, sel MediaSelection) (Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ref, err := DeriveVideo(sel)
	if err != nil {
		return Item{}, err
	}
	it, ok := w.recon.Find(identity)
	if !ok {
		return Item{}, ErrNotFound
	}
	if it.Video != nil && it.Video.URL != ref.URL {
		if err := w.release(ctx, *it.Video); err != nil {
			return Item{}, err
		}
	}
	it.Video = &ref
	items := w.recon.Update(func(src *Sources) {
		upsertDraft(src, it)
	})
	w.persistDraft(ctx, items)
	return findIn(items, it.Identity)
}

// DetachVideo releases the previous reference before clearing it.
func (w *Workspace) DetachVideo(ctx context.Context, identity string) (Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	it, ok := w.recon.Find(identity)
	if !ok {
		return Item{}, ErrNotFound
	}
	if it.Video == nil {
		return it, nil
	}
	if err := w.release(ctx, *it.Video); err != nil {
		return it, err
	}
	it.Video = nil
	items := w.recon.Update(func(src *Sources) {
		upsertDraft(src, it)
	})
	w.persistDraft(ctx, items)
	return findIn(items, it.Identity)
}

func (w *Workspace) release(ctx context.Context, ref VideoRef) error {
	if w.media == nil {
		return nil
	}
	if err := w.media.Release(ctx, ref); err != nil {
		return NewPersistenceError("release video", err)
	}
	return nil
}

// Upload runs an uploaded file through the ingester and merges the accepted
// rows. Rejected files leave the workspace untouched.
func (w *Workspace) Upload(ctx context.Context, fileName string, body io.Reader) (UploadOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ingester == nil {
		return UploadOutcome{}, fmt.Errorf("no ingester configured")
	}
	outcome, err := w.ingester.Ingest(ctx, IngestRequest{
		FileName: fileName,
		Body:     body,
		Category: w.key.Category,
		Visible:  w.recon.Items(),
		Limit:    w.Limit(),
	})
	if err != nil {
		w.logger.Info("upload rejected", "file", fileName, "kind", string(KindOf(err)), "error", err)
		return UploadOutcome{}, err
	}
	if outcome.Dropped > 0 {
		w.observer.QuotaBlocked(w.key.Category, outcome.Dropped)
	}
	if len(outcome.Accepted) == 0 {
		return outcome, nil
	}
	items := w.recon.Update(func(src *Sources) {
		src.Batch = append(src.Batch, outcome.Accepted...)
	})
	w.persistDraft(ctx, items)
	w.logger.Info("upload merged", "file", fileName, "batch_id", outcome.Batch.ID,
		"accepted", len(outcome.Accepted), "dropped", outcome.Dropped, "duplicates", len(outcome.Duplicates.Names))
	return outcome, nil
}

// Batches lists uploads that still have unsubmitted rows.
func (w *Workspace) Batches() []UploadBatch {
	return liveBatches(w.recon.Items())
}

func liveBatches(items []Item) []UploadBatch {
	var order []string
	byID := make(map[string]*UploadBatch)
	pending := make(map[string]bool)
	for _, it := range items {
		if it.Batch == nil {
			continue
		}
		b, ok := byID[it.Batch.ID]
		if !ok {
			b = &UploadBatch{ID: it.Batch.ID, FileName: it.Batch.FileName, Timestamp: it.Batch.Timestamp}
			byID[it.Batch.ID] = b
			order = append(order, it.Batch.ID)
		}
		b.RowIDs = append(b.RowIDs, it.Identity)
		if it.PersistedID == 0 {
			pending[it.Batch.ID] = true
		}
	}
	out := make([]UploadBatch, 0, len(order))
	for _, id := range order {
		if pending[id] {
			out = append(out, *byID[id])
		}
	}
	return out
}

// RemoveBatch drops every row of an upload. The rows are looked up in the
// current list at call time so rows persisted since the upload are deleted
// on the server before being dropped.
func (w *Workspace) RemoveBatch(ctx context.Context, batchID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var keys []string
	var ids []int64
	for _, it := range w.recon.Items() {
		if it.Batch == nil || it.Batch.ID != batchID {
			continue
		}
		keys = append(keys, it.Identity)
		if it.PersistedID > 0 {
			ids = append(ids, it.PersistedID)
		}
	}
	if len(keys) == 0 {
		return 0, ErrBatchUnknown
	}
	if err := w.removeRows(ctx, keys, ids); err != nil {
		return 0, err
	}
	w.logger.Info("batch removed", "batch_id", batchID, "rows", len(keys), "server_deleted", len(ids))
	return len(keys), nil
}

// SubmitReport summarizes a submit.
type SubmitReport struct {
	Saved            int      `json:"saved"`
	Assigned         int      `json:"assigned"`
	Updated          int      `json:"updated"`
	CompletedBatches []string `json:"completedBatches"`
}

// Submit writes the rows the workspace owns to the program in chunks: new
// rows, rows uploaded or created here, and rows already assigned to it.
// Returned ids are stamped on rows that had none; a row's first id is never
// replaced. Persisted rows owned by other programs are only rewritten when
// edited locally and never get assigned. Chunks written before a failure
// keep their ids.
func (w *Workspace) Submit(ctx context.Context) (SubmitReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	report := SubmitReport{CompletedBatches: []string{}}
	rows := w.recon.Items()
	owned, edited := w.partition(rows)
	for start := 0; start < len(owned); start += submitChunk {
		end := min(start+submitChunk, len(owned))
		chunk := owned[start:end]
		ids, err := w.client.Save(ctx, w.key.CoachID, w.key.ProgramID, chunk)
		if err == nil && len(ids) != len(chunk) {
			err = fmt.Errorf("write returned %d ids for %d rows", len(ids), len(chunk))
		}
		if err != nil {
			w.persistDraft(ctx, w.recon.Items())
			w.logger.Warn("submit interrupted", "saved", report.Saved, "error", err)
			return report, NewPersistenceError("save catalog", err)
		}
		for i, row := range chunk {
			if row.PersistedID == 0 && ids[i] > 0 {
				report.Assigned++
			}
		}
		w.recon.Update(func(src *Sources) {
			for i, row := range chunk {
				stamp(src, row, ids[i], w.key.ProgramID)
			}
		})
		report.Saved += len(chunk)
	}
	for start := 0; start < len(edited); start += submitChunk {
		end := min(start+submitChunk, len(edited))
		if err := w.client.Update(ctx, w.key.CoachID, edited[start:end]); err != nil {
			w.persistDraft(ctx, w.recon.Items())
			w.logger.Warn("submit interrupted", "saved", report.Saved, "updated", report.Updated, "error", err)
			return report, NewPersistenceError("update catalog", err)
		}
		report.Updated += end - start
	}

	before := make(map[string]struct{})
	for _, b := range liveBatches(rows) {
		before[b.ID] = struct{}{}
	}
	live := make(map[string]struct{})
	for _, b := range liveBatches(w.recon.Items()) {
		live[b.ID] = struct{}{}
	}
	for id := range before {
		if _, ok := live[id]; !ok {
			report.CompletedBatches = append(report.CompletedBatches, id)
		}
	}
	sort.Strings(report.CompletedBatches)
	items := w.recon.Update(func(src *Sources) {
		done := make(map[string]struct{}, len(report.CompletedBatches))
		for _, id := range report.CompletedBatches {
			done[id] = struct{}{}
		}
		for _, list := range []*[]Item{&src.Existing, &src.Batch, &src.Draft} {
			for i := range *list {
				if b := (*list)[i].Batch; b != nil {
					if _, ok := done[b.ID]; ok {
						(*list)[i].Batch = nil
					}
				}
			}
		}
	})
	w.persistDraft(ctx, items)
	w.logger.Info("catalog submitted", "saved", report.Saved, "assigned", report.Assigned,
		"updated", report.Updated, "completed_batches", len(report.CompletedBatches))
	return report, nil
}

// partition splits rows into the ones Submit assigns to the program and the
// foreign persisted rows carrying local edits. Untouched foreign rows are
// left out entirely.
func (w *Workspace) partition(rows []Item) (owned, edited []Item) {
	draft := w.recon.Sources().Draft
	for _, row := range rows {
		if row.PersistedID == 0 || row.Provenance != ProvenanceExisting || row.AssignedTo(w.key.ProgramID) {
			owned = append(owned, row)
			continue
		}
		for _, d := range draft {
			if Matches(d, row) {
				edited = append(edited, row)
				break
			}
		}
	}
	return owned, edited
}

func stamp(src *Sources, row Item, id int64, programID string) {
	for _, list := range []*[]Item{&src.Existing, &src.Batch, &src.Draft} {
		for i := range *list {
			it := &(*list)[i]
			if !Matches(*it, row) {
				continue
			}
			if it.PersistedID == 0 && id > 0 {
				it.PersistedID = id
			}
			if !it.AssignedTo(programID) {
				it.Assignments = append(it.Assignments, programID)
			}
		}
	}
}

// UsageReport summarizes a usage refresh.
type UsageReport struct {
	Requested int     `json:"requested"`
	Fetched   int     `json:"fetched"`
	Failed    []int64 `json:"failed"`
}

// RefreshUsage fetches per-item usage in chunks. Chunks run concurrently and
// merge their results as they finish; failed lookups are logged and
// reported, never fatal.
func (w *Workspace) RefreshUsage(ctx context.Context, chunkSize int) UsageReport {
	if chunkSize <= 0 {
		chunkSize = DefaultUsageChunk
	}
	var ids []int64
	for _, it := range w.recon.Items() {
		if it.PersistedID > 0 {
			ids = append(ids, it.PersistedID)
		}
	}
	report := UsageReport{Requested: len(ids), Failed: []int64{}}
	if len(ids) == 0 {
		return report
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallel)
	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		g.Go(func() error {
			for _, id := range chunk {
				programs, err := w.client.Usage(gctx, w.key.CoachID, id)
				if err != nil {
					w.logger.Warn("usage lookup failed", "item_id", id, "error", err)
					mu.Lock()
					report.Failed = append(report.Failed, id)
					mu.Unlock()
					continue
				}
				if !w.storeUsage(id, programs) {
					continue
				}
				mu.Lock()
				report.Fetched++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i] < report.Failed[j] })
	return report
}

// storeUsage records a lookup unless the row left the list while it was in
// flight. The check runs under usageMu so it cannot interleave with
// removeRows or ResetDraft clearing the entry.
func (w *Workspace) storeUsage(id int64, programs []string) bool {
	w.usageMu.Lock()
	defer w.usageMu.Unlock()
	for _, it := range w.recon.Items() {
		if it.PersistedID == id {
			w.usage[id] = programs
			return true
		}
	}
	return false
}

// Usage returns the programs referencing a persisted item, if fetched.
func (w *Workspace) Usage(id int64) ([]string, bool) {
	w.usageMu.RLock()
	defer w.usageMu.RUnlock()
	programs, ok := w.usage[id]
	return programs, ok
}

// ResetDraft tears the workspace down: the cached draft is dropped and the
// next Open starts from the persisted catalog.
func (w *Workspace) ResetDraft(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.drafts != nil {
		if err := w.drafts.Reset(ctx, w.key.DraftKey()); err != nil {
			return fmt.Errorf("reset draft: %w", err)
		}
	}
	w.recon.Reset()
	w.opened = false
	w.usageMu.Lock()
	w.usage = make(map[int64][]string)
	w.usageMu.Unlock()
	return nil
}

func (w *Workspace) persistDraft(ctx context.Context, items []Item) {
	if w.drafts == nil {
		return
	}
	if err := w.drafts.Save(ctx, w.key.DraftKey(), items); err != nil {
		w.logger.Warn("draft cache save failed", "error", err)
	}
}

func upsertDraft(src *Sources, it Item) {
	for i := range src.Draft {
		if Matches(src.Draft[i], it) {
			src.Draft[i] = it
			return
		}
	}
	src.Draft = append(src.Draft, it)
}

func findIn(items []Item, identity string) (Item, error) {
	for _, it := range items {
		if HasIdentity(it, identity) {
			return it, nil
		}
	}
	return Item{}, ErrNotFound
}
