// Package ingest turns uploaded tabular files into tagged, normalized
// catalog rows.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"coachcatalog/api/internal/catalog"
	"coachcatalog/api/internal/vocab"
	"github.com/google/uuid"
)

// State of the ingestion state machine.
type State string

const (
	StateIdle       State = "idle"
	StateParsing    State = "parsing"
	StateRejected   State = "rejected"
	StateValidating State = "validating"
	StateMerging    State = "merging"
)

// Rejection reasons carried by transitions into StateRejected.
const (
	ReasonSchema = "schema"
	ReasonEmpty  = "empty"
	ReasonParse  = "parse-error"
	ReasonQuota  = "quota"
)

// Event describes one state transition.
type Event struct {
	Category catalog.Category
	FileName string
	From     State
	To       State
	Reason   string
	Accepted int
	Dropped  int
}

type Options struct {
	Vocabulary *vocab.Vocabulary
	Logger     *slog.Logger
	Observer   func(Event)
	Now        func() time.Time
	NewID      func() string
}

// Pipeline runs uploads through parsing, validation and quota evaluation.
// It implements catalog.Ingester.
type Pipeline struct {
	vocab    *vocab.Vocabulary
	logger   *slog.Logger
	observer func(Event)
	now      func() time.Time
	newID    func() string

	mu    sync.Mutex
	state State
}

func New(opts Options) *Pipeline {
	p := &Pipeline{
		vocab:    opts.Vocabulary,
		logger:   opts.Logger,
		observer: opts.Observer,
		now:      opts.Now,
		newID:    opts.NewID,
		state:    StateIdle,
	}
	if p.vocab == nil {
		p.vocab = vocab.Default()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	return p
}

// State returns the state the last run ended in.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) transition(ev Event) {
	p.mu.Lock()
	ev.From = p.state
	p.state = ev.To
	p.mu.Unlock()
	if p.observer != nil {
		p.observer(ev)
	}
}

// Ingest parses req.Body and returns the rows to merge. Schema, empty and
// parse failures are returned as errors before anything is produced. A
// batch that gets no quota slot at all is returned with no accepted rows
// and a warning naming the file.
func (p *Pipeline) Ingest(ctx context.Context, req catalog.IngestRequest) (catalog.UploadOutcome, error) {
	base := Event{Category: req.Category, FileName: req.FileName}
	reject := func(reason string, err error) (catalog.UploadOutcome, error) {
		ev := base
		ev.To, ev.Reason = StateRejected, reason
		p.transition(ev)
		p.logger.Info("upload rejected", "file", req.FileName, "reason", reason, "error", err)
		return catalog.UploadOutcome{}, err
	}

	ev := base
	ev.To = StateParsing
	p.transition(ev)

	table, err := ReadTable(req.FileName, req.Body)
	if err != nil {
		return reject(ReasonParse, err)
	}
	if len(table.Header) == 0 {
		return reject(ReasonEmpty, &catalog.EmptyInputError{Category: req.Category, FileName: req.FileName})
	}
	index, err := MatchHeader(req.Category, req.FileName, table.Header)
	if err != nil {
		return reject(ReasonSchema, err)
	}
	if len(table.Rows) == 0 {
		return reject(ReasonEmpty, &catalog.EmptyInputError{Category: req.Category, FileName: req.FileName})
	}
	if err := ctx.Err(); err != nil {
		return reject(ReasonParse, err)
	}

	ev = base
	ev.To = StateValidating
	p.transition(ev)

	batch := catalog.UploadBatch{ID: p.newID(), FileName: req.FileName, Timestamp: p.now().UTC()}
	tag := catalog.BatchTag{ID: batch.ID, FileName: batch.FileName, Timestamp: batch.Timestamp}
	rows := make([]catalog.Item, 0, len(table.Rows))
	flagged := 0
	for i, rec := range table.Rows {
		it, issues := MapRow(req.Category, RowOf(index, rec), p.vocab)
		it.BatchRowID = fmt.Sprintf("%s:%d", batch.ID, i+1)
		t := tag
		it.Batch = &t
		it.Identity = catalog.IdentityOf(it, -1)
		if len(issues) > 0 {
			flagged++
		}
		rows = append(rows, it)
	}

	outcome := catalog.UploadOutcome{Parsed: len(rows), Warnings: []string{}}
	slots := catalog.EvaluateSlots(len(req.Visible), len(rows), req.Limit)
	if slots.Allowed == 0 {
		outcome.Batch = batch
		outcome.Dropped = len(rows)
		outcome.Duplicates = catalog.FindDuplicates(req.Visible)
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf(
			"Se rechazó %q: alcanzaste el límite de %d %s de tu plan.", req.FileName, req.Limit, req.Category.Label()))
		ev = base
		ev.To, ev.Reason, ev.Dropped = StateRejected, ReasonQuota, len(rows)
		p.transition(ev)
		return outcome, nil
	}
	accepted := rows[:slots.Allowed]
	if slots.Blocked > 0 {
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf(
			"Se agregaron %d de %d filas de %q; %d quedaron fuera por el límite de %d %s de tu plan.",
			slots.Allowed, len(rows), req.FileName, slots.Blocked, req.Limit, req.Category.Label()))
	}
	if flagged > 0 {
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("%d filas tienen observaciones.", flagged))
	}

	ev = base
	ev.To = StateMerging
	p.transition(ev)

	union := make([]catalog.Item, 0, len(req.Visible)+len(accepted))
	union = append(union, req.Visible...)
	union = append(union, accepted...)
	outcome.Duplicates = catalog.FindDuplicates(union)
	for _, it := range accepted {
		batch.RowIDs = append(batch.RowIDs, it.Identity)
	}
	outcome.Batch = batch
	outcome.Accepted = accepted
	outcome.Dropped = slots.Blocked

	ev = base
	ev.To, ev.Accepted, ev.Dropped = StateIdle, len(accepted), slots.Blocked
	p.transition(ev)
	p.logger.Info("upload parsed", "file", req.FileName, "batch_id", batch.ID,
		"rows", len(rows), "accepted", len(accepted), "dropped", slots.Blocked,
		"flagged", flagged, "duplicates", len(outcome.Duplicates.Names))
	return outcome, nil
}
