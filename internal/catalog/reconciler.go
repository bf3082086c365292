package catalog

import (
	"sync"
)

// Intent is the last local intent recorded against the catalog. It gates
// how background reloads of the persisted catalog are applied.
type Intent int

const (
	// IntentPristine: nothing local happened yet; reloads apply as-is.
	IntentPristine Intent = iota
	// IntentTouched: the user changed the catalog; empty reloads are ignored.
	IntentTouched
	// IntentDeleted: a hard delete just completed; the next reload is skipped.
	IntentDeleted
)

func (i Intent) String() string {
	switch i {
	case IntentTouched:
		return "touched"
	case IntentDeleted:
		return "deleted"
	default:
		return "pristine"
	}
}

// ReloadTicket is issued before a background reload is requested.
type ReloadTicket struct {
	generation uint64
}

// ReloadOutcome says what ApplyReload did with a response.
type ReloadOutcome string

const (
	ReloadApplied       ReloadOutcome = "applied"
	ReloadStale         ReloadOutcome = "stale"
	ReloadSkippedDelete ReloadOutcome = "skipped_after_delete"
	ReloadEmptyIgnored  ReloadOutcome = "empty_ignored"
)

// Reconciler owns the canonical list. Every local mutation bumps a
// generation counter; reload responses issued under an older generation are
// discarded.
type Reconciler struct {
	mu         sync.Mutex
	sources    Sources
	current    []Item
	intent     Intent
	generation uint64
}

func NewReconciler() *Reconciler {
	return &Reconciler{current: []Item{}}
}

// Items returns a copy of the canonical list.
func (r *Reconciler) Items() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneItems(r.current)
}

// Sources returns a copy of the current inputs.
func (r *Reconciler) Sources() Sources {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sources.Clone()
}

func (r *Reconciler) Intent() Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.intent
}

func (r *Reconciler) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Find returns the canonical row with the given identity.
func (r *Reconciler) Find(identity string) (Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.current {
		if HasIdentity(it, identity) {
			return it.Clone(), true
		}
	}
	return Item{}, false
}

// Load seeds the reconciler without recording a local intent.
func (r *Reconciler) Load(src Sources) []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = src.Clone()
	r.current = Merge(r.current, r.sources)
	return cloneItems(r.current)
}

// Update applies a local mutation to the sources and re-merges.
func (r *Reconciler) Update(fn func(src *Sources)) []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.sources)
	r.generation++
	if r.intent == IntentPristine {
		r.intent = IntentTouched
	}
	r.current = Merge(r.current, r.sources)
	return cloneItems(r.current)
}

// Restore rolls the sources back to snap after a failed confirmation.
func (r *Reconciler) Restore(snap Sources) []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = snap.Clone()
	r.generation++
	r.current = Merge(r.current, r.sources)
	return cloneItems(r.current)
}

// Remove drops every row matching one of identities from all sources and
// latches IntentDeleted. It must only be called once the server confirmed
// the deletion.
func (r *Reconciler) Remove(identities []string) []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(identities)
	r.intent = IntentDeleted
	r.current = Merge(r.current, r.sources)
	return cloneItems(r.current)
}

// Discard drops rows that never reached the server.
func (r *Reconciler) Discard(identities []string) []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(identities)
	if r.intent == IntentPristine {
		r.intent = IntentTouched
	}
	r.current = Merge(r.current, r.sources)
	return cloneItems(r.current)
}

func (r *Reconciler) removeLocked(identities []string) {
	doomed := make([]Item, 0, len(identities))
	for _, it := range r.current {
		for _, id := range identities {
			if HasIdentity(it, id) {
				doomed = append(doomed, it)
				break
			}
		}
	}
	drop := func(items []Item) []Item {
		kept := items[:0:0]
		for _, it := range items {
			gone := false
			for _, d := range doomed {
				if Matches(it, d) || (it.Identity != "" && it.Identity == d.Identity) {
					gone = true
					break
				}
			}
			if !gone {
				kept = append(kept, it)
			}
		}
		return kept
	}
	r.sources.Existing = drop(r.sources.Existing)
	r.sources.Batch = drop(r.sources.Batch)
	r.sources.Draft = drop(r.sources.Draft)
	r.generation++
}

// BeginReload issues a ticket for a background reload.
func (r *Reconciler) BeginReload() ReloadTicket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReloadTicket{generation: r.generation}
}

// ApplyReload installs a freshly read persisted catalog. Responses issued
// before a local mutation are stale and ignored. The first reload after a
// local hard delete is swallowed. An empty response never wipes a catalog
// the user has touched.
func (r *Reconciler) ApplyReload(ticket ReloadTicket, existing []Item) (ReloadOutcome, []Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.generation != r.generation {
		if r.intent == IntentDeleted {
			r.intent = IntentTouched
		}
		return ReloadStale, cloneItems(r.current)
	}
	switch r.intent {
	case IntentDeleted:
		r.intent = IntentTouched
		return ReloadSkippedDelete, cloneItems(r.current)
	case IntentTouched:
		if len(existing) == 0 && len(r.sources.Existing) > 0 {
			return ReloadEmptyIgnored, cloneItems(r.current)
		}
	}
	r.sources.Existing = cloneItems(existing)
	r.current = Merge(r.current, r.sources)
	return ReloadApplied, cloneItems(r.current)
}

// Reset clears all state, as on an explicit draft teardown.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = Sources{}
	r.current = []Item{}
	r.intent = IntentPristine
	r.generation++
}
