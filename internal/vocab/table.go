package vocab

import "strings"

// Entry is one canonical term and the synonyms that resolve to it.
type Entry struct {
	Canonical string
	Synonyms  []string
}

// ListResult is the outcome of resolving a list cell.
type ListResult struct {
	Valid   []string
	Invalid []string
}

// Table resolves list tokens against a synonym catalog. A table built with
// allowCustom keeps unmatched tokens as free-form values instead of reporting them.
type Table struct {
	name        string
	allowCustom bool
	canonical   []string
	index       map[string]string
	none        map[string]struct{}
}

// NewTable indexes entries by their folded canonical name and synonyms.
func NewTable(name string, entries []Entry, none []string, allowCustom bool) *Table {
	t := &Table{
		name:        name,
		allowCustom: allowCustom,
		index:       make(map[string]string),
		none:        make(map[string]struct{}),
	}
	for _, e := range entries {
		t.Add(e.Canonical, e.Synonyms...)
	}
	t.AddNone(none...)
	return t
}

// Name identifies the table in diagnostics.
func (t *Table) Name() string { return t.name }

// Canonical lists the canonical terms in insertion order.
func (t *Table) Canonical() []string {
	out := make([]string, len(t.canonical))
	copy(out, t.canonical)
	return out
}

// Add registers synonyms for canonical, creating the term when it is new.
// The singular forms of plural terms are indexed too, so "isquiotibial"
// finds "Isquiotibiales". Tables are not safe for concurrent mutation;
// extend them before use.
func (t *Table) Add(canonical string, synonyms ...string) {
	canonical = strings.TrimSpace(canonical)
	if canonical == "" {
		return
	}
	key := Fold(canonical)
	if existing, ok := t.index[key]; ok {
		canonical = existing
	} else {
		t.canonical = append(t.canonical, canonical)
		t.index[key] = canonical
	}
	t.indexSingulars(key, canonical)
	for _, syn := range synonyms {
		if folded := Fold(syn); folded != "" {
			t.index[folded] = canonical
			t.indexSingulars(folded, canonical)
		}
	}
}

// indexSingulars never overrides a key already taken by an explicit term.
func (t *Table) indexSingulars(folded, canonical string) {
	for _, form := range singularCandidates(folded)[1:] {
		if _, taken := t.index[form]; !taken {
			t.index[form] = canonical
		}
	}
}

// AddNone registers tokens meaning "nothing" (e.g. "ninguno", "sin equipo").
func (t *Table) AddNone(tokens ...string) {
	for _, tok := range tokens {
		if folded := Fold(tok); folded != "" {
			t.none[folded] = struct{}{}
		}
	}
}

// Lookup resolves a single token using an exact-or-singularized match.
func (t *Table) Lookup(token string) (string, bool) {
	folded := Fold(token)
	if folded == "" {
		return "", false
	}
	for _, candidate := range singularCandidates(folded) {
		if canonical, ok := t.index[candidate]; ok {
			return canonical, true
		}
	}
	return "", false
}

// IsNone reports whether token is one of the table's "nothing" synonyms.
func (t *Table) IsNone(token string) bool {
	_, ok := t.none[Fold(token)]
	return ok
}

// ResolveList splits raw on ; , and newlines and resolves every token.
// Results are deduplicated in first-seen order.
func (t *Table) ResolveList(raw string) ListResult {
	var res ListResult
	seen := make(map[string]struct{})
	add := func(value string) {
		key := Fold(value)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		res.Valid = append(res.Valid, value)
	}
	for _, token := range splitTokens(raw) {
		if t.IsNone(token) {
			continue
		}
		if canonical, ok := t.Lookup(token); ok {
			add(canonical)
			continue
		}
		if t.allowCustom {
			add(token)
			continue
		}
		res.Invalid = append(res.Invalid, token)
	}
	return res
}
