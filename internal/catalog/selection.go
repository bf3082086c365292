package catalog

import "sort"

// Selection is a set of row identities.
type Selection struct {
	ids map[string]struct{}
}

func NewSelection(ids ...string) *Selection {
	s := &Selection{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *Selection) Toggle(id string) bool {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) Len() int { return len(s.ids) }

func (s *Selection) Clear() { s.ids = make(map[string]struct{}) }

// SelectAll selects every row of items.
func (s *Selection) SelectAll(items []Item) {
	for _, it := range items {
		s.ids[it.Identity] = struct{}{}
	}
}

// SelectPage selects the rows visible in w.
func (s *Selection) SelectPage(w Window) {
	s.SelectAll(w.Items)
}

// Prune drops identities that are no longer present in items and returns
// how many were dropped.
func (s *Selection) Prune(items []Item) int {
	present := make(map[string]struct{}, len(items))
	for _, it := range items {
		present[it.Identity] = struct{}{}
	}
	dropped := 0
	for id := range s.ids {
		if _, ok := present[id]; !ok {
			delete(s.ids, id)
			dropped++
		}
	}
	return dropped
}

// IDs returns the selected identities in canonical order of items; ids not
// present in items follow in lexical order.
func (s *Selection) IDs(items []Item) []string {
	out := make([]string, 0, len(s.ids))
	seen := make(map[string]struct{}, len(s.ids))
	for _, it := range items {
		if _, ok := s.ids[it.Identity]; ok {
			out = append(out, it.Identity)
			seen[it.Identity] = struct{}{}
		}
	}
	var rest []string
	for id := range s.ids {
		if _, ok := seen[id]; !ok {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Window is one page of the canonical list.
type Window struct {
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	Total      int    `json:"total"`
	TotalPages int    `json:"totalPages"`
	Offset     int    `json:"offset"`
	Items      []Item `json:"items"`
}

const DefaultPageSize = 25

// Paginate returns the 1-based page of items. Out of range pages clamp to
// the nearest valid page.
func Paginate(items []Item, page, size int) Window {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	window := make([]Item, 0, end-start)
	window = append(window, items[start:end]...)
	return Window{
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pages,
		Offset:     start,
		Items:      window,
	}
}
