package search

import (
	"sort"
	"strings"

	"coachcatalog/api/internal/catalog"
	"coachcatalog/api/internal/vocab"
)

// Local searches an in-memory item list with folded substring matching.
// Name matches rank before description or tag matches; ties keep list order.
func Local(items []catalog.Item, q Query) ([]Result, int) {
	needle := vocab.Fold(q.Text)
	type hit struct {
		rank int
		pos  int
		item catalog.Item
	}
	var hits []hit
	for i, it := range items {
		if q.Category != "" && it.Category != q.Category {
			continue
		}
		if q.ActiveOnly && !it.Active {
			continue
		}
		rank, ok := matchRank(it, needle)
		if !ok {
			continue
		}
		hits = append(hits, hit{rank: rank, pos: i, item: it})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].rank != hits[b].rank {
			return hits[a].rank < hits[b].rank
		}
		return hits[a].pos < hits[b].pos
	})

	total := len(hits)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if q.Limit > 0 && offset+q.Limit < end {
		end = offset + q.Limit
	}

	results := make([]Result, 0, end-offset)
	for _, h := range hits[offset:end] {
		results = append(results, Result{
			Identity:    h.item.Identity,
			PersistedID: h.item.PersistedID,
			Category:    h.item.Category,
			Name:        h.item.Name,
			Snippet:     h.item.Description,
			Active:      h.item.Active,
		})
	}
	return results, total
}

func matchRank(it catalog.Item, needle string) (int, bool) {
	if needle == "" {
		return 3, true
	}
	name := vocab.Fold(it.Name)
	switch {
	case strings.HasPrefix(name, needle):
		return 0, true
	case strings.Contains(name, needle):
		return 1, true
	case strings.Contains(vocab.Fold(it.Description), needle):
		return 2, true
	}
	rec, _ := RecordOf("", catalog.Item{PersistedID: 1, Category: it.Category, Attrs: it.Attrs})
	for _, tag := range rec.Tags {
		if strings.Contains(vocab.Fold(tag), needle) {
			return 2, true
		}
	}
	return 0, false
}
