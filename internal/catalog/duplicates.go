package catalog

import (
	"fmt"

	"coachcatalog/api/internal/vocab"
)

// DuplicateReport lists names shared by two or more visible rows.
type DuplicateReport struct {
	Names       []string `json:"names"`
	Diagnostics []string `json:"diagnostics"`
}

// Empty reports whether no duplicates were found.
func (r DuplicateReport) Empty() bool { return len(r.Names) == 0 }

// FindDuplicates groups items by folded name. Each duplicate group yields
// one diagnostic spanning the lowest and highest 1-based row positions.
// Groups are reported in order of their first occurrence.
func FindDuplicates(items []Item) DuplicateReport {
	type group struct {
		name      string
		positions []int
	}
	var order []string
	groups := make(map[string]*group)
	for i, it := range items {
		key := vocab.Fold(it.Name)
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &group{name: it.Name}
			groups[key] = g
			order = append(order, key)
		}
		g.positions = append(g.positions, i+1)
	}

	report := DuplicateReport{Names: []string{}, Diagnostics: []string{}}
	for _, key := range order {
		g := groups[key]
		if len(g.positions) < 2 {
			continue
		}
		report.Names = append(report.Names, g.name)
		report.Diagnostics = append(report.Diagnostics, rangeDiagnostic(g.positions))
	}
	return report
}

func rangeDiagnostic(positions []int) string {
	lo, hi := positions[0], positions[0]
	for _, p := range positions[1:] {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	return fmt.Sprintf("fila nro %d-%d mismo nombre", lo, hi)
}
