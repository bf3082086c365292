// Package search indexes persisted catalog items in Meilisearch and answers
// name queries, falling back to folded substring matching when the index is
// unavailable.
package search

import (
	"strconv"
	"strings"

	"coachcatalog/api/internal/catalog"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Identity    string           `json:"identity"`
	PersistedID int64            `json:"persistedId,omitempty"`
	Category    catalog.Category `json:"category"`
	Name        string           `json:"name"`
	Snippet     string           `json:"snippet"`
	Active      bool             `json:"isActive"`
}

// Query describes a search request.
type Query struct {
	CoachID    string
	Category   catalog.Category
	Text       string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Source  string   `json:"source"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push catalog items into a search index.
type Indexer interface {
	IndexItems(items []ItemRecord) error
	DeleteItems(ids []int64) error
}

// ItemRecord is the data we index for a persisted catalog item.
type ItemRecord struct {
	ID          string   `json:"id"`
	ItemID      int64    `json:"itemId"`
	CoachID     string   `json:"coachId"`
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	IsActive    bool     `json:"isActive"`
}

// RecordOf builds the index record of a persisted item. ok is false for
// rows that have no persisted id yet.
func RecordOf(coachID string, it catalog.Item) (ItemRecord, bool) {
	if it.PersistedID <= 0 {
		return ItemRecord{}, false
	}
	rec := ItemRecord{
		ID:          strconv.FormatInt(it.PersistedID, 10),
		ItemID:      it.PersistedID,
		CoachID:     coachID,
		Category:    string(it.Category),
		Name:        it.Name,
		Description: it.Description,
		IsActive:    it.Active,
		Tags:        []string{},
	}
	if ex := it.Exercise(); ex != nil {
		rec.Tags = append(rec.Tags, ex.BodyParts...)
		rec.Tags = append(rec.Tags, ex.Equipment...)
		if ex.ExerciseType != "" {
			rec.Tags = append(rec.Tags, ex.ExerciseType)
		}
	}
	if meal := it.Meal(); meal != nil {
		rec.Tags = append(rec.Tags, meal.Ingredients...)
	}
	return rec, true
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
