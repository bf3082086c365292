package search

import (
	"errors"
	"sync"
	"testing"

	"coachcatalog/api/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	mu        sync.Mutex
	healthy   bool
	searchErr error
	results   []Result
	indexed   []ItemRecord
	deleted   []int64
	lastQuery Query
}

func (f *fakeIndex) Search(q Query) ([]Result, int, error) {
	f.lastQuery = q
	if f.searchErr != nil {
		return nil, 0, f.searchErr
	}
	return f.results, len(f.results), nil
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) IndexItems(items []ItemRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, items...)
	return nil
}

func (f *fakeIndex) DeleteItems(ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids...)
	return nil
}

func snapshot() []catalog.Item {
	return []catalog.Item{
		{Identity: "id:1", PersistedID: 1, Category: catalog.CategoryExercise, Name: "Press de banca", Active: true,
			Attrs: &catalog.ExerciseAttrs{BodyParts: []string{"Pecho"}}},
		{Identity: "tmp:t1", Category: catalog.CategoryExercise, Name: "Sentadilla búlgara", Active: true,
			Attrs: &catalog.ExerciseAttrs{BodyParts: []string{"Cuádriceps"}}},
		{Identity: "id:2", PersistedID: 2, Category: catalog.CategoryExercise, Name: "Zancada", Description: "Variante de sentadilla", Active: false,
			Attrs: &catalog.ExerciseAttrs{}},
		{Identity: "id:3", PersistedID: 3, Category: catalog.CategoryMeal, Name: "Sentadilla proteica", Active: true,
			Attrs: &catalog.MealAttrs{}},
	}
}

func TestLocalFoldsAccentsAndRanksNameFirst(t *testing.T) {
	results, total := Local(snapshot(), Query{Category: catalog.CategoryExercise, Text: "SENTADILLA"})
	require.Equal(t, 2, total)
	assert.Equal(t, "tmp:t1", results[0].Identity)
	assert.Equal(t, "id:2", results[1].Identity)
}

func TestLocalMatchesTags(t *testing.T) {
	results, total := Local(snapshot(), Query{Text: "cuadriceps"})
	require.Equal(t, 1, total)
	assert.Equal(t, "Sentadilla búlgara", results[0].Name)
}

func TestLocalActiveOnlyAndPaging(t *testing.T) {
	results, total := Local(snapshot(), Query{ActiveOnly: true, Limit: 2, Offset: 1})
	assert.Equal(t, 3, total)
	require.Len(t, results, 2)
	assert.Equal(t, "tmp:t1", results[0].Identity)
	assert.Equal(t, "id:3", results[1].Identity)

	results, _ = Local(snapshot(), Query{Offset: 99})
	assert.Empty(t, results)
}

func TestServiceUsesIndexWhenHealthy(t *testing.T) {
	idx := &fakeIndex{healthy: true, results: []Result{{Identity: "id:9", Name: "Remo"}}}
	svc := NewService(idx, nil)

	resp := svc.Search(Query{CoachID: "coach-1", Text: "remo"}, snapshot())
	assert.Equal(t, "index", resp.Source)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "coach-1", idx.lastQuery.CoachID)
}

func TestServiceFallsBackOnIndexError(t *testing.T) {
	idx := &fakeIndex{healthy: true, searchErr: errors.New("boom")}
	svc := NewService(idx, nil)

	resp := svc.Search(Query{CoachID: "coach-1", Text: "zancada"}, snapshot())
	assert.Equal(t, "local", resp.Source)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "id:2", resp.Results[0].Identity)
}

func TestServiceWithoutIndex(t *testing.T) {
	var m *Meili
	svc := NewService(m, nil)
	resp := svc.Search(Query{CoachID: "c", Text: "nada"}, nil)
	assert.Equal(t, "local", resp.Source)
	assert.NotNil(t, resp.Results)
	assert.Equal(t, 0, resp.Total)

	// no index configured: fire-and-forget calls are no-ops
	svc.Index("c", snapshot())
	svc.Remove([]int64{1})
}

func TestSyncSkipsUnpersistedRows(t *testing.T) {
	idx := &fakeIndex{healthy: true}
	svc := NewService(idx, nil)

	svc.sync("coach-1", snapshot(), []int64{7})
	require.Len(t, idx.indexed, 3)
	assert.Equal(t, "1", idx.indexed[0].ID)
	assert.Equal(t, "coach-1", idx.indexed[0].CoachID)
	assert.Equal(t, []string{"Pecho"}, idx.indexed[0].Tags)
	assert.Equal(t, []int64{7}, idx.deleted)
}

func TestFiltersFor(t *testing.T) {
	f := filtersFor(Query{CoachID: "c1", Category: catalog.CategoryMeal, ActiveOnly: true})
	assert.Equal(t, []string{`coachId = "c1"`, `category = "meal"`, "isActive = true"}, f)
}
