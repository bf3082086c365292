package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func persisted(id int64, name string, active bool) Item {
	it := exercise(name, 10)
	it.PersistedID = id
	it.Active = active
	it.Provenance = ProvenanceExisting
	return it
}

func names(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func TestMergePersistedInactiveWins(t *testing.T) {
	existing := persisted(1, "A", false)
	draft := persisted(1, "A", true)

	out := Merge(nil, Sources{Existing: []Item{existing}, Draft: []Item{draft}})
	require.Len(t, out, 1)
	assert.False(t, out[0].Active)
	assert.Equal(t, "id:1", out[0].Identity)
}

func TestMergeDraftInactiveKeptOverActivePersisted(t *testing.T) {
	out := Merge(nil, Sources{
		Existing: []Item{persisted(1, "A", true)},
		Draft:    []Item{persisted(1, "A", false)},
	})
	require.Len(t, out, 1)
	assert.False(t, out[0].Active)
}

func TestMergeDraftContentWins(t *testing.T) {
	local := persisted(1, "Sentadilla goblet", true)
	local.Description = "editada"
	out := Merge(nil, Sources{
		Existing: []Item{persisted(1, "Sentadilla", true)},
		Draft:    []Item{local},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "Sentadilla goblet", out[0].Name)
	assert.Equal(t, "editada", out[0].Description)
}

func TestMergeUnifiesRowsSharingAnySignal(t *testing.T) {
	batchRow := exercise("Peso muerto", 15)
	batchRow.BatchRowID = "r1"
	batchRow.Provenance = ProvenanceBatch

	saved := batchRow
	saved.PersistedID = 9

	out := Merge(nil, Sources{
		Existing: []Item{persisted(9, "Peso muerto", true)},
		Batch:    []Item{batchRow},
		Draft:    []Item{saved},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "id:9", out[0].Identity)
	assert.Equal(t, "r1", out[0].BatchRowID)
	assert.Equal(t, ProvenanceBatch, out[0].Provenance)
}

func TestMergeKeepsPreviousOrderAndAppendsNewRows(t *testing.T) {
	src := Sources{Existing: []Item{persisted(1, "A", true), persisted(2, "B", true)}}
	first := Merge(nil, src)
	assert.Equal(t, []string{"A", "B"}, names(first))

	reordered := []Item{first[1], first[0]}
	manual := exercise("C", 5)
	manual.TempID = "t-c"
	src.Draft = []Item{manual}
	src.Existing = []Item{persisted(2, "B", true), persisted(1, "A", true), persisted(3, "D", true)}

	out := Merge(reordered, src)
	assert.Equal(t, []string{"B", "A", "D", "C"}, names(out))
}

func TestMergeIsIdempotent(t *testing.T) {
	manual := exercise("Burpees", 3)
	manual.TempID = "t1"
	row := exercise("Plancha", 2)
	row.BatchRowID = "r1"
	row.Batch = &BatchTag{ID: "b1", FileName: "rutina.csv"}
	src := Sources{
		Existing: []Item{persisted(4, "Remo", false), persisted(5, "Curl", true)},
		Batch:    []Item{row},
		Draft:    []Item{manual, persisted(5, "Curl martillo", true)},
	}

	once := Merge(nil, src)
	twice := Merge(once, src)
	a, err := json.Marshal(once)
	require.NoError(t, err)
	b, err := json.Marshal(twice)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	seen := make(map[string]bool)
	for _, it := range twice {
		assert.False(t, seen[it.Identity], "duplicate identity %s", it.Identity)
		seen[it.Identity] = true
	}
}

func TestMergeDisambiguatesUnanchoredHashes(t *testing.T) {
	out := Merge(nil, Sources{Draft: []Item{exercise("X", 1), exercise("X", 1)}})
	require.Len(t, out, 2)
	assert.NotEqual(t, out[0].Identity, out[1].Identity)
}

func TestReconcilerIgnoresStaleReload(t *testing.T) {
	r := NewReconciler()
	r.Load(Sources{Existing: []Item{persisted(1, "A", true)}})

	ticket := r.BeginReload()
	r.Update(func(src *Sources) {
		edited := persisted(1, "A editado", true)
		src.Draft = append(src.Draft, edited)
	})

	outcome, items := r.ApplyReload(ticket, []Item{persisted(1, "A", true), persisted(2, "B", true)})
	assert.Equal(t, ReloadStale, outcome)
	assert.Equal(t, []string{"A editado"}, names(items))
}

func TestReconcilerSkipsOneReloadAfterDelete(t *testing.T) {
	r := NewReconciler()
	r.Load(Sources{Existing: []Item{persisted(1, "A", true), persisted(2, "B", true)}})

	r.Remove([]string{"id:1"})
	assert.Equal(t, IntentDeleted, r.Intent())

	stale := []Item{persisted(1, "A", true), persisted(2, "B", true)}
	outcome, items := r.ApplyReload(r.BeginReload(), stale)
	assert.Equal(t, ReloadSkippedDelete, outcome)
	assert.Equal(t, []string{"B"}, names(items))
	assert.Equal(t, IntentTouched, r.Intent())

	outcome, items = r.ApplyReload(r.BeginReload(), []Item{persisted(2, "B", true)})
	assert.Equal(t, ReloadApplied, outcome)
	assert.Equal(t, []string{"B"}, names(items))
}

func TestReconcilerEmptyReloadNeverWipesTouchedCatalog(t *testing.T) {
	r := NewReconciler()
	r.Load(Sources{Existing: []Item{persisted(1, "A", true)}})
	r.Update(func(src *Sources) {})

	outcome, items := r.ApplyReload(r.BeginReload(), nil)
	assert.Equal(t, ReloadEmptyIgnored, outcome)
	assert.Len(t, items, 1)

	pristine := NewReconciler()
	pristine.Load(Sources{Existing: []Item{persisted(1, "A", true)}})
	outcome, items = pristine.ApplyReload(pristine.BeginReload(), nil)
	assert.Equal(t, ReloadApplied, outcome)
	assert.Empty(t, items)
}

func TestReconcilerRestoreRollsBack(t *testing.T) {
	r := NewReconciler()
	r.Load(Sources{Existing: []Item{persisted(1, "A", true)}})
	snap := r.Sources()
	r.Update(func(src *Sources) { src.Existing[0].Active = false })
	require.False(t, r.Items()[0].Active)

	items := r.Restore(snap)
	assert.True(t, items[0].Active)
}
