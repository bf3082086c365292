package catalog

import (
	"sort"
)

// Sources are the three independently mutating inputs of a merge.
type Sources struct {
	// Existing is the persisted catalog as last read from the server.
	Existing []Item `json:"existing"`
	// Batch holds parsed upload rows that are not yet persisted.
	Batch []Item `json:"batch"`
	// Draft mirrors local edits and manual rows kept in the session cache.
	Draft []Item `json:"draft"`
}

// Clone deep-copies every source.
func (s Sources) Clone() Sources {
	return Sources{
		Existing: cloneItems(s.Existing),
		Batch:    cloneItems(s.Batch),
		Draft:    cloneItems(s.Draft),
	}
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

const (
	layerExisting = iota
	layerBatch
	layerDraft
	layerCount
)

type mergeSlot struct {
	layers  [layerCount]*Item
	seq     int
	hashKey string
	dead    bool
}

// Merge produces the canonical list: one row per identity. Rows keep their
// position in previous; rows new to previous are appended in existing,
// batch, draft order. Draft content wins over batch, batch over existing,
// but an inactive flag on the persisted copy always wins. Merging the output
// again with unchanged sources yields the same list.
func Merge(previous []Item, src Sources) []Item {
	var slots []*mergeSlot
	byKey := make(map[string]*mergeSlot)

	add := func(layer int, it Item, pos int) {
		keys := signalKeys(it)
		hashKey := ""
		if len(keys) == 0 {
			hashKey = IdentityOf(it, pos)
			keys = []string{hashKey}
		}

		var target *mergeSlot
		var others []*mergeSlot
		for _, k := range keys {
			s := byKey[k]
			if s == nil || s == target {
				continue
			}
			if target == nil {
				target = s
				continue
			}
			if s.seq < target.seq {
				target, s = s, target
			}
			others = append(others, s)
		}
		if target == nil {
			target = &mergeSlot{seq: len(slots), hashKey: hashKey}
			slots = append(slots, target)
		}
		for _, o := range others {
			absorb(target, o)
			for k, s := range byKey {
				if s == o {
					byKey[k] = target
				}
			}
		}

		c := it.Clone()
		target.layers[layer] = &c
		for _, k := range keys {
			byKey[k] = target
		}
	}

	for i, it := range src.Existing {
		add(layerExisting, it, i)
	}
	for i, it := range src.Batch {
		add(layerBatch, it, i)
	}
	for i, it := range src.Draft {
		add(layerDraft, it, i)
	}

	prevIndex := make(map[string]int, len(previous)*2)
	for i, it := range previous {
		if it.Identity != "" {
			if _, ok := prevIndex[it.Identity]; !ok {
				prevIndex[it.Identity] = i
			}
		}
		for _, k := range signalKeys(it) {
			if _, ok := prevIndex[k]; !ok {
				prevIndex[k] = i
			}
		}
	}

	type ranked struct {
		item  Item
		order int
		seq   int
	}
	out := make([]ranked, 0, len(slots))
	for _, s := range slots {
		if s.dead {
			continue
		}
		it := compose(s)
		order := len(previous) + s.seq
		for _, k := range slotKeys(s, it) {
			if idx, ok := prevIndex[k]; ok && idx < order {
				order = idx
			}
		}
		out = append(out, ranked{item: it, order: order, seq: s.seq})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].order != out[j].order {
			return out[i].order < out[j].order
		}
		return out[i].seq < out[j].seq
	})

	items := make([]Item, len(out))
	for i, r := range out {
		items[i] = r.item
	}
	return items
}

func absorb(target, other *mergeSlot) {
	for l := range other.layers {
		if target.layers[l] == nil {
			target.layers[l] = other.layers[l]
		}
	}
	other.dead = true
}

func slotKeys(s *mergeSlot, composed Item) []string {
	keys := signalKeys(composed)
	for _, layer := range s.layers {
		if layer != nil {
			keys = append(keys, signalKeys(*layer)...)
		}
	}
	if s.hashKey != "" {
		keys = append(keys, s.hashKey)
	}
	return keys
}

func compose(s *mergeSlot) Item {
	existing, batch, draft := s.layers[layerExisting], s.layers[layerBatch], s.layers[layerDraft]

	var top *Item
	for _, layer := range []*Item{draft, batch, existing} {
		if layer != nil {
			top = layer
			break
		}
	}
	out := top.Clone()

	// First write wins: the persisted copy is authoritative for the id.
	out.PersistedID = 0
	for _, layer := range []*Item{existing, batch, draft} {
		if layer != nil && layer.PersistedID > 0 {
			out.PersistedID = layer.PersistedID
			break
		}
	}
	for _, layer := range []*Item{draft, batch, existing} {
		if layer == nil {
			continue
		}
		if out.BatchRowID == "" && layer.BatchRowID != "" {
			out.BatchRowID = layer.BatchRowID
		}
		if out.TempID == "" && layer.TempID != "" {
			out.TempID = layer.TempID
		}
		if out.Batch == nil && layer.Batch != nil {
			b := *layer.Batch
			out.Batch = &b
		}
	}
	if existing != nil {
		out.Assignments = cloneStrings(existing.Assignments)
		if !existing.Active {
			out.Active = false
		}
	}

	if s.hashKey != "" && len(signalKeys(out)) == 0 {
		out.Identity = s.hashKey
	} else {
		out.Identity = IdentityOf(out, -1)
	}
	return out
}
