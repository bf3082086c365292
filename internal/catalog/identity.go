package catalog

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"coachcatalog/api/internal/vocab"
)

const (
	keyPersisted = "id:"
	keyBatchRow  = "row:"
	keyTemp      = "tmp:"
	keyHash      = "hash:"
)

// IdentityOf resolves the identity key of it. Signals are consulted in a
// fixed order: persisted id, batch-row id, temporary id, content hash. The
// position hint only disambiguates content hashes and is ignored when < 0.
func IdentityOf(it Item, hint int) string {
	switch {
	case it.PersistedID > 0:
		return keyPersisted + strconv.FormatInt(it.PersistedID, 10)
	case it.BatchRowID != "":
		return keyBatchRow + it.BatchRowID
	case it.TempID != "":
		return keyTemp + it.TempID
	}
	key := keyHash + ContentHash(it)
	if hint >= 0 {
		key += "@" + strconv.Itoa(hint)
	}
	return key
}

// ContentHash digests the folded name, description, duration and calories.
func ContentHash(it Item) string {
	var duration, calories string
	switch a := it.Attrs.(type) {
	case *ExerciseAttrs:
		duration = strconv.Itoa(a.DurationMin)
	case *MealAttrs:
		calories = strconv.FormatFloat(a.Calories, 'f', -1, 64)
	}
	sum := sha1.Sum([]byte(strings.Join([]string{
		vocab.Fold(it.Name),
		strings.TrimSpace(it.Description),
		duration,
		calories,
	}, "|")))
	return hex.EncodeToString(sum[:])
}

// signalKeys lists every id signal carried by it, strongest first.
func signalKeys(it Item) []string {
	keys := make([]string, 0, 3)
	if it.PersistedID > 0 {
		keys = append(keys, keyPersisted+strconv.FormatInt(it.PersistedID, 10))
	}
	if it.BatchRowID != "" {
		keys = append(keys, keyBatchRow+it.BatchRowID)
	}
	if it.TempID != "" {
		keys = append(keys, keyTemp+it.TempID)
	}
	return keys
}

// Matches reports whether a and b share any id signal.
func Matches(a, b Item) bool {
	for _, ka := range signalKeys(a) {
		for _, kb := range signalKeys(b) {
			if ka == kb {
				return true
			}
		}
	}
	return false
}

// HasIdentity reports whether key names it through any of its signals.
func HasIdentity(it Item, key string) bool {
	if it.Identity == key {
		return true
	}
	for _, k := range signalKeys(it) {
		if k == key {
			return true
		}
	}
	return false
}

// Anchor freezes the identity of items that carry no id signal by giving
// them a temporary id derived from their content hash. Later edits to the
// name or description therefore keep the same identity. Identical content
// within one list is disambiguated by position.
func Anchor(items []Item) []Item {
	out := make([]Item, len(items))
	seen := make(map[string]int)
	for i, it := range items {
		c := it.Clone()
		if len(signalKeys(c)) == 0 {
			digest := ContentHash(c)
			if n := seen[digest]; n > 0 {
				c.TempID = "h-" + digest[:16] + "-" + strconv.Itoa(i)
			} else {
				c.TempID = "h-" + digest[:16]
			}
			seen[digest]++
		}
		c.Identity = IdentityOf(c, -1)
		out[i] = c
	}
	return out
}
