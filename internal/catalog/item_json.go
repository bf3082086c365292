package catalog

import (
	"encoding/json"
	"fmt"
)

type itemJSON struct {
	Identity    string          `json:"identity"`
	PersistedID int64           `json:"persistedId,omitempty"`
	BatchRowID  string          `json:"batchRowId,omitempty"`
	TempID      string          `json:"tempId,omitempty"`
	Category    Category        `json:"category"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Attrs       json.RawMessage `json:"attributes,omitempty"`
	Video       *VideoRef       `json:"video,omitempty"`
	Active      bool            `json:"isActive"`
	Provenance  Provenance      `json:"provenance"`
	Batch       *BatchTag       `json:"batch,omitempty"`
	Issues      []string        `json:"validationIssues,omitempty"`
	Assignments []string        `json:"assignments,omitempty"`
}

func (it Item) MarshalJSON() ([]byte, error) {
	out := itemJSON{
		Identity:    it.Identity,
		PersistedID: it.PersistedID,
		BatchRowID:  it.BatchRowID,
		TempID:      it.TempID,
		Category:    it.Category,
		Name:        it.Name,
		Description: it.Description,
		Video:       it.Video,
		Active:      it.Active,
		Provenance:  it.Provenance,
		Batch:       it.Batch,
		Issues:      it.Issues,
		Assignments: it.Assignments,
	}
	if it.Attrs != nil {
		raw, err := json.Marshal(it.Attrs)
		if err != nil {
			return nil, fmt.Errorf("marshal attributes: %w", err)
		}
		out.Attrs = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the attribute bag according to the category field.
func (it *Item) UnmarshalJSON(data []byte) error {
	var in itemJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Category == "" {
		in.Category = CategoryExercise
	}
	if in.Category != CategoryExercise && in.Category != CategoryMeal {
		return fmt.Errorf("unknown category %q", in.Category)
	}
	attrs := NewAttributes(in.Category)
	if len(in.Attrs) > 0 && string(in.Attrs) != "null" {
		if err := json.Unmarshal(in.Attrs, attrs); err != nil {
			return fmt.Errorf("decode %s attributes: %w", in.Category, err)
		}
	}
	*it = Item{
		Identity:    in.Identity,
		PersistedID: in.PersistedID,
		BatchRowID:  in.BatchRowID,
		TempID:      in.TempID,
		Category:    in.Category,
		Name:        in.Name,
		Description: in.Description,
		Attrs:       attrs,
		Video:       in.Video,
		Active:      in.Active,
		Provenance:  in.Provenance,
		Batch:       in.Batch,
		Issues:      in.Issues,
		Assignments: in.Assignments,
	}
	return nil
}
