// Package catalog holds the canonical catalog item model and the pure engine
// pieces built on it: identity resolution, duplicate detection, quota
// evaluation, multi-source reconciliation and selection bookkeeping.
package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Category selects the attribute set of an item.
type Category string

const (
	CategoryExercise Category = "exercise"
	CategoryMeal     Category = "meal"
)

// ParseCategory accepts the canonical names plus their Spanish labels.
func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "exercise", "exercises", "ejercicio", "ejercicios", "fitness":
		return CategoryExercise, nil
	case "meal", "meals", "comida", "comidas", "nutrition", "nutricion":
		return CategoryMeal, nil
	default:
		return "", fmt.Errorf("unknown category %q", raw)
	}
}

// Label is the user-facing name of the category.
func (c Category) Label() string {
	if c == CategoryMeal {
		return "comidas"
	}
	return "ejercicios"
}

// Provenance records where a row came from.
type Provenance string

const (
	ProvenanceExisting Provenance = "existing"
	ProvenanceBatch    Provenance = "batch"
	ProvenanceManual   Provenance = "manual"
)

// VideoRef points at the media attached to an item.
type VideoRef struct {
	URL        string `json:"url"`
	Provider   string `json:"provider,omitempty"`
	ProviderID string `json:"providerId,omitempty"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	FileName   string `json:"fileName,omitempty"`
}

// BatchTag identifies the upload a row was parsed from.
type BatchTag struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	Timestamp time.Time `json:"timestamp"`
}

// Attributes is the category-specific attribute bag. It is implemented only
// by *ExerciseAttrs and *MealAttrs.
type Attributes interface {
	Category() Category
	clone() Attributes
}

// ExerciseAttrs are the attributes of an exercise.
type ExerciseAttrs struct {
	DurationMin  int      `json:"durationMin,omitempty"`
	Intensity    string   `json:"intensity,omitempty"`
	ExerciseType string   `json:"exerciseType,omitempty"`
	Equipment    []string `json:"equipment,omitempty"`
	BodyParts    []string `json:"bodyParts,omitempty"`
	SetDetail    string   `json:"setDetail,omitempty"`
}

func (*ExerciseAttrs) Category() Category { return CategoryExercise }

func (a *ExerciseAttrs) clone() Attributes {
	c := *a
	c.Equipment = cloneStrings(a.Equipment)
	c.BodyParts = cloneStrings(a.BodyParts)
	return &c
}

// MealAttrs are the attributes of a meal.
type MealAttrs struct {
	Calories    float64  `json:"calories,omitempty"`
	ProteinG    float64  `json:"proteinG,omitempty"`
	CarbsG      float64  `json:"carbsG,omitempty"`
	FatG        float64  `json:"fatG,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
	Servings    int      `json:"servings,omitempty"`
	Minutes     int      `json:"minutes,omitempty"`
}

func (*MealAttrs) Category() Category { return CategoryMeal }

func (a *MealAttrs) clone() Attributes {
	c := *a
	c.Ingredients = cloneStrings(a.Ingredients)
	return &c
}

// Item is the canonical unit of the catalog.
type Item struct {
	Identity    string
	PersistedID int64
	BatchRowID  string
	TempID      string
	Category    Category
	Name        string
	Description string
	Attrs       Attributes
	Video       *VideoRef
	Active      bool
	Provenance  Provenance
	Batch       *BatchTag
	Issues      []string
	Assignments []string
}

// Exercise returns the exercise attributes, or nil for other categories.
func (it Item) Exercise() *ExerciseAttrs {
	a, _ := it.Attrs.(*ExerciseAttrs)
	return a
}

// Meal returns the meal attributes, or nil for other categories.
func (it Item) Meal() *MealAttrs {
	a, _ := it.Attrs.(*MealAttrs)
	return a
}

// Clone returns a deep copy so callers never share slices with the engine.
func (it Item) Clone() Item {
	c := it
	if it.Attrs != nil {
		c.Attrs = it.Attrs.clone()
	}
	if it.Video != nil {
		v := *it.Video
		c.Video = &v
	}
	if it.Batch != nil {
		b := *it.Batch
		c.Batch = &b
	}
	c.Issues = cloneStrings(it.Issues)
	c.Assignments = cloneStrings(it.Assignments)
	return c
}

// AssignedTo reports whether the item is referenced by programID.
func (it Item) AssignedTo(programID string) bool {
	for _, p := range it.Assignments {
		if p == programID {
			return true
		}
	}
	return false
}

// NewAttributes returns an empty attribute bag for the category.
func NewAttributes(c Category) Attributes {
	if c == CategoryMeal {
		return &MealAttrs{}
	}
	return &ExerciseAttrs{}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// SetScheme is the unpacked form of an exercise set detail.
type SetScheme struct {
	Sets        int `json:"sets"`
	Reps        int `json:"reps"`
	RestSeconds int `json:"restSeconds"`
}

var setDetailPattern = regexp.MustCompile(`^\s*(\d+)\s*[xX×]\s*(\d+)\s*(?:/\s*(\d+)\s*s(?:eg)?)?\s*$`)

// PackSetDetail renders sets/reps/rest as "4x12 / 60s".
func PackSetDetail(s SetScheme) string {
	if s.Sets <= 0 && s.Reps <= 0 {
		return ""
	}
	out := fmt.Sprintf("%dx%d", s.Sets, s.Reps)
	if s.RestSeconds > 0 {
		out += fmt.Sprintf(" / %ds", s.RestSeconds)
	}
	return out
}

// UnpackSetDetail parses a packed set detail back into discrete fields.
func UnpackSetDetail(detail string) (SetScheme, bool) {
	m := setDetailPattern.FindStringSubmatch(detail)
	if m == nil {
		return SetScheme{}, false
	}
	sets, _ := strconv.Atoi(m[1])
	reps, _ := strconv.Atoi(m[2])
	rest := 0
	if m[3] != "" {
		rest, _ = strconv.Atoi(m[3])
	}
	return SetScheme{Sets: sets, Reps: reps, RestSeconds: rest}, true
}
