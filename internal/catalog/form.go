package catalog

import (
	"fmt"
	"strings"

	"coachcatalog/api/internal/vocab"
)

// Form carries the discrete fields of the create/edit form. List fields are
// free text and go through the vocabulary on submit.
type Form struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	DurationMin  int    `json:"durationMin,omitempty"`
	Intensity    string `json:"intensity,omitempty"`
	ExerciseType string `json:"exerciseType,omitempty"`
	Equipment    string `json:"equipment,omitempty"`
	BodyParts    string `json:"bodyParts,omitempty"`
	Sets         int    `json:"sets,omitempty"`
	Reps         int    `json:"reps,omitempty"`
	RestSeconds  int    `json:"restSeconds,omitempty"`
	// SetDetail is accepted verbatim when Sets and Reps are empty.
	SetDetail string `json:"setDetail,omitempty"`

	Calories    float64 `json:"calories,omitempty"`
	ProteinG    float64 `json:"proteinG,omitempty"`
	CarbsG      float64 `json:"carbsG,omitempty"`
	FatG        float64 `json:"fatG,omitempty"`
	Ingredients string  `json:"ingredients,omitempty"`
	Servings    int     `json:"servings,omitempty"`
	Minutes     int     `json:"minutes,omitempty"`
}

// FormOf pre-fills a form from it, unpacking the set detail.
func FormOf(it Item) Form {
	f := Form{Name: it.Name, Description: it.Description}
	switch a := it.Attrs.(type) {
	case *ExerciseAttrs:
		f.DurationMin = a.DurationMin
		f.Intensity = a.Intensity
		f.ExerciseType = a.ExerciseType
		f.Equipment = strings.Join(a.Equipment, ", ")
		f.BodyParts = strings.Join(a.BodyParts, ", ")
		if scheme, ok := UnpackSetDetail(a.SetDetail); ok {
			f.Sets, f.Reps, f.RestSeconds = scheme.Sets, scheme.Reps, scheme.RestSeconds
		} else {
			f.SetDetail = a.SetDetail
		}
	case *MealAttrs:
		f.Calories = a.Calories
		f.ProteinG = a.ProteinG
		f.CarbsG = a.CarbsG
		f.FatG = a.FatG
		f.Ingredients = strings.Join(a.Ingredients, ", ")
		f.Servings = a.Servings
		f.Minutes = a.Minutes
	}
	return f
}

// Normalize builds the attribute bag for category from f, resolving the
// controlled vocabulary. Issues are returned, never raised.
func Normalize(category Category, f Form, v *vocab.Vocabulary) (Attributes, []string) {
	var issues []string
	if category == CategoryMeal {
		a := &MealAttrs{
			Calories:    f.Calories,
			ProteinG:    f.ProteinG,
			CarbsG:      f.CarbsG,
			FatG:        f.FatG,
			Ingredients: splitFree(f.Ingredients),
			Servings:    f.Servings,
			Minutes:     f.Minutes,
		}
		if a.Calories < 0 || a.ProteinG < 0 || a.CarbsG < 0 || a.FatG < 0 {
			issues = append(issues, "los valores nutricionales no pueden ser negativos")
		}
		return a, issues
	}

	a := &ExerciseAttrs{
		DurationMin:  f.DurationMin,
		ExerciseType: v.Types.Resolve(f.ExerciseType),
	}
	if a.DurationMin < 0 {
		issues = append(issues, fmt.Sprintf("duración inválida: %d", f.DurationMin))
	}
	intensity := vocab.ResolveIntensity(f.Intensity)
	a.Intensity = intensity.Value
	if intensity.Issue != "" {
		issues = append(issues, intensity.Issue)
	}
	a.Equipment = v.Equipment.ResolveList(f.Equipment).Valid
	parts := v.BodyParts.ResolveList(f.BodyParts)
	a.BodyParts = parts.Valid
	for _, bad := range parts.Invalid {
		issues = append(issues, fmt.Sprintf("parte del cuerpo inválida: %q", bad))
	}
	if f.Sets > 0 || f.Reps > 0 {
		a.SetDetail = PackSetDetail(SetScheme{Sets: f.Sets, Reps: f.Reps, RestSeconds: f.RestSeconds})
	} else {
		a.SetDetail = strings.TrimSpace(f.SetDetail)
	}
	return a, issues
}

func splitFree(raw string) []string {
	var out []string
	for _, tok := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ',' || r == '\n' || r == '\r'
	}) {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
