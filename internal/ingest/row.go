package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"coachcatalog/api/internal/catalog"
	"coachcatalog/api/internal/vocab"
)

var numberPattern = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

// Row is one data row addressed by column key.
type Row map[string]string

// RowOf picks the cells of rec named by index.
func RowOf(index map[string]int, rec []string) Row {
	row := make(Row, len(index))
	for key, i := range index {
		if i < len(rec) {
			row[key] = rec[i]
		}
	}
	return row
}

// MapRow normalizes one row into a catalog item. Problems are returned as
// issues and never stop the batch.
func MapRow(category catalog.Category, row Row, v *vocab.Vocabulary) (catalog.Item, []string) {
	var issues []string
	form := catalog.Form{
		Name:        strings.TrimSpace(row[ColName]),
		Description: strings.TrimSpace(row[ColDescription]),
	}
	if form.Name == "" {
		issues = append(issues, "fila sin nombre")
	}

	intField := func(key, label string) int {
		n, ok, issue := parseNumber(row[key], label)
		if issue != "" {
			issues = append(issues, issue)
		}
		if !ok {
			return 0
		}
		return int(n)
	}
	floatField := func(key, label string) float64 {
		n, _, issue := parseNumber(row[key], label)
		if issue != "" {
			issues = append(issues, issue)
		}
		return n
	}

	if category == catalog.CategoryMeal {
		form.Calories = floatField(ColCalories, "calorías")
		form.ProteinG = floatField(ColProtein, "proteínas")
		form.CarbsG = floatField(ColCarbs, "carbohidratos")
		form.FatG = floatField(ColFat, "grasas")
		form.Ingredients = row[ColIngredients]
		form.Servings = intField(ColServings, "porciones")
		form.Minutes = intField(ColMinutes, "minutos")
	} else {
		form.DurationMin = intField(ColDuration, "duración")
		form.Intensity = row[ColIntensity]
		form.ExerciseType = row[ColType]
		form.Equipment = row[ColEquipment]
		form.BodyParts = row[ColBodyParts]
		form.Sets = intField(ColSets, "series")
		form.Reps = intField(ColReps, "repeticiones")
		form.RestSeconds = intField(ColRest, "descanso")
		form.SetDetail = row[ColSetDetail]
	}

	attrs, normIssues := catalog.Normalize(category, form, v)
	issues = append(issues, normIssues...)

	it := catalog.Item{
		Category:    category,
		Name:        form.Name,
		Description: form.Description,
		Attrs:       attrs,
		Active:      true,
		Provenance:  catalog.ProvenanceBatch,
	}
	if raw := strings.TrimSpace(row[ColVideo]); raw != "" {
		ref, err := catalog.DeriveVideo(catalog.MediaSelection{URL: raw})
		if err != nil {
			issues = append(issues, fmt.Sprintf("video inválido: %q", raw))
		} else {
			it.Video = &ref
		}
	}
	it.Issues = issues
	return it, issues
}

// parseNumber accepts "30", "30 min" and "12,5" style values.
func parseNumber(raw, label string) (float64, bool, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, ""
	}
	match := numberPattern.FindString(raw)
	if match == "" {
		return 0, false, fmt.Sprintf("%s no numérica: %q", label, raw)
	}
	n, err := strconv.ParseFloat(strings.Replace(match, ",", ".", 1), 64)
	if err != nil {
		return 0, false, fmt.Sprintf("%s no numérica: %q", label, raw)
	}
	if n < 0 {
		return 0, false, fmt.Sprintf("%s negativa: %q", label, raw)
	}
	return n, true, ""
}
