package ingest

import (
	"coachcatalog/api/internal/catalog"
	"coachcatalog/api/internal/vocab"
)

// Column keys shared by the row mapper and the template exporter.
const (
	ColName        = "name"
	ColDescription = "description"
	ColType        = "type"
	ColDuration    = "duration"
	ColIntensity   = "intensity"
	ColEquipment   = "equipment"
	ColBodyParts   = "bodyParts"
	ColSets        = "sets"
	ColReps        = "reps"
	ColRest        = "rest"
	ColSetDetail   = "setDetail"
	ColVideo       = "video"
	ColCalories    = "calories"
	ColProtein     = "protein"
	ColCarbs       = "carbs"
	ColFat         = "fat"
	ColIngredients = "ingredients"
	ColServings    = "servings"
	ColMinutes     = "minutes"
)

// Column is one expected header. Aliases cover the headers used by older
// templates; they are only consulted here.
type Column struct {
	Key      string
	Header   string
	Aliases  []string
	Required bool
	Example  string
	// Template marks columns written to the reference template.
	Template bool
}

var exerciseColumns = []Column{
	{Key: ColName, Header: "Nombre", Aliases: []string{"nombre del ejercicio", "ejercicio", "name", "titulo"}, Required: true, Example: "Sentadilla goblet", Template: true},
	{Key: ColDescription, Header: "Descripción", Aliases: []string{"descripcion", "description", "detalle", "instrucciones"}, Required: true, Example: "Espalda recta, bajar hasta 90 grados", Template: true},
	{Key: ColType, Header: "Tipo", Aliases: []string{"tipo de ejercicio", "categoria", "type"}, Example: "Fuerza", Template: true},
	{Key: ColDuration, Header: "Duración (min)", Aliases: []string{"duracion", "duracion min", "minutos", "duration", "tiempo"}, Required: true, Example: "10", Template: true},
	{Key: ColIntensity, Header: "Intensidad", Aliases: []string{"intensity", "nivel"}, Required: true, Example: "Medio", Template: true},
	{Key: ColEquipment, Header: "Equipamiento", Aliases: []string{"equipo", "material", "equipment", "implementos"}, Example: "Kettlebell", Template: true},
	{Key: ColBodyParts, Header: "Partes del cuerpo", Aliases: []string{"parte del cuerpo", "musculos", "grupo muscular", "grupos musculares", "body parts", "zona"}, Example: "Cuádriceps, Glúteos", Template: true},
	{Key: ColSets, Header: "Series", Aliases: []string{"sets"}, Example: "4", Template: true},
	{Key: ColReps, Header: "Repeticiones", Aliases: []string{"reps", "repeticion"}, Example: "12", Template: true},
	{Key: ColRest, Header: "Descanso (seg)", Aliases: []string{"descanso", "descanso seg", "rest", "pausa"}, Example: "60", Template: true},
	{Key: ColSetDetail, Header: "Series y repeticiones", Aliases: []string{"series x repeticiones", "esquema"}},
	{Key: ColVideo, Header: "Video", Aliases: []string{"url video", "link", "youtube", "enlace"}, Example: "https://youtu.be/dQw4w9WgXcQ", Template: true},
}

var mealColumns = []Column{
	{Key: ColName, Header: "Nombre", Aliases: []string{"nombre de la comida", "comida", "plato", "receta", "name"}, Required: true, Example: "Avena con frutos rojos", Template: true},
	{Key: ColDescription, Header: "Descripción", Aliases: []string{"descripcion", "description", "preparacion"}, Required: true, Example: "Cocinar la avena en leche 5 minutos", Template: true},
	{Key: ColCalories, Header: "Calorías", Aliases: []string{"calorias", "kcal", "calories", "energia"}, Required: true, Example: "350", Template: true},
	{Key: ColProtein, Header: "Proteínas (g)", Aliases: []string{"proteinas", "proteina", "protein", "proteinas g"}, Example: "18", Template: true},
	{Key: ColCarbs, Header: "Carbohidratos (g)", Aliases: []string{"carbohidratos", "hidratos", "carbs", "carbohidratos g"}, Example: "52", Template: true},
	{Key: ColFat, Header: "Grasas (g)", Aliases: []string{"grasas", "grasa", "fat", "grasas g"}, Example: "9", Template: true},
	{Key: ColIngredients, Header: "Ingredientes", Aliases: []string{"ingredients"}, Example: "avena; leche; frutos rojos", Template: true},
	{Key: ColServings, Header: "Porciones", Aliases: []string{"raciones", "servings", "porcion"}, Example: "1", Template: true},
	{Key: ColMinutes, Header: "Minutos", Aliases: []string{"tiempo de preparacion", "minutes", "prep time", "tiempo"}, Example: "10", Template: true},
	{Key: ColVideo, Header: "Video", Aliases: []string{"url video", "link", "youtube", "enlace"}, Example: "", Template: true},
}

// Columns returns the expected columns of category.
func Columns(category catalog.Category) []Column {
	src := exerciseColumns
	if category == catalog.CategoryMeal {
		src = mealColumns
	}
	out := make([]Column, len(src))
	copy(out, src)
	return out
}

// TemplateColumns returns the columns written to the reference template.
func TemplateColumns(category catalog.Category) []Column {
	var out []Column
	for _, c := range Columns(category) {
		if c.Template {
			out = append(out, c)
		}
	}
	return out
}

// MatchHeader maps every header cell onto a column key. Blank header cells
// are ignored. Any missing required column, unknown column or repeated
// column rejects the file.
func MatchHeader(category catalog.Category, fileName string, header []string) (map[string]int, error) {
	cols := Columns(category)
	lookup := make(map[string]string)
	for _, c := range cols {
		lookup[headerKey(c.Header)] = c.Key
		for _, a := range c.Aliases {
			lookup[headerKey(a)] = c.Key
		}
	}

	index := make(map[string]int)
	var unknown []string
	for i, cell := range header {
		folded := headerKey(cell)
		if folded == "" {
			continue
		}
		key, ok := lookup[folded]
		if !ok {
			unknown = append(unknown, cell)
			continue
		}
		if _, dup := index[key]; dup {
			unknown = append(unknown, cell+" (repetida)")
			continue
		}
		index[key] = i
	}

	var missing []string
	for _, c := range cols {
		if _, ok := index[c.Key]; c.Required && !ok {
			missing = append(missing, c.Header)
		}
	}
	if len(missing) > 0 || len(unknown) > 0 {
		return nil, &catalog.SchemaError{Category: category, FileName: fileName, Missing: missing, Unknown: unknown}
	}
	return index, nil
}

// headerKey folds a header and drops punctuation such as unit parentheses,
// so "Duración (min)" and "duracion min" compare equal.
func headerKey(s string) string {
	folded := vocab.Fold(s)
	buf := make([]rune, 0, len(folded))
	space := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == 'ñ':
			if space && len(buf) > 0 {
				buf = append(buf, ' ')
			}
			space = false
			buf = append(buf, r)
		default:
			space = true
		}
	}
	return string(buf)
}
