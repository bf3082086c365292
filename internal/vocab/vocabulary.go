package vocab

// Vocabulary bundles the controlled lists used during normalization.
type Vocabulary struct {
	BodyParts *Table
	Equipment *Table
	Types     TypeResolver
}

// Extra carries synonyms supplied by configuration.
type Extra struct {
	BodyParts map[string][]string
	Equipment map[string][]string
	None      []string
}

var noneTokens = []string{"ninguno", "ninguna", "nada", "none", "n/a", "na", "-", "sin equipo", "sin material", "no aplica"}

// Default builds a fresh vocabulary with the built-in catalogs.
func Default() *Vocabulary {
	return &Vocabulary{
		BodyParts: NewTable("partes del cuerpo", []Entry{
			{"Pecho", []string{"pectoral", "pectorales", "chest", "pecs"}},
			{"Espalda", []string{"dorsal", "dorsales", "back", "lats", "espalda alta", "espalda baja", "lumbar"}},
			{"Hombros", []string{"hombro", "deltoides", "deltoide", "shoulders", "shoulder"}},
			{"Bíceps", []string{"biceps", "bicep"}},
			{"Tríceps", []string{"triceps", "tricep"}},
			{"Antebrazos", []string{"antebrazo", "forearms", "forearm"}},
			{"Abdomen", []string{"abdominal", "abdominales", "core", "abs", "oblicuos", "zona media"}},
			{"Glúteos", []string{"gluteo", "gluteos", "glutes", "cola"}},
			{"Cuádriceps", []string{"cuadriceps", "quads", "quadriceps"}},
			{"Isquiotibiales", []string{"isquios", "femoral", "femorales", "hamstrings"}},
			{"Pantorrillas", []string{"pantorrilla", "gemelo", "gemelos", "calves", "calf"}},
			{"Piernas", []string{"pierna", "legs", "tren inferior"}},
			{"Brazos", []string{"brazo", "arms", "tren superior"}},
			{"Cuerpo completo", []string{"full body", "todo el cuerpo", "cuerpo entero", "fullbody"}},
		}, noneTokens, false),
		Equipment: NewTable("equipamiento", []Entry{
			{"Mancuernas", []string{"mancuerna", "dumbbell", "dumbbells"}},
			{"Barra", []string{"barra olimpica", "barbell"}},
			{"Kettlebell", []string{"pesa rusa", "kettlebells", "kb"}},
			{"Banda elástica", []string{"banda", "liga", "ligas", "resistance band", "elastico", "banda elastica"}},
			{"Máquina", []string{"maquina", "machine"}},
			{"Polea", []string{"cable", "poleas", "cables"}},
			{"Banco", []string{"bench", "banco plano", "banco inclinado"}},
			{"Balón medicinal", []string{"balon medicinal", "medicine ball", "pelota medicinal"}},
			{"TRX", []string{"suspension", "trx"}},
			{"Comba", []string{"cuerda", "cuerda para saltar", "jump rope", "soga"}},
			{"Esterilla", []string{"colchoneta", "mat", "yoga mat"}},
			{"Step", []string{"cajon", "box", "plyo box"}},
		}, append([]string{"peso corporal", "bodyweight"}, noneTokens...), true),
		Types: DefaultTypeResolver(),
	}
}

// Extend merges configured synonyms into the vocabulary.
func (v *Vocabulary) Extend(extra Extra) {
	for canonical, syns := range extra.BodyParts {
		v.BodyParts.Add(canonical, syns...)
	}
	for canonical, syns := range extra.Equipment {
		v.Equipment.Add(canonical, syns...)
	}
	v.BodyParts.AddNone(extra.None...)
	v.Equipment.AddNone(extra.None...)
}
