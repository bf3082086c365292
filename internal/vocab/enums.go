package vocab

import (
	"fmt"
	"strings"
)

// Intensity levels accepted for exercises.
const (
	IntensityLow    = "Bajo"
	IntensityMedium = "Medio"
	IntensityHigh   = "Alto"
)

var intensitySynonyms = map[string]string{
	"bajo": IntensityLow, "baja": IntensityLow, "suave": IntensityLow, "leve": IntensityLow,
	"ligero": IntensityLow, "ligera": IntensityLow, "low": IntensityLow, "easy": IntensityLow, "light": IntensityLow,
	"medio": IntensityMedium, "media": IntensityMedium, "moderado": IntensityMedium, "moderada": IntensityMedium,
	"intermedio": IntensityMedium, "intermedia": IntensityMedium, "medium": IntensityMedium, "moderate": IntensityMedium,
	"alto": IntensityHigh, "alta": IntensityHigh, "intenso": IntensityHigh, "intensa": IntensityHigh,
	"fuerte": IntensityHigh, "high": IntensityHigh, "hard": IntensityHigh, "intense": IntensityHigh,
}

// Resolution is the outcome of resolving a single enumerated value.
type Resolution struct {
	Value string
	Issue string
}

// ResolveIntensity maps raw onto Bajo/Medio/Alto. Unknown labels are kept
// verbatim and reported; they are never dropped.
func ResolveIntensity(raw string) Resolution {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Resolution{}
	}
	if value, ok := intensitySynonyms[Fold(trimmed)]; ok {
		return Resolution{Value: value}
	}
	return Resolution{
		Value: trimmed,
		Issue: fmt.Sprintf("intensidad inválida: %q (usa %s, %s o %s)", trimmed, IntensityLow, IntensityMedium, IntensityHigh),
	}
}

// Exercise types.
const (
	TypeStrength    = "Fuerza"
	TypeCardio      = "Cardio"
	TypeHIIT        = "HIIT"
	TypeMobility    = "Movilidad"
	TypeFlexibility = "Flexibilidad"
	TypeBalance     = "Equilibrio"
	TypeFunctional  = "Funcional"
)

var typeKeywords = map[string][]string{
	TypeStrength:    {"fuerza", "strength", "potencia", "hipertrofia", "pesas"},
	TypeCardio:      {"cardio", "aerobic", "resistencia", "running", "carrera"},
	TypeHIIT:        {"hiit", "interval", "tabata"},
	TypeMobility:    {"movilidad", "mobility"},
	TypeFlexibility: {"flexibilidad", "flexibility", "estiramiento", "stretch", "elongacion"},
	TypeBalance:     {"equilibrio", "balance", "estabilidad", "propiocepcion"},
	TypeFunctional:  {"funcional", "functional", "crossfit"},
}

// TypeResolver maps free text onto one of the allowed exercise types.
type TypeResolver struct {
	Allowed []string
	Default string
}

// DefaultTypeResolver allows every known type and defaults unmatched input to Funcional.
func DefaultTypeResolver() TypeResolver {
	return TypeResolver{
		Allowed: []string{TypeStrength, TypeCardio, TypeHIIT, TypeMobility, TypeFlexibility, TypeBalance, TypeFunctional},
		Default: TypeFunctional,
	}
}

// Resolve matches keywords by substring in Allowed order. Empty input takes
// the first allowed type; unmatched input takes Default.
func (r TypeResolver) Resolve(raw string) string {
	folded := Fold(raw)
	if folded == "" {
		if len(r.Allowed) > 0 {
			return r.Allowed[0]
		}
		return r.Default
	}
	for _, allowed := range r.Allowed {
		if Fold(allowed) == folded {
			return allowed
		}
		for _, kw := range typeKeywords[allowed] {
			if strings.Contains(folded, kw) {
				return allowed
			}
		}
	}
	if r.Default != "" {
		return r.Default
	}
	if len(r.Allowed) > 0 {
		return r.Allowed[0]
	}
	return ""
}
