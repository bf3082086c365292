package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exerciseHeader = "Nombre;Descripción;Tipo;Duración (min);Intensidad;Equipamiento;Partes del cuerpo;Series;Repeticiones;Descanso (seg);Video\n"

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestValidateReportsAcceptedRows(t *testing.T) {
	path := writeFile(t, "rutina.csv", exerciseHeader+
		"Sentadilla;Bajar a 90°;fuerza;10;alta;;cuadriceps;4;12;60;\n"+
		"Sentadilla;Otra variante;;5;media;;;;;;\n"+
		"Plancha;Core;;1;baja;;abdomen;;;;\n")

	out, _, err := runCLI(t, "validate", path, "--category", "exercise", "--limit", "2", "--json")
	require.NoError(t, err)

	var report validateReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "rutina.csv", report.File)
	assert.Equal(t, 3, report.Parsed)
	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, []string{"Sentadilla"}, report.Duplicates.Names)
	require.NotEmpty(t, report.Warnings)
}

func TestValidateRejectsWrongTemplate(t *testing.T) {
	path := writeFile(t, "comidas.csv", "Nombre;Calorías\nAvena;350\n")

	_, stderr, err := runCLI(t, "validate", path, "--category", "exercise")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "comidas.csv")
	assert.NotEmpty(t, stderr)
}

func TestValidateRequiresCategory(t *testing.T) {
	path := writeFile(t, "rutina.csv", exerciseHeader)
	_, _, err := runCLI(t, "validate", path)
	require.Error(t, err)
}

func TestTemplateWritesFile(t *testing.T) {
	dir := t.TempDir()
	out, _, err := runCLI(t, "template", "--category", "meal", "--format", "csv", "-o", dir)
	require.NoError(t, err)

	target := filepath.Clean(string(bytes.TrimSpace([]byte(out))))
	assert.Equal(t, dir, filepath.Dir(target))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Calorías")
}

func TestTemplateRejectsUnknownFormat(t *testing.T) {
	_, _, err := runCLI(t, "template", "--category", "meal", "--format", "pdf", "-o", t.TempDir())
	require.Error(t, err)
}
