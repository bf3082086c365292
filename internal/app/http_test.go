package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"coachcatalog/api/internal/auth"
	"coachcatalog/api/internal/catalog"
	"coachcatalog/api/internal/config"
	"coachcatalog/api/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "test-secret"
	exerciseCSV   = "Nombre;Descripción;Tipo;Duración (min);Intensidad;Equipamiento;Partes del cuerpo;Series;Repeticiones;Descanso (seg);Video\n"
	programPrefix = "/api/programs/prog-1/catalog/exercise"
)

type fakeCatalog struct {
	mu      sync.Mutex
	nextID  int64
	saved   int
	saveErr error
}

func (f *fakeCatalog) List(context.Context, string, catalog.Category) ([]catalog.Item, error) {
	return nil, nil
}

func (f *fakeCatalog) Save(_ context.Context, _, _ string, items []catalog.Item) ([]int64, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, len(items))
	for i, it := range items {
		if it.PersistedID > 0 {
			ids[i] = it.PersistedID
			continue
		}
		f.nextID++
		ids[i] = f.nextID
	}
	f.saved += len(items)
	return ids, nil
}

func (f *fakeCatalog) Update(context.Context, string, []catalog.Item) error { return nil }

func (f *fakeCatalog) Delete(context.Context, string, string, []int64) error { return nil }

func (f *fakeCatalog) Usage(context.Context, string, int64) ([]string, error) {
	return []string{"prog-1"}, nil
}

type fakeDB struct{ err error }

func (f fakeDB) PingContext(context.Context) error { return f.err }

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      testSecret,
		CORSOrigin:     "*",
		UsageChunkSize: 10,
		DefaultPlan:    "free",
		Plans:          map[string]int{"free": 2, "pro": catalog.Unlimited},
	}
}

func newTestHandler(t *testing.T, client *fakeCatalog, db pinger) http.Handler {
	t.Helper()
	svc := New(testConfig(), Deps{
		Catalog: client,
		Drafts:  session.NewMemoryDraftStore(),
		DB:      db,
	})
	return NewHTTPServer(svc, "*").Handler()
}

func tokenFor(t *testing.T, role, plan string) string {
	t.Helper()
	token, err := auth.IssueToken(auth.Config{Secret: testSecret}, auth.Claims{
		CoachID:   "coach-1",
		Name:      "Ana",
		Role:      role,
		Plan:      plan,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doUpload(t *testing.T, h http.Handler, path, token, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthNeedsNoToken(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)
	rec := doJSON(t, h, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ok"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyReportsDatabaseFailure(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, fakeDB{err: errors.New("connection refused")})
	rec := doJSON(t, h, http.MethodGet, "/api/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "not_ready", body["status"])

	h = newTestHandler(t, &fakeCatalog{}, fakeDB{})
	rec = doJSON(t, h, http.MethodGet, "/api/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestsWithoutValidTokenAreUnauthorized(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, programPrefix+"/items", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, rec)["code"])
}

func TestSessionResolvesPlanLimit(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/session", tokenFor(t, "coach", ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "coach-1", body["coachId"])
	assert.Equal(t, "free", body["plan"])
	assert.Equal(t, float64(2), body["limit"])

	rec = doJSON(t, h, http.MethodGet, "/api/session", tokenFor(t, "coach", "pro"), nil)
	assert.Equal(t, float64(catalog.Unlimited), decode(t, rec)["limit"])
}

func TestViewerCanReadButNotEdit(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)
	viewer := tokenFor(t, "viewer", "pro")

	rec := doJSON(t, h, http.MethodGet, programPrefix+"/items", viewer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, programPrefix+"/items", viewer, catalog.Form{Name: "Plancha"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, h, http.MethodPost, programPrefix+"/submit", tokenFor(t, "assistant", "pro"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownCategoryIsBadRequest(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)
	rec := doJSON(t, h, http.MethodGet, "/api/programs/prog-1/catalog/yoga/items", tokenFor(t, "coach", "pro"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CATEGORY", decode(t, rec)["code"])
}

func TestCreateListAndEdit(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)
	token := tokenFor(t, "coach", "pro")

	rec := doJSON(t, h, http.MethodPost, programPrefix+"/items", token, catalog.Form{
		Name: "Plancha", Description: "Core", DurationMin: 1, Intensity: "baja",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created catalog.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Plancha", created.Name)
	assert.True(t, strings.HasPrefix(created.Identity, "tmp:"))

	rec = doJSON(t, h, http.MethodGet, programPrefix+"/items", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var window catalog.Window
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &window))
	assert.Equal(t, 1, window.Total)

	rec = doJSON(t, h, http.MethodGet, programPrefix+"/items/"+created.Identity+"/form", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var form catalog.Form
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &form))
	assert.Equal(t, "Plancha", form.Name)

	form.Name = "Plancha lateral"
	rec = doJSON(t, h, http.MethodPut, programPrefix+"/items/"+created.Identity, token, form)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, programPrefix+"/items?q=lateral", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "local", body["source"])
	assert.Equal(t, float64(1), body["total"])
}

func TestCreateWithoutNameFailsValidation(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)
	rec := doJSON(t, h, http.MethodPost, programPrefix+"/items", tokenFor(t, "coach", "pro"), catalog.Form{Description: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", decode(t, rec)["code"])
}

func TestCreateBeyondPlanLimitIsConflict(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)
	token := tokenFor(t, "coach", "free")

	for _, name := range []string{"Uno", "Dos"} {
		rec := doJSON(t, h, http.MethodPost, programPrefix+"/items", token, catalog.Form{Name: name})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := doJSON(t, h, http.MethodPost, programPrefix+"/items", token, catalog.Form{Name: "Tres"})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "QUOTA_EXCEEDED", body["code"])
	details := body["details"].(map[string]any)
	assert.Equal(t, float64(2), details["limit"])
	assert.Equal(t, float64(2), details["current"])
}

func TestUploadThenRemoveBatch(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)
	token := tokenFor(t, "coach", "pro")

	rec := doUpload(t, h, programPrefix+"/uploads", token, "rutina.csv", exerciseCSV+
		"Sentadilla;Bajar a 90°;fuerza;10;alta;;cuadriceps;4;12;60;\n"+
		"Plancha;Core;;1;baja;;abdomen;;;;\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var outcome catalog.UploadOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Len(t, outcome.Accepted, 2)
	assert.Equal(t, "rutina.csv", outcome.Batch.FileName)

	rec = doJSON(t, h, http.MethodGet, programPrefix+"/batches", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Batches []catalog.UploadBatch `json:"batches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Batches, 1)

	rec = doJSON(t, h, http.MethodDelete, programPrefix+"/batches/"+listed.Batches[0].ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(2), decode(t, rec)["removed"])

	rec = doJSON(t, h, http.MethodDelete, programPrefix+"/batches/"+listed.Batches[0].ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "BATCH_NOT_FOUND", decode(t, rec)["code"])
}

func TestUploadWithWrongColumnsIsSchemaMismatch(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)
	rec := doUpload(t, h, programPrefix+"/uploads", tokenFor(t, "coach", "pro"), "comidas.csv",
		"Nombre;Descripción;Calorías\nAvena;Con leche;350\n")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "SCHEMA_MISMATCH", body["code"])
	assert.NotEmpty(t, body["details"])
}

func TestUploadRequiresFile(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)
	rec := doJSON(t, h, http.MethodPost, programPrefix+"/uploads", tokenFor(t, "coach", "pro"), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_UPLOAD", decode(t, rec)["code"])
}

func TestSubmitAssignsIDs(t *testing.T) {
	client := &fakeCatalog{}
	h := newTestHandler(t, client, nil)
	token := tokenFor(t, "coach", "pro")

	rec := doJSON(t, h, http.MethodPost, programPrefix+"/items", token, catalog.Form{Name: "Plancha"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, programPrefix+"/submit", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report catalog.SubmitReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Saved)
	assert.Equal(t, 1, report.Assigned)
	assert.Equal(t, 1, client.saved)

	rec = doJSON(t, h, http.MethodGet, programPrefix+"/items/id:1", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitFailureIsBadGateway(t *testing.T) {
	client := &fakeCatalog{saveErr: errors.New("db down")}
	h := newTestHandler(t, client, nil)
	token := tokenFor(t, "coach", "pro")

	rec := doJSON(t, h, http.MethodPost, programPrefix+"/items", token, catalog.Form{Name: "Plancha"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, programPrefix+"/submit", token, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "PERSISTENCE_FAILED", body["code"])
	assert.NotNil(t, body["details"])
}

func TestDeactivateSelection(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)
	token := tokenFor(t, "coach", "pro")

	for _, name := range []string{"Uno", "Dos"} {
		rec := doJSON(t, h, http.MethodPost, programPrefix+"/items", token, catalog.Form{Name: name})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, h, http.MethodPost, programPrefix+"/activation", token, map[string]any{"all": true, "active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report catalog.ActivationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Len(t, report.Changed, 2)
}

func TestTemplateDownload(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)
	token := tokenFor(t, "viewer", "")

	rec := doJSON(t, h, http.MethodGet, "/api/catalog/template?category=exercise&format=csv", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	assert.Contains(t, rec.Body.String(), "Nombre")

	rec = doJSON(t, h, http.MethodGet, "/api/catalog/template?category=exercise&format=pdf", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", decode(t, rec)["code"])
}

func TestVideoUploadDisabledWithoutStorage(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)
	rec := doUpload(t, h, "/api/videos", tokenFor(t, "coach", "pro"), "clip.mp4", "binary")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "MEDIA_DISABLED", decode(t, rec)["code"])
}

func TestAttachVideoByURL(t *testing.T) {
	h := newTestHandler(t, &fakeCatalog{}, nil)
	token := tokenFor(t, "coach", "pro")

	rec := doJSON(t, h, http.MethodPost, programPrefix+"/items", token, catalog.Form{Name: "Plancha"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created catalog.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, h, http.MethodPut, programPrefix+"/items/"+created.Identity+"/video", token,
		map[string]string{"url": "https://youtu.be/dQw4w9WgXcQ"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated catalog.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.NotNil(t, updated.Video)

	rec = doJSON(t, h, http.MethodPut, programPrefix+"/items/"+created.Identity+"/video", token,
		map[string]string{"url": "ftp://example.com/a.mp4"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectorResolve(t *testing.T) {
	items := []catalog.Item{{Identity: "id:1"}, {Identity: "id:2"}, {Identity: "tmp:a"}}

	assert.Equal(t, []string{"id:1", "tmp:a"}, Selector{All: true, Except: []string{"id:2"}}.Resolve(items))
	assert.Equal(t, []string{"id:1", "id:2"}, Selector{Page: 1, PageSize: 2}.Resolve(items))
	assert.Equal(t, []string{"tmp:a"}, Selector{IDs: []string{"tmp:a"}}.Resolve(items))
	assert.Empty(t, Selector{}.Resolve(items))
}

func TestMapErrorFallsBackToServerError(t *testing.T) {
	status, code, _, _ := mapError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "SERVER_ERROR", code)

	status, code, msg, _ := mapError(catalog.NewPersistenceError("save catalog", errors.New("x")))
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "PERSISTENCE_FAILED", code)
	assert.NotEmpty(t, msg)
}
