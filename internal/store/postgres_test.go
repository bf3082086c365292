package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"coachcatalog/api/internal/catalog"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapErrorForeignKey(t *testing.T) {
	err := mapError("delete catalog items", &pgconn.PgError{Code: codeForeignKeyViolation, Message: "violates foreign key"})

	var pe *catalog.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %T", err)
	}
	if !strings.Contains(pe.Error(), "asignado a otro programa") {
		t.Errorf("unexpected message: %q", pe.Error())
	}
	if catalog.KindOf(err) != catalog.KindPersistence {
		t.Errorf("KindOf = %q", catalog.KindOf(err))
	}
}

func TestMapErrorPassesThroughUnknown(t *testing.T) {
	base := errors.New("connection reset")
	err := mapError("list catalog", base)
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "list catalog: ") {
		t.Errorf("missing op prefix: %q", err.Error())
	}

	err = mapError("save catalog", &pgconn.PgError{Code: "22001"})
	var pe *catalog.PersistenceError
	if errors.As(err, &pe) {
		t.Error("unexpected PersistenceError for unmapped code")
	}
}

func TestEncodeItemDefaultsAttributes(t *testing.T) {
	attrs, video, err := encodeItem(catalog.Item{Category: catalog.CategoryMeal, Name: "Avena"})
	if err != nil {
		t.Fatalf("encodeItem: %v", err)
	}
	if string(attrs) != "{}" {
		t.Errorf("attrs = %s, want {}", attrs)
	}
	if video != nil {
		t.Errorf("expected nil video, got %s", video)
	}
}

func getTestDatabaseURL(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("CATALOG_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("CATALOG_TEST_DATABASE_URL is not set")
	}
	return dsn
}

func TestPostgresStoreLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := getTestDatabaseURL(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	s := NewPostgresStore(db)
	items := []catalog.Item{
		{Category: catalog.CategoryExercise, Name: "Sentadilla", Active: true,
			Attrs: &catalog.ExerciseAttrs{DurationMin: 10, Intensity: "Alto"},
			Video: &catalog.VideoRef{URL: "https://youtu.be/dQw4w9WgXcQ", Provider: catalog.ProviderYouTube}},
		{Category: catalog.CategoryExercise, Name: "Plancha", Active: false,
			Attrs: &catalog.ExerciseAttrs{DurationMin: 2}},
	}
	ids, err := s.Save(ctx, "coach-1", "prog-a", items)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(ids) != 2 || ids[0] == 0 || ids[1] == 0 {
		t.Fatalf("unexpected ids %v", ids)
	}

	// same rows into a second program
	items[0].PersistedID, items[1].PersistedID = ids[0], ids[1]
	if _, err := s.Save(ctx, "coach-1", "prog-b", items[:1]); err != nil {
		t.Fatalf("save second program: %v", err)
	}

	listed, err := s.List(ctx, "coach-1", catalog.CategoryExercise)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d items, want 2", len(listed))
	}
	if got := listed[0].Assignments; len(got) != 2 || got[0] != "prog-a" || got[1] != "prog-b" {
		t.Errorf("assignments = %v", got)
	}
	if listed[1].Active {
		t.Error("inactive flag not persisted")
	}
	if listed[0].Video == nil || listed[0].Video.Provider != catalog.ProviderYouTube {
		t.Errorf("video not persisted: %+v", listed[0].Video)
	}

	// a rewrite of an item owned by another program never assigns it
	only, err := s.Save(ctx, "coach-1", "prog-c", []catalog.Item{{Category: catalog.CategoryExercise, Name: "Remo", Active: false,
		Attrs: &catalog.ExerciseAttrs{DurationMin: 5}}})
	if err != nil {
		t.Fatalf("save third program: %v", err)
	}
	remo := catalog.Item{PersistedID: only[0], Category: catalog.CategoryExercise, Name: "Remo con barra", Active: true,
		Attrs: &catalog.ExerciseAttrs{DurationMin: 5}}
	if err := s.Update(ctx, "coach-1", []catalog.Item{remo}); err != nil {
		t.Fatalf("update: %v", err)
	}
	programs, err := s.Usage(ctx, "coach-1", only[0])
	if err != nil {
		t.Fatalf("usage after update: %v", err)
	}
	if len(programs) != 1 || programs[0] != "prog-c" {
		t.Errorf("update changed assignments: %v", programs)
	}
	remo.PersistedID = only[0]
	if err := s.Update(ctx, "coach-2", []catalog.Item{remo}); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("update across coaches: got %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "coach-1", "prog-c", only); err != nil {
		t.Fatalf("delete third program item: %v", err)
	}

	usage, err := s.Usage(ctx, "coach-1", ids[0])
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(usage) != 2 {
		t.Errorf("usage = %v", usage)
	}

	err = s.Delete(ctx, "coach-1", "prog-a", []int64{ids[0]})
	if catalog.KindOf(err) != catalog.KindPersistence {
		t.Fatalf("expected persistence error deleting shared item, got %v", err)
	}
	if err := s.Delete(ctx, "coach-1", "prog-a", []int64{ids[1]}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	listed, err = s.List(ctx, "coach-1", catalog.CategoryExercise)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("listed %d items after delete, want 1", len(listed))
	}

	other, err := s.List(ctx, "coach-2", catalog.CategoryExercise)
	if err != nil {
		t.Fatalf("list other coach: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("coach isolation broken: %d items", len(other))
	}
}
