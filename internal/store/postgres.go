package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"coachcatalog/api/internal/catalog"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ catalog.CatalogClient = (*PostgresStore)(nil)

// PostgresStore is the persisted catalog.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const listItems = `
	SELECT ci.id, ci.category, ci.name, ci.description, ci.attributes, ci.video, ci.is_active,
		COALESCE(json_agg(pi.program_id ORDER BY pi.program_id) FILTER (WHERE pi.program_id IS NOT NULL), '[]'::json)
	FROM catalog_items ci
	LEFT JOIN program_items pi ON pi.item_id = ci.id
	WHERE ci.coach_id = $1 AND ci.category = $2
	GROUP BY ci.id
	ORDER BY ci.id
`

// List returns every item the coach owns in category, with the programs each
// one is assigned to.
func (s *PostgresStore) List(ctx context.Context, coachID string, category catalog.Category) ([]catalog.Item, error) {
	rows, err := s.db.QueryContext(ctx, listItems, coachID, string(category))
	if err != nil {
		return nil, mapError("list catalog", err)
	}
	defer rows.Close()

	items := make([]catalog.Item, 0)
	for rows.Next() {
		var (
			it          catalog.Item
			cat         string
			attrs       []byte
			video       []byte
			assignments []byte
		)
		if err := rows.Scan(&it.PersistedID, &cat, &it.Name, &it.Description, &attrs, &video, &it.Active, &assignments); err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		it.Category = catalog.Category(cat)
		it.Provenance = catalog.ProvenanceExisting
		it.Attrs = catalog.NewAttributes(it.Category)
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, it.Attrs); err != nil {
				return nil, fmt.Errorf("decode attributes of item %d: %w", it.PersistedID, err)
			}
		}
		if len(video) > 0 {
			var ref catalog.VideoRef
			if err := json.Unmarshal(video, &ref); err != nil {
				return nil, fmt.Errorf("decode video of item %d: %w", it.PersistedID, err)
			}
			it.Video = &ref
		}
		if err := json.Unmarshal(assignments, &it.Assignments); err != nil {
			return nil, fmt.Errorf("decode assignments of item %d: %w", it.PersistedID, err)
		}
		it.Identity = catalog.IdentityOf(it, -1)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog items: %w", err)
	}
	return items, nil
}

// Save writes items and assigns them to programID in one transaction. The
// returned ids are positionally aligned with items.
func (s *PostgresStore) Save(ctx context.Context, coachID, programID string, items []catalog.Item) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]int64, len(items))
	for i, it := range items {
		attrs, video, err := encodeItem(it)
		if err != nil {
			return nil, err
		}
		category := it.Category
		if category == "" {
			category = catalog.CategoryExercise
		}

		if it.PersistedID > 0 {
			ids[i] = it.PersistedID
			err = updateItem(ctx, tx, coachID, it, attrs, video)
		} else {
			err = tx.QueryRowContext(ctx, `
				INSERT INTO catalog_items (coach_id, category, name, description, attributes, video, is_active)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id
			`, coachID, string(category), it.Name, it.Description, attrs, video, it.Active).Scan(&ids[i])
		}
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, err
		}
		if err != nil {
			return nil, mapError("save catalog", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO program_items (program_id, item_id)
			VALUES ($1, $2)
			ON CONFLICT (program_id, item_id) DO NOTHING
		`, programID, ids[i]); err != nil {
			return nil, mapError("assign catalog item", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError("save catalog", err)
	}
	return ids, nil
}

// Update rewrites persisted items in place. Program assignments are left
// untouched.
func (s *PostgresStore) Update(ctx context.Context, coachID string, items []catalog.Item) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, it := range items {
		if it.PersistedID <= 0 {
			return fmt.Errorf("update item %q: not persisted", it.Name)
		}
		attrs, video, err := encodeItem(it)
		if err != nil {
			return err
		}
		if err := updateItem(ctx, tx, coachID, it, attrs, video); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return err
			}
			return mapError("update catalog", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return mapError("update catalog", err)
	}
	return nil
}

func updateItem(ctx context.Context, tx *sql.Tx, coachID string, it catalog.Item, attrs, video []byte) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE catalog_items
		SET name=$3, description=$4, attributes=$5, video=$6, is_active=$7, updated_at=NOW()
		WHERE id=$1 AND coach_id=$2
	`, it.PersistedID, coachID, it.Name, it.Description, attrs, video, it.Active)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("item %d: %w", it.PersistedID, catalog.ErrNotFound)
	}
	return nil
}

// Delete unassigns ids from programID and hard-deletes them. Items still
// assigned to another program are refused.
func (s *PostgresStore) Delete(ctx context.Context, coachID, programID string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM program_items pi
		USING catalog_items ci
		WHERE pi.item_id = ci.id AND ci.coach_id = $1 AND pi.program_id = $2 AND pi.item_id = ANY($3)
	`, coachID, programID, ids); err != nil {
		return mapError("delete catalog items", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM catalog_items WHERE coach_id = $1 AND id = ANY($2)
	`, coachID, ids); err != nil {
		return mapError("delete catalog items", err)
	}
	if err := tx.Commit(); err != nil {
		return mapError("delete catalog items", err)
	}
	return nil
}

// Usage lists the programs that reference item id.
func (s *PostgresStore) Usage(ctx context.Context, coachID string, id int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pi.program_id
		FROM program_items pi
		JOIN catalog_items ci ON ci.id = pi.item_id
		WHERE ci.coach_id = $1 AND pi.item_id = $2
		ORDER BY pi.program_id
	`, coachID, id)
	if err != nil {
		return nil, mapError("read usage", err)
	}
	defer rows.Close()

	programs := make([]string, 0)
	for rows.Next() {
		var programID string
		if err := rows.Scan(&programID); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		programs = append(programs, programID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage: %w", err)
	}
	return programs, nil
}

func encodeItem(it catalog.Item) ([]byte, []byte, error) {
	attrs := it.Attrs
	if attrs == nil {
		attrs = catalog.NewAttributes(it.Category)
	}
	attrJSON, err := json.Marshal(attrs)
	if err != nil {
		return nil, nil, fmt.Errorf("encode attributes: %w", err)
	}
	if it.Video == nil {
		return attrJSON, nil, nil
	}
	videoJSON, err := json.Marshal(it.Video)
	if err != nil {
		return nil, nil, fmt.Errorf("encode video: %w", err)
	}
	return attrJSON, videoJSON, nil
}

// Postgres error codes the catalog reacts to.
const (
	codeForeignKeyViolation = "23503"
	codeSerializationFail   = "40001"
	codeDeadlockDetected    = "40P01"
	codeCheckViolation      = "23514"
)

// mapError turns known database failures into user-facing persistence errors.
func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := ""
	switch pgErr.Code {
	case codeForeignKeyViolation:
		msg = "No se puede eliminar: el elemento está asignado a otro programa."
	case codeSerializationFail, codeDeadlockDetected:
		msg = "Otro cambio se guardó al mismo tiempo. Vuelve a intentarlo."
	case codeCheckViolation:
		msg = "El elemento tiene datos no válidos para su categoría."
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
	return &catalog.PersistenceError{Op: op, Message: msg, Err: err}
}
