// internal/registry/postgres.go
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-junction/internal/models"

	"github.com/lib/pq"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS ai_backends (
	seq               BIGSERIAL,
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL DEFAULT '',
	type              TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	performance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	connection_config JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const selectColumns = `id, name, type, description, performance_score, connection_config, created_at, updated_at`

// PostgresStore keeps descriptors in the ai_backends table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// EnsureSchema creates the backing table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create ai_backends: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, d models.BackendDescriptor) error {
	cfg, err := marshalConfig(d.ConnectionConfig)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ai_backends (id, name, type, description, performance_score, connection_config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.Name, string(d.Type), d.Description, d.PerformanceScore, cfg, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert backend: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, patch models.DescriptorPatch) (models.BackendDescriptor, error) {
	cfg, err := marshalConfig(patch.ConnectionConfig)
	if err != nil {
		return models.BackendDescriptor{}, err
	}

	var typ interface{}
	if patch.Type != nil {
		typ = string(*patch.Type)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE ai_backends SET
			name = COALESCE($2, name),
			type = COALESCE($3, type),
			description = COALESCE($4, description),
			performance_score = COALESCE($5, performance_score),
			connection_config = connection_config || $6::jsonb,
			updated_at = $7
		WHERE id = $1
		RETURNING `+selectColumns,
		id, nullableString(patch.Name), typ, nullableString(patch.Description), nullableFloat(patch.PerformanceScore), cfg, s.now())

	d, err := scanDescriptor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BackendDescriptor{}, ErrNotFound
	}
	if err != nil {
		return models.BackendDescriptor{}, fmt.Errorf("update backend: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ai_backends WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete backend: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete backend: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.BackendDescriptor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM ai_backends ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list backends: %w", err)
	}
	defer rows.Close()

	var out []models.BackendDescriptor
	for rows.Next() {
		d, err := scanDescriptor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backend: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list backends: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (models.BackendDescriptor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM ai_backends WHERE id = $1`, id)

	d, err := scanDescriptor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BackendDescriptor{}, ErrNotFound
	}
	if err != nil {
		return models.BackendDescriptor{}, fmt.Errorf("get backend: %w", err)
	}
	return d, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDescriptor(row rowScanner) (models.BackendDescriptor, error) {
	var (
		d       models.BackendDescriptor
		typ     string
		rawConf []byte
	)
	if err := row.Scan(&d.ID, &d.Name, &typ, &d.Description, &d.PerformanceScore, &rawConf, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return models.BackendDescriptor{}, err
	}
	d.Type = models.BackendType(typ)

	d.ConnectionConfig = map[string]interface{}{}
	if len(rawConf) > 0 && !strings.EqualFold(string(rawConf), "null") {
		if err := json.Unmarshal(rawConf, &d.ConnectionConfig); err != nil {
			return models.BackendDescriptor{}, fmt.Errorf("decode connection_config: %w", err)
		}
	}
	return d, nil
}

func marshalConfig(cfg map[string]interface{}) (string, error) {
	if len(cfg) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode connection_config: %w", err)
	}
	return string(data), nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
