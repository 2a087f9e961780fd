package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/turtacn/aivis/internal/domain/target"
	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/pkg/errors"
	"github.com/turtacn/aivis/pkg/types/common"
	"github.com/turtacn/aivis/pkg/types/visibility"
)

// TargetRepository persists targets in the targets table. Keywords and
// prompts are stored as JSONB documents; they are small bounded lists read
// and written wholesale.
type TargetRepository struct {
	conn *Connection
	log  logging.Logger
}

// NewTargetRepository builds the repository on an established connection.
func NewTargetRepository(conn *Connection, log logging.Logger) *TargetRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TargetRepository{conn: conn, log: log.Named("target_repo")}
}

var _ target.Repository = (*TargetRepository)(nil)

// Create inserts a new target.
func (r *TargetRepository) Create(ctx context.Context, t *target.Target) error {
	keywords, prompts, err := encodeContent(t)
	if err != nil {
		return err
	}
	_, err = r.conn.Pool().Exec(ctx, `
		INSERT INTO targets (id, business_name, website_url, keywords, prompts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID.String(), t.BusinessName, t.WebsiteURL, keywords, prompts, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert target failed")
	}
	return nil
}

// GetByID loads one target, or a NotFound error.
func (r *TargetRepository) GetByID(ctx context.Context, id common.ID) (*target.Target, error) {
	row := r.conn.Pool().QueryRow(ctx, `
		SELECT id, business_name, website_url, keywords, prompts, created_at, updated_at
		FROM targets WHERE id = $1`, id.String())
	return scanTarget(row)
}

// Update rewrites the mutable fields of an existing target.
func (r *TargetRepository) Update(ctx context.Context, t *target.Target) error {
	keywords, prompts, err := encodeContent(t)
	if err != nil {
		return err
	}
	tag, err := r.conn.Pool().Exec(ctx, `
		UPDATE targets
		SET business_name = $2, website_url = $3, keywords = $4, prompts = $5, updated_at = $6
		WHERE id = $1`,
		t.ID.String(), t.BusinessName, t.WebsiteURL, keywords, prompts, t.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "update target failed")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("target not found: " + t.ID.String())
	}
	return nil
}

// Delete removes a target.
func (r *TargetRepository) Delete(ctx context.Context, id common.ID) error {
	tag, err := r.conn.Pool().Exec(ctx, `DELETE FROM targets WHERE id = $1`, id.String())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "delete target failed")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("target not found: " + id.String())
	}
	return nil
}

// List returns targets newest first.
func (r *TargetRepository) List(ctx context.Context, limit, offset int) ([]*target.Target, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.conn.Pool().Query(ctx, `
		SELECT id, business_name, website_url, keywords, prompts, created_at, updated_at
		FROM targets ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "list targets failed")
	}
	defer rows.Close()

	var targets []*target.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "list targets failed")
	}
	return targets, nil
}

func encodeContent(t *target.Target) ([]byte, []byte, error) {
	keywords, err := json.Marshal(t.Keywords)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode keywords")
	}
	prompts, err := json.Marshal(t.Prompts)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode prompts")
	}
	return keywords, prompts, nil
}

func scanTarget(row pgx.Row) (*target.Target, error) {
	var (
		t        target.Target
		id       string
		keywords []byte
		prompts  []byte
	)
	err := row.Scan(&id, &t.BusinessName, &t.WebsiteURL, &keywords, &prompts, &t.CreatedAt, &t.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("target not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan target failed")
	}
	t.ID = common.ID(id)
	if err := json.Unmarshal(keywords, &t.Keywords); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode keywords")
	}
	if err := json.Unmarshal(prompts, &t.Prompts); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode prompts")
	}
	if t.Keywords == nil {
		t.Keywords = []visibility.Keyword{}
	}
	if t.Prompts == nil {
		t.Prompts = []visibility.Prompt{}
	}
	return &t, nil
}
