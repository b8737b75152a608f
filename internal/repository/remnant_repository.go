package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"remnantsync/internal/model"
)

type RemnantRepository struct {
	DB *pgxpool.Pool
}

// Sync upserts a remnant through the sync_remnant procedure, which compares
// it with the stored row and reports whether anything changed.
func (r *RemnantRepository) Sync(ctx context.Context, rem model.Remnant) (model.SyncOutcome, error) {
	var status *string
	err := r.DB.QueryRow(ctx, `
		SELECT sync_status FROM sync_remnant(
			p_id => $1, p_name => $2, p_material => $3, p_status => $4,
			p_width => $5, p_height => $6, p_thickness => $7,
			p_l_shape => $8, p_l_width => $9, p_l_height => $10,
			p_source_image_url => $11
		)
	`, rem.ID, rem.Name, rem.Material, string(rem.Status),
		rem.Width, rem.Height, rem.Thickness,
		rem.LShaped, rem.SubWidth, rem.SubHeight,
		rem.SourceImageURL,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SyncNoChange, nil
	}
	if err != nil {
		return "", fmt.Errorf("sync_remnant %d: %w", rem.ID, err)
	}
	if status == nil {
		return model.SyncNoChange, nil
	}
	return model.ParseSyncOutcome(*status), nil
}

// MarkSeen flags a remnant as present in the run that started at seenAt.
func (r *RemnantRepository) MarkSeen(ctx context.Context, id int, seenAt time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE remnants
		SET last_seen_at = $2, is_active = true, deleted_at = NULL, updated_at = now()
		WHERE id = $1
	`, id, seenAt)
	return err
}

// PhotoHash returns the stored photo hash, or "" when there is none.
func (r *RemnantRepository) PhotoHash(ctx context.Context, id int) (string, error) {
	var hash *string
	err := r.DB.QueryRow(ctx, `SELECT photo_hash FROM remnants WHERE id = $1 LIMIT 1`, id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if hash == nil {
		return "", nil
	}
	return *hash, nil
}

func (r *RemnantRepository) UpdatePhoto(ctx context.Context, id int, p model.Photo) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE remnants
		SET photo_hash = $2, image_path = $3, image = $4, photo_synced_at = $5, updated_at = now()
		WHERE id = $1
	`, id, p.Hash, p.Path, p.PublicURL, p.SyncedAt)
	return err
}

// Reconcile deactivates every remnant not seen since runStartedAt.
func (r *RemnantRepository) Reconcile(ctx context.Context, runStartedAt time.Time) error {
	_, err := r.DB.Exec(ctx, `SELECT reconcile_deletions(p_run_started_at => $1)`, runStartedAt)
	return err
}

type ListFilter struct {
	Materials []string
	Stone     string
	Status    string
	MinWidth  *int
	MinHeight *int
}

// List returns active, non-deleted remnants matching the filter, newest id
// first.
func (r *RemnantRepository) List(ctx context.Context, f ListFilter) ([]model.ListedRemnant, error) {
	params := []interface{}{}
	paramIndex := 1

	whereClause := "is_active = true AND deleted_at IS NULL"
	if len(f.Materials) > 0 {
		whereClause += fmt.Sprintf(" AND material = ANY($%d)", paramIndex)
		params = append(params, f.Materials)
		paramIndex++
	}
	if f.Stone != "" {
		whereClause += fmt.Sprintf(" AND name ILIKE $%d", paramIndex)
		params = append(params, "%"+escapeLike(f.Stone)+"%")
		paramIndex++
	}
	if f.Status != "" {
		whereClause += fmt.Sprintf(" AND status ILIKE $%d", paramIndex)
		params = append(params, "%"+escapeLike(f.Status)+"%")
		paramIndex++
	}
	if f.MinWidth != nil {
		whereClause += fmt.Sprintf(" AND width >= $%d", paramIndex)
		params = append(params, *f.MinWidth)
		paramIndex++
	}
	if f.MinHeight != nil {
		whereClause += fmt.Sprintf(" AND height >= $%d", paramIndex)
		params = append(params, *f.MinHeight)
		paramIndex++
	}

	query := `
		SELECT id, name, material, width, height, thickness, l_shape, l_width, l_height,
			status, image, image_path, source_image_url, is_active, deleted_at, last_seen_at, updated_at
		FROM remnants
		WHERE ` + whereClause + `
		ORDER BY id DESC`

	rows, err := r.DB.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.ListedRemnant
	for rows.Next() {
		var m model.ListedRemnant
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Material, &m.Width, &m.Height, &m.Thickness, &m.LShape, &m.LWidth, &m.LHeight,
			&m.Status, &m.Image, &m.ImagePath, &m.SourceImageURL, &m.IsActive, &m.DeletedAt, &m.LastSeenAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
