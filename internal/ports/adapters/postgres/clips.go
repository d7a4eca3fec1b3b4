package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/forPelevin/hookcut/internal/types"
)

const defaultTable = "clips"

// ClipRepository stores rendered clip records, one row per clip.
type ClipRepository struct {
	db    *sql.DB
	table string
}

func NewClipRepository(db *sql.DB, table string) *ClipRepository {
	if table == "" {
		table = defaultTable
	}
	return &ClipRepository{db: db, table: table}
}

// Migrate creates the clip table when it does not exist.
func (r *ClipRepository) Migrate(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq                BIGSERIAL,
			id                 TEXT PRIMARY KEY,
			project_id         TEXT NOT NULL,
			title              TEXT NOT NULL,
			start_time         DOUBLE PRECISION NOT NULL,
			end_time           DOUBLE PRECISION NOT NULL,
			virality_score     DOUBLE PRECISION NOT NULL,
			transcript_segment JSONB NOT NULL,
			video_url          TEXT NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, pq.QuoteIdentifier(r.table))
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("migrate %s: %w", r.table, err)
	}
	return nil
}

// SaveClips inserts all records for a project in one transaction. Either every
// record is stored or none is.
func (r *ClipRepository) SaveClips(ctx context.Context, projectID string, clips []types.ClipRecord) error {
	if len(clips) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, project_id, title, start_time, end_time, virality_score, transcript_segment, video_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)`, pq.QuoteIdentifier(r.table)))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range clips {
		seg, err := json.Marshal(c.TranscriptSegment)
		if err != nil {
			return fmt.Errorf("encode transcript segment of %s: %w", c.ID, err)
		}
		_, err = stmt.ExecContext(ctx, c.ID, projectID, c.Title, c.StartTime, c.EndTime, c.ViralityScore, string(seg), c.VideoURL)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return fmt.Errorf("clip %s already stored: %w", c.ID, err)
			}
			return fmt.Errorf("insert clip %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListClips returns a project's clips in insertion order.
func (r *ClipRepository) ListClips(ctx context.Context, projectID string) ([]types.ClipRecord, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, title, start_time, end_time, virality_score, transcript_segment, video_url
		FROM %s WHERE project_id = $1 ORDER BY seq`, pq.QuoteIdentifier(r.table)), projectID)
	if err != nil {
		return nil, fmt.Errorf("query clips: %w", err)
	}
	defer rows.Close()

	var out []types.ClipRecord
	for rows.Next() {
		var (
			c   types.ClipRecord
			seg []byte
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.StartTime, &c.EndTime, &c.ViralityScore, &seg, &c.VideoURL); err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		if err := json.Unmarshal(seg, &c.TranscriptSegment); err != nil {
			return nil, fmt.Errorf("decode transcript segment of %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
