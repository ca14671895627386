package evidence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"cleanflow/db"
)

// Batcher is satisfied by pgx.Tx.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Repository persists photos. Rows are immutable once written; the schema
// rejects updates and cascades deletes from dispute_requests.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// InsertAll writes every upload for disputeID in one batch on tx.
func (r *Repository) InsertAll(ctx context.Context, tx Batcher, disputeID string, uploads []Upload, newID func() string, now time.Time) ([]Photo, error) {
	if len(uploads) == 0 {
		return nil, nil
	}

	const insertSQL = `
		INSERT INTO evidence_photos (id, dispute_request_id, room_type, room_number, image, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	photos := make([]Photo, 0, len(uploads))
	batch := &pgx.Batch{}
	for _, u := range uploads {
		p := Photo{
			ID:               newID(),
			DisputeRequestID: disputeID,
			RoomType:         u.RoomType,
			RoomNumber:       u.RoomNumber,
			Image:            u.Image,
			CreatedAt:        now,
		}
		batch.Queue(insertSQL, p.ID, p.DisputeRequestID, string(p.RoomType), p.RoomNumber, p.Image, p.CreatedAt)
		photos = append(photos, p)
	}

	results := tx.SendBatch(ctx, batch)
	for range photos {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return nil, fmt.Errorf("evidence: insert photo: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("evidence: close batch: %w", err)
	}
	return photos, nil
}

// ListByDispute returns photos grouped by dispute id, ordered by room type and
// number.
func (r *Repository) ListByDispute(ctx context.Context, q db.Querier, disputeIDs []string) (map[string][]Photo, error) {
	out := make(map[string][]Photo, len(disputeIDs))
	if len(disputeIDs) == 0 {
		return out, nil
	}

	const query = `
		SELECT id::text, dispute_request_id::text, room_type, room_number, image, created_at
		FROM evidence_photos
		WHERE dispute_request_id = ANY($1::uuid[])
		ORDER BY dispute_request_id, room_type, room_number
	`
	rows, err := q.Query(ctx, query, disputeIDs)
	if err != nil {
		return nil, fmt.Errorf("evidence: list: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.DisputeRequestID, &p.RoomType, &p.RoomNumber, &p.Image, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("evidence: scan: %w", err)
		}
		out[p.DisputeRequestID] = append(out[p.DisputeRequestID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evidence: iterate: %w", err)
	}
	return out, nil
}
