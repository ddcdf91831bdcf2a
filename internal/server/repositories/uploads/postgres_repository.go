package uploads

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/dbx"
	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
)

const uploadColumns = `id, transaction_id, file_name, file_size, file_type, content_type, uploaded_by, status,
	cost_ar, cost_winston, cost_usd, cost_bytes, title, description, tags, permanent_url, created_at, updated_at`

type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.Upload) error {
	tags, err := json.Marshal(nonNilTags(rec.Metadata.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	now := r.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt
	rec.Status = models.StatusPending

	query :=
		`INSERT INTO uploads (` + uploadColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID, nullString(rec.TransactionID), rec.FileName, rec.FileSize, rec.FileType, rec.ContentType, rec.UploadedBy, string(rec.Status),
		rec.Cost.AR, rec.Cost.Winston, rec.Cost.USD, rec.Cost.Bytes,
		rec.Metadata.Title, rec.Metadata.Description, tags, rec.PermanentURL, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrDuplicateRecord
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) FindByTransactionID(ctx context.Context, id string) (*models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE id = $1 OR transaction_id = $1 LIMIT 1`

	rec, err := scanUpload(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to models.UploadStatus, patch models.UploadPatch) (*models.Upload, error) {
	query :=
		`UPDATE uploads SET status = $3,
			transaction_id = COALESCE($4, transaction_id),
			permanent_url = COALESCE($5, permanent_url),
			updated_at = $6
		 WHERE id = $1 AND status = $2
		 RETURNING ` + uploadColumns

	rec, err := scanUpload(r.db.QueryRowContext(ctx, query,
		id, string(from), string(to), optional(patch.TransactionID), optional(patch.PermanentURL), r.now().UTC()))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateRecord
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	// Nothing matched: tell a missing record from one in another state.
	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM uploads WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if !exists {
		return nil, common.ErrorNotFound
	}
	return nil, fmt.Errorf("%w: %s is not %s", common.ErrInvalidState, id, from)
}

func (r *PostgresRepository) ListByWallet(ctx context.Context, wallet string, offset, limit int) ([]*models.Upload, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads WHERE uploaded_by = $1`, wallet).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	query :=
		`SELECT ` + uploadColumns + ` FROM uploads
		 WHERE uploaded_by = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, wallet, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select uploads: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Upload, 0, limit)
	for rows.Next() {
		rec, err := scanUpload(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

func (r *PostgresRepository) FailStale(ctx context.Context, olderThan time.Time) (int64, error) {
	query :=
		`UPDATE uploads SET status = $1, updated_at = $2
		 WHERE status = $3 AND updated_at < $4`

	res, err := r.db.ExecContext(ctx, query, string(models.StatusFailed), r.now().UTC(), string(models.StatusProcessing), olderThan)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*models.Upload, error) {
	var (
		rec    models.Upload
		txID   sql.NullString
		status string
		tags   []byte
	)

	err := row.Scan(&rec.ID, &txID, &rec.FileName, &rec.FileSize, &rec.FileType, &rec.ContentType, &rec.UploadedBy, &status,
		&rec.Cost.AR, &rec.Cost.Winston, &rec.Cost.USD, &rec.Cost.Bytes,
		&rec.Metadata.Title, &rec.Metadata.Description, &tags, &rec.PermanentURL, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.TransactionID = txID.String
	rec.Status = models.UploadStatus(status)
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &rec.Metadata.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return &rec, nil
}

func nonNilTags(tags []models.Tag) []models.Tag {
	if tags == nil {
		return []models.Tag{}
	}
	return tags
}

// nullString stores "" as NULL so that the unique index on transaction_id
// ignores records without a network id.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func optional(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
