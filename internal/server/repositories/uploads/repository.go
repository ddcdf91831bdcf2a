// Package uploads is the upload ledger: one record per upload attempt with
// its lifecycle status.
package uploads

import (
	"context"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
)

// Repository persists upload records.
//
// Status changes go through UpdateStatus only. It succeeds only when the
// record is currently in state from, which makes transitions safe across
// concurrent requests without in-process locks.
type Repository interface {
	// Create inserts rec with status pending. A clash on the internal id or
	// the network id yields common.ErrDuplicateRecord.
	Create(ctx context.Context, rec *models.Upload) error
	// FindByTransactionID looks a record up by its internal id or its
	// network-assigned id.
	FindByTransactionID(ctx context.Context, id string) (*models.Upload, error)
	// UpdateStatus moves record id from one state to another, applying the
	// non-nil fields of patch. It returns common.ErrInvalidState when the
	// record exists but is not in state from.
	UpdateStatus(ctx context.Context, id string, from, to models.UploadStatus, patch models.UploadPatch) (*models.Upload, error)
	// ListByWallet returns a newest-first page of the wallet's uploads and
	// the total number of its uploads.
	ListByWallet(ctx context.Context, wallet string, offset, limit int) ([]*models.Upload, int64, error)
	// FailStale marks processing uploads not updated since olderThan as failed.
	FailStale(ctx context.Context, olderThan time.Time) (int64, error)
}
