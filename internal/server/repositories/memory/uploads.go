package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
)

// UploadRepository keeps records by internal id with a secondary index on
// the network id.
type UploadRepository struct {
	mu      sync.RWMutex
	records map[string]models.Upload
	byTxID  map[string]string
	now     func() time.Time
}

func NewUploadRepository() *UploadRepository {
	return &UploadRepository{
		records: make(map[string]models.Upload),
		byTxID:  make(map[string]string),
		now:     time.Now,
	}
}

func (r *UploadRepository) Create(_ context.Context, rec *models.Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.ID]; ok {
		return common.ErrDuplicateRecord
	}
	if rec.TransactionID != "" {
		if _, ok := r.byTxID[rec.TransactionID]; ok {
			return common.ErrDuplicateRecord
		}
	}

	now := r.now().UTC()
	rec.Status = models.StatusPending
	rec.CreatedAt = now
	rec.UpdatedAt = now

	r.records[rec.ID] = *clone(rec)
	if rec.TransactionID != "" {
		r.byTxID[rec.TransactionID] = rec.ID
	}
	return nil
}

func (r *UploadRepository) FindByTransactionID(_ context.Context, id string) (*models.Upload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rec, ok := r.records[id]; ok {
		return clone(&rec), nil
	}
	if local, ok := r.byTxID[id]; ok {
		rec := r.records[local]
		return clone(&rec), nil
	}
	return nil, common.ErrorNotFound
}

func (r *UploadRepository) UpdateStatus(_ context.Context, id string, from, to models.UploadStatus, patch models.UploadPatch) (*models.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if rec.Status != from {
		return nil, common.ErrInvalidState
	}

	if patch.TransactionID != nil && *patch.TransactionID != rec.TransactionID {
		if owner, taken := r.byTxID[*patch.TransactionID]; taken && owner != id {
			return nil, common.ErrDuplicateRecord
		}
		delete(r.byTxID, rec.TransactionID)
		rec.TransactionID = *patch.TransactionID
		r.byTxID[rec.TransactionID] = id
	}
	if patch.PermanentURL != nil {
		rec.PermanentURL = *patch.PermanentURL
	}
	rec.Status = to
	rec.UpdatedAt = r.now().UTC()
	r.records[id] = rec

	return clone(&rec), nil
}

func (r *UploadRepository) ListByWallet(_ context.Context, wallet string, offset, limit int) ([]*models.Upload, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*models.Upload
	for _, rec := range r.records {
		if rec.UploadedBy == wallet {
			all = append(all, clone(&rec))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return window(all, offset, limit), int64(len(all)), nil
}

func (r *UploadRepository) FailStale(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	now := r.now().UTC()
	for id, rec := range r.records {
		if rec.Status == models.StatusProcessing && rec.UpdatedAt.Before(olderThan) {
			rec.Status = models.StatusFailed
			rec.UpdatedAt = now
			r.records[id] = rec
			n++
		}
	}
	return n, nil
}

// clone copies rec so callers never share the stored tag slice.
func clone(rec *models.Upload) *models.Upload {
	cp := *rec
	cp.Metadata.Tags = append([]models.Tag(nil), rec.Metadata.Tags...)
	return &cp
}
