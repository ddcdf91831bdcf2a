package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/logging"
	"github.com/dmitrijs2005/weavekeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/weavekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/uploads"
	"github.com/google/uuid"
)

// AppName is sent as the App-Name tag of every transaction.
const AppName = "weavekeeper"

const defaultContentType = "application/octet-stream"

const (
	opSubmit = "submit"
	opRetry  = "retry"
)

// SubmitInput is a file handed in for permanent storage.
type SubmitInput struct {
	FileName    string
	ContentType string
	Data        []byte
	Owner       string
	UserAgent   string
	Title       string
	Description string
}

// UploadPage is one page of a wallet's uploads.
type UploadPage struct {
	Uploads []*models.Upload
	Pagination
}

// UploadService drives uploads through pending, processing, confirmed and
// failed. Every submission leaves a ledger record behind, whatever happens
// on the network.
type UploadService struct {
	repo    uploads.Repository
	network Network
	prices  *PriceEstimator
	blobs   blobstore.Store
	metrics *metrics.Metrics
	logger  logging.Logger
	now     func() time.Time
	newID   func() string
}

func NewUploadService(
	repo uploads.Repository,
	network Network,
	prices *PriceEstimator,
	blobs blobstore.Store,
	m *metrics.Metrics,
	logger logging.Logger,
) *UploadService {
	return &UploadService{
		repo:    repo,
		network: network,
		prices:  prices,
		blobs:   blobs,
		metrics: m,
		logger:  logger.With("module", "uploads"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (s *UploadService) EstimateCost(ctx context.Context, size int64) (models.Cost, error) {
	return s.prices.Estimate(ctx, size)
}

// Submit records the upload as pending, keeps a copy of its bytes for
// retries and pushes it to the network. On failure the returned record is
// the failed ledger entry and the error wraps common.ErrUpstream.
func (s *UploadService) Submit(ctx context.Context, in SubmitInput) (*models.Upload, error) {
	owner := common.NormalizeWallet(in.Owner)
	if owner == "" {
		return nil, fmt.Errorf("%w: owner wallet is required", common.ErrValidation)
	}
	if strings.TrimSpace(in.FileName) == "" {
		return nil, fmt.Errorf("%w: file name is required", common.ErrValidation)
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	userAgent := in.UserAgent
	if userAgent == "" {
		userAgent = "Unknown"
	}

	size := int64(len(in.Data))
	cost, costErr := s.prices.Estimate(ctx, size)
	if costErr != nil {
		cost = models.Cost{Bytes: size}
	}

	rec := &models.Upload{
		ID:          s.newID(),
		FileName:    in.FileName,
		FileSize:    size,
		FileType:    fileType(contentType),
		ContentType: contentType,
		UploadedBy:  owner,
		Status:      models.StatusPending,
		Cost:        cost,
		Metadata: models.Metadata{
			Title:       in.Title,
			Description: in.Description,
			Tags: []models.Tag{
				{Name: "Content-Type", Value: contentType},
				{Name: "User-Agent", Value: userAgent},
				{Name: "Original-Name", Value: in.FileName},
				{Name: "Uploader-Address", Value: owner},
				{Name: "App-Name", Value: AppName},
			},
		},
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: create upload record: %w", common.ErrUpstream, err)
	}
	s.logger.Info(ctx, "upload created", "id", rec.ID, "wallet", owner, "size", size)

	if err := s.blobs.Put(ctx, rec.ID, in.Data); err != nil {
		s.logger.Warn(ctx, "upload content not kept, retry will be unavailable", "id", rec.ID, "error", err)
	}

	start := s.now()
	if costErr != nil {
		return s.fail(ctx, opSubmit, rec, models.StatusPending, start, costErr)
	}

	claimed, err := s.repo.UpdateStatus(ctx, rec.ID, models.StatusPending, models.StatusProcessing, models.UploadPatch{})
	if err != nil {
		return s.fail(ctx, opSubmit, rec, models.StatusPending, start, fmt.Errorf("claim upload: %w", err))
	}

	return s.send(ctx, opSubmit, claimed, in.Data, start)
}

// Retry re-sends a failed upload owned by wallet, reusing the stored bytes
// and the original tags. The record is updated in place.
func (s *UploadService) Retry(ctx context.Context, id, wallet string) (*models.Upload, error) {
	rec, err := s.repo.FindByTransactionID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !common.SameWallet(rec.UploadedBy, wallet) {
		return nil, fmt.Errorf("%w: upload %s belongs to another wallet", common.ErrForbidden, id)
	}
	if rec.Status != models.StatusFailed {
		return nil, fmt.Errorf("%w: upload %s is %s", common.ErrInvalidState, id, rec.Status)
	}

	data, err := s.blobs.Get(ctx, rec.ID)
	if err != nil {
		if errors.Is(err, common.ErrContentUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrContentUnavailable, err)
	}

	claimed, err := s.repo.UpdateStatus(ctx, rec.ID, models.StatusFailed, models.StatusProcessing, models.UploadPatch{})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "upload retry started", "id", rec.ID)

	return s.send(ctx, opRetry, claimed, data, s.now())
}

func (s *UploadService) send(ctx context.Context, op string, rec *models.Upload, data []byte, start time.Time) (*models.Upload, error) {
	txID, err := s.network.Send(ctx, data, rec.Metadata.Tags)
	if err != nil {
		return s.fail(ctx, op, rec, models.StatusProcessing, start, err)
	}

	// The network has the data; record it even if the caller has gone.
	ctx = context.WithoutCancel(ctx)

	url := s.network.PermanentURL(txID)
	done, err := s.repo.UpdateStatus(ctx, rec.ID, models.StatusProcessing, models.StatusConfirmed, models.UploadPatch{
		TransactionID: &txID,
		PermanentURL:  &url,
	})
	if err != nil {
		s.logger.Error(ctx, "network accepted upload but ledger update failed", "id", rec.ID, "tx", txID, "error", err)
		return s.fail(ctx, op, rec, models.StatusProcessing, start, fmt.Errorf("confirm upload: %w", err))
	}

	if err := s.blobs.Delete(ctx, rec.ID); err != nil {
		s.logger.Warn(ctx, "stored upload content not removed", "id", rec.ID, "error", err)
	}

	s.metrics.RecordUpload(op, string(models.StatusConfirmed), s.now().Sub(start), done.FileSize)
	s.logger.Info(ctx, "upload confirmed", "id", done.ID, "tx", txID, "operation", op)
	return done, nil
}

// fail moves rec from state from to failed and returns the ledger's view of
// the record with cause wrapped in common.ErrUpstream. The ledger write
// outlives ctx. When it fails, rec is returned as it was, still in from.
func (s *UploadService) fail(ctx context.Context, op string, rec *models.Upload, from models.UploadStatus, start time.Time, cause error) (*models.Upload, error) {
	ctx = context.WithoutCancel(ctx)
	s.logger.Error(ctx, "upload failed", "id", rec.ID, "operation", op, "error", cause)

	failed, err := s.repo.UpdateStatus(ctx, rec.ID, from, models.StatusFailed, models.UploadPatch{})
	if err != nil {
		s.logger.Error(ctx, "mark upload failed", "id", rec.ID, "error", err)
		failed = rec
	}

	s.metrics.RecordUpload(op, string(models.StatusFailed), s.now().Sub(start), rec.FileSize)
	return failed, fmt.Errorf("%w: %w", common.ErrUpstream, cause)
}

// Status returns common.ErrorNotFound for unknown ids.
func (s *UploadService) Status(ctx context.Context, id string) (*models.Upload, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: transaction id is required", common.ErrValidation)
	}
	return s.repo.FindByTransactionID(ctx, id)
}

func (s *UploadService) ListForWallet(ctx context.Context, wallet string, page, limit int) (*UploadPage, error) {
	p := NewPagination(page, limit)
	list, total, err := s.repo.ListByWallet(ctx, common.NormalizeWallet(wallet), p.Offset(), p.Limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	p.SetTotal(total)
	return &UploadPage{Uploads: list, Pagination: p}, nil
}

// fileType is the top-level MIME type, "image" for "image/png".
func fileType(contentType string) string {
	major, _, _ := strings.Cut(contentType, "/")
	return strings.ToLower(strings.TrimSpace(major))
}
