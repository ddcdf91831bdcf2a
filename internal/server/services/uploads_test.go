package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/logging"
	"github.com/dmitrijs2005/weavekeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/weavekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadFixture struct {
	svc     *UploadService
	repo    *fakeUploadsRepo
	network *fakeNetwork
	blobs   *blobstore.FSStore
}

func newUploadFixture(t *testing.T) *uploadFixture {
	t.Helper()
	repo := newFakeUploadsRepo()
	network := newFakeNetwork()
	blobs, err := blobstore.NewFSStore(afero.NewMemMapFs(), "/blobs")
	require.NoError(t, err)
	m, err := metrics.New("test", nil)
	require.NoError(t, err)

	svc := NewUploadService(repo, network, NewPriceEstimator(network, 16, time.Minute, m), blobs, m, logging.Nop{})
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
	}
	return &uploadFixture{svc: svc, repo: repo, network: network, blobs: blobs}
}

func sampleInput(owner string) SubmitInput {
	return SubmitInput{
		FileName:    "photo.png",
		ContentType: "image/png",
		Data:        make([]byte, 1024),
		Owner:       owner,
		UserAgent:   "curl/8.0",
		Title:       "A photo",
	}
}

func TestSubmit_Confirmed(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Submit(ctx, sampleInput("0xABC"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusConfirmed, rec.Status)
	assert.Equal(t, "arweave-tx-1", rec.TransactionID)
	assert.Equal(t, "http://localhost:1984/arweave-tx-1", rec.PermanentURL)
	assert.Equal(t, "0xabc", rec.UploadedBy)
	assert.Equal(t, "image", rec.FileType)
	assert.Equal(t, int64(1024), rec.FileSize)
	assert.Equal(t, models.Cost{AR: "0.000000011240", Winston: "11240", Bytes: 1024}, rec.Cost)
	assert.Equal(t, "A photo", rec.Metadata.Title)

	require.Equal(t, 1, f.network.sends())
	tags := f.network.sent[0].tags
	require.Len(t, tags, 5)
	assert.Equal(t, models.Tag{Name: "Content-Type", Value: "image/png"}, tags[0])
	assert.Equal(t, models.Tag{Name: "User-Agent", Value: "curl/8.0"}, tags[1])
	assert.Equal(t, models.Tag{Name: "Original-Name", Value: "photo.png"}, tags[2])
	assert.Equal(t, models.Tag{Name: "Uploader-Address", Value: "0xabc"}, tags[3])
	assert.Equal(t, models.Tag{Name: "App-Name", Value: AppName}, tags[4])

	// both identifiers resolve to the same record
	byID, err := f.svc.Status(ctx, rec.ID)
	require.NoError(t, err)
	byTx, err := f.svc.Status(ctx, rec.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byTx.ID)

	// confirmed uploads do not keep their bytes
	_, err = f.blobs.Get(ctx, rec.ID)
	assert.True(t, errors.Is(err, common.ErrContentUnavailable))
}

func TestSubmit_DefaultsAndValidation(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitInput{FileName: "a", Data: []byte("x")})
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)

	_, err = f.svc.Submit(ctx, SubmitInput{Owner: "0xabc", Data: []byte("x")})
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)

	rec, err := f.svc.Submit(ctx, SubmitInput{FileName: "blob.bin", Owner: "0xabc", Data: nil})
	require.NoError(t, err)
	assert.Equal(t, defaultContentType, rec.ContentType)
	assert.Equal(t, "application", rec.FileType)
	assert.Equal(t, models.Tag{Name: "User-Agent", Value: "Unknown"}, rec.Metadata.Tags[1])
}

func TestSubmit_NetworkFailureLeavesFailedRecord(t *testing.T) {
	f := newUploadFixture(t)
	f.network.sendErr = errors.New("node unreachable")
	ctx := context.Background()

	rec, err := f.svc.Submit(ctx, sampleInput("0xabc"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUpstream), "got %v", err)
	assert.Contains(t, err.Error(), "node unreachable")

	require.NotNil(t, rec)
	assert.Equal(t, models.StatusFailed, rec.Status)
	assert.Empty(t, rec.TransactionID)
	assert.Equal(t, rec.ID, rec.PublicID())

	got, err := f.svc.Status(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)

	// bytes are kept for a retry
	data, err := f.blobs.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, data, 1024)
}

func TestSubmit_PricingFailureLeavesFailedRecord(t *testing.T) {
	f := newUploadFixture(t)
	f.network.price = func(int64) (string, error) { return "", errors.New("price endpoint down") }

	rec, err := f.svc.Submit(context.Background(), sampleInput("0xabc"))
	assert.True(t, errors.Is(err, common.ErrPricingUnavailable), "got %v", err)
	assert.True(t, errors.Is(err, common.ErrUpstream), "got %v", err)
	require.NotNil(t, rec)
	assert.Equal(t, models.StatusFailed, f.repo.get(rec.ID).Status)
	assert.Equal(t, 0, f.network.sends())
}

func TestSubmit_LedgerUnavailable(t *testing.T) {
	f := newUploadFixture(t)
	f.repo.createErr = errBoom

	rec, err := f.svc.Submit(context.Background(), sampleInput("0xabc"))
	assert.Nil(t, rec)
	assert.True(t, errors.Is(err, common.ErrUpstream), "got %v", err)
	assert.Equal(t, 0, f.network.sends())
}

func TestSubmit_CallerGoneDuringSendStillMarksFailed(t *testing.T) {
	f := newUploadFixture(t)
	f.svc.repo = ctxUploadsRepo{f.repo}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.network.onSend = cancel
	f.network.sendErr = context.Canceled

	rec, err := f.svc.Submit(ctx, sampleInput("0xabc"))
	assert.True(t, errors.Is(err, common.ErrUpstream), "got %v", err)
	require.NotNil(t, rec)
	assert.Equal(t, models.StatusFailed, rec.Status)
	assert.Equal(t, models.StatusFailed, f.repo.get(rec.ID).Status)
}

func TestSubmit_CallerGoneAfterNetworkAcceptedStillConfirms(t *testing.T) {
	f := newUploadFixture(t)
	f.svc.repo = ctxUploadsRepo{f.repo}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.network.onSend = cancel

	rec, err := f.svc.Submit(ctx, sampleInput("0xabc"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, rec.Status)

	stored := f.repo.get(rec.ID)
	assert.Equal(t, models.StatusConfirmed, stored.Status)
	assert.Equal(t, "arweave-tx-1", stored.TransactionID)

	_, err = f.blobs.Get(context.Background(), rec.ID)
	assert.True(t, errors.Is(err, common.ErrContentUnavailable), "got %v", err)
}

func TestSubmit_UnrecordedFailureReportsLedgerStatus(t *testing.T) {
	f := newUploadFixture(t)
	f.network.sendErr = errors.New("node unreachable")
	f.network.onSend = func() {
		f.repo.mu.Lock()
		f.repo.updateErr = errBoom
		f.repo.mu.Unlock()
	}

	rec, err := f.svc.Submit(context.Background(), sampleInput("0xabc"))
	assert.True(t, errors.Is(err, common.ErrUpstream), "got %v", err)
	require.NotNil(t, rec)
	assert.Equal(t, models.StatusProcessing, rec.Status)
	assert.Equal(t, models.StatusProcessing, f.repo.get(rec.ID).Status)
}

func TestRetry_Succeeds(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()

	f.network.sendErr = errors.New("timeout")
	failed, err := f.svc.Submit(ctx, sampleInput("0xabc"))
	require.Error(t, err)

	f.network.sendErr = nil
	rec, err := f.svc.Retry(ctx, failed.ID, "0xABC")
	require.NoError(t, err)

	assert.Equal(t, failed.ID, rec.ID)
	assert.Equal(t, models.StatusConfirmed, rec.Status)
	assert.NotEmpty(t, rec.TransactionID)
	assert.Equal(t, f.network.sent[0].tags, f.network.sent[1].tags)
	assert.Equal(t, f.network.sent[0].data, f.network.sent[1].data)
	assert.Len(t, f.repo.records, 1)
}

func TestRetry_FailureStaysFailed(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()
	f.network.sendErr = errors.New("timeout")

	failed, _ := f.svc.Submit(ctx, sampleInput("0xabc"))

	rec, err := f.svc.Retry(ctx, failed.ID, "0xabc")
	assert.True(t, errors.Is(err, common.ErrUpstream), "got %v", err)
	assert.Equal(t, models.StatusFailed, rec.Status)
	assert.Equal(t, models.StatusFailed, f.repo.get(failed.ID).Status)

	// still retryable
	f.network.sendErr = nil
	rec, err = f.svc.Retry(ctx, failed.ID, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, rec.Status)
}

func TestRetry_RejectsNonFailed(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()

	for _, st := range []models.UploadStatus{models.StatusPending, models.StatusProcessing, models.StatusConfirmed} {
		f.repo.put(models.Upload{ID: "rec-" + string(st), UploadedBy: "0xabc", Status: st})
		_, err := f.svc.Retry(ctx, "rec-"+string(st), "0xabc")
		assert.True(t, errors.Is(err, common.ErrInvalidState), "%s: got %v", st, err)
	}
	assert.Equal(t, 0, f.network.sends())
}

func TestRetry_ForbiddenRegardlessOfStatus(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()

	for _, st := range []models.UploadStatus{models.StatusPending, models.StatusProcessing, models.StatusConfirmed, models.StatusFailed} {
		f.repo.put(models.Upload{ID: "rec-" + string(st), UploadedBy: "0xowner", Status: st})
		_, err := f.svc.Retry(ctx, "rec-"+string(st), "0xintruder")
		assert.True(t, errors.Is(err, common.ErrForbidden), "%s: got %v", st, err)
	}
}

func TestRetry_NotFound(t *testing.T) {
	f := newUploadFixture(t)

	_, err := f.svc.Retry(context.Background(), "missing", "0xabc")
	assert.True(t, errors.Is(err, common.ErrorNotFound), "got %v", err)
}

func TestRetry_ContentUnavailable(t *testing.T) {
	f := newUploadFixture(t)
	f.repo.put(models.Upload{ID: "no-bytes", UploadedBy: "0xabc", Status: models.StatusFailed})

	_, err := f.svc.Retry(context.Background(), "no-bytes", "0xabc")
	assert.True(t, errors.Is(err, common.ErrContentUnavailable), "got %v", err)
	assert.Equal(t, models.StatusFailed, f.repo.get("no-bytes").Status)
}

func TestRetry_ConcurrentClaimOneWins(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()

	f.network.sendErr = errors.New("timeout")
	failed, _ := f.svc.Submit(ctx, sampleInput("0xabc"))
	f.network.sendErr = nil

	var second error
	f.network.onSend = func() {
		f.network.onSend = nil
		_, second = f.svc.Retry(ctx, failed.ID, "0xabc")
	}

	rec, err := f.svc.Retry(ctx, failed.ID, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, rec.Status)
	assert.True(t, errors.Is(second, common.ErrInvalidState), "got %v", second)
}

func TestListForWallet_Pagination(t *testing.T) {
	f := newUploadFixture(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 15; i++ {
		f.repo.put(models.Upload{
			ID:         fmt.Sprintf("rec-%02d", i),
			UploadedBy: "0xabc",
			Status:     models.StatusConfirmed,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	f.repo.put(models.Upload{ID: "other", UploadedBy: "0xdef", CreatedAt: base})

	p, err := f.svc.ListForWallet(context.Background(), "0xABC", 2, 10)
	require.NoError(t, err)
	assert.Len(t, p.Uploads, 5)
	assert.Equal(t, int64(15), p.Total)
	assert.Equal(t, int64(2), p.Pages)
	assert.Equal(t, "rec-04", p.Uploads[0].ID)

	first, err := f.svc.ListForWallet(context.Background(), "0xabc", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "rec-14", first.Uploads[0].ID)

	far, err := f.svc.ListForWallet(context.Background(), "0xabc", math.MaxInt/5, 10)
	require.NoError(t, err)
	assert.Empty(t, far.Uploads)
	assert.Equal(t, int64(15), far.Total)
}

func TestStatus(t *testing.T) {
	f := newUploadFixture(t)

	_, err := f.svc.Status(context.Background(), "nope")
	assert.True(t, errors.Is(err, common.ErrorNotFound), "got %v", err)

	_, err = f.svc.Status(context.Background(), "")
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)
}

func TestFileType(t *testing.T) {
	assert.Equal(t, "image", fileType("image/png"))
	assert.Equal(t, "text", fileType("Text/Plain; charset=utf-8"))
	assert.Equal(t, "", fileType(""))
}
