package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
)

var errBoom = errors.New("boom")

// --- users ---

type fakeUsersRepo struct {
	mu    sync.Mutex
	users map[string]*models.User

	// forceDuplicate makes FindByWallet miss and Create report a lost race
	// while the row actually exists.
	forceDuplicate bool
	findErr        error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{users: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.WalletAddress]; ok {
		return nil, common.ErrDuplicateRecord
	}
	cp := *u
	f.users[u.WalletAddress] = &cp
	return &cp, nil
}

func (f *fakeUsersRepo) FindByWallet(_ context.Context, wallet string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.forceDuplicate {
		return nil, common.ErrorNotFound
	}
	u, ok := f.users[wallet]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) RotateNonce(_ context.Context, wallet, nonce string, at time.Time) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[wallet]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.Nonce = nonce
	u.LastLogin = at
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) Touch(_ context.Context, wallet string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[wallet]
	if !ok {
		return common.ErrorNotFound
	}
	u.LastLogin = at
	return nil
}

func (f *fakeUsersRepo) List(_ context.Context, offset, limit int) ([]*models.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]*models.User, 0, len(f.users))
	for _, u := range f.users {
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, offset, limit), int64(len(all)), nil
}

func (f *fakeUsersRepo) Delete(_ context.Context, wallet string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[wallet]; !ok {
		return common.ErrorNotFound
	}
	delete(f.users, wallet)
	return nil
}

// --- uploads ---

// fakeUploadsRepo enforces the same guarded transitions as the real ledgers.
type fakeUploadsRepo struct {
	mu      sync.Mutex
	records map[string]*models.Upload
	now     func() time.Time

	createErr error
	updateErr error
}

func newFakeUploadsRepo() *fakeUploadsRepo {
	return &fakeUploadsRepo{records: map[string]*models.Upload{}, now: time.Now}
}

func (f *fakeUploadsRepo) Create(_ context.Context, rec *models.Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.records[rec.ID]; ok {
		return common.ErrDuplicateRecord
	}
	now := f.now()
	rec.Status = models.StatusPending
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeUploadsRepo) find(id string) *models.Upload {
	if r, ok := f.records[id]; ok {
		return r
	}
	for _, r := range f.records {
		if r.TransactionID != "" && r.TransactionID == id {
			return r
		}
	}
	return nil
}

func (f *fakeUploadsRepo) FindByTransactionID(_ context.Context, id string) (*models.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	if r == nil {
		return nil, common.ErrorNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeUploadsRepo) UpdateStatus(_ context.Context, id string, from, to models.UploadStatus, patch models.UploadPatch) (*models.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	r, ok := f.records[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if r.Status != from {
		return nil, common.ErrInvalidState
	}
	r.Status = to
	if patch.TransactionID != nil {
		r.TransactionID = *patch.TransactionID
	}
	if patch.PermanentURL != nil {
		r.PermanentURL = *patch.PermanentURL
	}
	r.UpdatedAt = f.now()
	cp := *r
	return &cp, nil
}

// ctxUploadsRepo fails status writes on a done context, like a real driver.
type ctxUploadsRepo struct {
	*fakeUploadsRepo
}

func (c ctxUploadsRepo) UpdateStatus(ctx context.Context, id string, from, to models.UploadStatus, patch models.UploadPatch) (*models.Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.fakeUploadsRepo.UpdateStatus(ctx, id, from, to, patch)
}

func (f *fakeUploadsRepo) ListByWallet(_ context.Context, wallet string, offset, limit int) ([]*models.Upload, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*models.Upload
	for _, r := range f.records {
		if r.UploadedBy == wallet {
			cp := *r
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, offset, limit), int64(len(all)), nil
}

func (f *fakeUploadsRepo) FailStale(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.records {
		if r.Status == models.StatusProcessing && r.UpdatedAt.Before(olderThan) {
			r.Status = models.StatusFailed
			r.UpdatedAt = f.now()
			n++
		}
	}
	return n, nil
}

func (f *fakeUploadsRepo) put(rec models.Upload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.ID] = &rec
}

func (f *fakeUploadsRepo) get(id string) models.Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.records[id]
}

func page[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// --- network ---

type sentTx struct {
	data []byte
	tags []models.Tag
}

type fakeNetwork struct {
	mu       sync.Mutex
	price    func(size int64) (string, error)
	priceN   int
	sendErr  error
	sent     []sentTx
	onSend   func()
	nextTxID int
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{
		price: func(size int64) (string, error) {
			return itoa(1000 + 10*size), nil
		},
	}
}

func (n *fakeNetwork) Price(_ context.Context, size int64) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.priceN++
	return n.price(size)
}

func (n *fakeNetwork) Send(_ context.Context, data []byte, tags []models.Tag) (string, error) {
	if n.onSend != nil {
		n.onSend()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentTx{data: data, tags: tags})
	if n.sendErr != nil {
		return "", n.sendErr
	}
	n.nextTxID++
	return "arweave-tx-" + itoa(int64(n.nextTxID)), nil
}

func (n *fakeNetwork) PermanentURL(id string) string {
	return "http://localhost:1984/" + id
}

func (n *fakeNetwork) sends() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
