// Package memory holds process-local repository implementations for
// development runs and tests. Data is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]models.User)}
}

func (r *UserRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.WalletAddress]; ok {
		return nil, common.ErrDuplicateRecord
	}
	r.users[user.WalletAddress] = *user
	out := *user
	return &out, nil
}

func (r *UserRepository) FindByWallet(_ context.Context, wallet string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[wallet]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *UserRepository) RotateNonce(_ context.Context, wallet, nonce string, at time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[wallet]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.Nonce = nonce
	u.LastLogin = at
	r.users[wallet] = u
	return &u, nil
}

func (r *UserRepository) Touch(_ context.Context, wallet string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[wallet]
	if !ok {
		return common.ErrorNotFound
	}
	u.LastLogin = at
	r.users[wallet] = u
	return nil
}

func (r *UserRepository) List(_ context.Context, offset, limit int) ([]*models.User, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		u := u
		all = append(all, &u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return window(all, offset, limit), int64(len(all)), nil
}

func (r *UserRepository) Delete(_ context.Context, wallet string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[wallet]; !ok {
		return common.ErrorNotFound
	}
	delete(r.users, wallet)
	return nil
}

func window[T any](all []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []T{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}
