// Package services contains the server-side business logic: wallet sessions,
// the upload lifecycle, price estimation and the stale-upload reaper.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/logging"
	"github.com/dmitrijs2005/weavekeeper/internal/server/auth"
	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/users"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// UserService identifies users by wallet address and issues session tokens.
type UserService struct {
	repo   users.Repository
	tokens *auth.TokenService
	logger logging.Logger
	now    func() time.Time
	nonce  func() string
}

func NewUserService(repo users.Repository, tokens *auth.TokenService, logger logging.Logger) *UserService {
	return &UserService{
		repo:   repo,
		tokens: tokens,
		logger: logger.With("module", "users"),
		now:    time.Now,
		nonce:  auth.GenerateNonce,
	}
}

// Connect finds or creates the user for wallet, rotates its nonce and returns
// it together with a fresh session token.
func (s *UserService) Connect(ctx context.Context, wallet string) (*models.User, string, error) {
	addr := common.NormalizeWallet(wallet)
	if addr == "" {
		return nil, "", fmt.Errorf("%w: wallet address is required", common.ErrValidation)
	}

	now := s.now().UTC()
	nonce := s.nonce()

	user, err := s.repo.FindByWallet(ctx, addr)
	switch {
	case err == nil:
		user, err = s.repo.RotateNonce(ctx, addr, nonce, now)
	case errors.Is(err, common.ErrorNotFound):
		user, err = s.repo.Create(ctx, &models.User{
			WalletAddress: addr,
			Nonce:         nonce,
			CreatedAt:     now,
			LastLogin:     now,
		})
		if errors.Is(err, common.ErrDuplicateRecord) {
			// a concurrent first connect created the row
			user, err = s.repo.RotateNonce(ctx, addr, nonce, now)
		} else if err == nil {
			s.logger.Info(ctx, "new wallet connected", "wallet", addr)
		}
	}
	if err != nil {
		return nil, "", fmt.Errorf("connect wallet: %w", err)
	}

	token, err := s.tokens.Issue(addr)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	return user, token, nil
}

// FindByWallet returns common.ErrorNotFound for unknown wallets.
func (s *UserService) FindByWallet(ctx context.Context, wallet string) (*models.User, error) {
	return s.repo.FindByWallet(ctx, common.NormalizeWallet(wallet))
}

// Authenticate resolves a bearer token to an existing user. Every failure is
// reported as common.ErrorUnauthorized.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	wallet, err := s.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorUnauthorized, err)
	}
	user, err := s.repo.FindByWallet(ctx, common.NormalizeWallet(wallet))
	if errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("%w: user not found", common.ErrorUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CheckSession rejects wallets whose last login is older than the session
// lifetime.
func (s *UserService) CheckSession(ctx context.Context, wallet string) (*models.User, error) {
	user, err := s.repo.FindByWallet(ctx, common.NormalizeWallet(wallet))
	if errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("%w: user not found", common.ErrorUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if s.now().Sub(user.LastLogin) > auth.SessionTTL {
		return nil, fmt.Errorf("%w: wallet session expired", common.ErrorUnauthorized)
	}
	return user, nil
}

// Disconnect records the time the wallet left.
func (s *UserService) Disconnect(ctx context.Context, wallet string) error {
	if err := s.repo.Touch(ctx, common.NormalizeWallet(wallet), s.now().UTC()); err != nil {
		return fmt.Errorf("disconnect wallet: %w", err)
	}
	return nil
}

// UserPage is one page of the user listing.
type UserPage struct {
	Users []*models.User
	Pagination
}

// List returns a newest-first page of all users.
func (s *UserService) List(ctx context.Context, page, limit int) (*UserPage, error) {
	p := NewPagination(page, limit)
	list, total, err := s.repo.List(ctx, p.Offset(), p.Limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	p.SetTotal(total)
	return &UserPage{Users: list, Pagination: p}, nil
}

func (s *UserService) Delete(ctx context.Context, wallet string) error {
	addr := common.NormalizeWallet(wallet)
	if addr == "" {
		return fmt.Errorf("%w: wallet address is required", common.ErrValidation)
	}
	if err := s.repo.Delete(ctx, addr); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info(ctx, "user deleted", "wallet", addr)
	return nil
}
