// Package users persists wallet-identified user records.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
)

// Repository stores one record per normalized wallet address.
//
// Implementations return common.ErrorNotFound for unknown wallets and
// common.ErrDuplicateRecord when Create loses a uniqueness race.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByWallet(ctx context.Context, wallet string) (*models.User, error)
	// RotateNonce stores a new nonce and sets LastLogin to at.
	RotateNonce(ctx context.Context, wallet, nonce string, at time.Time) (*models.User, error)
	// Touch sets LastLogin to at without changing the nonce.
	Touch(ctx context.Context, wallet string, at time.Time) error
	// List returns users ordered by creation time, newest first, and the total count.
	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
	Delete(ctx context.Context, wallet string) error
}
