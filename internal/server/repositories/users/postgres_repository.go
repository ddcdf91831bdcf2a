package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/dbx"
	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
)

// PostgresDB is what the repository needs from *sql.DB: plain queries and
// the ability to open a transaction.
type PostgresDB interface {
	dbx.DBTX
	dbx.TxBeginner
}

type PostgresRepository struct {
	db PostgresDB
}

func NewPostgresRepository(db PostgresDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (wallet_address, nonce, created_at, last_login)
		 VALUES ($1, $2, $3, $4)
		 `

	_, err := r.db.ExecContext(ctx, query, user.WalletAddress, user.Nonce, user.CreatedAt, user.LastLogin)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateRecord
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) FindByWallet(ctx context.Context, wallet string) (*models.User, error) {
	return r.findByWallet(ctx, r.db, wallet, false)
}

func (r *PostgresRepository) findByWallet(ctx context.Context, db dbx.DBTX, wallet string, lock bool) (*models.User, error) {
	query :=
		`SELECT wallet_address, nonce, created_at, last_login FROM users
		 WHERE wallet_address = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	user := &models.User{}
	err := db.QueryRowContext(ctx, query, wallet).Scan(&user.WalletAddress, &user.Nonce, &user.CreatedAt, &user.LastLogin)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// RotateNonce locks the row, then writes the new nonce and login time in the
// same transaction so that concurrent reconnects serialize.
func (r *PostgresRepository) RotateNonce(ctx context.Context, wallet, nonce string, at time.Time) (*models.User, error) {
	var user *models.User

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := r.findByWallet(ctx, tx, wallet, true)
		if err != nil {
			return err
		}

		query := `UPDATE users SET nonce = $2, last_login = $3 WHERE wallet_address = $1`
		if _, err := tx.ExecContext(ctx, query, wallet, nonce, at); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		u.Nonce = nonce
		u.LastLogin = at
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, wallet string, at time.Time) error {
	query := `UPDATE users SET last_login = $2 WHERE wallet_address = $1`

	res, err := r.db.ExecContext(ctx, query, wallet, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) List(ctx context.Context, offset, limit int) ([]*models.User, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	query :=
		`SELECT wallet_address, nonce, created_at, last_login FROM users
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select users: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.WalletAddress, &u.Nonce, &u.CreatedAt, &u.LastLogin); err != nil {
			return nil, 0, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, wallet string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE wallet_address = $1`, wallet)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
