package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/homestay-auth/internal/model"
)

// ResetRepo persists password reset artifacts in the `password_resets` table.
type ResetRepo struct{ db *sql.DB }

// NewResetRepo constructs a ResetRepo.
func NewResetRepo(db *sql.DB) *ResetRepo { return &ResetRepo{db: db} }

// Create replaces any outstanding reset for the account with rec.
func (r *ResetRepo) Create(ctx context.Context, rec *model.PasswordReset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM password_resets WHERE account_id=?", rec.AccountID); err != nil {
		return fmt.Errorf("purge resets: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO password_resets (id, account_id, token_hash, created_at, expires_at) VALUES (?,?,?,?,?)",
		rec.ID, rec.AccountID, rec.TokenHash, rec.CreatedAt.UTC(), rec.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("insert reset: %w", err)
	}
	return tx.Commit()
}

// GetByTokenHash returns the reset with the given token hash or ErrNotFound.
func (r *ResetRepo) GetByTokenHash(ctx context.Context, hash string) (*model.PasswordReset, error) {
	var rec model.PasswordReset
	err := r.db.QueryRowContext(ctx,
		"SELECT id, account_id, token_hash, created_at, expires_at FROM password_resets WHERE token_hash=? LIMIT 1",
		hash).Scan(&rec.ID, &rec.AccountID, &rec.TokenHash, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Delete removes one reset. It returns ErrNotFound when the row is already
// gone, so of two concurrent redemptions only one sees a nil error.
func (r *ResetRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM password_resets WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByAccount removes every reset for an account.
func (r *ResetRepo) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM password_resets WHERE account_id=?", accountID)
	return err
}

// DeleteExpired removes resets that expired before now.
func (r *ResetRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM password_resets WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
