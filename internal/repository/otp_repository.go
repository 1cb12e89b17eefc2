package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/utils"
)

// OtpRepo persists one-time login codes in the `one_time_codes` table.
// Expiry is evaluated by the caller; reads never delete.
type OtpRepo struct {
	db      *sql.DB
	now     func() time.Time
	newCode func() (string, error)
}

// NewOtpRepo constructs an OtpRepo.
func NewOtpRepo(db *sql.DB) *OtpRepo {
	return &OtpRepo{db: db, now: time.Now, newCode: utils.NewOTPCode}
}

// Create removes every outstanding code for email and stores a fresh one in
// the same transaction.
func (r *OtpRepo) Create(ctx context.Context, email string) (*model.OneTimeCode, error) {
	code, err := r.newCode()
	if err != nil {
		return nil, err
	}
	rec := &model.OneTimeCode{
		ID:        ulid.Make().String(),
		Email:     model.NormalizeEmail(email),
		Code:      code,
		CreatedAt: r.now().UTC(),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM one_time_codes WHERE email=?", rec.Email); err != nil {
		return nil, fmt.Errorf("purge codes: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO one_time_codes (id, email, code, created_at) VALUES (?,?,?,?)",
		rec.ID, rec.Email, rec.Code, rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert code: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindByEmailAndCode returns the matching record or ErrNotFound.
func (r *OtpRepo) FindByEmailAndCode(ctx context.Context, email, code string) (*model.OneTimeCode, error) {
	var rec model.OneTimeCode
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, code, created_at FROM one_time_codes WHERE email=? AND code=? ORDER BY created_at DESC LIMIT 1",
		model.NormalizeEmail(email), code).Scan(&rec.ID, &rec.Email, &rec.Code, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Delete consumes a code. It returns ErrNotFound when the row is already gone,
// which lets exactly one of two concurrent verifications win.
func (r *OtpRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM one_time_codes WHERE id=?", id)
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

// DeleteAllFor removes every code issued to email.
func (r *OtpRepo) DeleteAllFor(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM one_time_codes WHERE email=?", model.NormalizeEmail(email))
	return err
}

// DeleteOlderThan removes codes created before cutoff and reports how many.
func (r *OtpRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM one_time_codes WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
