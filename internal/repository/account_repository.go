package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/homestay-auth/internal/model"
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

const accountColumns = "id, name, email, role, is_oauth_user, avatar, is_blocked, is_verified, verification_status, rejection_reason, created_at, updated_at"

// credentialColumns extends accountColumns with the secret fields. Only the
// *Credentials* read paths select them.
const credentialColumns = accountColumns + ", password_hash, refresh_token_hash"

// AccountRepo persists accounts in the `accounts` table.
type AccountRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewAccountRepo constructs an AccountRepo.
func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner, withCredentials bool) (*model.Account, error) {
	var (
		a      model.Account
		role   string
		status string
	)
	dest := []any{
		&a.ID, &a.Name, &a.Email, &role, &a.IsOAuthUser, &a.Avatar, &a.IsBlocked,
		&a.IsVerified, &status, &a.RejectionReason, &a.CreatedAt, &a.UpdatedAt,
	}
	if withCredentials {
		dest = append(dest, &a.PasswordHash, &a.RefreshTokenHash)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Role = model.Role(role)
	a.VerificationStatus = model.VerificationStatus(status)
	return &a, nil
}

// Create inserts a. The email is normalized before insert and CreatedAt and
// UpdatedAt are filled in on success.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	a.Email = model.NormalizeEmail(a.Email)
	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, email, password_hash, role, is_oauth_user, avatar,
			refresh_token_hash, is_blocked, is_verified, verification_status, rejection_reason, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Name, a.Email, a.PasswordHash, string(a.Role), a.IsOAuthUser, a.Avatar,
		a.RefreshTokenHash, a.IsBlocked, a.IsVerified, string(a.VerificationStatus), a.RejectionReason, now, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	a.CreatedAt, a.UpdatedAt = now, now
	return nil
}

// GetByID fetches an account without credentials.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id)
	return scanAccount(row, false)
}

// GetByEmail fetches an account by normalized email without credentials.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1", model.NormalizeEmail(email))
	return scanAccount(row, false)
}

// GetCredentialsByEmail is GetByEmail including the password and refresh
// token hashes.
func (r *AccountRepo) GetCredentialsByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+credentialColumns+" FROM accounts WHERE email=? LIMIT 1", model.NormalizeEmail(email))
	return scanAccount(row, true)
}

// GetCredentialsByID is GetByID including the password and refresh token
// hashes.
func (r *AccountRepo) GetCredentialsByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+credentialColumns+" FROM accounts WHERE id=? LIMIT 1", id)
	return scanAccount(row, true)
}

// SetRefreshTokenHash overwrites the live refresh token hash in a single
// statement. An empty hash logs the account out everywhere.
func (r *AccountRepo) SetRefreshTokenHash(ctx context.Context, id, hash string) error {
	return r.execOne(ctx, "UPDATE accounts SET refresh_token_hash=?, updated_at=? WHERE id=?", hash, r.now().UTC(), id)
}

// UpdatePassword replaces the password hash and clears the refresh token in
// the same statement.
func (r *AccountRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.execOne(ctx, "UPDATE accounts SET password_hash=?, refresh_token_hash='', updated_at=? WHERE id=?", passwordHash, r.now().UTC(), id)
}

// SetBlocked toggles the administrative kill-switch.
func (r *AccountRepo) SetBlocked(ctx context.Context, id string, blocked bool) error {
	return r.execOne(ctx, "UPDATE accounts SET is_blocked=?, updated_at=? WHERE id=?", blocked, r.now().UTC(), id)
}

// TransitionVerification applies t to the host with id using one conditional
// UPDATE and returns the updated account. It returns ErrNotFound when no host
// has that id and ErrStateConflict when the current status is not in t.From.
func (r *AccountRepo) TransitionVerification(ctx context.Context, id string, t model.VerificationTransition) (*model.Account, error) {
	if len(t.From) == 0 {
		return nil, ErrStateConflict
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(t.From)), ",")
	q := "UPDATE accounts SET verification_status=?, is_verified=?, rejection_reason=?, updated_at=? " +
		"WHERE id=? AND role=? AND verification_status IN (" + placeholders + ")"
	args := []any{string(t.To), t.IsVerified, t.Reason, r.now().UTC(), id, string(model.RoleHost)}
	for _, f := range t.From {
		args = append(args, string(f))
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("transition verification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		a, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if a.Role != model.RoleHost {
			return nil, ErrNotFound
		}
		return nil, ErrStateConflict
	}
	return r.GetByID(ctx, id)
}

// ListHosts returns host accounts, optionally filtered by status, newest first.
func (r *AccountRepo) ListHosts(ctx context.Context, status model.VerificationStatus) ([]model.Account, error) {
	q := "SELECT " + accountColumns + " FROM accounts WHERE role=?"
	args := []any{string(model.RoleHost)}
	if status != model.VerificationNone {
		q += " AND verification_status=?"
		args = append(args, string(status))
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// execOne runs an UPDATE/DELETE expected to touch exactly one row. The DSN
// sets clientFoundRows so unchanged rows still count as matched.
func (r *AccountRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
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

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
