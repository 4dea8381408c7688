package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/agritrust/connect-api/internal/model"
)

// AccountRepo persists account records.  Every mutation that touches the
// refresh token or password is a single-row UPDATE so that concurrent
// login/refresh/logout for one account never interleave partial writes.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

const accountCols = "id, full_name, email, password_hash, phone, role, is_email_verified, " +
	"verify_token_hash, verify_token_expires, reset_token_hash, reset_token_expires, " +
	"refresh_token_hash, refresh_token_version, is_active, last_login, created_at, updated_at"

// Create inserts an account and fills in its generated ID.  The caller has
// already hashed the password and verification token.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO accounts
		   (full_name, email, password_hash, phone, role, verify_token_hash, verify_token_expires)
		 VALUES (?,?,?,?,?,?,?)`,
		a.FullName, a.Email, a.PasswordHash, a.Phone, string(a.Role), a.VerifyTokenHash, a.VerifyTokenExpires)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.get(ctx, "SELECT "+accountCols+" FROM accounts WHERE email=? LIMIT 1", email)
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return r.get(ctx, "SELECT "+accountCols+" FROM accounts WHERE id=? LIMIT 1", id)
}

func (r *AccountRepo) get(ctx context.Context, query string, arg any) (model.Account, error) {
	var (
		a         model.Account
		role      string
		verifyExp sql.NullTime
		resetExp  sql.NullTime
		lastLogin sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.FullName, &a.Email, &a.PasswordHash, &a.Phone, &role, &a.IsEmailVerified,
		&a.VerifyTokenHash, &verifyExp, &a.ResetTokenHash, &resetExp,
		&a.RefreshTokenHash, &a.RefreshTokenVersion, &a.IsActive, &lastLogin,
		&a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, err
	}
	a.Role = model.Role(role)
	if verifyExp.Valid {
		a.VerifyTokenExpires = &verifyExp.Time
	}
	if resetExp.Valid {
		a.ResetTokenExpires = &resetExp.Time
	}
	if lastLogin.Valid {
		a.LastLogin = &lastLogin.Time
	}
	return a, nil
}

// RecordLogin stores the new refresh token hash and login timestamp in one
// write.  Replacing the hash revokes whatever refresh token was stored
// before; the most recent login wins.
func (r *AccountRepo) RecordLogin(ctx context.Context, id uint64, refreshHash string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET refresh_token_hash=?, last_login=? WHERE id=?",
		refreshHash, at, id)
	return err
}

// ClearRefresh drops the stored refresh token, revoking the session.
func (r *AccountRepo) ClearRefresh(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET refresh_token_hash='' WHERE id=?", id)
	return err
}

// VerifyEmail consumes a non-expired verification token, marking the account
// verified and clearing the token.  ErrNotFound when no account matches.
func (r *AccountRepo) VerifyEmail(ctx context.Context, tokenHash string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE accounts
		    SET is_email_verified=1, verify_token_hash='', verify_token_expires=NULL
		  WHERE verify_token_hash=? AND verify_token_hash<>'' AND verify_token_expires>?`,
		tokenHash, now)
	if err != nil {
		return err
	}
	return requireRows(res)
}

// SetResetToken stores a password reset token hash and its expiry.
func (r *AccountRepo) SetResetToken(ctx context.Context, id uint64, tokenHash string, expires time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET reset_token_hash=?, reset_token_expires=? WHERE id=?",
		tokenHash, expires, id)
	return err
}

// ResetPassword is the explicit password-change operation: in one write it
// stores the new hash, bumps the refresh token version (invalidating every
// outstanding refresh token), clears the stored refresh token, and consumes
// the reset token.  ErrNotFound when the token is unknown or expired.
func (r *AccountRepo) ResetPassword(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE accounts
		    SET password_hash=?, refresh_token_version=refresh_token_version+1,
		        refresh_token_hash='', reset_token_hash='', reset_token_expires=NULL
		  WHERE reset_token_hash=? AND reset_token_hash<>'' AND reset_token_expires>?`,
		newPasswordHash, tokenHash, now)
	if err != nil {
		return err
	}
	return requireRows(res)
}

// UpdateProfile changes the mutable public fields of an account.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id uint64, fullName, phone string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET full_name=?, phone=? WHERE id=? AND is_active=1",
		fullName, phone, id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

// Deactivate soft-deletes an account: clears the refresh session, bumps the
// token version and flips is_active.  Deactivation is terminal.
func (r *AccountRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE accounts
		    SET is_active=0, refresh_token_hash='', refresh_token_version=refresh_token_version+1
		  WHERE id=? AND is_active=1`, id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isDuplicate matches MySQL error 1062 (duplicate key).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
