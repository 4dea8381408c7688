package handler

import (
	"context"
	"time"

	"github.com/agritrust/connect-api/internal/model"
)

// AccountStore is the slice of the credential store the auth and profile
// flows call.  *repository.AccountRepo satisfies it; tests substitute an
// in-memory fake.
type AccountStore interface {
	Create(ctx context.Context, a *model.Account) error
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	RecordLogin(ctx context.Context, id uint64, refreshHash string, at time.Time) error
	ClearRefresh(ctx context.Context, id uint64) error
	VerifyEmail(ctx context.Context, tokenHash string, now time.Time) error
	SetResetToken(ctx context.Context, id uint64, tokenHash string, expires time.Time) error
	ResetPassword(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) error
	UpdateProfile(ctx context.Context, id uint64, fullName, phone string) error
	Deactivate(ctx context.Context, id uint64) error
}

// ClaimStore is the slice of the claim store the intake and review flows
// call.  *repository.ClaimRepo satisfies it.
type ClaimStore interface {
	Create(ctx context.Context, c *model.Claim) error
	GetByReference(ctx context.Context, ref string) (model.Claim, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Claim, error)
	UpdateStatus(ctx context.Context, ref string, from, to model.ClaimStatus, notes string) error
}
