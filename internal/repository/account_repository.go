package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewards-bot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownAccount is returned when an operation targets a user id that
// was never registered.
var ErrUnknownAccount = errors.New("unknown account")

// ClaimTooSoonError rejects a claim attempted before the cooldown elapsed.
// Remaining is truncated to whole seconds.
type ClaimTooSoonError struct {
	Remaining time.Duration
}

func (e *ClaimTooSoonError) Error() string {
	return fmt.Sprintf("claim not ready, %s remaining", e.Remaining)
}

// AccountRepository is the durable account store. All mutations are single
// conditional SQL statements, so concurrent callers never need engine-side
// locking to preserve the ledger invariants.
type AccountRepository struct {
	db       *gorm.DB
	cooldown time.Duration
}

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(db *gorm.DB, cooldown time.Duration) *AccountRepository {
	return &AccountRepository{
		db:       db,
		cooldown: cooldown,
	}
}

// Cooldown returns the configured claim cooldown
func (r *AccountRepository) Cooldown() time.Duration {
	return r.cooldown
}

// Get retrieves an account by user id without creating it
func (r *AccountRepository) Get(ctx context.Context, userID int64) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownAccount
		}
		return nil, err
	}
	return &account, nil
}

// CreateIfAbsent returns the existing account or creates a zeroed one.
// Concurrent calls for the same id create at most one row.
func (r *AccountRepository) CreateIfAbsent(ctx context.Context, userID int64) (*models.Account, error) {
	account := models.Account{UserID: userID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&account).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create account %d: %w", userID, err)
	}

	// Re-read: on conflict the insert returns the zero struct, not the row
	return r.Get(ctx, userID)
}

// ApplyClaim awards points and stamps last_claim in one conditional update.
// The cooldown predicate is checked at commit time: a concurrent claim that
// already consumed this window makes RowsAffected zero, which resolves into
// ClaimTooSoonError. The boundary (elapsed == cooldown) is accepted.
func (r *AccountRepository) ApplyClaim(ctx context.Context, userID int64, points int64, now time.Time) (int64, error) {
	threshold := now.Add(-r.cooldown)

	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("user_id = ? AND (last_claim IS NULL OR last_claim <= ?)", userID, threshold).
		Updates(map[string]interface{}{
			"points":        gorm.Expr("points + ?", points),
			"last_claim":    now,
			"reminder_sent": false,
		})
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected == 0 {
		account, err := r.Get(ctx, userID)
		if err != nil {
			return 0, err
		}
		remaining := r.cooldown
		if account.LastClaim != nil {
			remaining = r.cooldown - now.Sub(*account.LastClaim)
		}
		if remaining < 0 {
			remaining = 0
		}
		return 0, &ClaimTooSoonError{Remaining: remaining.Truncate(time.Second)}
	}

	account, err := r.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.Points, nil
}

// LinkReferral sets referred_by only if it is still unset. Returns whether
// the link was newly created; self-referrals are rejected without a query.
func (r *AccountRepository) LinkReferral(ctx context.Context, userID, referrerID int64) (bool, error) {
	if userID == referrerID {
		return false, nil
	}

	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("user_id = ? AND referred_by IS NULL", userID).
		Update("referred_by", referrerID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CreditReferrer atomically increments the referrer's balance
func (r *AccountRepository) CreditReferrer(ctx context.Context, referrerID int64, amount int64) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("user_id = ?", referrerID).
		Update("points", gorm.Expr("points + ?", amount))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrUnknownAccount
	}

	account, err := r.Get(ctx, referrerID)
	if err != nil {
		return 0, err
	}
	return account.Points, nil
}

// ListClaimReady returns accounts whose cooldown has elapsed and which have
// not been reminded since their last claim
func (r *AccountRepository) ListClaimReady(ctx context.Context, now time.Time, limit int) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.WithContext(ctx).
		Where("last_claim IS NOT NULL AND last_claim <= ? AND reminder_sent = ?", now.Add(-r.cooldown), false).
		Limit(limit).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// MarkReminded records that a claim-ready reminder was delivered
func (r *AccountRepository) MarkReminded(ctx context.Context, userID int64) error {
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("user_id = ?", userID).
		Update("reminder_sent", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUnknownAccount
	}
	return nil
}

// TopAccounts returns the highest balances for the leaderboard
func (r *AccountRepository) TopAccounts(ctx context.Context, limit int) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.WithContext(ctx).
		Order("points DESC").
		Limit(limit).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
