package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"rewards-bot/internal/models"
	"rewards-bot/internal/repository"
)

// Notification is an outbound message intent addressed to a user other than
// the one whose interaction produced it. Actual delivery belongs to the
// messaging gateway.
type Notification struct {
	ChatID int64
	Text   string
}

// RegisterResult reports the account after registration plus any
// notification intents produced by referral crediting
type RegisterResult struct {
	Account       *models.Account
	Notifications []Notification
}

// ClaimResult reports a successful daily claim
type ClaimResult struct {
	Awarded int64
	Balance int64
}

// LedgerService owns the registration, claim and referral business rules.
// It is stateless between calls; all linearization lives in the store, so
// any number of instances may run against the same database.
type LedgerService struct {
	repo           *repository.AccountRepository
	referralPoints int64
	claimMin       int64
	claimMax       int64
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(repo *repository.AccountRepository, referralPoints, claimMin, claimMax int64) *LedgerService {
	return &LedgerService{
		repo:           repo,
		referralPoints: referralPoints,
		claimMin:       claimMin,
		claimMax:       claimMax,
	}
}

// Register ensures the account exists and applies the referral parameter if
// one was supplied. Malformed, self-referential or unknown-referrer
// parameters are skipped without failing the registration. The referrer is
// credited at most once per referred account ever, enforced by the store's
// conditional link update.
func (s *LedgerService) Register(ctx context.Context, userID int64, displayName, referralParam string) (*RegisterResult, error) {
	account, err := s.repo.CreateIfAbsent(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := &RegisterResult{Account: account}

	if referralParam == "" {
		return result, nil
	}

	referrerID, err := strconv.ParseInt(referralParam, 10, 64)
	if err != nil || referrerID == userID {
		return result, nil
	}

	if _, err := s.repo.Get(ctx, referrerID); err != nil {
		if errors.Is(err, repository.ErrUnknownAccount) {
			return result, nil
		}
		return nil, err
	}

	linked, err := s.repo.LinkReferral(ctx, userID, referrerID)
	if err != nil {
		return nil, err
	}
	if !linked {
		return result, nil
	}

	balance, err := s.repo.CreditReferrer(ctx, referrerID, s.referralPoints)
	if err != nil {
		// Referrer row vanished between the existence check and the credit;
		// the new user's registration still succeeds.
		if errors.Is(err, repository.ErrUnknownAccount) {
			return result, nil
		}
		return nil, err
	}

	log.Printf("User %d referred by %d, credited %d points", userID, referrerID, s.referralPoints)
	result.Notifications = append(result.Notifications, Notification{
		ChatID: referrerID,
		Text: fmt.Sprintf("🎉 You earned %d points for referring %s! Your balance is now %d.",
			s.referralPoints, displayName, balance),
	})
	return result, nil
}

// Claim awards a fresh uniform amount from the configured range, subject to
// the cooldown. A rejected claim surfaces as *repository.ClaimTooSoonError,
// which is a user-facing outcome rather than an infrastructure failure.
func (s *LedgerService) Claim(ctx context.Context, userID int64) (*ClaimResult, error) {
	if _, err := s.repo.CreateIfAbsent(ctx, userID); err != nil {
		return nil, err
	}

	award := s.claimMin + rand.Int63n(s.claimMax-s.claimMin+1)
	balance, err := s.repo.ApplyClaim(ctx, userID, award, time.Now())
	if err != nil {
		return nil, err
	}

	log.Printf("User %d claimed %d points, balance now %d", userID, award, balance)
	return &ClaimResult{Awarded: award, Balance: balance}, nil
}

// GetBalance reads the current balance. A never-seen id reads as zero and
// no record is created.
func (s *LedgerService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	account, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownAccount) {
			return 0, nil
		}
		return 0, err
	}
	return account.Points, nil
}

// GetAccount retrieves the full account record for the operator API
func (s *LedgerService) GetAccount(ctx context.Context, userID int64) (*models.Account, error) {
	return s.repo.Get(ctx, userID)
}

// Leaderboard returns the top balances
func (s *LedgerService) Leaderboard(ctx context.Context, limit int) ([]models.Account, error) {
	return s.repo.TopAccounts(ctx, limit)
}

// ClaimState derives the claim cycle state from last_claim. The states are
// never stored; they are recomputed on each evaluation.
func (s *LedgerService) ClaimState(account *models.Account, now time.Time) (string, time.Duration) {
	if account.LastClaim == nil {
		return "active", 0
	}
	elapsed := now.Sub(*account.LastClaim)
	if elapsed >= s.repo.Cooldown() {
		return "claim_ready", 0
	}
	return "cooldown_pending", (s.repo.Cooldown() - elapsed).Truncate(time.Second)
}

// FormatWait renders a remaining cooldown as "Hh Mm" for user display
func FormatWait(remaining time.Duration) string {
	seconds := int64(remaining.Seconds())
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dh %dm", seconds/3600, seconds%3600/60)
}
