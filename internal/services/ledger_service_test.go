package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rewards-bot/internal/models"
	"rewards-bot/internal/repository"
)

const testCooldown = 24 * time.Hour

func setupTestDB(t *testing.T) *gorm.DB {
	// :memory: is unique per connection unless using cache=shared, so keep
	// the shared cache and a single connection for the whole test
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.Account{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	db.Exec("DELETE FROM accounts")

	return db
}

func newTestLedger(t *testing.T) (*LedgerService, *gorm.DB) {
	db := setupTestDB(t)
	repo := repository.NewAccountRepository(db, testCooldown)
	return NewLedgerService(repo, 20, 10, 100), db
}

func backdateLastClaim(t *testing.T, db *gorm.DB, userID int64, by time.Duration) {
	err := db.Model(&models.Account{}).Where("user_id = ?", userID).
		Update("last_claim", time.Now().Add(-by)).Error
	if err != nil {
		t.Fatalf("failed to backdate last_claim: %v", err)
	}
}

func TestRegisterFreshUser(t *testing.T) {
	service, db := newTestLedger(t)
	ctx := context.Background()

	result, err := service.Register(ctx, 1, "Alice", "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if result.Account.Points != 0 {
		t.Errorf("expected 0 points, got %d", result.Account.Points)
	}
	if result.Account.LastClaim != nil {
		t.Errorf("expected no last_claim on a fresh account")
	}
	if len(result.Notifications) != 0 {
		t.Errorf("expected no notifications, got %d", len(result.Notifications))
	}

	// Registering again must not create a second record
	if _, err := service.Register(ctx, 1, "Alice", ""); err != nil {
		t.Fatalf("second Register failed: %v", err)
	}
	var count int64
	db.Model(&models.Account{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 account, got %d", count)
	}
}

func TestClaimScenario(t *testing.T) {
	service, db := newTestLedger(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, 2, "Alice", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result, err := service.Claim(ctx, 2)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if result.Awarded < 10 || result.Awarded > 100 {
		t.Errorf("awarded %d outside [10,100]", result.Awarded)
	}
	if result.Balance != result.Awarded {
		t.Errorf("expected balance %d, got %d", result.Awarded, result.Balance)
	}

	account, err := service.GetAccount(ctx, 2)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.LastClaim == nil {
		t.Fatal("expected last_claim to be set after a claim")
	}

	// One second into the cooldown the claim is rejected with ~23h59m left
	backdateLastClaim(t, db, 2, time.Second)
	_, err = service.Claim(ctx, 2)
	var tooSoon *repository.ClaimTooSoonError
	if !errors.As(err, &tooSoon) {
		t.Fatalf("expected ClaimTooSoonError, got %v", err)
	}
	if got := FormatWait(tooSoon.Remaining); got != "23h 59m" {
		t.Errorf("expected wait 23h 59m, got %q", got)
	}

	// After the cooldown has fully elapsed the claim succeeds again
	backdateLastClaim(t, db, 2, testCooldown+5*time.Second)
	second, err := service.Claim(ctx, 2)
	if err != nil {
		t.Fatalf("Claim after cooldown failed: %v", err)
	}
	if second.Balance != result.Awarded+second.Awarded {
		t.Errorf("expected balance %d, got %d", result.Awarded+second.Awarded, second.Balance)
	}
}

func TestClaimCreatesAccount(t *testing.T) {
	service, _ := newTestLedger(t)
	ctx := context.Background()

	// Claim without prior registration still works
	result, err := service.Claim(ctx, 3)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if result.Balance != result.Awarded {
		t.Errorf("expected balance %d, got %d", result.Awarded, result.Balance)
	}
}

func TestReferralCreditExactlyOnce(t *testing.T) {
	service, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, 10, "Alice", ""); err != nil {
		t.Fatalf("Register referrer failed: %v", err)
	}

	result, err := service.Register(ctx, 11, "Bob", "10")
	if err != nil {
		t.Fatalf("Register with referral failed: %v", err)
	}
	if len(result.Notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(result.Notifications))
	}
	if result.Notifications[0].ChatID != 10 {
		t.Errorf("notification addressed to %d, want 10", result.Notifications[0].ChatID)
	}

	balance, err := service.GetBalance(ctx, 10)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 20 {
		t.Errorf("expected referrer balance 20, got %d", balance)
	}

	// Same referral again: no further credit
	result, err = service.Register(ctx, 11, "Bob", "10")
	if err != nil {
		t.Fatalf("repeat Register failed: %v", err)
	}
	if len(result.Notifications) != 0 {
		t.Errorf("expected no notifications on repeat, got %d", len(result.Notifications))
	}

	// A different referral param cannot overwrite the link
	if _, err := service.Register(ctx, 12, "Carol", ""); err != nil {
		t.Fatalf("Register second referrer failed: %v", err)
	}
	if _, err := service.Register(ctx, 11, "Bob", "12"); err != nil {
		t.Fatalf("Register with different referral failed: %v", err)
	}

	account, err := service.GetAccount(ctx, 11)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.ReferredBy == nil || *account.ReferredBy != 10 {
		t.Errorf("referred_by changed, want 10, got %v", account.ReferredBy)
	}
	if balance, _ := service.GetBalance(ctx, 10); balance != 20 {
		t.Errorf("referrer balance changed to %d, want 20", balance)
	}
	if balance, _ := service.GetBalance(ctx, 12); balance != 0 {
		t.Errorf("second referrer credited %d, want 0", balance)
	}
}

func TestReferralBadParams(t *testing.T) {
	service, _ := newTestLedger(t)
	ctx := context.Background()

	// Self-referral: registration succeeds, nothing is linked or credited
	result, err := service.Register(ctx, 20, "Alice", "20")
	if err != nil {
		t.Fatalf("self-referral Register failed: %v", err)
	}
	if len(result.Notifications) != 0 {
		t.Errorf("self-referral produced notifications")
	}
	account, _ := service.GetAccount(ctx, 20)
	if account.ReferredBy != nil {
		t.Errorf("self-referral created a link")
	}

	// Unknown referrer: silently skipped
	result, err = service.Register(ctx, 21, "Bob", "424242")
	if err != nil {
		t.Fatalf("unknown-referrer Register failed: %v", err)
	}
	if len(result.Notifications) != 0 {
		t.Errorf("unknown referrer produced notifications")
	}
	account, _ = service.GetAccount(ctx, 21)
	if account.ReferredBy != nil {
		t.Errorf("unknown referrer created a link")
	}

	// Malformed param: silently skipped
	if _, err := service.Register(ctx, 22, "Carol", "not-a-number"); err != nil {
		t.Fatalf("malformed-referral Register failed: %v", err)
	}
}

func TestGetBalanceDoesNotCreate(t *testing.T) {
	service, db := newTestLedger(t)

	balance, err := service.GetBalance(context.Background(), 4242)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("expected 0 for never-seen id, got %d", balance)
	}

	var count int64
	db.Model(&models.Account{}).Count(&count)
	if count != 0 {
		t.Errorf("GetBalance created %d records", count)
	}
}

func TestConcurrentRegisterSingleCredit(t *testing.T) {
	service, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, 30, "Alice", ""); err != nil {
		t.Fatalf("Register referrer failed: %v", err)
	}

	var wg sync.WaitGroup
	notifications := make(chan int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := service.Register(ctx, 31, "Bob", "30")
			if err != nil {
				t.Errorf("concurrent Register failed: %v", err)
				return
			}
			notifications <- len(result.Notifications)
		}()
	}
	wg.Wait()
	close(notifications)

	total := 0
	for n := range notifications {
		total += n
	}
	if total != 1 {
		t.Errorf("expected exactly 1 referral notification, got %d", total)
	}

	balance, err := service.GetBalance(ctx, 30)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 20 {
		t.Errorf("expected exactly one +20 credit, balance is %d", balance)
	}
}

func TestConcurrentClaimSingleSuccess(t *testing.T) {
	service, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, 40, "Alice", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Claim(ctx, 40)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var tooSoon *repository.ClaimTooSoonError
		if !errors.As(err, &tooSoon) {
			t.Errorf("unexpected claim error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly 1 successful claim, got %d", successes)
	}
}

func TestClaimAwardRange(t *testing.T) {
	service, _ := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		userID := int64(1000 + i)
		result, err := service.Claim(ctx, userID)
		if err != nil {
			t.Fatalf("Claim for user %d failed: %v", userID, err)
		}
		if result.Awarded < 10 || result.Awarded > 100 {
			t.Errorf("user %d awarded %d outside [10,100]", userID, result.Awarded)
		}
	}
}

func TestClaimState(t *testing.T) {
	service, db := newTestLedger(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := service.Register(ctx, 50, "Alice", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	account, _ := service.GetAccount(ctx, 50)
	state, remaining := service.ClaimState(account, now)
	if state != "active" || remaining != 0 {
		t.Errorf("fresh account: got %s/%s, want active/0", state, remaining)
	}

	if _, err := service.Claim(ctx, 50); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	backdateLastClaim(t, db, 50, time.Hour)

	account, _ = service.GetAccount(ctx, 50)
	state, remaining = service.ClaimState(account, now)
	if state != "cooldown_pending" {
		t.Errorf("mid-cooldown: got state %s", state)
	}
	if remaining <= 0 || remaining > testCooldown {
		t.Errorf("mid-cooldown: remaining %s out of range", remaining)
	}

	backdateLastClaim(t, db, 50, testCooldown)
	account, _ = service.GetAccount(ctx, 50)
	state, _ = service.ClaimState(account, now.Add(time.Second))
	if state != "claim_ready" {
		t.Errorf("after cooldown: got state %s", state)
	}
}

func TestFormatWait(t *testing.T) {
	cases := []struct {
		remaining time.Duration
		want      string
	}{
		{86399 * time.Second, "23h 59m"},
		{86340 * time.Second, "23h 59m"},
		{3660 * time.Second, "1h 1m"},
		{59 * time.Second, "0h 0m"},
		{0, "0h 0m"},
		{-time.Second, "0h 0m"},
	}

	for _, tc := range cases {
		if got := FormatWait(tc.remaining); got != tc.want {
			t.Errorf("FormatWait(%s) = %q, want %q", tc.remaining, got, tc.want)
		}
	}
}
