package jobs

import (
	"context"
	"log"
	"time"

	"rewards-bot/internal/repository"
	"rewards-bot/internal/telegram"
)

const reminderBatchSize = 100

// ClaimReminderJob periodically pings accounts whose cooldown has elapsed.
// An account is reminded once per cooldown cycle: the reminder_sent flag is
// set here and cleared again by the next successful claim.
type ClaimReminderJob struct {
	repo *repository.AccountRepository
	bot  *telegram.Client
}

func NewClaimReminderJob(repo *repository.AccountRepository, bot *telegram.Client) *ClaimReminderJob {
	return &ClaimReminderJob{
		repo: repo,
		bot:  bot,
	}
}

// Start begins the periodic reminder job
func (j *ClaimReminderJob) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			if err := j.run(context.Background()); err != nil {
				log.Printf("Claim reminder error: %v", err)
			}
		}
	}()
}

func (j *ClaimReminderJob) run(ctx context.Context) error {
	accounts, err := j.repo.ListClaimReady(ctx, time.Now(), reminderBatchSize)
	if err != nil {
		return err
	}

	keyboard := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{
				{Text: "🎁 Claim Daily Points", CallbackData: "claim_points"},
			},
		},
	}

	for _, account := range accounts {
		if err := j.bot.SendMessage(account.UserID, "⏰ Your daily claim is ready!", keyboard); err != nil {
			// Leave the flag unset so the next tick retries
			log.Printf("Failed to remind user %d: %v", account.UserID, err)
			continue
		}
		if err := j.repo.MarkReminded(ctx, account.UserID); err != nil {
			log.Printf("Failed to mark user %d reminded: %v", account.UserID, err)
		}
	}

	return nil
}
