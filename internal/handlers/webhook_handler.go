package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rewards-bot/internal/repository"
	"rewards-bot/internal/services"
	"rewards-bot/internal/telegram"
)

const welcomeMessage = "👋 Welcome to the Daily Rewards Bot!\n\n" +
	"Earn points by claiming the daily reward and inviting friends.\n\n" +
	"🔍 What are these points for?\n" +
	"- Stay tuned to find out!\n" +
	"Click the button below to claim your daily points!"

const (
	telegramChannelLink = "https://t.me/DailyRewardsChannel"
	twitterLink         = "https://twitter.com/DailyRewardsBot"
)

// WebhookHandler translates Telegram updates into ledger operations and
// sends the replies back through the bot client
type WebhookHandler struct {
	ledger          *services.LedgerService
	bot             *telegram.Client
	secret          string
	welcomePhotoURL string
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(ledger *services.LedgerService, bot *telegram.Client, secret, welcomePhotoURL string) *WebhookHandler {
	return &WebhookHandler{
		ledger:          ledger,
		bot:             bot,
		secret:          secret,
		welcomePhotoURL: welcomePhotoURL,
	}
}

// HandleUpdate is the webhook endpoint Telegram posts updates to
func (h *WebhookHandler) HandleUpdate(c *gin.Context) {
	if h.secret != "" && c.GetHeader("X-Telegram-Bot-Api-Secret-Token") != h.secret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secret token"})
		return
	}

	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed update"})
		return
	}

	switch {
	case update.Message != nil && update.Message.From != nil:
		h.handleMessage(c, update.Message)
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		h.handleCallback(c, update.CallbackQuery)
	}

	// Business outcomes are resolved into replies; Telegram only needs to
	// know the update was consumed.
	c.String(http.StatusOK, "OK")
}

func (h *WebhookHandler) handleMessage(c *gin.Context, msg *telegram.Message) {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}

	command := strings.TrimSuffix(fields[0], "@DailyRewardsBot")
	switch command {
	case "/start":
		referralParam := ""
		if len(fields) > 1 {
			referralParam = fields[1]
		}
		h.handleStart(c, msg, referralParam)
	case "/balance":
		h.handleBalance(c, msg)
	}
}

func (h *WebhookHandler) handleStart(c *gin.Context, msg *telegram.Message, referralParam string) {
	userID := msg.From.ID
	log.Printf("User %d started the bot", userID)

	result, err := h.ledger.Register(c.Request.Context(), userID, msg.From.FirstName, referralParam)
	if err != nil {
		log.Printf("Register failed for user %d: %v", userID, err)
		h.replyText(msg.Chat.ID, "⚠️ Something went wrong, please try again.")
		return
	}

	h.sendWelcome(msg.Chat.ID)

	for _, n := range result.Notifications {
		if err := h.bot.SendMessage(n.ChatID, n.Text, nil); err != nil {
			log.Printf("Failed to notify user %d: %v", n.ChatID, err)
		}
	}
}

// sendWelcome prefers the photo welcome and falls back to text-only when
// the richer reply cannot be delivered
func (h *WebhookHandler) sendWelcome(chatID int64) {
	keyboard := welcomeKeyboard()

	if h.welcomePhotoURL != "" {
		err := h.bot.SendPhoto(chatID, h.welcomePhotoURL, welcomeMessage, keyboard)
		if err == nil {
			return
		}
		log.Printf("Photo welcome failed for chat %d, falling back to text: %v", chatID, err)
	}

	if err := h.bot.SendMessage(chatID, welcomeMessage, keyboard); err != nil {
		log.Printf("Failed to send welcome to chat %d: %v", chatID, err)
	}
}

func (h *WebhookHandler) handleBalance(c *gin.Context, msg *telegram.Message) {
	balance, err := h.ledger.GetBalance(c.Request.Context(), msg.From.ID)
	if err != nil {
		log.Printf("GetBalance failed for user %d: %v", msg.From.ID, err)
		h.replyText(msg.Chat.ID, "⚠️ Something went wrong, please try again.")
		return
	}

	h.replyText(msg.Chat.ID, fmt.Sprintf("💰 Your current balance is %d points.", balance))
}

func (h *WebhookHandler) handleCallback(c *gin.Context, query *telegram.CallbackQuery) {
	if err := h.bot.AnswerCallbackQuery(query.ID); err != nil {
		log.Printf("Failed to answer callback %s: %v", query.ID, err)
	}

	if query.Data != "claim_points" || query.Message == nil {
		return
	}

	chatID := query.Message.Chat.ID
	result, err := h.ledger.Claim(c.Request.Context(), query.From.ID)
	if err != nil {
		var tooSoon *repository.ClaimTooSoonError
		if errors.As(err, &tooSoon) {
			h.replyText(chatID, fmt.Sprintf("⏳ You've already claimed! Wait %s.", services.FormatWait(tooSoon.Remaining)))
			return
		}
		log.Printf("Claim failed for user %d: %v", query.From.ID, err)
		h.replyText(chatID, "⚠️ Something went wrong, please try again.")
		return
	}

	h.replyText(chatID, fmt.Sprintf("🎉 You received %d points! Your balance is now %d.", result.Awarded, result.Balance))
}

func (h *WebhookHandler) replyText(chatID int64, text string) {
	if err := h.bot.SendMessage(chatID, text, nil); err != nil {
		log.Printf("Failed to send message to chat %d: %v", chatID, err)
	}
}

// welcomeKeyboard builds the claim button plus social links
func welcomeKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{
				{Text: "🎁 Claim Daily Points", CallbackData: "claim_points"},
			},
			{
				{Text: "📢 Telegram", URL: telegramChannelLink},
				{Text: "🐦 Twitter", URL: twitterLink},
			},
		},
	}
}
