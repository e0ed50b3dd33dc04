package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rewards-bot/internal/repository"
	"rewards-bot/internal/services"
)

// AccountHandler exposes read-only operator endpoints over the ledger
type AccountHandler struct {
	ledger *services.LedgerService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(ledger *services.LedgerService) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

// GetAccount returns one account with its derived claim state
func (h *AccountHandler) GetAccount(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid account id",
		})
		return
	}

	account, err := h.ledger.GetAccount(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownAccount) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Account not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load account",
		})
		return
	}

	state, remaining := h.ledger.ClaimState(account, time.Now())

	c.JSON(http.StatusOK, gin.H{
		"account": gin.H{
			"user_id":           account.UserID,
			"points":            account.Points,
			"last_claim":        account.LastClaim,
			"referred_by":       account.ReferredBy,
			"claim_state":       state,
			"remaining_seconds": int64(remaining.Seconds()),
			"created_at":        account.CreatedAt,
		},
	})
}

// GetLeaderboard returns the top balances
func (h *AccountHandler) GetLeaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	accounts, err := h.ledger.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load leaderboard",
		})
		return
	}

	entries := make([]gin.H, 0, len(accounts))
	for _, account := range accounts {
		entries = append(entries, gin.H{
			"user_id": account.UserID,
			"points":  account.Points,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard": entries,
	})
}
