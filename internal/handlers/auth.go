package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"rewards-bot/internal/auth"
)

// AuthHandler exchanges the admin API key for an operator JWT
type AuthHandler struct {
	adminAPIKey string
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(adminAPIKey string) *AuthHandler {
	return &AuthHandler{adminAPIKey: adminAPIKey}
}

type tokenRequest struct {
	APIKey   string `json:"api_key" binding:"required"`
	Operator string `json:"operator"`
}

// IssueToken validates the admin API key and returns a JWT
func (h *AuthHandler) IssueToken(c *gin.Context) {
	if h.adminAPIKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Operator API is not configured",
		})
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "api_key is required",
		})
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.adminAPIKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid API key",
		})
		return
	}

	operator := req.Operator
	if operator == "" {
		operator = "operator"
	}

	token, err := auth.GenerateToken(operator)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to issue token",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
	})
}
