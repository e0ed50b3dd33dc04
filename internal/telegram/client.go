package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const TelegramAPIBaseURL = "https://api.telegram.org"

// Client is a minimal Telegram Bot API client covering the calls this bot
// makes: message delivery, callback acknowledgement and webhook setup.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Update is an inbound Telegram update delivered to the webhook
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is an inbound or outbound chat message
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

// User identifies a Telegram user
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// Chat identifies a Telegram chat
type Chat struct {
	ID int64 `json:"id"`
}

// CallbackQuery is an inline keyboard button press
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// InlineKeyboardButton is one button of an inline keyboard
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// InlineKeyboardMarkup attaches an inline keyboard to a message
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// NewClient creates a new Telegram Bot API client
func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: TelegramAPIBaseURL,
		token:   token,
	}
}

// call posts a JSON payload to a Bot API method and checks the result
func (c *Client) call(method string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return fmt.Errorf("failed to decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("%s rejected: %s", method, apiResp.Description)
	}

	return nil
}

// SendMessage sends a text message, optionally with an inline keyboard
func (c *Client) SendMessage(chatID int64, text string, markup *InlineKeyboardMarkup) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}
	return c.call("sendMessage", payload)
}

// SendPhoto sends a photo by URL with a caption and optional keyboard
func (c *Client) SendPhoto(chatID int64, photoURL, caption string, markup *InlineKeyboardMarkup) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"photo":   photoURL,
		"caption": caption,
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}
	return c.call("sendPhoto", payload)
}

// AnswerCallbackQuery acknowledges a button press so the client stops the
// loading spinner
func (c *Client) AnswerCallbackQuery(callbackQueryID string) error {
	return c.call("answerCallbackQuery", map[string]interface{}{
		"callback_query_id": callbackQueryID,
	})
}

// SetWebhook registers the public webhook URL with Telegram. The secret
// token is echoed back by Telegram on every update for verification.
func (c *Client) SetWebhook(webhookURL, secretToken string) error {
	payload := map[string]interface{}{
		"url": webhookURL,
	}
	if secretToken != "" {
		payload["secret_token"] = secretToken
	}
	return c.call("setWebhook", payload)
}
