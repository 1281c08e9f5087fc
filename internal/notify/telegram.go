// Package notify pushes live predictions and question outcomes to Telegram.
// It formats each prediction into a human-readable message and handles
// delivery with retry logic for reliability.
package notify

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/quizoracle/quizoracle/internal/models"
)

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendPrediction sends the engine's prediction for one live question.
func (c *Client) SendPrediction(q *models.Question) error {
	return c.send(formatPrediction(q))
}

// SendOutcome sends the resolved correct answer and whether the stored
// prediction matched it.
func (c *Client) SendOutcome(q *models.Question, right bool) error {
	verdict := "No"
	if right {
		verdict = "Yes"
	}
	message := fmt.Sprintf("Correct answer: *%s* \\- %s\nPrediction correct? *%s*",
		escapeMarkdownV2(q.Correct), escapeMarkdownV2(q.Answers[q.Correct]), verdict)
	return c.send(message)
}

func (c *Client) send(message string) error {
	msg := tgbotapi.NewMessage(c.chatID, message)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatPrediction formats one question's prediction into a Telegram message
func formatPrediction(q *models.Question) string {
	message := fmt.Sprintf("*Question %d* \\| %s\n%s\n\n",
		q.Number, escapeMarkdownV2(q.Category), escapeMarkdownV2(q.Text))

	for _, letter := range models.Letters {
		marker := "  "
		pct := 0
		if q.Prediction != nil {
			pct = q.Prediction.Confidence[letter]
			if q.Prediction.Answer == letter {
				marker = "\\>"
			}
		}
		message += fmt.Sprintf("%s %s: %s \\- %d%%\n",
			marker, letter, escapeMarkdownV2(q.Answers[letter]), pct)
	}

	if q.Prediction == nil || !q.Prediction.HasSignal() {
		message += "\n_no prediction_"
	}
	return message
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	result := ""
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			result += "\\" + string(char)
		default:
			result += string(char)
		}
	}
	return result
}
