// Package notification delivers trade alerts to external channels. The
// engine fires alerts asynchronously; a failed delivery is logged and never
// affects the trading loop.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// AlertLevel classifies an alert.
type AlertLevel string

const (
	AlertInfo    AlertLevel = "info"
	AlertWarning AlertLevel = "warning"
)

// Alert is a single notification event.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier delivers alerts to one channel.
type Notifier interface {
	Send(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts to the process log. It is the default channel and
// never fails.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, a Alert) error {
	log.Printf("[alert] %s: %s: %s", a.Level, a.Title, a.Message)
	return nil
}

// TelegramNotifier sends alerts through the Telegram Bot API.
type TelegramNotifier struct {
	token  string
	chatID string
	http   *http.Client
}

// NewTelegram creates a TelegramNotifier for the given bot token and chat.
func NewTelegram(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:  token,
		chatID: chatID,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, a Alert) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    fmt.Sprintf("%s\n%s", a.Title, a.Message),
	})
	if err != nil {
		return err
	}

	url := "https://api.telegram.org/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// WebhookNotifier POSTs the alert as JSON to a configured endpoint.
type WebhookNotifier struct {
	url  string
	http *http.Client
}

// NewWebhook creates a WebhookNotifier targeting the given URL.
func NewWebhook(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, a Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Multi fans one alert out to several channels. Every channel is attempted;
// the first error is returned.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, a Alert) error {
	var first error
	for _, n := range m {
		if err := n.Send(ctx, a); err != nil && first == nil {
			first = err
		}
	}
	return first
}
