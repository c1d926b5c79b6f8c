package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	telegramAPI = "https://api.telegram.org"
	// sendMessage rejects longer texts
	telegramMaxText = 4096
	truncatedMark   = "\n... (truncated)"
)

// TelegramSender sends messages via the Telegram Bot API.
type TelegramSender struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client
}

// NewTelegramSender creates a sender with optional proxy support.
func NewTelegramSender(botToken, chatID, proxyURL string) *TelegramSender {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramSender{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  telegramAPI,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// Send posts the message to the configured chat.
func (t *TelegramSender) Send(ctx context.Context, msg Message) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.BaseURL, t.BotToken)
	head, tail := "<b>"+html.EscapeString(msg.Subject)+"</b>\n\n", ""
	if msg.Subject == "" {
		// command replies carry tables
		head, tail = "<pre>", "</pre>"
	}
	budget := telegramMaxText - utf8.RuneCountInString(head) - utf8.RuneCountInString(tail)
	text := head + escapeFit(msg.Body, budget) + tail
	payload := map[string]string{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", redactURLError(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (t *TelegramSender) Name() string { return "telegram" }

// escapeFit HTML-escapes body, cutting it so the result has at most budget
// runes. A cut body ends at the last whole line that fits, never inside an
// entity, followed by truncatedMark.
func escapeFit(body string, budget int) string {
	escaped := html.EscapeString(body)
	if utf8.RuneCountInString(escaped) <= budget {
		return escaped
	}
	limit := budget - utf8.RuneCountInString(truncatedMark)
	var b strings.Builder
	used, lastLine := 0, 0
	for _, r := range body {
		e := html.EscapeString(string(r))
		n := utf8.RuneCountInString(e)
		if used+n > limit {
			break
		}
		b.WriteString(e)
		used += n
		if r == '\n' {
			lastLine = b.Len()
		}
	}
	out := b.String()
	if lastLine > 0 {
		out = strings.TrimRight(out[:lastLine], "\n")
	}
	return out + truncatedMark
}

// redactURLError drops the request URL, which embeds the bot token.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
