package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RSIScreener/internal/model"
)

func sampleMessage() Message {
	at := time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC)
	return BuildMessage([]model.Alert{
		{Ticker: "NVDA", RSI: 78.44, Signal: model.SignalOverbought, Threshold: 70, LastClose: 131.2, At: at},
		{Ticker: "INTC", RSI: 21.9, Signal: model.SignalOversold, Threshold: 30, LastClose: 20.05, At: at},
	})
}

func TestWebhookSender_Payload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhookSender(srv.URL).Send(context.Background(), sampleMessage()))

	assert.Contains(t, got.Text, "RSI Screener Alert: 2 ticker(s)")
	require.Len(t, got.Alerts, 2)
	assert.Equal(t, webhookAlert{Ticker: "NVDA", RSI: 78.44, Signal: "OVERBOUGHT", Threshold: 70, Price: 131.2}, got.Alerts[0])
	assert.Equal(t, "OVERSOLD", got.Alerts[1].Signal)
	assert.Equal(t, 30.0, got.Alerts[1].Threshold)
}

func TestWebhookSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, "invalid_payload")
	}))
	defer srv.Close()

	err := NewWebhookSender(srv.URL).Send(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid_payload")
}

func TestTelegramSender_Send(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42", "")
	s.BaseURL = srv.URL
	require.NoError(t, s.Send(context.Background(), sampleMessage()))

	assert.Equal(t, "42", payload["chat_id"])
	assert.Equal(t, "HTML", payload["parse_mode"])
	assert.Contains(t, payload["text"], "<b>RSI Screener Alert: 2 ticker(s)</b>")
	assert.Contains(t, payload["text"], "Stock: NVDA")
}

func TestTelegramSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42", "")
	s.BaseURL = srv.URL
	err := s.Send(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

type capturedMail struct {
	cfg SMTPConfig
	to  []string
	msg string
}

func captureSend(into *capturedMail) sendMailFunc {
	return func(_ context.Context, cfg SMTPConfig, to []string, msg []byte) error {
		into.cfg, into.to, into.msg = cfg, to, string(msg)
		return nil
	}
}

func TestEmailSender_FullBody(t *testing.T) {
	var mail capturedMail
	s := NewEmailSender(SMTPConfig{Host: "smtp.example.com", Port: 587, UseTLS: true}, []string{"me@example.com"})
	s.send = captureSend(&mail)

	require.NoError(t, s.Send(context.Background(), sampleMessage()))

	assert.Equal(t, "email", s.Name())
	assert.Equal(t, DefaultEmailFrom, mail.cfg.From)
	assert.Equal(t, []string{"me@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: RSI Screener Alert: 2 ticker(s)\r\n")
	assert.Contains(t, mail.msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.Contains(t, mail.msg, "Signal: Potential Sell Opportunity\r\n")
	assert.Contains(t, mail.msg, "Current Price: $20.05\r\n")
}

func TestSMSGatewaySender_CompactBody(t *testing.T) {
	var mail capturedMail
	s := NewSMSGatewaySender(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "bot@example.com"}, []string{"5551234567@tmomail.net"})
	s.send = captureSend(&mail)

	require.NoError(t, s.Send(context.Background(), sampleMessage()))

	assert.Equal(t, "sms", s.Name())
	assert.Equal(t, "bot@example.com", mail.cfg.From)
	body := mail.msg[strings.Index(mail.msg, "\r\n\r\n")+4:]
	assert.Equal(t, "OVERBOUGHT NVDA RSI=78.4 (>=70)\r\nOVERSOLD INTC RSI=21.9 (<=30)", body)
}

func TestEmailSender_NoRecipients(t *testing.T) {
	s := NewEmailSender(SMTPConfig{Host: "smtp.example.com", Port: 587}, nil)
	assert.Error(t, s.Send(context.Background(), sampleMessage()))
}

func TestTelegramSender_PollAnswersConfiguredChat(t *testing.T) {
	var (
		mu      sync.Mutex
		polls   int
		replies []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			polls++
			if polls > 1 {
				assert.Equal(t, "3", r.URL.Query().Get("offset"))
				cancel()
				io.WriteString(w, `{"ok":true,"result":[]}`)
				return
			}
			io.WriteString(w, `{"ok":true,"result":[
				{"update_id":1,"message":{"text":"/status","chat":{"id":42}}},
				{"update_id":2,"message":{"text":"/status","chat":{"id":7}}}
			]}`)
		case "/botTOKEN/sendMessage":
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			replies = append(replies, payload["text"])
			io.WriteString(w, `{"ok":true}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42", "")
	s.BaseURL = srv.URL
	s.Poll(ctx, func(cmd string) string { return "ok: " + cmd })

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, replies, 1, "only the configured chat is answered")
	assert.Equal(t, "<pre>ok: /status</pre>", replies[0])
}

func TestTelegramSender_LongTextIsCut(t *testing.T) {
	var texts []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		texts = append(texts, payload["text"])
		mu.Unlock()
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	var body strings.Builder
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&body, "T%04d  RSI & <signal>\n", i)
	}
	s := NewTelegramSender("TOKEN", "42", "")
	s.BaseURL = srv.URL
	require.NoError(t, s.Send(context.Background(), Message{Body: body.String()}))
	require.NoError(t, s.Send(context.Background(), Message{Subject: "RSI Screener Alert", Body: body.String()}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, texts, 2)
	for _, text := range texts {
		assert.LessOrEqual(t, utf8.RuneCountInString(text), 4096)
		assert.Contains(t, text, "&amp; &lt;signal&gt;\n... (truncated)", "cut at a whole line")
	}
	assert.True(t, strings.HasPrefix(texts[0], "<pre>T0000"))
	assert.True(t, strings.HasSuffix(texts[0], "</pre>"))
	assert.True(t, strings.HasPrefix(texts[1], "<b>RSI Screener Alert</b>\n\nT0000"))
}

func TestEscapeFit_ShortBodyUnchanged(t *testing.T) {
	assert.Equal(t, "a &amp; b", escapeFit("a & b", 100))
	assert.Equal(t, "a &amp;"+truncatedMark, escapeFit("a &\nb & c & d & e & f & g & h", 7+len(truncatedMark)))
}
