package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// DefaultEmailFrom is used when no sender address is configured.
const DefaultEmailFrom = "rsi-screener@localhost"

// SMTPConfig holds the mail server settings shared by the email and SMS
// gateway senders.
type SMTPConfig struct {
	Host     string
	Port     int
	UseTLS   bool // STARTTLS on a plain connection; port 465 always uses implicit TLS
	User     string
	Password string
	From     string
}

// Complete reports whether the settings are sufficient to send mail.
func (c SMTPConfig) Complete() bool {
	return c.Host != "" && c.Port > 0
}

type sendMailFunc func(ctx context.Context, cfg SMTPConfig, to []string, msg []byte) error

// EmailSender delivers alerts over SMTP. In compact mode it sends the short
// body only, which suits carrier SMS gateways (number@carrier-gateway).
type EmailSender struct {
	cfg     SMTPConfig
	to      []string
	name    string
	compact bool
	send    sendMailFunc
}

// NewEmailSender creates a sender for full alert emails.
func NewEmailSender(cfg SMTPConfig, to []string) *EmailSender {
	if cfg.From == "" {
		cfg.From = DefaultEmailFrom
	}
	return &EmailSender{cfg: cfg, to: to, name: "email", send: sendMail}
}

// NewSMSGatewaySender creates a sender that mails the compact alert text to
// an SMS gateway address.
func NewSMSGatewaySender(cfg SMTPConfig, gatewayTo []string) *EmailSender {
	s := NewEmailSender(cfg, gatewayTo)
	s.name = "sms"
	s.compact = true
	return s
}

func (e *EmailSender) Name() string { return e.name }

func (e *EmailSender) Send(ctx context.Context, msg Message) error {
	if len(e.to) == 0 {
		return fmt.Errorf("%s: no recipients configured", e.name)
	}
	subject, body := msg.Subject, msg.Body
	if e.compact {
		subject, body = "RSI Alert", msg.Short
	}
	raw := buildMIME(e.cfg.From, e.to, subject, body, time.Now())
	if err := e.send(ctx, e.cfg, e.to, raw); err != nil {
		return fmt.Errorf("%s: %w", e.name, err)
	}
	return nil
}

func buildMIME(from string, to []string, subject, body string, at time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + at.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// sendMail dials the server honoring ctx for the connection phase, upgrades
// to TLS as configured, authenticates when credentials are set and sends.
func sendMail(ctx context.Context, cfg SMTPConfig, to []string, msg []byte) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tlsCfg := &tls.Config{ServerName: cfg.Host}

	dialer := &net.Dialer{Timeout: 15 * time.Second}
	var conn net.Conn
	var err error
	if cfg.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(time.Minute))
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if cfg.UseTLS && cfg.Port != 465 {
		if err := c.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if cfg.User != "" {
		if err := c.Auth(smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return c.Quit()
}
