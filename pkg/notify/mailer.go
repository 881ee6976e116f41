package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/menatics/andromeda/pkg/config"
	"github.com/menatics/andromeda/pkg/observability"
)

// Message is one outbound email
type Message struct {
	// Kind classifies the message for metrics: consumption, reminder,
	// digest or failure.
	Kind string

	To      []string
	Subject string

	// HTMLBody is the preferred body. PlainBody is sent when HTMLBody is
	// empty, and carried as context for clients that strip HTML.
	HTMLBody  string
	PlainBody string
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends mail through a single configured SMTP relay
type SMTPMailer struct {
	cfg     config.MailConfig
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewSMTPMailer creates a mailer for the given relay configuration
func NewSMTPMailer(cfg config.MailConfig, logger *observability.Logger, metrics *observability.Metrics) *SMTPMailer {
	return &SMTPMailer{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Send implements Mailer
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	err := m.send(ctx, msg)

	if m.metrics != nil {
		outcome := "sent"
		if err != nil {
			outcome = "error"
		}
		m.metrics.EmailsTotal.With(prometheus.Labels{"kind": msg.Kind, "outcome": outcome}).Inc()
	}

	if err != nil {
		m.logger.WithError(err).WithFields(map[string]interface{}{
			"kind":    msg.Kind,
			"subject": msg.Subject,
		}).Error("failed to send email")
		return fmt.Errorf("failed to send %s email: %w", msg.Kind, err)
	}

	m.logger.WithFields(map[string]interface{}{
		"kind":       msg.Kind,
		"recipients": len(msg.To),
	}).Info("email sent")
	return nil
}

func (m *SMTPMailer) send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	dialer := &net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if m.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			tlsConfig := &tls.Config{ServerName: m.cfg.Host}
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("failed to start TLS: %w", err)
			}
		}
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err := client.Mail(m.cfg.FromAddress); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to add recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data: %w", err)
	}
	if _, err := w.Write(m.buildMessage(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data: %w", err)
	}

	return client.Quit()
}

// buildMessage assembles the MIME message
func (m *SMTPMailer) buildMessage(msg Message) []byte {
	var buf bytes.Buffer

	body := msg.HTMLBody
	contentType := "text/html; charset=UTF-8"
	if body == "" {
		body = msg.PlainBody
		contentType = "text/plain; charset=UTF-8"
	}

	buf.WriteString(fmt.Sprintf("From: %s\r\n", formatAddress(m.cfg.FromName, m.cfg.FromAddress)))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", encodeSubject(msg.Subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString(fmt.Sprintf("Content-Type: %s\r\n", contentType))
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	buf.WriteString("\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(body))
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		buf.WriteString(encoded[i:end])
		buf.WriteString("\r\n")
	}

	return buf.Bytes()
}

func formatAddress(name, address string) string {
	if name == "" {
		return address
	}
	if needsEncoding(name) {
		return fmt.Sprintf("=?UTF-8?B?%s?= <%s>", base64.StdEncoding.EncodeToString([]byte(name)), address)
	}
	return fmt.Sprintf("%s <%s>", name, address)
}

func encodeSubject(subject string) string {
	if needsEncoding(subject) {
		return fmt.Sprintf("=?UTF-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(subject)))
	}
	return subject
}

func needsEncoding(s string) bool {
	for _, r := range s {
		if r > 127 {
			return true
		}
	}
	return false
}
