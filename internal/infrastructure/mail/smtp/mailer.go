// Package smtp delivers plain-text mail through an SMTP relay.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/infrastructure/resilience"
)

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Mailer struct {
	cfg      Config
	executor *resilience.Executor
	send     sendFunc
	now      func() time.Time
}

func New(cfg Config, executor *resilience.Executor) *Mailer {
	return &Mailer{cfg: cfg, executor: executor, send: smtp.SendMail, now: time.Now}
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return domain.WrapError(domain.ErrInvalidInput, "send mail", errors.New("header values must be single-line"))
	}
	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprint(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	msg := m.compose(to, subject, body)

	call := func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.send(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	}

	var err error
	if m.executor != nil {
		err = m.executor.Execute(ctx, "smtp.send", call, classifySMTPError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if classifySMTPError(err).Retryable || resilience.IsCircuitOpen(err) {
			return domain.WrapError(domain.ErrTemporary, "send mail", err)
		}
		return err
	}
	return nil
}

func (m *Mailer) compose(to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// classifySMTPError retries 4xx replies and network failures; 5xx replies are final.
func classifySMTPError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return resilience.ErrorClassification{
			Retryable:     protoErr.Code >= 400 && protoErr.Code < 500,
			RecordFailure: protoErr.Code >= 400 && protoErr.Code < 500,
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
