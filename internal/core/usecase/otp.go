package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ports"
)

const (
	otpDigits       = 6
	otpIssueRetries = 32
	otpSubject      = "Your OTP Code"
)

type OTPUseCase struct {
	store   ports.OTPStore
	mailer  ports.Mailer
	pattern *regexp.Regexp
	ttl     time.Duration

	now     func() time.Time
	newCode func() (string, error)
}

func NewOTPUseCase(store ports.OTPStore, mailer ports.Mailer, emailPattern string, ttl time.Duration) (*OTPUseCase, error) {
	pattern, err := regexp.Compile(emailPattern)
	if err != nil {
		return nil, fmt.Errorf("compile otp email pattern: %w", err)
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &OTPUseCase{
		store:   store,
		mailer:  mailer,
		pattern: pattern,
		ttl:     ttl,
		now:     time.Now,
		newCode: randomCode,
	}, nil
}

// Send issues a fresh code for email and mails it.
func (uc *OTPUseCase) Send(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !uc.pattern.MatchString(email) {
		return domain.WrapError(domain.ErrInvalidInput, "send otp", fmt.Errorf("invalid email format: %q", email))
	}

	now := uc.now()
	entry := domain.OTPEntry{Email: email, ExpiresAt: now.Add(uc.ttl)}
	issued := false
	for attempt := 0; attempt < otpIssueRetries && !issued; attempt++ {
		code, err := uc.newCode()
		if err != nil {
			return fmt.Errorf("generate otp: %w", err)
		}
		entry.Code = code
		issued = uc.store.Issue(entry, now)
	}
	if !issued {
		return domain.WrapError(domain.ErrTemporary, "send otp", errors.New("no free otp code"))
	}

	body := fmt.Sprintf("Your OTP code is: %s\nThis code will expire in %s.", entry.Code, uc.ttl)
	if err := uc.mailer.Send(ctx, email, otpSubject, body); err != nil {
		return fmt.Errorf("send otp mail: %w", err)
	}
	return nil
}

// Verify consumes code if it was issued to email and has not expired.
func (uc *OTPUseCase) Verify(_ context.Context, email, code string) error {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return domain.WrapError(domain.ErrInvalidInput, "verify otp", errors.New("email and otp are required"))
	}
	if !uc.store.Consume(code, email, uc.now()) {
		return domain.WrapError(domain.ErrOTPInvalid, "verify otp", errors.New("code rejected"))
	}
	return nil
}

func randomCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
