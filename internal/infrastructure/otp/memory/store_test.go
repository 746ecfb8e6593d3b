package memory

import (
	"testing"
	"time"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
)

func TestConsumeOnlyOnce(t *testing.T) {
	s := New()
	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	if !s.Issue(domain.OTPEntry{Code: "123456", Email: "a@x", ExpiresAt: now.Add(2 * time.Minute)}, now) {
		t.Fatalf("Issue() rejected a fresh code")
	}
	if s.Consume("123456", "b@x", now) {
		t.Fatalf("code must be bound to its address")
	}
	if !s.Consume("123456", "a@x", now.Add(time.Minute)) {
		t.Fatalf("expected live code to be consumed")
	}
	if s.Consume("123456", "a@x", now.Add(time.Minute)) {
		t.Fatalf("code consumed twice")
	}
}

func TestExpiredCodesArePurged(t *testing.T) {
	s := New()
	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	s.Issue(domain.OTPEntry{Code: "111111", Email: "a@x", ExpiresAt: now.Add(2 * time.Minute)}, now)

	later := now.Add(2 * time.Minute)
	if s.Consume("111111", "a@x", later) {
		t.Fatalf("expired code accepted")
	}
	if s.Len() != 0 {
		t.Fatalf("expected expired entry purged, %d left", s.Len())
	}
}

func TestIssueRejectsLiveDuplicateCode(t *testing.T) {
	s := New()
	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	s.Issue(domain.OTPEntry{Code: "222222", Email: "a@x", ExpiresAt: now.Add(time.Minute)}, now)
	if s.Issue(domain.OTPEntry{Code: "222222", Email: "b@x", ExpiresAt: now.Add(time.Minute)}, now) {
		t.Fatalf("duplicate live code accepted")
	}
	if !s.Issue(domain.OTPEntry{Code: "222222", Email: "b@x", ExpiresAt: now.Add(3 * time.Minute)}, now.Add(time.Minute)) {
		t.Fatalf("code should be reusable once the first one expired")
	}
}
