package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"cancelled", context.Canceled, false, false},
		{"timeout", fmt.Errorf("nats publish: %w", nats.ErrTimeout), true, true},
		{"closed", nats.ErrConnectionClosed, true, true},
		{"reconnecting", nats.ErrConnectionReconnecting, true, true},
		{"bad subject", nats.ErrBadSubject, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := classifyError(tc.err)
			if class.Retryable != tc.retryable || class.RecordFailure != tc.record {
				t.Fatalf("classifyError(%v) = %+v", tc.err, class)
			}
		})
	}
}

func TestAsTemporary(t *testing.T) {
	if err := asTemporary(nats.ErrNoServers); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	plain := errors.New("invalid payload")
	if err := asTemporary(plain); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("non-retryable error must not become temporary: %v", err)
	}
	if asTemporary(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestEventRoundTrip(t *testing.T) {
	data, err := encodeEvent(retrainedEvent{RunID: "20260101T000000-abcd1234", Origin: "replica-a"})
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}
	got, err := decodeEvent(data)
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if got.RunID != "20260101T000000-abcd1234" || got.Origin != "replica-a" {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestDecodeEventAcceptsBareRunID(t *testing.T) {
	got, err := decodeEvent([]byte(" run-7\n"))
	if err != nil || got.RunID != "run-7" || got.Origin != "" {
		t.Fatalf("decodeEvent() = %+v, %v", got, err)
	}
	for _, raw := range []string{"", "{}", "{not json"} {
		if _, err := decodeEvent([]byte(raw)); err == nil {
			t.Fatalf("decodeEvent(%q) expected error", raw)
		}
	}
}

func TestEncodeEventRejectsEmptyRunID(t *testing.T) {
	if _, err := encodeEvent(retrainedEvent{Origin: "x"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
