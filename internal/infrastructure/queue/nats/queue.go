package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/infrastructure/resilience"
)

// Queue fans out model-retrained events. Every replica receives every event, so
// subscriptions are plain (not queue-group) subscriptions. Events published by
// this process are not delivered back to its own handler.
type Queue struct {
	conn     *nats.Conn
	subject  string
	origin   string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

// retrainedEvent is the wire payload. Origin identifies the publishing process.
type retrainedEvent struct {
	RunID  string `json:"run_id"`
	Origin string `json:"origin"`
}

func New(url, subject string, options Options) (*Queue, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(
		url,
		nats.Name("koi-classifier"),
		nats.Timeout(positiveOr(options.ConnectTimeout, 2*time.Second)),
		nats.ReconnectWait(positiveOr(options.ReconnectWait, 2*time.Second)),
		nats.MaxReconnects(maxReconnects(options.MaxReconnects)),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		origin:   uuid.NewString(),
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishModelRetrained(ctx context.Context, runID string) error {
	payload, err := encodeEvent(retrainedEvent{RunID: runID, Origin: q.origin})
	if err != nil {
		return err
	}
	publish := func(context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", publish, classifyError)
	} else {
		err = publish(ctx)
	}
	return asTemporary(err)
}

// SubscribeModelRetrained blocks until ctx is done, then drains the subscription.
func (q *Queue) SubscribeModelRetrained(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.Subscribe(q.subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := decodeEvent(msg.Data)
		if err != nil {
			q.logger.Warn("drop malformed model event", "error", err)
			return
		}
		if event.Origin == q.origin {
			return
		}
		if err := handler(ctx, event.RunID); err != nil {
			q.logger.Error("model event handler failed", "run_id", event.RunID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	return nil
}

func encodeEvent(e retrainedEvent) ([]byte, error) {
	if strings.TrimSpace(e.RunID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "publish model retrained", errors.New("empty run id"))
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode model event: %w", err)
	}
	return data, nil
}

// decodeEvent also accepts a bare run id, which is what operators send by hand
// with `nats pub` to force a reload.
func decodeEvent(data []byte) (retrainedEvent, error) {
	var e retrainedEvent
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &e); err != nil {
			return e, fmt.Errorf("decode model event: %w", err)
		}
	} else {
		e.RunID = trimmed
	}
	if e.RunID == "" {
		return e, errors.New("model event without run id")
	}
	return e, nil
}

func classifyError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	switch {
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrConnectionReconnecting):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

func asTemporary(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "publish model retrained", err)
	}
	return err
}

// maxReconnects keeps 60 as the default; a negative value means reconnect forever.
func maxReconnects(n int) int {
	if n == 0 {
		return 60
	}
	return n
}

func positiveOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
