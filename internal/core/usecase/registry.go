package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/bundle"
	"github.com/kirillkom/koi-classifier/internal/core/ports"
)

// ModelRegistry holds the bundle used for inference. Readers always see a
// complete bundle; a retrain or reload replaces it with a single pointer swap.
type ModelRegistry struct {
	store  ports.ArtifactStore
	logger *slog.Logger
	active atomic.Pointer[bundle.Bundle]
}

func NewModelRegistry(store ports.ArtifactStore, logger *slog.Logger) *ModelRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelRegistry{store: store, logger: logger}
}

// Active returns the current bundle or nil before the first model exists.
func (r *ModelRegistry) Active() *bundle.Bundle {
	return r.active.Load()
}

// Swap installs b and returns the bundle it replaced.
func (r *ModelRegistry) Swap(b *bundle.Bundle) *bundle.Bundle {
	return r.active.Swap(b)
}

// Reload installs the store's current bundle. A bundle older than the active
// one is ignored, so a slow reload cannot undo a newer local swap.
func (r *ModelRegistry) Reload(ctx context.Context) error {
	b, err := r.store.Load(ctx)
	if err != nil {
		return err
	}
	for {
		current := r.active.Load()
		if current != nil && b.Manifest.CreatedAt.Before(current.Manifest.CreatedAt) {
			r.logger.Info("skip stale bundle", "run_id", b.Manifest.RunID, "active_run_id", current.Manifest.RunID)
			return nil
		}
		if r.active.CompareAndSwap(current, b) {
			r.logger.Info("model bundle loaded", "run_id", b.Manifest.RunID, "model", b.Manifest.ModelName, "f1", b.Manifest.F1)
			return nil
		}
	}
}

func (r *ModelRegistry) ActiveModel() (*domain.ModelInfo, error) {
	b := r.active.Load()
	if b == nil {
		return nil, domain.WrapError(domain.ErrModelNotReady, "active model", errors.New("no trained model"))
	}
	info := b.Info()
	return &info, nil
}

// Follow reloads the registry whenever another replica announces a retrain. It
// blocks until ctx is done.
func (r *ModelRegistry) Follow(ctx context.Context, events ports.ModelEvents) error {
	if events == nil {
		return fmt.Errorf("follow model events: no event source")
	}
	return events.SubscribeModelRetrained(ctx, func(ctx context.Context, runID string) error {
		if current := r.active.Load(); current != nil && current.Manifest.RunID == runID {
			return nil
		}
		if err := r.Reload(ctx); err != nil {
			r.logger.Error("reload after retrain event failed", "run_id", runID, "error", err)
			return err
		}
		return nil
	})
}
