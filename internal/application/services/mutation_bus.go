package services

import (
	"context"
	"sync"

	"github.com/avatarctic/novel-reader/go/internal/core/domain/event"
	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// MutationBus is an in-process MutationNotifier. Publish runs every handler on the
// caller's goroutine, so invalidation has finished when Publish returns.
type MutationBus struct {
	mu       sync.RWMutex
	handlers []ports.MutationHandler
	logger   *logrus.Logger
}

func NewMutationBus(logger *logrus.Logger) *MutationBus {
	return &MutationBus{logger: logger}
}

func (b *MutationBus) Subscribe(h ports.MutationHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *MutationBus) Publish(ctx context.Context, ev event.Mutation) {
	b.mu.RLock()
	handlers := append([]ports.MutationHandler(nil), b.handlers...)
	b.mu.RUnlock()

	if b.logger != nil {
		b.logger.WithFields(logrus.Fields{
			"event_id":    ev.ID,
			"kind":        ev.Kind,
			"resource_id": ev.ResourceID,
			"action":      ev.Action,
		}).Debug("Publishing mutation")
	}
	for _, h := range handlers {
		h.Handle(ctx, ev)
	}
}

var _ ports.MutationNotifier = (*MutationBus)(nil)
