package events

import (
	"context"
	"errors"
	"log"
	"sync"
)

// InlineBus delivers events to in-process handlers synchronously.
type InlineBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewInlineBus creates a bus with no subscribers.
func NewInlineBus() *InlineBus {
	return &InlineBus{}
}

// Subscribe registers h for every published event.
func (b *InlineBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// PublishFirstClassAttended runs every handler and joins their errors.
func (b *InlineBus) PublishFirstClassAttended(ctx context.Context, evt FirstClassAttended) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			log.Printf("ERROR: inline handler failed for member %s: %v", evt.MemberID.Hex(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
