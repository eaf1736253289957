// Package pubsub implements a minimal fan-out hub: subscribers register a
// channel and receive every value handed to Publish.
package pubsub

import (
	"log/slog"
	"sync"
)

// Hub distributes published values to all current subscribers.
// Subscriber channels are unbuffered, so a slow subscriber blocks
// Publish; subscribers are expected to drain their channel promptly.
type Hub[T any] struct {
	subscribers map[chan T]struct{}
	logger      *slog.Logger
	lock        sync.RWMutex
}

// New returns a Hub for values of type T.
func New[T any](logger *slog.Logger) *Hub[T] {
	return &Hub[T]{
		subscribers: make(map[chan T]struct{}),
		logger:      logger,
	}
}

// Subscribe registers the caller and returns the channel it will receive on.
func (h *Hub[T]) Subscribe() chan T {
	h.lock.Lock()
	defer h.lock.Unlock()
	ch := make(chan T)
	h.subscribers[ch] = struct{}{}
	h.logger.Debug("subscriber added", slog.Int("subscribers", len(h.subscribers)))
	return ch
}

// Unsubscribe removes a channel previously returned by Subscribe.
func (h *Hub[T]) Unsubscribe(ch chan T) {
	h.lock.Lock()
	defer h.lock.Unlock()
	delete(h.subscribers, ch)
	h.logger.Debug("subscriber removed", slog.Int("subscribers", len(h.subscribers)))
}

// Publish sends value to every subscriber.
func (h *Hub[T]) Publish(value T) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	for ch := range h.subscribers {
		ch <- value
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub[T]) Subscribers() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.subscribers)
}
