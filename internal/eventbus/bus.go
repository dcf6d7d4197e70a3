// Package eventbus delivers named backend notifications inside the process.
//
// Listeners of one name are called synchronously on the publishing goroutine, in
// subscription order, so notifications of the same name keep their publish order.
package eventbus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"workx/internal/ports"
)

var ErrClosed = errors.New("event bus is closed")

type listener struct {
	id      uint64
	handler ports.EventHandler
}

// Bus is an in-process ports.EventBus and ports.EventPublisher.
type Bus struct {
	logger *slog.Logger

	mu        sync.RWMutex
	listeners map[string][]listener
	nextID    uint64
	closed    bool
}

func New(logger *slog.Logger) *Bus {
	return &Bus{logger: logger, listeners: make(map[string][]listener)}
}

// Subscribe registers handler for name. The returned func is safe to call more than once.
func (b *Bus) Subscribe(name string, handler ports.EventHandler) (func(), error) {
	if name == "" {
		return nil, errors.New("event name is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler for %q is nil", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	b.nextID++
	id := b.nextID
	b.listeners[name] = append(b.listeners[name], listener{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}, nil
}

// Publish delivers payload to every listener of name.
func (b *Bus) Publish(name string, payload ...any) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	current := make([]listener, len(b.listeners[name]))
	copy(current, b.listeners[name])
	b.mu.RUnlock()

	for _, l := range current {
		b.deliver(name, l, payload)
	}
}

// Listeners reports how many handlers are registered for name.
func (b *Bus) Listeners(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[name])
}

// Close drops every listener and rejects further subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.listeners = make(map[string][]listener)
}

func (b *Bus) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.listeners[name]
	for i, l := range current {
		if l.id != id {
			continue
		}
		next := make([]listener, 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		if len(next) == 0 {
			delete(b.listeners, name)
		} else {
			b.listeners[name] = next
		}
		return
	}
}

func (b *Bus) deliver(name string, l listener, payload []any) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Error("event listener panicked", "event", name, "panic", r)
		}
	}()
	l.handler(payload...)
}
