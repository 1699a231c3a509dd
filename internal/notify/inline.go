package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

// ErrDispatcherClosed is returned by Enqueue after Close.
var ErrDispatcherClosed = errors.New("dispatcher is closed")

// InlineDispatcher implements core.Dispatcher without a broker: messages are
// buffered and rendered then sent by a single background goroutine. It is
// used when no AMQP URL is configured, usually with a LogSender. Messages
// still buffered when the process dies are lost.
type InlineDispatcher struct {
	renderer *Renderer
	sender   Sender
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan core.Message
	done   chan struct{}
}

// NewInlineDispatcher starts the delivery goroutine. buffer bounds the
// number of pending messages; Enqueue blocks when it is full.
func NewInlineDispatcher(renderer *Renderer, sender Sender, buffer int, logger *slog.Logger) *InlineDispatcher {
	if buffer <= 0 {
		buffer = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &InlineDispatcher{
		renderer: renderer,
		sender:   sender,
		logger:   logger.With("component", "inline_mailer"),
		queue:    make(chan core.Message, buffer),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *InlineDispatcher) Enqueue(ctx context.Context, msg core.Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages and waits for the pending ones.
func (d *InlineDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *InlineDispatcher) run() {
	defer close(d.done)
	for msg := range d.queue {
		email, err := d.renderer.Render(msg)
		if err != nil {
			d.logger.Error("render failed, message dropped", "message_id", msg.ID.String(), "error", err)
			continue
		}
		if err := d.sender.Send(context.Background(), email); err != nil {
			d.logger.Warn("send failed, message dropped", "message_id", msg.ID.String(), "email", msg.To, "error", err)
		}
	}
}
