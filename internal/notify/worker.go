package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

const retryHeader = "x-retry-count"

// ConsumeChannel is the part of *amqp.Channel the worker needs.
type ConsumeChannel interface {
	PublishChannel
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Queue      string
	Prefetch   int           // unacknowledged deliveries in flight (default: 10)
	MaxRetries int           // republish attempts before a message is dropped (default: 5)
	RetryDelay time.Duration // multiplied by the attempt number
}

// Worker consumes queued messages and sends them.
type Worker struct {
	ch       ConsumeChannel
	cfg      WorkerConfig
	renderer *Renderer
	sender   Sender
	logger   *slog.Logger

	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewWorker(ch ConsumeChannel, cfg WorkerConfig, renderer *Renderer, sender Sender, logger *slog.Logger) *Worker {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		ch:       ch,
		cfg:      cfg,
		renderer: renderer,
		sender:   sender,
		logger:   logger.With("component", "mailer", "queue", cfg.Queue),
	}
}

// DialWorker connects to the broker and declares the queue.
func DialWorker(url string, cfg WorkerConfig, renderer *Renderer, sender Sender, logger *slog.Logger) (*Worker, error) {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	conn, ch, err := dial(url, cfg.Queue)
	if err != nil {
		return nil, err
	}
	w := NewWorker(ch, cfg, renderer, sender, logger)
	w.conn, w.channel = conn, ch
	return w, nil
}

// Close closes the channel and connection opened by DialWorker.
func (w *Worker) Close() error {
	return closeAll(w.channel, w.conn)
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.ch.Qos(w.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := w.ch.Consume(w.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}
	w.logger.Info("mailer started", "prefetch", w.cfg.Prefetch, "max_retries", w.cfg.MaxRetries)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("mailer stopped")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.handle(ctx, d)
		}
	}
}

// handle processes one delivery and settles it exactly once.
func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var msg core.Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		w.logger.Error("dropping undecodable message", "message_id", d.MessageId, "error", err)
		_ = d.Nack(false, false)
		return
	}
	logger := w.logger.With("message_id", msg.ID.String(), "kind", string(msg.Kind), "email", msg.To)

	email, err := w.renderer.Render(msg)
	if err != nil {
		logger.Error("dropping unrenderable message", "error", err)
		_ = d.Nack(false, false)
		return
	}

	err = w.sender.Send(ctx, email)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	attempt := retryCount(d.Headers)
	if IsPermanent(err) || attempt >= w.cfg.MaxRetries {
		logger.Error("email not delivered", "attempts", attempt+1, "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := w.retry(ctx, d, attempt+1); err != nil {
		logger.Warn("republish failed, requeueing", "error", err)
		_ = d.Nack(false, true)
		return
	}
	logger.Warn("email send failed, retry scheduled", "attempt", attempt+1, "error", err)
	_ = d.Ack(false)
}

func (w *Worker) retry(ctx context.Context, d amqp.Delivery, attempt int) error {
	if w.cfg.RetryDelay > 0 {
		timer := time.NewTimer(time.Duration(attempt) * w.cfg.RetryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	headers := make(amqp.Table, len(d.Headers)+1)
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryHeader] = int32(attempt)

	return w.ch.PublishWithContext(ctx, "", w.cfg.Queue, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Type:         d.Type,
		Timestamp:    time.Now(),
		Headers:      headers,
		Body:         d.Body,
	})
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
