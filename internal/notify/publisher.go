// Package notify delivers the emails produced by imports.
//
// Commits enqueue messages through a Publisher onto a durable AMQP queue;
// the mailer process runs a Worker that consumes the queue, renders each
// message with the embedded Liquid templates and hands it to a Sender.
// Failed sends are retried by republishing the message with an incremented
// x-retry-count header, up to a maximum, after which the message is dropped
// (or dead-lettered, if the queue has a dead-letter exchange).
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

// DefaultQueue is the queue name used when none is configured.
const DefaultQueue = "depositor_emails"

// PublishChannel is the part of *amqp.Channel the publisher needs.
type PublishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher implements core.Dispatcher on an AMQP queue.
type Publisher struct {
	mu    sync.Mutex
	ch    PublishChannel
	queue string

	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewPublisher publishes on ch. The queue must already exist.
func NewPublisher(ch PublishChannel, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{ch: ch, queue: queue}
}

// DialPublisher connects to the broker and declares the durable queue.
func DialPublisher(url, queue string) (*Publisher, error) {
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	p := NewPublisher(ch, queue)
	p.conn, p.channel = conn, ch
	return p, nil
}

// Enqueue publishes msg as a persistent JSON message.
func (p *Publisher) Enqueue(ctx context.Context, msg core.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID.String(),
		Type:         string(msg.Kind),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", msg.Kind, p.queue, err)
	}
	return nil
}

// Close closes the channel and connection opened by DialPublisher.
func (p *Publisher) Close() error {
	return closeAll(p.channel, p.conn)
}

func dial(url, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareQueue(ch, queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func declareQueue(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}

func closeAll(ch *amqp.Channel, conn *amqp.Connection) error {
	if ch != nil {
		if err := ch.Close(); err != nil {
			return err
		}
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}
