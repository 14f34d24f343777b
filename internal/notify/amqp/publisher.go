// Package amqp publishes notifications to a RabbitMQ exchange with
// amqp091-go.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"salesetl/internal/notify"
)

// Config selects the broker and destination.
type Config struct {
	URL        string
	Exchange   string // "" publishes to the default exchange
	RoutingKey string // queue name when Exchange is ""
}

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dial opens a connection and channel. Replaced in tests.
var dial = func(url string) (channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	return ch, conn.Close, nil
}

// Publisher is a notify.Notifier backed by one AMQP channel.
type Publisher struct {
	cfg       Config
	ch        channel
	closeConn func() error
}

var _ notify.Notifier = (*Publisher)(nil)

// New connects and, when cfg.Exchange is set, declares it as a durable
// topic exchange.
func New(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("amqp: URL is required")
	}
	ch, closeConn, err := dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			ch.Close()
			closeConn()
			return nil, fmt.Errorf("amqp declare exchange %s: %w", cfg.Exchange, err)
		}
	}
	return &Publisher{cfg: cfg, ch: ch, closeConn: closeConn}, nil
}

// Notify publishes msg as a persistent message.
func (p *Publisher) Notify(ctx context.Context, msg notify.Message) error {
	if p.ch == nil {
		return errors.New("amqp: publisher is closed")
	}
	ct := msg.ContentType
	if ct == "" {
		ct = "application/json"
	}
	err := p.ch.PublishWithContext(ctx, p.cfg.Exchange, p.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  ct,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    time.Now().UTC(),
		Body:         msg.Body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish exchange=%q key=%q: %w", p.cfg.Exchange, p.cfg.RoutingKey, err)
	}
	log.Printf("notify: published exchange=%q key=%q bytes=%d", p.cfg.Exchange, p.cfg.RoutingKey, len(msg.Body))
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	if cerr := p.closeConn(); err == nil {
		err = cerr
	}
	p.ch = nil
	return err
}
