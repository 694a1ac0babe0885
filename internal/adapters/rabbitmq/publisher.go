// Package rabbitmq publishes account events to a topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"pension/internal/domain"
)

// channel is the part of *amqp091.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher holds the AMQP connection and channel for publishing account events.
type Publisher struct {
	exchange string
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel channel
	reopen  func() (channel, error)
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// Slice off anything in front of the scheme.
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewPublisher dials the broker and declares the exchange.
func NewPublisher(amqpURL, exchange string, log zerolog.Logger) (*Publisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	p := newPublisher(ch, exchange, log)
	p.conn = conn
	p.reopen = func() (channel, error) { return conn.Channel() }
	if err := p.declare(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func newPublisher(ch channel, exchange string, log zerolog.Logger) *Publisher {
	return &Publisher{
		exchange: exchange,
		log:      log.With().Str("component", "rabbitmq_publisher").Str("exchange", exchange).Logger(),
		now:      time.Now,
		channel:  ch,
	}
}

func (p *Publisher) declare() error {
	return p.channel.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	)
}

// Notify publishes account.opened for referenceID. A failed publish reopens
// the channel once and retries.
func (p *Publisher) Notify(ctx context.Context, referenceID string) error {
	body, err := json.Marshal(domain.NewAccountOpened(referenceID, p.now()))
	if err != nil {
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    referenceID,
		Timestamp:    p.now(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		return amqp091.ErrClosed
	}
	err = p.channel.PublishWithContext(ctx, p.exchange, domain.EventAccountOpened, false, false, msg)
	if err == nil {
		return nil
	}
	if p.reopen == nil {
		return err
	}
	p.log.Warn().Err(err).Str("reference_id", referenceID).Msg("publish failed; reopening channel")
	ch, chErr := p.reopen()
	if chErr != nil {
		return errors.Join(err, chErr)
	}
	_ = p.channel.Close()
	p.channel = ch
	if exErr := p.declare(); exErr != nil {
		return exErr
	}
	return p.channel.PublishWithContext(ctx, p.exchange, domain.EventAccountOpened, false, false, msg)
}

// Close closes the channel and connection. Later calls to Notify fail with
// amqp091.ErrClosed.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
