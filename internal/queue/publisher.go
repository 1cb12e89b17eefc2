package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/homestay-auth/internal/config"
	"github.com/iliyamo/homestay-auth/internal/service"
)

const defaultDialTimeout = 5 * time.Second

// dialBroker opens an AMQP connection whose TCP and handshake phase is
// bounded by timeout.
func dialBroker(url string, timeout time.Duration) (*amqp.Connection, error) {
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

// Publisher implements service.Mailer by publishing persistent JSON events to
// the mail queues. The connection is opened lazily and reopened after the
// broker drops it.
type Publisher struct {
	logger *slog.Logger
	now    func() time.Time

	// mu guards conn and ch only. It is never held across network I/O.
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel

	// Seams swapped in tests.
	dial    func() (*amqp.Connection, error)
	publish func(ctx context.Context, queue string, body []byte) error
}

// NewPublisher returns a Publisher for the broker in cfg. No connection is
// made until the first publish.
func NewPublisher(cfg config.AMQPConfig, logger *slog.Logger) *Publisher {
	p := &Publisher{logger: logger, now: time.Now}
	p.dial = func() (*amqp.Connection, error) { return dialBroker(cfg.URL, cfg.DialTimeout) }
	p.publish = p.publishAMQP
	return p
}

func (p *Publisher) SendOtpMail(ctx context.Context, m service.OtpMail) error {
	return p.send(ctx, OtpQueue, newOtpEvent(m, p.now()))
}

func (p *Publisher) SendResetMail(ctx context.Context, m service.ResetMail) error {
	return p.send(ctx, ResetQueue, newResetEvent(m, p.now()))
}

func (p *Publisher) send(ctx context.Context, queue string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", queue, err)
	}
	if err := p.publish(ctx, queue, body); err != nil {
		p.logger.Warn("rabbitmq publish failed", "queue", queue, "err", err)
		return err
	}
	return nil
}

// publishAMQP declares the queue and publishes body. amqp channels accept
// concurrent calls, so no lock is held here.
func (p *Publisher) publishAMQP(ctx context.Context, queue string, body []byte) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		p.drop(ch)
		return fmt.Errorf("queue declare: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		p.drop(ch)
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// channel returns the cached channel or dials a new one. The dial runs
// without p.mu, so callers never queue up behind a slow broker. When two
// callers dial at once the first to finish wins and the other connection is
// closed.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if ch := p.live(); ch != nil {
		return ch, nil
	}

	conn, err := p.dial()
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		_ = ch.Close()
		_ = conn.Close()
		return p.ch, nil
	}
	p.resetLocked()
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) live() *amqp.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch
	}
	return nil
}

// drop discards ch if it is still the cached channel.
func (p *Publisher) drop(ch *amqp.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		p.resetLocked()
	}
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}
