package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/homestay-auth/internal/config"
)

const maxBackoff = 30 * time.Second

// Worker consumes the mail queues and hands each message to a Sender.
type Worker struct {
	cfg    config.AMQPConfig
	sender Sender
	logger *slog.Logger
}

// NewWorker builds a Worker.
func NewWorker(cfg config.AMQPConfig, sender Sender, logger *slog.Logger) *Worker {
	return &Worker{cfg: cfg, sender: sender, logger: logger}
}

// Run connects to the broker and consumes until ctx is cancelled, reconnecting
// with exponential backoff whenever the connection is lost.
func (w *Worker) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := dialBroker(w.cfg.URL, w.cfg.DialTimeout)
		if err != nil {
			w.logger.Warn("mail-worker: dial failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		err = w.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn("mail-worker: consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (w *Worker) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(w.cfg.Prefetch, 0, false); err != nil {
		w.logger.Warn("mail-worker: set QoS failed", "err", err)
	}

	done := make(chan struct{})
	defer close(done)
	deliveries := make(chan amqp.Delivery)
	for _, q := range []string{OtpQueue, ResetQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", q, err)
		}
		go func() {
			for d := range msgs {
				select {
				case deliveries <- d:
				case <-done:
					return
				}
			}
		}()
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	w.logger.Info("mail-worker: consuming", "queues", []string{OtpQueue, ResetQueue})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr != nil {
				return amqpErr
			}
			return errors.New("connection closed")
		case d := <-deliveries:
			if err := w.Handle(ctx, d.RoutingKey, d.Body); err != nil {
				w.logger.Error("mail-worker: handle message failed", "queue", d.RoutingKey, "err", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message from queue and delivers it.
func (w *Worker) Handle(ctx context.Context, queue string, body []byte) error {
	var msg Message
	switch queue {
	case OtpQueue:
		var ev OtpMailEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		msg = RenderOtp(ev.mail())
	case ResetQueue:
		var ev ResetMailEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		msg = RenderReset(ev.mail())
	default:
		return fmt.Errorf("unknown queue %q", queue)
	}
	if msg.To == "" {
		return errors.New("event has no recipient")
	}
	return w.sender.Send(ctx, msg)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
