package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/homestay-auth/internal/config"
	"github.com/iliyamo/homestay-auth/internal/service"
)

var (
	// ErrOutboxFull is returned when every buffer slot is taken.
	ErrOutboxFull   = errors.New("queue: mail outbox is full")
	errOutboxClosed = errors.New("queue: mail outbox is closed")
)

type outboxJob struct {
	kind  string
	to    string
	otp   service.OtpMail
	reset service.ResetMail
}

// Outbox decouples request handlers from mail transport. Sends are accepted
// into a bounded buffer and delivered by a fixed pool of workers, each
// delivery under its own timeout. A caller never blocks: when the buffer is
// full the send fails at once with ErrOutboxFull.
type Outbox struct {
	next    service.Mailer
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan outboxJob
	wg     sync.WaitGroup
}

// NewOutbox starts cfg.Workers delivery goroutines in front of next.
func NewOutbox(next service.Mailer, cfg config.OutboxConfig, logger *slog.Logger) *Outbox {
	workers := max(cfg.Workers, 1)
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	o := &Outbox{
		next:    next,
		logger:  logger,
		timeout: timeout,
		jobs:    make(chan outboxJob, max(cfg.Buffer, 0)),
	}
	o.wg.Add(workers)
	for range workers {
		go o.run()
	}
	return o
}

// SendOtpMail queues m. The request context is not carried over; delivery
// outlives the request.
func (o *Outbox) SendOtpMail(_ context.Context, m service.OtpMail) error {
	return o.enqueue(outboxJob{kind: "otp", to: m.To, otp: m})
}

// SendResetMail queues m.
func (o *Outbox) SendResetMail(_ context.Context, m service.ResetMail) error {
	return o.enqueue(outboxJob{kind: "reset", to: m.To, reset: m})
}

func (o *Outbox) enqueue(j outboxJob) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return errOutboxClosed
	}
	select {
	case o.jobs <- j:
		return nil
	default:
		o.logger.Warn("mail outbox full, dropping mail", "kind", j.kind, "to", j.to)
		return ErrOutboxFull
	}
}

func (o *Outbox) run() {
	defer o.wg.Done()
	for j := range o.jobs {
		o.deliver(j)
	}
}

func (o *Outbox) deliver(j outboxJob) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	var err error
	switch j.kind {
	case "otp":
		err = o.next.SendOtpMail(ctx, j.otp)
	case "reset":
		err = o.next.SendResetMail(ctx, j.reset)
	}
	if err != nil {
		o.logger.Warn("mail delivery failed", "kind", j.kind, "to", j.to, "err", err)
	}
}

// Close stops accepting mail and waits for queued mail to be attempted.
func (o *Outbox) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.jobs)
	o.mu.Unlock()

	o.wg.Wait()
	return nil
}
