// Package queue moves outbound mail through RabbitMQ: the API publishes
// events and the mail worker consumes and delivers them.
package queue

import (
	"time"

	"github.com/iliyamo/homestay-auth/internal/service"
)

// Queue names. Both are durable.
const (
	OtpQueue   = "mail.otp"
	ResetQueue = "mail.reset"
)

// OtpMailEvent is published for every issued login code.
type OtpMailEvent struct {
	To               string    `json:"to"`
	Name             string    `json:"name"`
	Code             string    `json:"code"`
	ExpiresInSeconds int64     `json:"expires_in_seconds"`
	QueuedAt         time.Time `json:"queued_at"`
}

// ResetMailEvent is published for every password reset request.
type ResetMailEvent struct {
	To        string    `json:"to"`
	Name      string    `json:"name"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
	QueuedAt  time.Time `json:"queued_at"`
}

func newOtpEvent(m service.OtpMail, now time.Time) OtpMailEvent {
	return OtpMailEvent{
		To:               m.To,
		Name:             m.Name,
		Code:             m.Code,
		ExpiresInSeconds: int64(m.TTL / time.Second),
		QueuedAt:         now.UTC(),
	}
}

func newResetEvent(m service.ResetMail, now time.Time) ResetMailEvent {
	return ResetMailEvent{
		To:        m.To,
		Name:      m.Name,
		Link:      m.Link,
		ExpiresAt: m.ExpiresAt.UTC(),
		QueuedAt:  now.UTC(),
	}
}

func (e OtpMailEvent) mail() service.OtpMail {
	return service.OtpMail{To: e.To, Name: e.Name, Code: e.Code, TTL: time.Duration(e.ExpiresInSeconds) * time.Second}
}

func (e ResetMailEvent) mail() service.ResetMail {
	return service.ResetMail{To: e.To, Name: e.Name, Link: e.Link, ExpiresAt: e.ExpiresAt}
}
