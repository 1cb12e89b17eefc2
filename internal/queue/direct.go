package queue

import (
	"context"

	"github.com/iliyamo/homestay-auth/internal/service"
)

// DirectMailer renders and sends mail inline. It is used when the broker is
// disabled.
type DirectMailer struct {
	Sender Sender
}

func (d *DirectMailer) SendOtpMail(ctx context.Context, m service.OtpMail) error {
	return d.Sender.Send(ctx, RenderOtp(m))
}

func (d *DirectMailer) SendResetMail(ctx context.Context, m service.ResetMail) error {
	return d.Sender.Send(ctx, RenderReset(m))
}
