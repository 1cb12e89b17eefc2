package queue

import (
	"fmt"
	"time"

	"github.com/iliyamo/homestay-auth/internal/service"
)

// Message is a rendered mail ready for a Sender.
type Message struct {
	To      string
	Subject string
	Body    string
}

func greeting(name string) string {
	if name == "" {
		return "Hello,"
	}
	return fmt.Sprintf("Hello %s,", name)
}

// RenderOtp builds the login code mail.
func RenderOtp(m service.OtpMail) Message {
	minutes := int(m.TTL.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return Message{
		To:      m.To,
		Subject: "Your Homestay sign-in code",
		Body: fmt.Sprintf("%s\n\nYour sign-in code is %s. It expires in %d minute(s).\n\n"+
			"If you did not try to sign in, you can ignore this mail.\n", greeting(m.Name), m.Code, minutes),
	}
}

// RenderReset builds the password reset mail.
func RenderReset(m service.ResetMail) Message {
	return Message{
		To:      m.To,
		Subject: "Reset your Homestay password",
		Body: fmt.Sprintf("%s\n\nUse the link below to choose a new password:\n\n%s\n\n"+
			"The link expires at %s. If you did not ask for a reset, ignore this mail.\n",
			greeting(m.Name), m.Link, m.ExpiresAt.UTC().Format(time.RFC1123)),
	}
}
