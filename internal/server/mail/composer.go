package mail

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	verificationSubject  = "Email Verification - PG Finder App"
	passwordResetSubject = "Password Reset Request - PG Finder App"
)

// Composer renders message bodies with links into the frontend. The
// stated link lifetimes are the configured token TTLs.
type Composer struct {
	frontendURL     string
	verificationTTL time.Duration
	resetTTL        time.Duration
}

func NewComposer(frontendURL string, verificationTTL, resetTTL time.Duration) *Composer {
	return &Composer{
		frontendURL:     strings.TrimRight(frontendURL, "/"),
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
	}
}

func (c *Composer) link(path, token string) string {
	return c.frontendURL + path + "?token=" + url.QueryEscape(token)
}

// Verification renders the email-verification message.
func (c *Composer) Verification(to, name, token string) Message {
	body := fmt.Sprintf(`Hello %s,

Thank you for registering with PG Finder App!

Please click the link below to verify your email address:
%s

This link will expire in %s.

If you did not create an account, please ignore this email.

Best regards,
PG Finder Team`, name, c.link("/verify-email", token), lifetime(c.verificationTTL))

	return Message{To: to, Subject: verificationSubject, Body: body}
}

// PasswordReset renders the password-reset message.
func (c *Composer) PasswordReset(to, name, token string) Message {
	body := fmt.Sprintf(`Hello %s,

We received a request to reset your password.

Please click the link below to reset your password:
%s

This link will expire in %s.

If you did not request a password reset, please ignore this email.

Best regards,
PG Finder Team`, name, c.link("/reset-password", token), lifetime(c.resetTTL))

	return Message{To: to, Subject: passwordResetSubject, Body: body}
}

// lifetime spells d in whole days, hours or minutes where it divides evenly.
func lifetime(d time.Duration) string {
	unit := func(n int64, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}

	switch {
	case d <= 0:
		return d.String()
	case d%(24*time.Hour) == 0 && d >= 48*time.Hour:
		return unit(int64(d/(24*time.Hour)), "day")
	case d%time.Hour == 0:
		return unit(int64(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return unit(int64(d/time.Minute), "minute")
	}
	return d.String()
}
