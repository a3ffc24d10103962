// Package mailer sends the account verification mails. Plain SMTP with
// STARTTLS is enough here; verification codes are short-lived and the mail
// body is a single line.
package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/talhaxhahid/ChildCompass-Backend/pkg/config"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/logger"
)

// Mailer sends verification mail for new parent accounts
type Mailer struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a mailer from SMTP settings
func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// Enabled reports whether SMTP credentials are configured. With no
// credentials the code is only logged, which keeps local development working.
func (m *Mailer) Enabled() bool {
	return m.cfg.Username != "" && m.cfg.Password != ""
}

// SendVerificationCode mails the 5-digit code to a freshly registered parent
func (m *Mailer) SendVerificationCode(to, code string) error {
	if !m.Enabled() {
		logger.Get().WarnWith("smtp not configured, logging verification code instead",
			"email", to, "code", code)
		return nil
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Verify Your Email\r\n\r\n"+
		"Your 5-digit verification code is: %s. It will expire in 10 minutes.\r\n",
		m.cfg.From, to, code)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	if err := m.send(addr, auth, m.cfg.From, []string{to}, []byte(body)); err != nil {
		return fmt.Errorf("failed to send verification mail: %w", err)
	}
	return nil
}
