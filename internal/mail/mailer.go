// Package mail dispatches transactional mail. The only message this
// service sends is the password-reset token.
package mail

import (
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/jordan-wright/email"
)

// Mailer delivers password-reset messages.
type Mailer interface {
	SendPasswordReset(to, name, token string) error
}

// SMTPMailer sends mail over plain SMTP.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	sender   string
	logger   *slog.Logger
}

// NewSMTPMailer creates a mailer backed by the given SMTP server.
func NewSMTPMailer(host string, port int, username, password, sender string, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		sender:   sender,
		logger:   logger,
	}
}

// SendPasswordReset mails the reset token to the user. The token is
// short-lived and single-purpose; see the token service.
func (m *SMTPMailer) SendPasswordReset(to, name, token string) error {
	e := email.NewEmail()
	e.From = m.sender
	e.To = []string{to}
	e.Subject = "Password reset request"
	e.Text = []byte(fmt.Sprintf(
		"Dear %s,\n\n"+
			"A password reset was requested for your account.\n"+
			"Use the token below within one hour to set a new password:\n\n"+
			"%s\n\n"+
			"If you did not request this, you can ignore this message.\n",
		name, token,
	))

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	if err := e.Send(addr, auth); err != nil {
		m.logger.Error("failed to send reset mail", "to", to, "error", err)
		return fmt.Errorf("send reset mail: %w", err)
	}

	m.logger.Info("reset mail sent", "to", to)
	return nil
}

// LogMailer logs instead of sending. Used when SMTP is not configured,
// typically in development.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendPasswordReset logs the reset request without the token value.
func (m *LogMailer) SendPasswordReset(to, name, token string) error {
	m.logger.Info("password reset requested (mail disabled)", "to", to)
	return nil
}
