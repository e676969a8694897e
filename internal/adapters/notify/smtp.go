package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPSender delivers transactional auth emails over plain SMTP.
// Message bodies are deliberately minimal; presentation belongs to the
// notification service downstream, this is the direct-delivery fallback.
type SMTPSender struct {
	addr     string
	from     string
	auth     smtp.Auth
	baseURL  string
	sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BaseURL is the public frontend origin used to build link targets.
	BaseURL string
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from:     cfg.From,
		auth:     auth,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		sendFunc: smtp.SendMail,
	}
}

func (s *SMTPSender) SendConfirmation(_ context.Context, email, token string) error {
	link := s.baseURL + "/confirm-email?token=" + token
	return s.send(email, "Confirm your email",
		"Welcome! Confirm your email address by opening the link below:\r\n\r\n"+link+"\r\n")
}

func (s *SMTPSender) SendPasswordReset(_ context.Context, email, token string) error {
	link := s.baseURL + "/reset-password?token=" + token
	return s.send(email, "Reset your password",
		"A password reset was requested for your account. The link below is valid for one hour:\r\n\r\n"+link+"\r\n\r\nIf you did not request this, ignore this message.\r\n")
}

func (s *SMTPSender) SendTwoFactorCode(_ context.Context, email, code string) error {
	return s.send(email, "Your verification code",
		"Your sign-in verification code is:\r\n\r\n"+code+"\r\n\r\nIt expires in 5 minutes.\r\n")
}

func (s *SMTPSender) send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	if err := s.sendFunc(s.addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
