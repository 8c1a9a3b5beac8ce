package service

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/whisperwall/internal/config"
)

// MailService sends verification emails over SMTP. When the SMTP settings are
// incomplete the service runs disabled and logs the code instead, which keeps
// local development working without a mail account.
type MailService struct {
	host     string
	port     int
	username string
	password string
	from     string
	enabled  bool
}

// NewMailService creates a MailService from config
func NewMailService(cfg config.SMTPConfig) *MailService {
	enabled := cfg.Host != "" && cfg.Port != 0 && cfg.Username != "" && cfg.Password != "" && cfg.From != ""
	if !enabled {
		log.Printf("MailService disabled: incomplete SMTP configuration, codes will be logged")
	}
	return &MailService{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		enabled:  enabled,
	}
}

// SendVerificationEmail delivers the 6-digit code to the given address
func (s *MailService) SendVerificationEmail(ctx context.Context, email, username, code string) error {
	if !s.enabled {
		log.Printf("MailService disabled: verification code for %s is %s", email, code)
		return nil
	}

	subject := "Your verification code"
	body := fmt.Sprintf(
		"<p>Hi %s,</p>"+
			"<p>Your verification code is <b>%s</b>. It expires in one hour.</p>"+
			"<p>If you did not register, you can ignore this email.</p>",
		username, code)

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	mime := "MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n"
	msg := []byte(fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\n%s%s",
		strings.TrimSpace(email), s.from, subject, mime, body))

	if err := smtp.SendMail(addr, auth, s.from, []string{email}, msg); err != nil {
		log.Printf("Failed to send verification email to %s: %v", email, err)
		return err
	}
	log.Printf("Verification email sent to %s", email)
	return nil
}
