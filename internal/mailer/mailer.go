// Package mailer sends transactional e-mail over SMTP.
package mailer

import (
	"context"
	"fmt"
	"io"

	"busticket/internal/config"
	"busticket/internal/logger"

	"gopkg.in/gomail.v2"
)

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTP struct {
	Dialer *gomail.Dialer
	From   string
	Logger *logger.Logger
}

func NewSMTP(cfg config.EmailConfig, log *logger.Logger) *SMTP {
	from := cfg.From
	if from == "" {
		from = cfg.SMTPUsername
	}
	return &SMTP{
		Dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		From:   from,
		Logger: log,
	}
}

// New returns an SMTP sender when e-mail is enabled, otherwise a Noop.
func New(cfg config.EmailConfig, log *logger.Logger) Sender {
	if !cfg.Enabled {
		return &Noop{Logger: log}
	}
	return NewSMTP(cfg, log)
}

func (s *SMTP) build(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	for _, a := range msg.Attachments {
		data := a.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}))
		}
		m.Attach(a.Name, settings...)
	}
	return m
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Dialer.DialAndSend(s.build(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	s.Logger.Info("MAIL", fmt.Sprintf("Sent %q to %s", msg.Subject, msg.To))
	return nil
}

// Noop logs instead of sending.
type Noop struct {
	Logger *logger.Logger
}

func (n *Noop) Send(ctx context.Context, msg Message) error {
	n.Logger.Debug("MAIL", fmt.Sprintf("E-mail disabled, skipped %q to %s", msg.Subject, msg.To))
	return nil
}
