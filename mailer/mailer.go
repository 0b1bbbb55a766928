// Package mailer delivers account emails over SMTP.
package mailer

import (
	"net/smtp"

	"github.com/jordan-wright/email"
)

type Mailer interface {
	QuickSend(to, subject, body string) error
	Send(from string, to, cc, bcc []string, subject, body string, attachments []string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Address  string
}

type mailerImpl struct {
	cfg SMTPConfig
}

func NewMailer(cfg SMTPConfig) Mailer {
	return mailerImpl{cfg}
}

func (m mailerImpl) QuickSend(to, subject, body string) error {
	return m.Send(m.cfg.From, []string{to}, nil, nil, subject, body, nil)
}

func (m mailerImpl) Send(from string, to, cc, bcc []string, subject, body string, attachments []string) error {
	e := email.NewEmail()
	if from != "" {
		e.From = from
	} else {
		e.From = m.cfg.From
	}
	e.To = to
	e.Cc = cc
	e.Bcc = bcc
	e.Subject = subject
	e.Text = []byte(body)

	for _, attachment := range attachments {
		if _, err := e.AttachFile(attachment); err != nil {
			return err
		}
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	return e.Send(m.cfg.Address, auth)
}
