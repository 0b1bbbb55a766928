// Package mock provides a testify mailer double.
package mock

import (
	"github.com/stretchr/testify/mock"
)

type MailerMock struct {
	mock.Mock
}

func (m *MailerMock) QuickSend(to, subject, body string) error {
	args := m.Called(to, subject, body)
	return args.Error(0)
}

func (m *MailerMock) Send(from string, to, cc, bcc []string, subject, body string, attachments []string) error {
	args := m.Called(from, to, cc, bcc, subject, body, attachments)
	return args.Error(0)
}
