package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"supportapp/internal/config"
	"supportapp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/mail.v2"
)

type recordingSender struct {
	messages []*mail.Message
	err      error
}

func (s *recordingSender) DialAndSend(m ...*mail.Message) error {
	s.messages = append(s.messages, m...)
	return s.err
}

func notifierConfig(copyUser bool) *config.Config {
	return &config.Config{
		Email: config.EmailConfig{
			Enabled:      true,
			SupportInbox: "support@example.com",
			CopyUser:     copyUser,
			SMTP: config.SMTPConfig{
				Host:        "smtp.example.com",
				Port:        587,
				FromAddress: "noreply@example.com",
				FromName:    "Support",
			},
		},
	}
}

func sampleNotification() models.TicketNotification {
	return models.TicketNotification{
		TicketID:    "SUP-7",
		BrowseURL:   "https://jira.example.com/browse/SUP-7",
		Summary:     "[Other] <b>blank</b> page",
		Description: "Page: https://x/y",
		UserEmail:   "user@example.com",
		Environment: &models.DiagnosticSnapshot{Browser: "Firefox", BrowserVersion: "128.0", OS: "Linux", Device: models.DeviceDesktop},
		Errors: []models.CapturedErrorEvent{
			{Kind: models.ErrorKindRuntime, Message: "TypeError: x is undefined", CapturedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		},
	}
}

func TestNewEmailNotifier(t *testing.T) {
	assert.True(t, NewEmailNotifier(notifierConfig(false), createTestLogger()).IsEnabled())

	disabled := notifierConfig(false)
	disabled.Email.Enabled = false
	assert.False(t, NewEmailNotifier(disabled, createTestLogger()).IsEnabled())

	noHost := notifierConfig(false)
	noHost.Email.SMTP.Host = ""
	assert.False(t, NewEmailNotifier(noHost, createTestLogger()).IsEnabled())
}

func TestNotifyTicketCreated_SendsToInbox(t *testing.T) {
	sender := &recordingSender{}
	n := NewEmailNotifierWithSender(notifierConfig(false), createTestLogger(), sender)

	require.NoError(t, n.NotifyTicketCreated(context.Background(), sampleNotification()))

	require.Len(t, sender.messages, 1)
	m := sender.messages[0]
	assert.Equal(t, []string{"support@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"[SUP-7] [Other] <b>blank</b> page"}, m.GetHeader("Subject"))

	var raw bytes.Buffer
	_, err := m.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "text/html")

	html, err := n.render(sampleNotification())
	require.NoError(t, err)
	assert.Contains(t, html, "https://jira.example.com/browse/SUP-7")
	assert.Contains(t, html, "Browser: Firefox 128.0")
	assert.Contains(t, html, "TypeError: x is undefined")
	assert.NotContains(t, html, "<b>blank</b>")
}

func TestNotifyTicketCreated_CopiesReporter(t *testing.T) {
	sender := &recordingSender{}
	n := NewEmailNotifierWithSender(notifierConfig(true), createTestLogger(), sender)

	require.NoError(t, n.NotifyTicketCreated(context.Background(), sampleNotification()))

	require.Len(t, sender.messages, 2)
	assert.Equal(t, []string{"user@example.com"}, sender.messages[1].GetHeader("To"))

	sender.messages = nil
	note := sampleNotification()
	note.UserEmail = ""
	require.NoError(t, n.NotifyTicketCreated(context.Background(), note))
	assert.Len(t, sender.messages, 1)
}

func TestNotifyTicketCreated_Disabled(t *testing.T) {
	cfg := notifierConfig(true)
	cfg.Email.Enabled = false
	sender := &recordingSender{}
	n := NewEmailNotifierWithSender(cfg, createTestLogger(), sender)

	assert.NoError(t, n.NotifyTicketCreated(context.Background(), sampleNotification()))
	assert.Empty(t, sender.messages)
}

func TestNotifyTicketCreated_SendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("connection refused")}
	n := NewEmailNotifierWithSender(notifierConfig(false), createTestLogger(), sender)

	err := n.NotifyTicketCreated(context.Background(), sampleNotification())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
