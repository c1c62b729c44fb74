package services

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"supportapp/internal/config"
	"supportapp/internal/diagnostics"
	"supportapp/internal/models"
	"supportapp/internal/observability"
	"supportapp/internal/serviceinterfaces"
	contextutils "supportapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/mail.v2"
)

// MailSender delivers a composed message. *mail.Dialer satisfies it.
type MailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// EmailNotifier emails the support inbox when a ticket is created
type EmailNotifier struct {
	cfg    *config.Config
	logger *observability.Logger
	sender MailSender
	tmpl   *template.Template
}

// Ensure EmailNotifier implements the TicketNotifier interface
var _ serviceinterfaces.TicketNotifier = (*EmailNotifier)(nil)

// NewEmailNotifier creates an EmailNotifier that sends over SMTP
func NewEmailNotifier(cfg *config.Config, logger *observability.Logger) *EmailNotifier {
	var sender MailSender
	if cfg.Email.Enabled && cfg.Email.SMTP.Host != "" {
		sender = mail.NewDialer(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
		)
	}
	return NewEmailNotifierWithSender(cfg, logger, sender)
}

// NewEmailNotifierWithSender creates an EmailNotifier with a custom sender (for testing)
func NewEmailNotifierWithSender(cfg *config.Config, logger *observability.Logger, sender MailSender) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
		sender: sender,
		tmpl:   template.Must(template.New("ticket_created").Parse(ticketCreatedTemplate)),
	}
}

// IsEnabled reports whether notifications are configured
func (n *EmailNotifier) IsEnabled() bool {
	return n.cfg.Email.Enabled && n.sender != nil && n.cfg.Email.SupportInbox != ""
}

// NotifyTicketCreated sends the ticket to the support inbox, and a copy to the reporter when configured
func (n *EmailNotifier) NotifyTicketCreated(ctx context.Context, note models.TicketNotification) (err error) {
	ctx, span := observability.TraceEmailFunction(ctx, "notify_ticket_created",
		observability.AttributeIssueKey(note.TicketID),
		attribute.Bool("email.copy_user", n.cfg.Email.CopyUser && note.UserEmail != ""),
	)
	defer observability.FinishSpan(span, &err)

	if !n.IsEnabled() {
		n.logger.Debug(ctx, "Email disabled, skipping ticket notification", map[string]interface{}{
			"issue_key": note.TicketID,
		})
		return nil
	}

	body, err := n.render(note)
	if err != nil {
		return err
	}

	to := []string{n.cfg.Email.SupportInbox}
	if n.cfg.Email.CopyUser && note.UserEmail != "" && contextutils.IsValidEmail(note.UserEmail) {
		to = append(to, note.UserEmail)
	}

	messages := make([]*mail.Message, 0, len(to))
	for _, addr := range to {
		m := mail.NewMessage()
		m.SetAddressHeader("From", n.cfg.Email.SMTP.FromAddress, n.cfg.Email.SMTP.FromName)
		m.SetHeader("To", addr)
		m.SetHeader("Subject", fmt.Sprintf("[%s] %s", note.TicketID, note.Summary))
		m.SetBody("text/html", body)
		messages = append(messages, m)
	}

	if err = n.sender.DialAndSend(messages...); err != nil {
		n.logger.Error(ctx, "Failed to send ticket notification", err, map[string]interface{}{
			"issue_key":  note.TicketID,
			"recipients": len(messages),
		})
		return contextutils.WrapError(err, "failed to send ticket notification")
	}

	n.logger.Info(ctx, "Ticket notification sent", map[string]interface{}{
		"issue_key":  note.TicketID,
		"recipients": len(messages),
		"reporter":   contextutils.MaskEmail(note.UserEmail),
	})
	return nil
}

type ticketEmailData struct {
	TicketID    string
	BrowseURL   string
	Summary     string
	Description string
	Environment []string
	Errors      string
}

func (n *EmailNotifier) render(note models.TicketNotification) (string, error) {
	data := ticketEmailData{
		TicketID:    note.TicketID,
		BrowseURL:   note.BrowseURL,
		Summary:     note.Summary,
		Description: note.Description,
	}
	if note.Environment != nil {
		data.Environment = note.Environment.Lines()
	}
	if len(note.Errors) > 0 {
		data.Errors = diagnostics.FormatErrors(note.Errors)
	}

	var buf strings.Builder
	if err := n.tmpl.Execute(&buf, data); err != nil {
		return "", contextutils.WrapError(err, "failed to execute template")
	}
	return buf.String(), nil
}

const ticketCreatedTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Support ticket {{.TicketID}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 640px; margin: 0 auto; padding: 20px; }
        .header { background-color: #1f6feb; color: white; padding: 16px; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9f9f9; padding: 20px; }
        pre { background-color: #eee; padding: 10px; white-space: pre-wrap; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.TicketID}}</h1>
            <p>{{.Summary}}</p>
        </div>
        <div class="content">
            {{if .BrowseURL}}<p><a href="{{.BrowseURL}}">Open in the issue tracker</a></p>{{end}}
            <pre>{{.Description}}</pre>
            {{if .Environment}}
            <h3>Environment</h3>
            <ul>{{range .Environment}}<li>{{.}}</li>{{end}}</ul>
            {{end}}
            {{if .Errors}}
            <h3>Captured errors</h3>
            <pre>{{.Errors}}</pre>
            {{end}}
        </div>
    </div>
</body>
</html>`
