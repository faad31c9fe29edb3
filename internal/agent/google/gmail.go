package google

import (
	"context"
	"fmt"
	"os"
	"strings"

	"concierge/internal/agent"
	"concierge/internal/core"

	gmail "google.golang.org/api/gmail/v1"
	goption "google.golang.org/api/option"
)

const maxMailResults = 20

// Mail extracts follow-up tasks from unread Gmail messages.
type Mail struct {
	svc  *gmail.Service
	user string
}

var _ agent.MailBackend = (*Mail)(nil)

// NewMailFromEnv creates a Mail backend using service-account
// credentials. GOOGLE_GMAIL_USER selects the mailbox (default "me").
func NewMailFromEnv(ctx context.Context) (*Mail, error) {
	creds, err := credentialsJSON()
	if err != nil {
		return nil, err
	}

	svc, err := gmail.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gmail.GmailReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	user := strings.TrimSpace(os.Getenv("GOOGLE_GMAIL_USER"))
	if user == "" {
		user = "me"
	}
	return &Mail{svc: svc, user: user}, nil
}

// Tasks implements agent.MailBackend. Unread messages inside the window
// become tasks; the message date doubles as the task due hint.
func (m *Mail) Tasks(ctx context.Context, window core.TimeWindow) ([]agent.Task, error) {
	query := "is:unread"
	if since, ok := window.Since(); ok {
		query += fmt.Sprintf(" after:%d", since.Unix())
	}
	if until, ok := window.Until(); ok {
		query += fmt.Sprintf(" before:%d", until.Unix())
	}

	res, err := m.svc.Users.Messages.List(m.user).
		Q(query).
		MaxResults(maxMailResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	tasks := make([]agent.Task, 0, len(res.Messages))
	for _, ref := range res.Messages {
		msg, err := m.svc.Users.Messages.Get(m.user, ref.Id).
			Format("metadata").
			MetadataHeaders("Subject", "From", "Date").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("get message %s: %w", ref.Id, err)
		}
		tasks = append(tasks, taskFromMessage(msg))
	}
	return tasks, nil
}

func taskFromMessage(msg *gmail.Message) agent.Task {
	var task agent.Task
	if msg.Payload == nil {
		return task
	}
	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "Subject":
			task.Subject = h.Value
		case "From":
			task.From = h.Value
		case "Date":
			task.Due = h.Value
		}
	}
	return task
}
