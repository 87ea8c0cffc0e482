// Package notify delivers post-commit notifications. Delivery is best effort: the dispatcher runs
// in the background, and a failed send is logged and dropped. Nothing here can undo a committed
// cascade.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"collab-control-plane/backend/internal/cascade"
)

// Message is one outbound notification.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	// Kind and ProjectID let consumers route without parsing the body.
	Kind      string `json:"kind,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var addedToProjectBody = template.Must(template.New("added").Parse(`<div>
  <h2>Hello {{.Recipient.UserName}},</h2>
  <p>You have been successfully added to the project - <strong>{{.ProjectName}}</strong> in the organization - <span>{{.OrgName}}</span></p>
  <p><strong>Added by:</strong> {{.ActorName}}</p>
  <p>You can now collaborate with the team on this project.</p>
</div>`))

// Compose renders the message for ev.
func Compose(ev cascade.Event) (Message, error) {
	switch ev.Kind {
	case cascade.EventAddedToProject:
		var body bytes.Buffer
		if err := addedToProjectBody.Execute(&body, ev); err != nil {
			return Message{}, fmt.Errorf("render %s: %w", ev.Kind, err)
		}
		return Message{
			To:        ev.Recipient.Email,
			Subject:   fmt.Sprintf("You've been added to project: %s", ev.ProjectName),
			Body:      body.String(),
			Kind:      string(ev.Kind),
			ProjectID: ev.ProjectID,
		}, nil
	default:
		return Message{}, fmt.Errorf("notify: unknown event kind %q", ev.Kind)
	}
}
