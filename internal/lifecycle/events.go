package lifecycle

import "oilwise-api-server/internal/models"

// Event is emitted on every transition that changes status or assignee. The
// requester and both the newly- and previously-assigned collectors see it.
type Event struct {
	RequestID          string        `json:"requestID"`
	RequesterID        string        `json:"requesterID"`
	NewStatus          models.Status `json:"newStatus"`
	AssigneeID         string        `json:"assigneeID,omitempty"`
	PreviousAssigneeID string        `json:"previousAssigneeID,omitempty"`
}

// Notifier delivers events to whatever user-facing channel is wired in.
// Delivery is best-effort; a transition never fails because a notification
// could not be sent.
type Notifier interface {
	Notify(event Event)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}
