package domain

import "time"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ActivityLogSize is how many user-visible log entries are retained.
const ActivityLogSize = 100

// LogEntry is one user-visible activity log line.
type LogEntry struct {
	ID        string    `db:"id" json:"id"`
	Timestamp time.Time `db:"created_at" json:"timestamp"`
	Message   string    `db:"message" json:"message"`
	Severity  Severity  `db:"severity" json:"type"`
}

type NotificationKind string

const (
	NotificationInvited      NotificationKind = "sale.invited"
	NotificationInviteFailed NotificationKind = "sale.invite_failed"
)

// Notification is a user-visible event emitted for a processed sale.
type Notification struct {
	Kind     NotificationKind `json:"kind"`
	Title    string           `json:"title"`
	Body     string           `json:"body"`
	SaleID   string           `json:"sale_id"`
	Product  string           `json:"product,omitempty"`
	Username string           `json:"username"`
	Owner    string           `json:"owner"`
	Repo     string           `json:"repo"`
	Status   int              `json:"status,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Severity maps the notification kind onto the activity log scale.
func (n Notification) Severity() Severity {
	if n.Kind == NotificationInviteFailed {
		return SeverityError
	}
	return SeveritySuccess
}
