package models

import "time"

// Account lifecycle event types.
const (
	EventAccountCreated = "account.created"
	EventAccountUpdated = "account.updated"
	EventAccountDeleted = "account.deleted"
)

// AccountEvent is published whenever an account changes.
type AccountEvent struct {
	Type       string    `json:"type"`
	UserID     int64     `json:"userId"`
	Email      string    `json:"email,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
