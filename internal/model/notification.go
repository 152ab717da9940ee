package model

import "time"

// DeliveryStatus is the delivery state of a notification.
// The machine has two states: pending → sent. A failed delivery attempt
// leaves the notification pending, so it stays eligible for the next pass;
// there is no terminal failed state. Sent is terminal.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
)

// Notification records that one strike is relevant to one user.
// At most one exists per (user, strike) pair. Distance is computed once
// at creation and never changes; rows are never deleted.
type Notification struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	StrikeID      string         `json:"strike_id"`
	DistanceMiles float64        `json:"distance_miles"`
	Status        DeliveryStatus `json:"status"`
	SentAt        *time.Time     `json:"sent_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
