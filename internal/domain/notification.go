package domain

import "time"

const NotificationTypeDonation = "donation"

// Notification is an immutable message to a user.
type Notification struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	Type             string    `json:"type"`
	RelatedRequestID string    `json:"related_request_id"`
	CreatedAt        time.Time `json:"created_at,omitzero"`
}
