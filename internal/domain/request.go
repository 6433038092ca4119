package domain

import "time"

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusFulfilled RequestStatus = "fulfilled"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// CanTransitionTo reports whether a request may move from s to next.
// Only pending requests change status.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	return s == RequestStatusPending &&
		(next == RequestStatusFulfilled || next == RequestStatusCancelled)
}

// BloodTypes lists the accepted blood type values.
var BloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// UrgencyLevels lists the accepted urgency values. The first is the default.
var UrgencyLevels = []string{"normal", "low", "medium", "high"}

// BloodRequest is a seeker's request for blood. DonorID holds the seeker's
// own id until a donor pledges.
type BloodRequest struct {
	ID           string        `json:"id"`
	SeekerID     string        `json:"seeker_id"`
	DonorID      string        `json:"donor_id"`
	Message      string        `json:"message,omitempty"`
	Status       RequestStatus `json:"status"`
	BloodType    string        `json:"blood_type,omitempty"`
	UrgencyLevel string        `json:"urgency_level,omitempty"`
	CreatedAt    time.Time     `json:"created_at,omitzero"`
	UpdatedAt    time.Time     `json:"updated_at,omitzero"`
}

// RequestWithSeeker pairs a request with its seeker's display details.
type RequestWithSeeker struct {
	BloodRequest
	SeekerName  string `json:"seeker_name"`
	SeekerEmail string `json:"seeker_email"`
}

// SeekerStats summarizes a seeker's requests.
type SeekerStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Received int `json:"received"`
}

// Donation records a donor's pledge against a request.
type Donation struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	DonorID   string    `json:"donor_id"`
	Units     float64   `json:"units"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}
