package handler

import (
	"time"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/service"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// UserDTO is the JSON representation of a session user.
type UserDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ProfileDTO is the JSON representation of a profile.
type ProfileDTO struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FullName  string  `json:"fullName"`
	Phone     *string `json:"phone"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

func toProfileDTO(p *domain.Profile) *ProfileDTO {
	if p == nil {
		return nil
	}
	return &ProfileDTO{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		Phone:     p.Phone,
		CreatedAt: formatTime(p.CreatedAt),
		UpdatedAt: formatTime(p.UpdatedAt),
	}
}

// SessionDTO is the JSON representation of the resolved session.
type SessionDTO struct {
	User    UserDTO     `json:"user"`
	Profile *ProfileDTO `json:"profile"`
	Role    *string     `json:"role"`
}

// toSessionDTO returns nil when signed out. A missing role is null.
func toSessionDTO(s service.SessionState) *SessionDTO {
	if s.User == nil {
		return nil
	}
	dto := &SessionDTO{
		User:    UserDTO{ID: s.User.ID, Email: s.User.Email},
		Profile: toProfileDTO(s.Profile),
	}
	if s.Role != domain.RoleNone {
		role := string(s.Role)
		dto.Role = &role
	}
	return dto
}

// RequestDTO is the JSON representation of a blood request.
type RequestDTO struct {
	ID           string `json:"id"`
	SeekerID     string `json:"seekerId"`
	DonorID      string `json:"donorId"`
	Message      string `json:"message"`
	Status       string `json:"status"`
	BloodType    string `json:"bloodType"`
	UrgencyLevel string `json:"urgencyLevel"`
	SeekerName   string `json:"seekerName,omitempty"`
	SeekerEmail  string `json:"seekerEmail,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

func toRequestDTO(r domain.BloodRequest) RequestDTO {
	return RequestDTO{
		ID:           r.ID,
		SeekerID:     r.SeekerID,
		DonorID:      r.DonorID,
		Message:      r.Message,
		Status:       string(r.Status),
		BloodType:    r.BloodType,
		UrgencyLevel: r.UrgencyLevel,
		CreatedAt:    formatTime(r.CreatedAt),
		UpdatedAt:    formatTime(r.UpdatedAt),
	}
}

func toRequestDTOs(requests []domain.BloodRequest) []RequestDTO {
	dtos := make([]RequestDTO, len(requests))
	for i, r := range requests {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

func toPendingDTOs(requests []domain.RequestWithSeeker) []RequestDTO {
	dtos := make([]RequestDTO, len(requests))
	for i, r := range requests {
		dtos[i] = toRequestDTO(r.BloodRequest)
		dtos[i].SeekerName = r.SeekerName
		dtos[i].SeekerEmail = r.SeekerEmail
	}
	return dtos
}

// NotificationDTO is the JSON representation of a notification.
type NotificationDTO struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Message          string `json:"message"`
	Type             string `json:"type"`
	RelatedRequestID string `json:"relatedRequestId"`
	CreatedAt        string `json:"createdAt"`
}

func toNotificationDTOs(notes []domain.Notification) []NotificationDTO {
	dtos := make([]NotificationDTO, len(notes))
	for i, n := range notes {
		dtos[i] = NotificationDTO{
			ID:               n.ID,
			Title:            n.Title,
			Message:          n.Message,
			Type:             n.Type,
			RelatedRequestID: n.RelatedRequestID,
			CreatedAt:        formatTime(n.CreatedAt),
		}
	}
	return dtos
}
