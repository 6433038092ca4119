package service

import (
	"context"
	"fmt"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/localdb"
)

type NotificationService struct {
	db *localdb.Client
}

func NewNotificationService(db *localdb.Client) *NotificationService {
	return &NotificationService{db: db}
}

// ListForUser returns the user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	rows, err := s.db.From(localdb.TableNotifications).
		Select("*").
		Eq("user_id", userID).
		Order("created_at", localdb.OrderOptions{Descending: true}).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return localdb.DecodeAll[domain.Notification](rows)
}
