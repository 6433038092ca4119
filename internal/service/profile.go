package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/localdb"
)

// ProfileUpdate is the input of the profile-completion step.
type ProfileUpdate struct {
	FullName string
	Phone    string
	Role     domain.Role
}

// ProfileService handles profile completion.
type ProfileService struct {
	db *localdb.Client
}

func NewProfileService(db *localdb.Client) *ProfileService {
	return &ProfileService{db: db}
}

// Complete stores the user's name, phone and role. Only donor and seeker
// can be self-assigned.
func (s *ProfileService) Complete(ctx context.Context, userID string, upd ProfileUpdate) (*domain.Profile, error) {
	if upd.Role == domain.RoleNone {
		return nil, fmt.Errorf("%w: Please select your role", domain.ErrInvalidInput)
	}
	if upd.Role != domain.RoleDonor && upd.Role != domain.RoleSeeker {
		return nil, fmt.Errorf("%w: role %q cannot be self-assigned", domain.ErrInvalidInput, upd.Role)
	}
	fullName := strings.TrimSpace(upd.FullName)
	if fullName == "" {
		return nil, fmt.Errorf("%w: full name is required", domain.ErrInvalidInput)
	}

	var phone any
	if p := strings.TrimSpace(upd.Phone); p != "" {
		phone = p
	}
	n, err := s.db.From(localdb.TableProfiles).Eq("id", userID).Update(ctx, localdb.Row{
		"full_name": fullName,
		"phone":     phone,
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
	}

	if _, err := s.db.From(localdb.TableUserRoles).Insert(ctx, localdb.Row{
		"user_id": userID,
		"role":    string(upd.Role),
	}); err != nil {
		return nil, fmt.Errorf("assign role: %w", err)
	}

	return FetchProfile(ctx, s.db, userID)
}
