package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/localdb"
	"golang.org/x/sync/errgroup"
)

// NewRequest is the input for creating a blood request.
type NewRequest struct {
	Message      string
	BloodType    string
	UrgencyLevel string
}

// RequestService implements the seeker and donor request flows.
type RequestService struct {
	db *localdb.Client
}

func NewRequestService(db *localdb.Client) *RequestService {
	return &RequestService{db: db}
}

// Create stores a pending request for seekerID. The donor id holds the
// seeker's id until someone pledges.
func (s *RequestService) Create(ctx context.Context, seekerID string, in NewRequest) (*domain.BloodRequest, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}
	if in.BloodType == "" {
		return nil, fmt.Errorf("%w: blood type is required", domain.ErrInvalidInput)
	}
	if !slices.Contains(domain.BloodTypes, in.BloodType) {
		return nil, fmt.Errorf("%w: unknown blood type %q", domain.ErrInvalidInput, in.BloodType)
	}
	urgency := in.UrgencyLevel
	if urgency == "" {
		urgency = domain.UrgencyLevels[0]
	}
	if !slices.Contains(domain.UrgencyLevels, urgency) {
		return nil, fmt.Errorf("%w: unknown urgency level %q", domain.ErrInvalidInput, urgency)
	}

	rows, err := s.db.From(localdb.TableBloodRequests).Insert(ctx, localdb.Row{
		"seeker_id":     seekerID,
		"donor_id":      seekerID,
		"message":       message,
		"status":        string(domain.RequestStatusPending),
		"blood_type":    in.BloodType,
		"urgency_level": urgency,
	})
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return decodeRequest(rows[0])
}

// ListBySeeker returns the seeker's requests, newest first.
func (s *RequestService) ListBySeeker(ctx context.Context, seekerID string) ([]domain.BloodRequest, error) {
	rows, err := s.db.From(localdb.TableBloodRequests).
		Select("*").
		Eq("seeker_id", seekerID).
		Order("created_at", localdb.OrderOptions{Descending: true}).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return localdb.DecodeAll[domain.BloodRequest](rows)
}

// ListPending returns every pending request, newest first, with the
// seeker's name and email.
func (s *RequestService) ListPending(ctx context.Context) ([]domain.RequestWithSeeker, error) {
	rows, err := s.db.From(localdb.TableBloodRequests).
		Select("*").
		Eq("status", string(domain.RequestStatusPending)).
		Order("created_at", localdb.OrderOptions{Descending: true}).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	requests, err := localdb.DecodeAll[domain.BloodRequest](rows)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RequestWithSeeker, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, req := range requests {
		g.Go(func() error {
			profile, err := FetchProfile(gctx, s.db, req.SeekerID)
			if err != nil {
				return err
			}
			out[i] = domain.RequestWithSeeker{BloodRequest: req, SeekerName: "Anonymous"}
			if profile != nil {
				out[i].SeekerName = profile.FullName
				out[i].SeekerEmail = profile.Email
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SeekerStats counts the seeker's requests by outcome.
func (s *RequestService) SeekerStats(ctx context.Context, seekerID string) (domain.SeekerStats, error) {
	requests, err := s.ListBySeeker(ctx, seekerID)
	if err != nil {
		return domain.SeekerStats{}, err
	}
	stats := domain.SeekerStats{Total: len(requests)}
	for _, r := range requests {
		switch r.Status {
		case domain.RequestStatusPending:
			stats.Pending++
		case domain.RequestStatusFulfilled:
			stats.Received++
		}
	}
	return stats, nil
}

// Pledge marks a pending request fulfilled by donorID, records the
// donation and notifies the seeker. The donation and notification are
// written before the status changes; if the request cannot be moved to
// fulfilled they are removed again.
func (s *RequestService) Pledge(ctx context.Context, donorID, requestID string, units float64, note string) (*domain.BloodRequest, error) {
	if math.IsNaN(units) || math.IsInf(units, 0) || units <= 0 {
		return nil, fmt.Errorf("%w: units must be a positive number", domain.ErrInvalidInput)
	}
	req, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransitionTo(domain.RequestStatusFulfilled) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, req.Status, domain.RequestStatusFulfilled)
	}

	note = strings.TrimSpace(note)
	donations, err := s.db.From(localdb.TableDonations).Insert(ctx, localdb.Row{
		"request_id": requestID,
		"donor_id":   donorID,
		"units":      units,
		"note":       note,
	})
	if err != nil {
		return nil, fmt.Errorf("record donation: %w", err)
	}
	undo := []localdb.Query{s.db.From(localdb.TableDonations).Eq("id", donations[0]["id"])}

	message, err := s.pledgeMessage(ctx, donorID, req, units, note)
	if err == nil {
		var notes []localdb.Row
		notes, err = s.db.From(localdb.TableNotifications).Insert(ctx, localdb.Row{
			"user_id":            req.SeekerID,
			"title":              "Blood donation pledged",
			"message":            message,
			"type":               domain.NotificationTypeDonation,
			"related_request_id": requestID,
		})
		if err != nil {
			err = fmt.Errorf("notify seeker: %w", err)
		} else {
			undo = append(undo, s.db.From(localdb.TableNotifications).Eq("id", notes[0]["id"]))
		}
	}
	if err == nil {
		err = s.transition(ctx, req, domain.RequestStatusFulfilled, localdb.Row{"donor_id": donorID})
	}
	if err != nil {
		for _, q := range undo {
			if _, derr := q.Delete(ctx); derr != nil {
				slog.Error("roll back pledge", "request_id", requestID, "table", q.Table().String(), "error", derr)
			}
		}
		return nil, err
	}

	return s.get(ctx, requestID)
}

func (s *RequestService) pledgeMessage(ctx context.Context, donorID string, req *domain.BloodRequest, units float64, note string) (string, error) {
	donorName := "A donor"
	profile, err := FetchProfile(ctx, s.db, donorID)
	if err != nil {
		return "", err
	}
	if profile != nil && profile.FullName != "" {
		donorName = profile.FullName
	}
	bloodType := req.BloodType
	if bloodType == "" {
		bloodType = "blood"
	}
	amount := strconv.FormatFloat(units, 'f', -1, 64)
	return strings.TrimSpace(fmt.Sprintf("%s has pledged %s unit(s) of %s. %s", donorName, amount, bloodType, note)), nil
}

// Cancel withdraws a pending request. Only its seeker may cancel it.
func (s *RequestService) Cancel(ctx context.Context, seekerID, requestID string) (*domain.BloodRequest, error) {
	req, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.SeekerID != seekerID {
		return nil, domain.ErrUnauthorized
	}
	if err := s.transition(ctx, req, domain.RequestStatusCancelled, nil); err != nil {
		return nil, err
	}
	return s.get(ctx, requestID)
}

// transition moves req to next only if it is still pending when written.
func (s *RequestService) transition(ctx context.Context, req *domain.BloodRequest, next domain.RequestStatus, extra localdb.Row) error {
	if !req.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, req.Status, next)
	}
	patch := localdb.Row{"status": string(next)}
	for k, v := range extra {
		patch[k] = v
	}
	n, err := s.db.From(localdb.TableBloodRequests).
		Eq("id", req.ID).
		Eq("status", string(domain.RequestStatusPending)).
		Update(ctx, patch)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: request %s is no longer pending", domain.ErrInvalidTransition, req.ID)
	}
	return nil
}

func (s *RequestService) get(ctx context.Context, requestID string) (*domain.BloodRequest, error) {
	row, err := s.db.From(localdb.TableBloodRequests).Select("*").Eq("id", requestID).Single(ctx)
	if errors.Is(err, domain.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return decodeRequest(row)
}

func decodeRequest(row localdb.Row) (*domain.BloodRequest, error) {
	var req domain.BloodRequest
	if err := localdb.Decode(row, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
