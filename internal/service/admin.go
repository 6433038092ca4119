package service

import (
	"context"
	"fmt"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/localdb"
	"golang.org/x/sync/errgroup"
)

// Overview summarizes the store for the admin dashboard.
type Overview struct {
	Users         int                          `json:"users"`
	Profiles      int                          `json:"profiles"`
	Requests      int                          `json:"requests"`
	Notifications int                          `json:"notifications"`
	Donations     int                          `json:"donations"`
	ByStatus      map[domain.RequestStatus]int `json:"requests_by_status"`
	ByRole        map[domain.Role]int          `json:"users_by_role"`
}

type AdminService struct {
	db *localdb.Client
}

func NewAdminService(db *localdb.Client) *AdminService {
	return &AdminService{db: db}
}

// Overview counts rows in every table.
func (s *AdminService) Overview(ctx context.Context) (*Overview, error) {
	var (
		users                                      []domain.User
		profiles, roles, requests, notes, donation []localdb.Row
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = s.db.Users().List(gctx)
		return err
	})
	load := func(t localdb.Table, dst *[]localdb.Row) {
		g.Go(func() (err error) {
			*dst, err = s.db.From(t).Select("*").Execute(gctx)
			return err
		})
	}
	load(localdb.TableProfiles, &profiles)
	load(localdb.TableUserRoles, &roles)
	load(localdb.TableBloodRequests, &requests)
	load(localdb.TableNotifications, &notes)
	load(localdb.TableDonations, &donation)
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}

	o := &Overview{
		Users:         len(users),
		Profiles:      len(profiles),
		Requests:      len(requests),
		Notifications: len(notes),
		Donations:     len(donation),
		ByStatus:      map[domain.RequestStatus]int{},
		ByRole:        map[domain.Role]int{},
	}
	for _, r := range requests {
		status, _ := r["status"].(string)
		o.ByStatus[domain.RequestStatus(status)]++
	}
	for _, r := range roles {
		role, _ := r["role"].(string)
		o.ByRole[domain.Role(role)]++
	}
	return o, nil
}

// Table returns every row of the named table.
func (s *AdminService) Table(ctx context.Context, name string) ([]localdb.Row, error) {
	t, err := localdb.ParseTable(name)
	if err != nil {
		return nil, err
	}
	return s.db.From(t).Select("*").Execute(ctx)
}
