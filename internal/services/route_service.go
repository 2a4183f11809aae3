package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/thaihand/carry-backend/internal/domain"
	"github.com/thaihand/carry-backend/internal/repo"
)

// RouteService manages carriers' posted trips.
type RouteService struct {
	DB *gorm.DB
}

// Create stores r. UserID is taken from the caller, not from r.
func (s *RouteService) Create(ctx context.Context, userID int, r domain.Route) (*domain.Route, error) {
	r.ID = 0
	r.UserID = userID
	if err := repo.CreateRoute(ctx, s.DB, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns a page of routes.
func (s *RouteService) List(ctx context.Context, skip, limit int) ([]domain.Route, error) {
	items, err := repo.ListRoutes(ctx, s.DB, skip, limit)
	if items == nil && err == nil {
		items = []domain.Route{}
	}
	return items, err
}

// Delete removes a route owned by userID.
func (s *RouteService) Delete(ctx context.Context, userID, id int) error {
	r, err := repo.GetRoute(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrRouteNotFound
	}
	if err != nil {
		return err
	}
	if r.UserID != userID {
		return ErrForbidden
	}
	if err := repo.DeleteRoute(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRouteNotFound
		}
		return err
	}
	return nil
}
