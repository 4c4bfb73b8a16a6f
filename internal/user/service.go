package user

import (
	"context"
	"fmt"
	"log/slog"
)

type Repository interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	GetPermissions(ctx context.Context, userID int64) ([]string, error)
	// ListByIDs returns the users that exist among ids, in no particular order.
	ListByIDs(ctx context.Context, ids []int64) ([]*User, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	perms, err := s.repo.GetPermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user permissions: %w", err)
	}
	u.Permissions = perms

	return u, nil
}

// FilterActive keeps the ids of active users, preserving input order.
// Unknown ids are dropped.
func (s *Service) FilterActive(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	users, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	active := make(map[int64]bool, len(users))
	for _, u := range users {
		if u.IsActive {
			active[u.ID] = true
		}
	}

	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if active[id] {
			out = append(out, id)
			delete(active, id)
		}
	}
	if dropped := len(ids) - len(out); dropped > 0 {
		s.logger.Debug("inactive or unknown users filtered", "dropped", dropped)
	}
	return out, nil
}

// DisplayNames maps ids to display names, including inactive users.
func (s *Service) DisplayNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	users, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	for _, u := range users {
		names[u.ID] = u.DisplayName()
	}
	return names, nil
}
