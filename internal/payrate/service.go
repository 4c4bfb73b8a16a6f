package payrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

// Repository is the pay rate store. WithUserLock runs fn in a transaction that
// holds an exclusive per-user lock so overlap checks and writes are atomic.
type Repository interface {
	RateReader
	WithUserLock(ctx context.Context, userID int64, fn func(repo Repository) error) error
	Create(ctx context.Context, rate *PayRate) error
	Update(ctx context.Context, rate *PayRate) error
	GetByID(ctx context.Context, id int64) (*PayRate, error)
	ListByUser(ctx context.Context, userID int64) ([]*PayRate, error)
	FindActiveOverlapping(ctx context.Context, userID int64, from time.Time, to *time.Time, excludeID int64) ([]*PayRate, error)
	AppendHistory(ctx context.Context, entry *HistoryEntry) error
	ListHistory(ctx context.Context, rateID int64) ([]*HistoryEntry, error)
	ListUsersWithActiveRates(ctx context.Context, from, to time.Time, rateTypes []RateType) ([]int64, error)
}

type ProjectLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type Authorizer interface {
	IsAuthorized(actor *internal.User, permission string) bool
}

type Service struct {
	repo       Repository
	projects   ProjectLookup
	authorizer Authorizer
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo Repository, projects ProjectLookup, authorizer Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		projects:   projects,
		authorizer: authorizer,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source, used to pin "today" for deactivation.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) require(actor *internal.User, permission string) error {
	if actor == nil || !s.authorizer.IsAuthorized(actor, permission) {
		return ErrForbidden
	}
	return nil
}

func (s *Service) canView(actor *internal.User, userID int64) error {
	if actor == nil {
		return ErrForbidden
	}
	if actor.ID == userID ||
		s.authorizer.IsAuthorized(actor, internal.PermissionViewPayRates) ||
		s.authorizer.IsAuthorized(actor, internal.PermissionManagePayRates) {
		return nil
	}
	return ErrForbidden
}

func (s *Service) CreateRate(ctx context.Context, actor *internal.User, userID int64, dto CreateRateDTO) (*PayRate, error) {
	if err := s.require(actor, internal.PermissionManagePayRates); err != nil {
		return nil, err
	}

	rate, err := dto.ToDomain(userID, actor.ID)
	if err != nil {
		s.logger.Warn("pay rate validation failed", "user_id", userID, "error", err)
		return nil, err
	}

	if rate.ProjectID != nil {
		ok, err := s.projects.Exists(ctx, *rate.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("check project: %w", err)
		}
		if !ok {
			return nil, ErrProjectNotFound
		}
	}

	err = s.repo.WithUserLock(ctx, userID, func(repo Repository) error {
		if err := checkOverlap(ctx, repo, rate); err != nil {
			return err
		}
		if err := repo.Create(ctx, rate); err != nil {
			return err
		}
		return repo.AppendHistory(ctx, &HistoryEntry{
			PayRateID:     rate.ID,
			UserID:        userID,
			ChangeType:    ChangeCreated,
			NewBaseRate:   rate.BaseRate,
			NewMultiplier: rate.OvertimeMultiplier,
			NewTo:         rate.EffectiveTo,
			ChangedBy:     actor.ID,
			Reason:        dto.Reason,
			ChangedAt:     s.now().UTC(),
		})
	})
	if err != nil {
		s.logger.Error("failed to create pay rate", "user_id", userID, "error", err)
		return nil, err
	}

	s.logger.Info("pay rate created",
		"rate_id", rate.ID,
		"user_id", userID,
		"rate_type", rate.RateType,
		"effective_from", rate.EffectiveFrom.Format(validation.DateLayout))
	return rate, nil
}

func (s *Service) UpdateRate(ctx context.Context, actor *internal.User, id int64, dto UpdateRateDTO) (*PayRate, error) {
	if err := s.require(actor, internal.PermissionManagePayRates); err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *PayRate
	err = s.repo.WithUserLock(ctx, current.UserID, func(repo Repository) error {
		// reload under the lock so the history row records the value actually replaced
		locked, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !locked.IsActive {
			return ErrRateInactive
		}

		next, err := dto.Apply(locked)
		if err != nil {
			return err
		}
		if !sameEnd(locked.EffectiveTo, next.EffectiveTo) {
			if err := checkOverlap(ctx, repo, next); err != nil {
				return err
			}
		}
		next.UpdatedAt = s.now().UTC()
		if err := repo.Update(ctx, next); err != nil {
			return err
		}
		updated = next

		return repo.AppendHistory(ctx, &HistoryEntry{
			PayRateID:          id,
			UserID:             locked.UserID,
			ChangeType:         ChangeUpdated,
			PreviousBaseRate:   decimal.NewNullDecimal(locked.BaseRate),
			NewBaseRate:        next.BaseRate,
			PreviousMultiplier: decimal.NewNullDecimal(locked.OvertimeMultiplier),
			NewMultiplier:      next.OvertimeMultiplier,
			PreviousTo:         locked.EffectiveTo,
			NewTo:              next.EffectiveTo,
			ChangedBy:          actor.ID,
			Reason:             dto.Reason,
			ChangedAt:          s.now().UTC(),
		})
	})
	if err != nil {
		s.logger.Warn("pay rate update rejected", "rate_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("pay rate updated", "rate_id", id, "user_id", updated.UserID, "changed_by", actor.ID)
	return updated, nil
}

// DeactivateRate retires a rate and closes its interval at today, or at its
// start when it has not begun yet. The row is kept.
func (s *Service) DeactivateRate(ctx context.Context, actor *internal.User, id int64, reason string) (*PayRate, error) {
	if err := s.require(actor, internal.PermissionManagePayRates); err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var deactivated *PayRate
	err = s.repo.WithUserLock(ctx, current.UserID, func(repo Repository) error {
		locked, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !locked.IsActive {
			return ErrRateInactive
		}

		next := *locked
		next.IsActive = false
		closeAt := validation.Day(s.now().UTC())
		if closeAt.Before(next.EffectiveFrom) {
			closeAt = next.EffectiveFrom
		}
		if next.EffectiveTo == nil || closeAt.Before(*next.EffectiveTo) {
			next.EffectiveTo = &closeAt
		}
		next.UpdatedAt = s.now().UTC()
		if err := repo.Update(ctx, &next); err != nil {
			return err
		}
		deactivated = &next

		return repo.AppendHistory(ctx, &HistoryEntry{
			PayRateID:          id,
			UserID:             locked.UserID,
			ChangeType:         ChangeDeactivated,
			PreviousBaseRate:   decimal.NewNullDecimal(locked.BaseRate),
			NewBaseRate:        locked.BaseRate,
			PreviousMultiplier: decimal.NewNullDecimal(locked.OvertimeMultiplier),
			NewMultiplier:      locked.OvertimeMultiplier,
			PreviousTo:         locked.EffectiveTo,
			NewTo:              next.EffectiveTo,
			ChangedBy:          actor.ID,
			Reason:             reason,
			ChangedAt:          s.now().UTC(),
		})
	})
	if err != nil {
		s.logger.Warn("pay rate deactivation rejected", "rate_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("pay rate deactivated", "rate_id", id, "user_id", deactivated.UserID, "changed_by", actor.ID)
	return deactivated, nil
}

func (s *Service) GetRate(ctx context.Context, actor *internal.User, id int64) (*PayRate, error) {
	rate, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(actor, rate.UserID); err != nil {
		return nil, err
	}
	return rate, nil
}

func (s *Service) ListRates(ctx context.Context, actor *internal.User, userID int64) ([]*PayRate, error) {
	if err := s.canView(actor, userID); err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) GetHistory(ctx context.Context, actor *internal.User, rateID int64) ([]*HistoryEntry, error) {
	rate, err := s.repo.GetByID(ctx, rateID)
	if err != nil {
		return nil, err
	}
	if err := s.canView(actor, rate.UserID); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, rateID)
}

// UsersWithActiveRates lists users whose active rates intersect [from, to).
// Empty rateTypes means every type.
func (s *Service) UsersWithActiveRates(ctx context.Context, from, to time.Time, rateTypes []RateType) ([]int64, error) {
	return s.repo.ListUsersWithActiveRates(ctx, from, to, rateTypes)
}

func checkOverlap(ctx context.Context, repo Repository, rate *PayRate) error {
	conflicts, err := repo.FindActiveOverlapping(ctx, rate.UserID, rate.EffectiveFrom, rate.EffectiveTo, rate.ID)
	if err != nil {
		return fmt.Errorf("check overlapping rates: %w", err)
	}
	if len(conflicts) > 0 {
		return &OverlapError{UserID: rate.UserID, ConflictingID: conflicts[0].ID}
	}
	return nil
}

func sameEnd(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// IsIntegrityError reports whether err signals overlapping active rates found at read time.
func IsIntegrityError(err error) bool {
	var integrity *OverlapIntegrityError
	return errors.As(err, &integrity)
}
