package payroll

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal"
)

// Ledger stores manual adjustments of payroll entries. Every mutation
// recomputes the entry's adjustments total and net amount in the same
// transaction; gross is never touched.
type Ledger struct {
	repo       Repository
	authorizer Authorizer
	retries    int
	logger     *slog.Logger
	now        func() time.Time
}

func NewLedger(repo Repository, authorizer Authorizer, retries int, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	if retries < 0 {
		retries = 0
	}
	return &Ledger{
		repo:       repo,
		authorizer: authorizer,
		retries:    retries,
		logger:     logger,
		now:        time.Now,
	}
}

func (l *Ledger) require(actor *internal.User) error {
	if actor == nil || !l.authorizer.IsAuthorized(actor, internal.PermissionManagePayroll) {
		return ErrForbidden
	}
	return nil
}

func (l *Ledger) Add(ctx context.Context, actor *internal.User, entryID int64, dto AdjustmentDTO) (*Adjustment, error) {
	if err := l.require(actor); err != nil {
		return nil, err
	}
	adjustment, err := dto.ToDomain(entryID, actor.ID)
	if err != nil {
		return nil, err
	}

	err = l.mutate(ctx, entryID, func(tx Repository) error {
		adjustment.ID = 0
		return tx.CreateAdjustment(ctx, adjustment)
	})
	if err != nil {
		l.logger.Warn("adjustment rejected", "entry_id", entryID, "error", err)
		return nil, err
	}

	l.logger.Info("adjustment added",
		"adjustment_id", adjustment.ID,
		"entry_id", entryID,
		"type", adjustment.Type,
		"amount", adjustment.Amount.StringFixed(MoneyPlaces))
	return adjustment, nil
}

func (l *Ledger) Update(ctx context.Context, actor *internal.User, id int64, dto UpdateAdjustmentDTO) (*Adjustment, error) {
	if err := l.require(actor); err != nil {
		return nil, err
	}
	current, err := l.repo.GetAdjustment(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *Adjustment
	err = l.mutate(ctx, current.EntryID, func(tx Repository) error {
		locked, err := tx.GetAdjustment(ctx, id)
		if err != nil {
			return err
		}
		next, err := dto.Apply(locked)
		if err != nil {
			return err
		}
		next.UpdatedAt = l.now().UTC()
		if err := tx.UpdateAdjustment(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		l.logger.Warn("adjustment update rejected", "adjustment_id", id, "error", err)
		return nil, err
	}
	return updated, nil
}

func (l *Ledger) Remove(ctx context.Context, actor *internal.User, id int64) error {
	if err := l.require(actor); err != nil {
		return err
	}
	current, err := l.repo.GetAdjustment(ctx, id)
	if err != nil {
		return err
	}

	err = l.mutate(ctx, current.EntryID, func(tx Repository) error {
		return tx.DeleteAdjustment(ctx, id)
	})
	if err != nil {
		l.logger.Warn("adjustment removal rejected", "adjustment_id", id, "error", err)
		return err
	}
	l.logger.Info("adjustment removed", "adjustment_id", id, "entry_id", current.EntryID)
	return nil
}

// ListFor returns the adjustments of an entry; users may read their own.
func (l *Ledger) ListFor(ctx context.Context, actor *internal.User, entryID int64) ([]*Adjustment, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	entry, err := l.repo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != actor.ID && !canRead(l.authorizer, actor) {
		return nil, ErrForbidden
	}
	return l.repo.ListAdjustments(ctx, entryID)
}

// mutate runs fn inside a transaction that first touches the owning period
// while it is editable, so approval and processing serialise with it, then
// rewrites the entry totals guarded by its version. A version conflict is
// retried with fresh reads.
func (l *Ledger) mutate(ctx context.Context, entryID int64, fn func(tx Repository) error) error {
	for attempt := 0; ; attempt++ {
		err := l.repo.WithTx(ctx, func(tx Repository) error {
			entry, err := tx.GetEntry(ctx, entryID)
			if err != nil {
				return err
			}

			now := l.now().UTC()
			ok, err := tx.TouchEditablePeriod(ctx, entry.PeriodID, now)
			if err != nil {
				return err
			}
			if !ok {
				period, err := tx.GetPeriod(ctx, entry.PeriodID)
				if err != nil {
					return err
				}
				return &LockedError{PeriodID: period.ID, Status: period.Status}
			}

			if err := fn(tx); err != nil {
				return err
			}

			sum, err := tx.SumAdjustments(ctx, entryID)
			if err != nil {
				return err
			}
			sum = sum.Round(MoneyPlaces)
			ok, err = tx.UpdateEntryAmounts(ctx, entryID, entry.Version, sum, entry.GrossAmount.Add(sum), now)
			if err != nil {
				return err
			}
			if !ok {
				return ErrConcurrentUpdate
			}
			return tx.RefreshPeriodTotal(ctx, entry.PeriodID)
		})
		if errors.Is(err, ErrConcurrentUpdate) && attempt < l.retries {
			l.logger.Debug("retrying adjustment after concurrent entry update", "entry_id", entryID, "attempt", attempt+1)
			continue
		}
		return err
	}
}
