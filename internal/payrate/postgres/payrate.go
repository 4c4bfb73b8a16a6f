package postgres

import (
	"context"
	"errors"
	"time"

	payrateDatamodel "github.com/frahmantamala/timetrack-payroll/internal/core/datamodel/payrate"
	"github.com/frahmantamala/timetrack-payroll/internal/payrate"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// advisory lock namespace for per-user pay rate writes
const payRateLockNamespace = 7301

const sqlStateExclusionViolation = "23P01"

type PayRateRepository struct {
	db *gorm.DB
}

func NewPayRateRepository(db *gorm.DB) *PayRateRepository {
	return &PayRateRepository{db: db}
}

func (r *PayRateRepository) WithUserLock(ctx context.Context, userID int64, fn func(repo payrate.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?, ?)", payRateLockNamespace, int32(userID)).Error; err != nil {
				return err
			}
		}
		return fn(&PayRateRepository{db: tx})
	})
}

func (r *PayRateRepository) Create(ctx context.Context, rate *payrate.PayRate) error {
	model := payrate.ToDataModel(rate)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return mapWriteError(err)
	}
	rate.ID = model.ID
	rate.CreatedAt = model.CreatedAt
	rate.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *PayRateRepository) Update(ctx context.Context, rate *payrate.PayRate) error {
	result := r.db.WithContext(ctx).
		Model(&payrateDatamodel.PayRate{}).
		Where("id = ?", rate.ID).
		Updates(map[string]interface{}{
			"base_rate":           rate.BaseRate,
			"overtime_multiplier": rate.OvertimeMultiplier,
			"effective_to":        rate.EffectiveTo,
			"is_active":           rate.IsActive,
			"updated_at":          rate.UpdatedAt,
		})
	if result.Error != nil {
		return mapWriteError(result.Error)
	}
	if result.RowsAffected == 0 {
		return payrate.ErrPayRateNotFound
	}
	return nil
}

func (r *PayRateRepository) GetByID(ctx context.Context, id int64) (*payrate.PayRate, error) {
	var model payrateDatamodel.PayRate
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payrate.ErrPayRateNotFound
		}
		return nil, err
	}
	return payrate.FromDataModel(&model), nil
}

func (r *PayRateRepository) ListByUser(ctx context.Context, userID int64) ([]*payrate.PayRate, error) {
	var models []payrateDatamodel.PayRate
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("effective_from DESC, id DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

func (r *PayRateRepository) FindActiveCovering(ctx context.Context, userID int64, day time.Time) ([]*payrate.PayRate, error) {
	var models []payrateDatamodel.PayRate
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Where("effective_from <= ?", day).
		Where("effective_to IS NULL OR effective_to > ?", day).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

func (r *PayRateRepository) FindActiveOverlapping(ctx context.Context, userID int64, from time.Time, to *time.Time, excludeID int64) ([]*payrate.PayRate, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND id <> ?", userID, true, excludeID).
		Where("effective_to IS NULL OR effective_to > ?", from)
	if to != nil {
		q = q.Where("effective_from < ?", *to)
	}

	var models []payrateDatamodel.PayRate
	if err := q.Order("effective_from ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

func (r *PayRateRepository) AppendHistory(ctx context.Context, entry *payrate.HistoryEntry) error {
	model := payrate.HistoryToDataModel(entry)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	entry.ID = model.ID
	return nil
}

func (r *PayRateRepository) ListHistory(ctx context.Context, rateID int64) ([]*payrate.HistoryEntry, error) {
	var models []payrateDatamodel.PayRateHistory
	err := r.db.WithContext(ctx).
		Where("pay_rate_id = ?", rateID).
		Order("changed_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*payrate.HistoryEntry, len(models))
	for i := range models {
		out[i] = payrate.HistoryFromDataModel(&models[i])
	}
	return out, nil
}

func (r *PayRateRepository) ListUsersWithActiveRates(ctx context.Context, from, to time.Time, rateTypes []payrate.RateType) ([]int64, error) {
	q := r.db.WithContext(ctx).
		Model(&payrateDatamodel.PayRate{}).
		Distinct("user_id").
		Where("is_active = ?", true).
		Where("effective_from < ?", to).
		Where("effective_to IS NULL OR effective_to > ?", from)
	if len(rateTypes) > 0 {
		types := make([]string, len(rateTypes))
		for i, t := range rateTypes {
			types[i] = string(t)
		}
		q = q.Where("rate_type IN ?", types)
	}

	var ids []int64
	if err := q.Order("user_id").Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func fromModels(models []payrateDatamodel.PayRate) []*payrate.PayRate {
	out := make([]*payrate.PayRate, len(models))
	for i := range models {
		out[i] = payrate.FromDataModel(&models[i])
	}
	return out
}

// mapWriteError turns the exclusion constraint backstop into the domain overlap error.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlStateExclusionViolation {
		return payrate.ErrRateOverlap
	}
	return err
}
