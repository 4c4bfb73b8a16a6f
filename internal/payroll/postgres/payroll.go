package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	payrollDatamodel "github.com/frahmantamala/timetrack-payroll/internal/core/datamodel/payroll"
	"github.com/frahmantamala/timetrack-payroll/internal/payroll"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const sqlStateUniqueViolation = "23505"

var editableStatuses = []string{string(payroll.StatusDraft), string(payroll.StatusProcessing)}

type PayrollRepository struct {
	db *gorm.DB
}

func NewPayrollRepository(db *gorm.DB) *PayrollRepository {
	return &PayrollRepository{db: db}
}

func (r *PayrollRepository) WithTx(ctx context.Context, fn func(repo payroll.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PayrollRepository{db: tx})
	})
}

func (r *PayrollRepository) CreatePeriod(ctx context.Context, period *payroll.Period) error {
	model := payroll.PeriodToDataModel(period)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	period.ID = model.ID
	period.CreatedAt = model.CreatedAt
	period.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *PayrollRepository) GetPeriod(ctx context.Context, id int64) (*payroll.Period, error) {
	return r.findPeriod(r.db.WithContext(ctx), id)
}

func (r *PayrollRepository) LockPeriod(ctx context.Context, id int64) (*payroll.Period, error) {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.findPeriod(q, id)
}

func (r *PayrollRepository) findPeriod(q *gorm.DB, id int64) (*payroll.Period, error) {
	var model payrollDatamodel.PayrollPeriod
	if err := q.First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payroll.ErrPeriodNotFound
		}
		return nil, err
	}
	return payroll.PeriodFromDataModel(&model), nil
}

func (r *PayrollRepository) ListPeriods(ctx context.Context, filter payroll.PeriodFilter) ([]*payroll.Period, error) {
	q := r.db.WithContext(ctx).Model(&payrollDatamodel.PayrollPeriod{})
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var models []payrollDatamodel.PayrollPeriod
	if err := q.Order("start_date DESC, id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	periods := make([]*payroll.Period, len(models))
	for i := range models {
		periods[i] = payroll.PeriodFromDataModel(&models[i])
	}
	return periods, nil
}

func (r *PayrollRepository) UpdatePeriodDetails(ctx context.Context, period *payroll.Period) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&payrollDatamodel.PayrollPeriod{}).
		Where("id = ? AND status IN ?", period.ID, editableStatuses).
		Updates(map[string]interface{}{
			"name":           period.Name,
			"period_type":    string(period.PeriodType),
			"start_date":     period.StartDate,
			"end_date":       period.EndDate,
			"dates_revision": period.DatesRevision,
			"updated_at":     period.UpdatedAt,
		})
	return result.RowsAffected > 0, result.Error
}

// DeletePeriod removes a draft period with its entries, adjustments and runs.
func (r *PayrollRepository) DeletePeriod(ctx context.Context, id int64) (bool, error) {
	db := r.db.WithContext(ctx)
	result := db.Where("id = ? AND status = ?", id, string(payroll.StatusDraft)).Delete(&payrollDatamodel.PayrollPeriod{})
	if result.Error != nil || result.RowsAffected == 0 {
		return false, result.Error
	}

	entryIDs := db.Model(&payrollDatamodel.PayrollEntry{}).Select("id").Where("period_id = ?", id)
	if err := db.Where("entry_id IN (?)", entryIDs).Delete(&payrollDatamodel.PayrollAdjustment{}).Error; err != nil {
		return false, err
	}
	if err := db.Where("period_id = ?", id).Delete(&payrollDatamodel.PayrollEntry{}).Error; err != nil {
		return false, err
	}
	if err := db.Where("period_id = ?", id).Delete(&payrollDatamodel.PayrollRunSkip{}).Error; err != nil {
		return false, err
	}
	if err := db.Where("period_id = ?", id).Delete(&payrollDatamodel.PayrollRun{}).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *PayrollRepository) SetPeriodStatus(ctx context.Context, id int64, from payroll.PeriodStatus, change payroll.StatusChange) (bool, error) {
	updates := map[string]interface{}{
		"status":     string(change.To),
		"updated_at": change.At,
	}
	switch change.To {
	case payroll.StatusApproved:
		updates["approved_by"] = change.ActorID
		updates["approved_at"] = change.At
	case payroll.StatusPaid:
		updates["paid_by"] = change.ActorID
		updates["paid_at"] = change.At
	case payroll.StatusVoid:
		updates["voided_by"] = change.ActorID
		updates["voided_at"] = change.At
		updates["void_reason"] = change.Reason
		updates["processing_token"] = nil
		updates["processing_started_at"] = nil
	}

	result := r.db.WithContext(ctx).
		Model(&payrollDatamodel.PayrollPeriod{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

// AcquireProcessing moves a draft period, or one whose lease started before
// staleBefore, to processing under token.
func (r *PayrollRepository) AcquireProcessing(ctx context.Context, id int64, token string, at, staleBefore time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&payrollDatamodel.PayrollPeriod{}).
		Where("id = ? AND (status = ? OR (status = ? AND processing_started_at < ?))",
			id, string(payroll.StatusDraft), string(payroll.StatusProcessing), staleBefore).
		Updates(map[string]interface{}{
			"status":                string(payroll.StatusProcessing),
			"processing_token":      token,
			"processing_started_at": at,
			"updated_at":            at,
		})
	return result.RowsAffected > 0, result.Error
}

// ReleaseProcessing settles a processing period back to draft if token still
// holds the lease. A nil processedAt leaves last_processed_at unchanged.
func (r *PayrollRepository) ReleaseProcessing(ctx context.Context, id int64, token string, processedAt *time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":                string(payroll.StatusDraft),
		"processing_token":      nil,
		"processing_started_at": nil,
		"updated_at":            time.Now().UTC(),
	}
	if processedAt != nil {
		updates["last_processed_at"] = *processedAt
	}

	result := r.db.WithContext(ctx).
		Model(&payrollDatamodel.PayrollPeriod{}).
		Where("id = ? AND status = ? AND processing_token = ?", id, string(payroll.StatusProcessing), token).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

// TouchEditablePeriod bumps updated_at while the period is editable, taking
// its row lock for the rest of the transaction.
func (r *PayrollRepository) TouchEditablePeriod(ctx context.Context, id int64, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&payrollDatamodel.PayrollPeriod{}).
		Where("id = ? AND status IN ?", id, editableStatuses).
		Update("updated_at", at)
	return result.RowsAffected > 0, result.Error
}

func (r *PayrollRepository) RefreshPeriodTotal(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Exec(
		"UPDATE payroll_periods SET total_amount = (SELECT COALESCE(SUM(net_amount), 0) FROM payroll_entries WHERE period_id = ?) WHERE id = ?",
		id, id).Error
}

func (r *PayrollRepository) ListEntries(ctx context.Context, periodID int64) ([]*payroll.Entry, error) {
	var models []payrollDatamodel.PayrollEntry
	if err := r.db.WithContext(ctx).Where("period_id = ?", periodID).Order("user_id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return entriesFromModels(models), nil
}

func (r *PayrollRepository) GetEntry(ctx context.Context, id int64) (*payroll.Entry, error) {
	var model payrollDatamodel.PayrollEntry
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payroll.ErrEntryNotFound
		}
		return nil, err
	}
	return payroll.EntryFromDataModel(&model), nil
}

func (r *PayrollRepository) InsertEntry(ctx context.Context, entry *payroll.Entry) error {
	entry.Version = 1
	model := payroll.EntryToDataModel(entry)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return payroll.ErrDuplicateEntry
		}
		return err
	}
	entry.ID = model.ID
	entry.CreatedAt = model.CreatedAt
	entry.UpdatedAt = model.UpdatedAt
	return nil
}

// UpdateEntry rewrites the computed fields if the stored version still matches entry.Version.
func (r *PayrollRepository) UpdateEntry(ctx context.Context, entry *payroll.Entry) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&payrollDatamodel.PayrollEntry{}).
		Where("id = ? AND version = ?", entry.ID, entry.Version).
		Updates(map[string]interface{}{
			"pay_rate_id":        entry.PayRateID,
			"rate_type":          entry.RateType,
			"currency":           entry.Currency,
			"regular_hours":      entry.RegularHours,
			"overtime_hours":     entry.OvertimeHours,
			"regular_rate":       entry.RegularRate,
			"overtime_rate":      entry.OvertimeRate,
			"gross_amount":       entry.GrossAmount,
			"adjustments_amount": entry.AdjustmentsAmount,
			"net_amount":         entry.NetAmount,
			"status":             string(entry.Status),
			"computed_at":        entry.ComputedAt,
			"version":            entry.Version + 1,
			"updated_at":         now,
		})
	if result.Error != nil || result.RowsAffected == 0 {
		return false, result.Error
	}
	entry.Version++
	entry.UpdatedAt = now
	return true, nil
}

func (r *PayrollRepository) UpdateEntryAmounts(ctx context.Context, id int64, version int, adjustments, net decimal.Decimal, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&payrollDatamodel.PayrollEntry{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"adjustments_amount": adjustments,
			"net_amount":         net,
			"version":            version + 1,
			"updated_at":         at,
		})
	return result.RowsAffected > 0, result.Error
}

func (r *PayrollRepository) DeleteEntries(ctx context.Context, periodID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	db := r.db.WithContext(ctx)
	entryIDs := db.Model(&payrollDatamodel.PayrollEntry{}).Select("id").
		Where("period_id = ? AND user_id IN ?", periodID, userIDs)
	if err := db.Where("entry_id IN (?)", entryIDs).Delete(&payrollDatamodel.PayrollAdjustment{}).Error; err != nil {
		return err
	}
	return db.Where("period_id = ? AND user_id IN ?", periodID, userIDs).Delete(&payrollDatamodel.PayrollEntry{}).Error
}

func (r *PayrollRepository) SetEntriesStatus(ctx context.Context, periodID int64, status payroll.EntryStatus) error {
	return r.db.WithContext(ctx).
		Model(&payrollDatamodel.PayrollEntry{}).
		Where("period_id = ?", periodID).
		Updates(map[string]interface{}{
			"status":     string(status),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		}).Error
}

// ListUserEntries returns a user's entries outside void periods.
func (r *PayrollRepository) ListUserEntries(ctx context.Context, userID int64, periodID *int64) ([]*payroll.Entry, error) {
	q := r.db.WithContext(ctx).
		Model(&payrollDatamodel.PayrollEntry{}).
		Select("payroll_entries.*").
		Joins("JOIN payroll_periods ON payroll_periods.id = payroll_entries.period_id").
		Where("payroll_entries.user_id = ? AND payroll_periods.status <> ?", userID, string(payroll.StatusVoid))
	if periodID != nil {
		q = q.Where("payroll_entries.period_id = ?", *periodID)
	}

	var models []payrollDatamodel.PayrollEntry
	if err := q.Order("payroll_periods.start_date DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return entriesFromModels(models), nil
}

func (r *PayrollRepository) CreateAdjustment(ctx context.Context, adjustment *payroll.Adjustment) error {
	model := payroll.AdjustmentToDataModel(adjustment)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	adjustment.ID = model.ID
	adjustment.CreatedAt = model.CreatedAt
	adjustment.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *PayrollRepository) GetAdjustment(ctx context.Context, id int64) (*payroll.Adjustment, error) {
	var model payrollDatamodel.PayrollAdjustment
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payroll.ErrAdjustmentNotFound
		}
		return nil, err
	}
	return payroll.AdjustmentFromDataModel(&model), nil
}

func (r *PayrollRepository) UpdateAdjustment(ctx context.Context, adjustment *payroll.Adjustment) error {
	result := r.db.WithContext(ctx).
		Model(&payrollDatamodel.PayrollAdjustment{}).
		Where("id = ?", adjustment.ID).
		Updates(map[string]interface{}{
			"adjustment_type": string(adjustment.Type),
			"description":     adjustment.Description,
			"amount":          adjustment.Amount,
			"updated_at":      adjustment.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return payroll.ErrAdjustmentNotFound
	}
	return nil
}

func (r *PayrollRepository) DeleteAdjustment(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&payrollDatamodel.PayrollAdjustment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return payroll.ErrAdjustmentNotFound
	}
	return nil
}

func (r *PayrollRepository) ListAdjustments(ctx context.Context, entryID int64) ([]*payroll.Adjustment, error) {
	var models []payrollDatamodel.PayrollAdjustment
	if err := r.db.WithContext(ctx).Where("entry_id = ?", entryID).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return adjustmentsFromModels(models), nil
}

func (r *PayrollRepository) ListPeriodAdjustments(ctx context.Context, periodID int64) ([]*payroll.Adjustment, error) {
	db := r.db.WithContext(ctx)
	entryIDs := db.Model(&payrollDatamodel.PayrollEntry{}).Select("id").Where("period_id = ?", periodID)

	var models []payrollDatamodel.PayrollAdjustment
	if err := db.Where("entry_id IN (?)", entryIDs).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return adjustmentsFromModels(models), nil
}

func (r *PayrollRepository) SumAdjustments(ctx context.Context, entryID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&payrollDatamodel.PayrollAdjustment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("entry_id = ?", entryID).
		Row().Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return sum.Round(payroll.MoneyPlaces), nil
}

func (r *PayrollRepository) SumAdjustmentsByEntry(ctx context.Context, periodID int64) (map[int64]decimal.Decimal, error) {
	db := r.db.WithContext(ctx)
	entryIDs := db.Model(&payrollDatamodel.PayrollEntry{}).Select("id").Where("period_id = ?", periodID)

	var rows []struct {
		EntryID int64
		Total   decimal.Decimal
	}
	err := db.Model(&payrollDatamodel.PayrollAdjustment{}).
		Select("entry_id, COALESCE(SUM(amount), 0) AS total").
		Where("entry_id IN (?)", entryIDs).
		Group("entry_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	sums := make(map[int64]decimal.Decimal, len(rows))
	for _, row := range rows {
		sums[row.EntryID] = row.Total.Round(payroll.MoneyPlaces)
	}
	return sums, nil
}

// CreateRun appends the run and its skip records.
func (r *PayrollRepository) CreateRun(ctx context.Context, run *payroll.Run) error {
	db := r.db.WithContext(ctx)
	model := &payrollDatamodel.PayrollRun{
		PeriodID:       run.PeriodID,
		Token:          run.Token,
		PeriodRevision: run.PeriodRevision,
		ProcessedBy:    run.ProcessedBy,
		EntriesCount:   run.EntriesCount,
		SkippedCount:   run.SkippedCount,
		TotalAmount:    run.TotalAmount,
		Scope:          run.Scope,
		StartedAt:      run.StartedAt,
		CompletedAt:    run.CompletedAt,
	}
	if err := db.Create(model).Error; err != nil {
		return err
	}
	run.ID = model.ID

	if len(run.Skipped) == 0 {
		return nil
	}
	skips := make([]payrollDatamodel.PayrollRunSkip, len(run.Skipped))
	for i, s := range run.Skipped {
		skips[i] = payrollDatamodel.PayrollRunSkip{
			RunID:    model.ID,
			PeriodID: run.PeriodID,
			UserID:   s.UserID,
			Reason:   string(s.Reason),
			Detail:   s.Detail,
		}
	}
	return db.Create(&skips).Error
}

func (r *PayrollRepository) LatestRun(ctx context.Context, periodID int64) (*payroll.Run, error) {
	db := r.db.WithContext(ctx)
	var models []payrollDatamodel.PayrollRun
	if err := db.Where("period_id = ?", periodID).Order("id DESC").Limit(1).Find(&models).Error; err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	m := models[0]

	var skips []payrollDatamodel.PayrollRunSkip
	if err := db.Where("run_id = ?", m.ID).Order("user_id ASC").Find(&skips).Error; err != nil {
		return nil, err
	}

	run := &payroll.Run{
		ID:             m.ID,
		PeriodID:       m.PeriodID,
		Token:          m.Token,
		PeriodRevision: m.PeriodRevision,
		ProcessedBy:    m.ProcessedBy,
		EntriesCount:   m.EntriesCount,
		SkippedCount:   m.SkippedCount,
		TotalAmount:    m.TotalAmount.Round(payroll.MoneyPlaces),
		Scope:          m.Scope,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		Skipped:        make([]payroll.Skip, len(skips)),
	}
	for i, s := range skips {
		run.Skipped[i] = payroll.Skip{UserID: s.UserID, Reason: payroll.SkipReason(s.Reason), Detail: s.Detail}
	}
	return run, nil
}

func entriesFromModels(models []payrollDatamodel.PayrollEntry) []*payroll.Entry {
	entries := make([]*payroll.Entry, len(models))
	for i := range models {
		entries[i] = payroll.EntryFromDataModel(&models[i])
	}
	return entries
}

func adjustmentsFromModels(models []payrollDatamodel.PayrollAdjustment) []*payroll.Adjustment {
	adjustments := make([]*payroll.Adjustment, len(models))
	for i := range models {
		adjustments[i] = payroll.AdjustmentFromDataModel(&models[i])
	}
	return adjustments
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
