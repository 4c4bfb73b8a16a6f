package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/core/common/validation"
	"github.com/frahmantamala/timetrack-payroll/internal/core/events"
	"github.com/frahmantamala/timetrack-payroll/internal/payrate"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Repository persists periods, entries, adjustments and runs. Methods returning
// a bool are conditional writes; false means the guard did not match.
type Repository interface {
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	CreatePeriod(ctx context.Context, period *Period) error
	GetPeriod(ctx context.Context, id int64) (*Period, error)
	// LockPeriod reads a period and holds its row lock until the transaction ends.
	LockPeriod(ctx context.Context, id int64) (*Period, error)
	ListPeriods(ctx context.Context, filter PeriodFilter) ([]*Period, error)
	UpdatePeriodDetails(ctx context.Context, period *Period) (bool, error)
	DeletePeriod(ctx context.Context, id int64) (bool, error)
	SetPeriodStatus(ctx context.Context, id int64, from PeriodStatus, change StatusChange) (bool, error)
	AcquireProcessing(ctx context.Context, id int64, token string, at, staleBefore time.Time) (bool, error)
	ReleaseProcessing(ctx context.Context, id int64, token string, processedAt *time.Time) (bool, error)
	TouchEditablePeriod(ctx context.Context, id int64, at time.Time) (bool, error)
	RefreshPeriodTotal(ctx context.Context, id int64) error

	ListEntries(ctx context.Context, periodID int64) ([]*Entry, error)
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	InsertEntry(ctx context.Context, entry *Entry) error
	UpdateEntry(ctx context.Context, entry *Entry) (bool, error)
	UpdateEntryAmounts(ctx context.Context, id int64, version int, adjustments, net decimal.Decimal, at time.Time) (bool, error)
	SetEntriesStatus(ctx context.Context, periodID int64, status EntryStatus) error
	// DeleteEntries removes the users' entries in a period together with their adjustments.
	DeleteEntries(ctx context.Context, periodID int64, userIDs []int64) error
	ListUserEntries(ctx context.Context, userID int64, periodID *int64) ([]*Entry, error)

	CreateAdjustment(ctx context.Context, adjustment *Adjustment) error
	GetAdjustment(ctx context.Context, id int64) (*Adjustment, error)
	UpdateAdjustment(ctx context.Context, adjustment *Adjustment) error
	DeleteAdjustment(ctx context.Context, id int64) error
	ListAdjustments(ctx context.Context, entryID int64) ([]*Adjustment, error)
	ListPeriodAdjustments(ctx context.Context, periodID int64) ([]*Adjustment, error)
	SumAdjustments(ctx context.Context, entryID int64) (decimal.Decimal, error)
	SumAdjustmentsByEntry(ctx context.Context, periodID int64) (map[int64]decimal.Decimal, error)

	CreateRun(ctx context.Context, run *Run) error
	// LatestRun returns nil when the period was never processed.
	LatestRun(ctx context.Context, periodID int64) (*Run, error)
}

// StatusChange stamps the actor columns that belong to the target status.
type StatusChange struct {
	To      PeriodStatus
	ActorID int64
	At      time.Time
	Reason  string
}

type PeriodFilter struct {
	Status PeriodStatus
	Limit  int
	Offset int
}

type EntryComputer interface {
	Compute(ctx context.Context, period *Period, userID int64) (*Computation, error)
}

type RateDirectory interface {
	UsersWithActiveRates(ctx context.Context, from, to time.Time, rateTypes []payrate.RateType) ([]int64, error)
}

type WorkDirectory interface {
	UsersWithEntries(ctx context.Context, start, end time.Time) ([]int64, error)
}

type UserDirectory interface {
	FilterActive(ctx context.Context, ids []int64) ([]int64, error)
}

type Authorizer interface {
	IsAuthorized(actor *internal.User, permission string) bool
}

// Scope finds the users a process call covers when none are named explicitly.
type Scope struct {
	Rates RateDirectory
	Work  WorkDirectory
	Users UserDirectory
}

// ProcessOptions narrows a process call to explicit users or to users holding
// an active rate of the given types. Empty options cover every active user
// with an active rate or eligible time entries in the period.
type ProcessOptions struct {
	UserIDs   []int64
	RateTypes []payrate.RateType
}

type ApproveOptions struct {
	AcceptPartial bool
}

type ProcessResult struct {
	Period  *Period  `json:"period"`
	Run     *Run     `json:"run"`
	Entries []*Entry `json:"entries"`
	Skipped []Skip   `json:"skipped"`
	// Removed lists users whose stale entries were dropped by this run.
	Removed []int64 `json:"removed"`
}

var errLeaseLost = errors.New("processing lease lost")

// scopeAll labels runs over every rated or working user.
const scopeAll = "all"

// Service is the period state machine.
type Service struct {
	repo       Repository
	calc       EntryComputer
	scope      Scope
	authorizer Authorizer
	publisher  events.Publisher
	cfg        internal.PayrollConfig
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo Repository, calc EntryComputer, scope Scope, authorizer Authorizer, cfg internal.PayrollConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()
	return &Service{
		repo:       repo,
		calc:       calc,
		scope:      scope,
		authorizer: authorizer,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Service) WithPublisher(publisher events.Publisher) *Service {
	s.publisher = publisher
	return s
}

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

func canRead(authorizer Authorizer, actor *internal.User) bool {
	if actor == nil {
		return false
	}
	for _, p := range []string{
		internal.PermissionManagePayroll,
		internal.PermissionApprovePayroll,
		internal.PermissionPayPayroll,
		internal.PermissionViewPayrollReports,
	} {
		if authorizer.IsAuthorized(actor, p) {
			return true
		}
	}
	return false
}

func (s *Service) CreatePeriod(ctx context.Context, actor *internal.User, dto CreatePeriodDTO) (*Period, error) {
	if err := s.require(actor, internal.PermissionManagePayroll); err != nil {
		return nil, err
	}
	period, err := dto.ToDomain(actor.ID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreatePeriod(ctx, period); err != nil {
		s.logger.Error("failed to create payroll period", "error", err)
		return nil, err
	}
	s.logger.Info("payroll period created",
		"period_id", period.ID,
		"start_date", period.StartDate.Format(validation.DateLayout),
		"end_date", period.EndDate.Format(validation.DateLayout))
	return period, nil
}

// UpdatePeriod edits metadata of a draft or processing period. Entries are not
// recomputed; changed dates require a new process run before approval.
func (s *Service) UpdatePeriod(ctx context.Context, actor *internal.User, id int64, dto UpdatePeriodDTO) (*Period, error) {
	if err := s.require(actor, internal.PermissionManagePayroll); err != nil {
		return nil, err
	}

	var updated *Period
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		period, err := tx.LockPeriod(ctx, id)
		if err != nil {
			return err
		}
		if !period.Status.Editable() {
			return &LockedError{PeriodID: id, Status: period.Status}
		}

		next, err := dto.Apply(period)
		if err != nil {
			return err
		}
		if !next.StartDate.Equal(period.StartDate) || !next.EndDate.Equal(period.EndDate) {
			next.DatesRevision++
		}
		next.UpdatedAt = s.now().UTC()

		ok, err := tx.UpdatePeriodDetails(ctx, next)
		if err != nil {
			return err
		}
		if !ok {
			return &LockedError{PeriodID: id, Status: period.Status}
		}
		updated = next
		return nil
	})
	if err != nil {
		s.logger.Warn("payroll period update rejected", "period_id", id, "error", err)
		return nil, err
	}
	return updated, nil
}

func (s *Service) DeletePeriod(ctx context.Context, actor *internal.User, id int64) error {
	if err := s.require(actor, internal.PermissionManagePayroll); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		period, err := tx.LockPeriod(ctx, id)
		if err != nil {
			return err
		}
		if period.Status != StatusDraft {
			return &TransitionError{Action: "delete", From: period.Status}
		}
		ok, err := tx.DeletePeriod(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return &TransitionError{Action: "delete", From: period.Status}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("payroll period delete rejected", "period_id", id, "error", err)
		return err
	}
	s.logger.Info("payroll period deleted", "period_id", id, "deleted_by", actor.ID)
	return nil
}

func (s *Service) GetPeriod(ctx context.Context, actor *internal.User, id int64) (*Period, error) {
	if !canRead(s.authorizer, actor) {
		return nil, ErrForbidden
	}
	return s.repo.GetPeriod(ctx, id)
}

func (s *Service) ListPeriods(ctx context.Context, actor *internal.User, filter PeriodFilter) ([]*Period, error) {
	if !canRead(s.authorizer, actor) {
		return nil, ErrForbidden
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.repo.ListPeriods(ctx, filter)
}

func (s *Service) ListEntries(ctx context.Context, actor *internal.User, periodID int64) ([]*Entry, error) {
	if !canRead(s.authorizer, actor) {
		return nil, ErrForbidden
	}
	if _, err := s.repo.GetPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	return s.repo.ListEntries(ctx, periodID)
}

// GetEntry lets users read their own entries.
func (s *Service) GetEntry(ctx context.Context, actor *internal.User, id int64) (*Entry, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	entry, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.UserID != actor.ID && !canRead(s.authorizer, actor) {
		return nil, ErrForbidden
	}
	return entry, nil
}

// ProcessPeriod recomputes the entries of every user in scope. The period is
// moved to processing under a lease token for the duration of the computation
// and settles back to draft in the same transaction that writes the results.
// Users without a resolvable rate are reported as skipped, not failed.
func (s *Service) ProcessPeriod(ctx context.Context, actor *internal.User, id int64, opts ProcessOptions) (*ProcessResult, error) {
	if err := s.require(actor, internal.PermissionManagePayroll); err != nil {
		return nil, err
	}

	period, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	if !period.Status.Editable() {
		return nil, &LockedError{PeriodID: id, Status: period.Status}
	}

	startedAt := s.now().UTC()
	token := uuid.New().String()
	ok, err := s.repo.AcquireProcessing(ctx, id, token, startedAt, startedAt.Add(-s.cfg.ProcessingLease))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.busyOrLocked(ctx, id)
	}

	log := s.logger.With("period_id", id, "run_token", token)
	log.Info("payroll processing started", "actor_id", actor.ID)

	// reload so the run records the dates it actually computed
	period, err = s.repo.GetPeriod(ctx, id)
	if err != nil {
		s.abandon(ctx, id, token)
		return nil, err
	}

	userIDs, scopeLabel, err := s.resolveScope(ctx, period, opts)
	if err != nil {
		s.abandon(ctx, id, token)
		return nil, fmt.Errorf("resolve processing scope: %w", err)
	}

	computations, skipped, err := s.computeAll(ctx, period, userIDs)
	if err != nil {
		log.Error("payroll processing aborted", "error", err)
		s.abandon(ctx, id, token)
		return nil, err
	}

	result := &ProcessResult{Skipped: skipped}
	err = s.repo.WithTx(ctx, func(tx Repository) error {
		completedAt := s.now().UTC()
		ok, err := tx.ReleaseProcessing(ctx, id, token, &completedAt)
		if err != nil {
			return err
		}
		if !ok {
			return errLeaseLost
		}

		entries, err := s.writeEntries(ctx, tx, id, computations, completedAt)
		if err != nil {
			return err
		}
		removed, err := s.dropStaleEntries(ctx, tx, id, computations, skipped, scopeLabel == scopeAll)
		if err != nil {
			return err
		}
		if err := tx.RefreshPeriodTotal(ctx, id); err != nil {
			return err
		}
		settled, err := tx.GetPeriod(ctx, id)
		if err != nil {
			return err
		}

		run := &Run{
			PeriodID:       id,
			Token:          token,
			PeriodRevision: period.DatesRevision,
			ProcessedBy:    actor.ID,
			EntriesCount:   len(entries),
			SkippedCount:   len(skipped),
			TotalAmount:    settled.TotalAmount,
			Scope:          scopeLabel,
			StartedAt:      startedAt,
			CompletedAt:    completedAt,
			Skipped:        skipped,
		}
		if err := tx.CreateRun(ctx, run); err != nil {
			return err
		}

		result.Period = settled
		result.Run = run
		result.Entries = entries
		result.Removed = removed
		return nil
	})
	if errors.Is(err, errLeaseLost) {
		log.Warn("payroll processing lease lost")
		return nil, s.busyOrLocked(ctx, id)
	}
	if err != nil {
		log.Error("failed to persist payroll run", "error", err)
		s.abandon(ctx, id, token)
		return nil, err
	}

	log.Info("payroll processing completed",
		"run_id", result.Run.ID,
		"entries", len(result.Entries),
		"skipped", len(skipped),
		"removed", len(result.Removed),
		"total_amount", result.Period.TotalAmount.StringFixed(MoneyPlaces))

	s.publish(ctx, events.NewPeriodProcessedEvent(id, result.Period.Name, actor.ID,
		result.Period.TotalAmount.StringFixed(MoneyPlaces), result.Run.ID, len(result.Entries), len(skipped)))
	return result, nil
}

// writeEntries upserts computed entries keyed by (period, user). Existing
// adjustments are preserved and rows whose values did not change are left as they are.
func (s *Service) writeEntries(ctx context.Context, tx Repository, periodID int64, computations []*Computation, at time.Time) ([]*Entry, error) {
	existing, err := tx.ListEntries(ctx, periodID)
	if err != nil {
		return nil, err
	}
	byUser := make(map[int64]*Entry, len(existing))
	for _, e := range existing {
		byUser[e.UserID] = e
	}
	sums, err := tx.SumAdjustmentsByEntry(ctx, periodID)
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(computations))
	for _, c := range computations {
		prev := byUser[c.UserID]
		if prev == nil {
			next := c.Entry(periodID, decimal.Zero, at)
			if err := tx.InsertEntry(ctx, next); err != nil {
				return nil, err
			}
			entries = append(entries, next)
			continue
		}

		next := c.Entry(periodID, sums[prev.ID], at)
		if prev.sameComputation(next) {
			entries = append(entries, prev)
			continue
		}
		next.ID = prev.ID
		next.Version = prev.Version
		next.CreatedAt = prev.CreatedAt
		ok, err := tx.UpdateEntry(ctx, next)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrConcurrentUpdate
		}
		entries = append(entries, next)
	}
	return entries, nil
}

// dropStaleEntries deletes entries of skipped users, and on a full-scope run
// entries of users that are no longer in scope, so that neither is approved or paid.
func (s *Service) dropStaleEntries(ctx context.Context, tx Repository, periodID int64, computations []*Computation, skipped []Skip, fullScope bool) ([]int64, error) {
	computed := make(map[int64]bool, len(computations))
	for _, c := range computations {
		computed[c.UserID] = true
	}
	isSkipped := make(map[int64]bool, len(skipped))
	for _, sk := range skipped {
		isSkipped[sk.UserID] = true
	}

	existing, err := tx.ListEntries(ctx, periodID)
	if err != nil {
		return nil, err
	}
	var stale []int64
	for _, e := range existing {
		if computed[e.UserID] {
			continue
		}
		if isSkipped[e.UserID] || fullScope {
			stale = append(stale, e.UserID)
		}
	}
	if len(stale) == 0 {
		return []int64{}, nil
	}
	if err := tx.DeleteEntries(ctx, periodID, stale); err != nil {
		return nil, err
	}
	s.logger.Info("stale payroll entries removed", "period_id", periodID, "user_ids", stale)
	return stale, nil
}

func (s *Service) computeAll(ctx context.Context, period *Period, userIDs []int64) ([]*Computation, []Skip, error) {
	computed := make([]*Computation, len(userIDs))
	skips := make([]*Skip, len(userIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxWorkers)
	for i, userID := range userIDs {
		g.Go(func() error {
			c, err := s.calc.Compute(gctx, period, userID)
			switch {
			case err == nil:
				computed[i] = c
			case errors.Is(err, payrate.ErrRateNotFound):
				skips[i] = &Skip{
					UserID: userID,
					Reason: SkipNoRate,
					Detail: fmt.Sprintf("no active pay rate on %s", period.StartDate.Format(validation.DateLayout)),
				}
			case payrate.IsIntegrityError(err):
				s.logger.Error("pay rate integrity violation", "period_id", period.ID, "user_id", userID, "error", err)
				skips[i] = &Skip{UserID: userID, Reason: SkipRateConflict, Detail: err.Error()}
			default:
				return fmt.Errorf("compute entry for user %d: %w", userID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var computations []*Computation
	var skipped []Skip
	for i := range userIDs {
		if computed[i] != nil {
			computations = append(computations, computed[i])
		}
		if skips[i] != nil {
			skipped = append(skipped, *skips[i])
		}
	}
	return computations, skipped, nil
}

func (s *Service) resolveScope(ctx context.Context, period *Period, opts ProcessOptions) ([]int64, string, error) {
	// rate intervals are half-open, period dates inclusive
	from, to := period.StartDate, period.EndDate.AddDate(0, 0, 1)

	var ids []int64
	var label string
	switch {
	case len(opts.UserIDs) > 0:
		ids = append(ids, opts.UserIDs...)
		label = "users"
	case len(opts.RateTypes) > 0:
		rated, err := s.scope.Rates.UsersWithActiveRates(ctx, from, to, opts.RateTypes)
		if err != nil {
			return nil, "", err
		}
		ids = rated
		types := make([]string, len(opts.RateTypes))
		for i, t := range opts.RateTypes {
			types[i] = string(t)
		}
		label = "rate_types:" + strings.Join(types, ",")
	default:
		rated, err := s.scope.Rates.UsersWithActiveRates(ctx, from, to, nil)
		if err != nil {
			return nil, "", err
		}
		worked, err := s.scope.Work.UsersWithEntries(ctx, period.StartDate, period.EndDate)
		if err != nil {
			return nil, "", err
		}
		ids = append(rated, worked...)
		label = scopeAll
	}

	ids = uniqueSorted(ids)
	if s.scope.Users != nil {
		active, err := s.scope.Users.FilterActive(ctx, ids)
		if err != nil {
			return nil, "", err
		}
		ids = uniqueSorted(active)
	}
	return ids, label, nil
}

func (s *Service) abandon(ctx context.Context, id int64, token string) {
	if _, err := s.repo.ReleaseProcessing(context.WithoutCancel(ctx), id, token, nil); err != nil {
		s.logger.Error("failed to release processing lease", "period_id", id, "error", err)
	}
}

func (s *Service) busyOrLocked(ctx context.Context, id int64) error {
	period, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		return err
	}
	if !period.Status.Editable() {
		return &LockedError{PeriodID: id, Status: period.Status}
	}
	return ErrPeriodBusy
}

// ApprovePeriod freezes a draft period. It needs a completed run newer than
// the last date change, no conflicting rates and, unless AcceptPartial is
// set, no users skipped for lack of a rate.
func (s *Service) ApprovePeriod(ctx context.Context, actor *internal.User, id int64, opts ApproveOptions) (*Period, error) {
	if err := s.require(actor, internal.PermissionApprovePayroll); err != nil {
		return nil, err
	}

	var approved *Period
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		period, err := tx.LockPeriod(ctx, id)
		if err != nil {
			return err
		}
		if period.Status != StatusDraft {
			return &TransitionError{Action: "approve", From: period.Status}
		}

		run, err := tx.LatestRun(ctx, id)
		if err != nil {
			return err
		}
		if run == nil || run.PeriodRevision != period.DatesRevision {
			return ErrPeriodNotProcessed
		}
		conflicts := run.skippedBy(SkipRateConflict)
		noRate := run.skippedBy(SkipNoRate)
		if len(conflicts) > 0 || (len(noRate) > 0 && !opts.AcceptPartial) {
			return &SkippedUsersError{NoRate: noRate, RateConflict: conflicts}
		}

		if err := s.transition(ctx, tx, period, StatusChange{To: StatusApproved, ActorID: actor.ID, At: s.now().UTC()}, "approve"); err != nil {
			return err
		}
		if err := tx.SetEntriesStatus(ctx, id, EntryApproved); err != nil {
			return err
		}
		approved, err = tx.GetPeriod(ctx, id)
		return err
	})
	if err != nil {
		s.logger.Warn("payroll approval rejected", "period_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("payroll period approved", "period_id", id, "approved_by", actor.ID, "accept_partial", opts.AcceptPartial)
	s.publishPeriod(ctx, events.EventTypePeriodApproved, approved, actor.ID)
	return approved, nil
}

func (s *Service) MarkPeriodPaid(ctx context.Context, actor *internal.User, id int64) (*Period, error) {
	if err := s.require(actor, internal.PermissionPayPayroll); err != nil {
		return nil, err
	}

	var paid *Period
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		period, err := tx.LockPeriod(ctx, id)
		if err != nil {
			return err
		}
		if period.Status != StatusApproved {
			return &TransitionError{Action: "mark paid", From: period.Status}
		}
		if err := s.transition(ctx, tx, period, StatusChange{To: StatusPaid, ActorID: actor.ID, At: s.now().UTC()}, "mark paid"); err != nil {
			return err
		}
		if err := tx.SetEntriesStatus(ctx, id, EntryPaid); err != nil {
			return err
		}
		paid, err = tx.GetPeriod(ctx, id)
		return err
	})
	if err != nil {
		s.logger.Warn("mark paid rejected", "period_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("payroll period paid", "period_id", id, "paid_by", actor.ID)
	s.publishPeriod(ctx, events.EventTypePeriodPaid, paid, actor.ID)
	return paid, nil
}

// VoidPeriod cancels any period that is not paid. Entries are kept for audit.
func (s *Service) VoidPeriod(ctx context.Context, actor *internal.User, id int64, reason string) (*Period, error) {
	if err := s.require(actor, internal.PermissionManagePayroll); err != nil {
		return nil, err
	}
	if appErr := validation.ValidateDescription(reason); appErr != nil {
		return nil, appErr
	}

	var voided *Period
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		period, err := tx.LockPeriod(ctx, id)
		if err != nil {
			return err
		}
		if period.Status == StatusPaid || period.Status == StatusVoid {
			return &TransitionError{Action: "void", From: period.Status}
		}
		change := StatusChange{To: StatusVoid, ActorID: actor.ID, At: s.now().UTC(), Reason: reason}
		if err := s.transition(ctx, tx, period, change, "void"); err != nil {
			return err
		}
		voided, err = tx.GetPeriod(ctx, id)
		return err
	})
	if err != nil {
		s.logger.Warn("void rejected", "period_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("payroll period voided", "period_id", id, "voided_by", actor.ID)
	s.publishPeriod(ctx, events.EventTypePeriodVoided, voided, actor.ID)
	return voided, nil
}

func (s *Service) transition(ctx context.Context, tx Repository, period *Period, change StatusChange, action string) error {
	ok, err := tx.SetPeriodStatus(ctx, period.ID, period.Status, change)
	if err != nil {
		return err
	}
	if !ok {
		current, err := tx.GetPeriod(ctx, period.ID)
		if err != nil {
			return err
		}
		return &TransitionError{Action: action, From: current.Status}
	}
	return nil
}

func (s *Service) publishPeriod(ctx context.Context, eventType string, period *Period, actorID int64) {
	s.publish(ctx, events.NewPeriodEvent(eventType, period.ID, period.Name, string(period.Status),
		actorID, period.TotalAmount.StringFixed(MoneyPlaces)))
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish payroll event", "event_type", event.EventType(), "error", err)
	}
}

func uniqueSorted(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}
