package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/transport"
	"github.com/frahmantamala/timetrack-payroll/pkg/logger"
)

type ServiceAPI interface {
	CreatePeriod(ctx context.Context, actor *internal.User, dto CreatePeriodDTO) (*Period, error)
	UpdatePeriod(ctx context.Context, actor *internal.User, id int64, dto UpdatePeriodDTO) (*Period, error)
	DeletePeriod(ctx context.Context, actor *internal.User, id int64) error
	GetPeriod(ctx context.Context, actor *internal.User, id int64) (*Period, error)
	ListPeriods(ctx context.Context, actor *internal.User, filter PeriodFilter) ([]*Period, error)
	ProcessPeriod(ctx context.Context, actor *internal.User, id int64, opts ProcessOptions) (*ProcessResult, error)
	ApprovePeriod(ctx context.Context, actor *internal.User, id int64, opts ApproveOptions) (*Period, error)
	MarkPeriodPaid(ctx context.Context, actor *internal.User, id int64) (*Period, error)
	VoidPeriod(ctx context.Context, actor *internal.User, id int64, reason string) (*Period, error)
	ListEntries(ctx context.Context, actor *internal.User, periodID int64) ([]*Entry, error)
	GetEntry(ctx context.Context, actor *internal.User, id int64) (*Entry, error)
}

type LedgerAPI interface {
	Add(ctx context.Context, actor *internal.User, entryID int64, dto AdjustmentDTO) (*Adjustment, error)
	Update(ctx context.Context, actor *internal.User, id int64, dto UpdateAdjustmentDTO) (*Adjustment, error)
	Remove(ctx context.Context, actor *internal.User, id int64) error
	ListFor(ctx context.Context, actor *internal.User, entryID int64) ([]*Adjustment, error)
}

type ReportAPI interface {
	GetSummary(ctx context.Context, actor *internal.User, periodID int64) (*SummaryReport, error)
	GetUserReport(ctx context.Context, actor *internal.User, userID int64, periodID *int64) ([]*UserReport, error)
	RenderPayslip(ctx context.Context, actor *internal.User, entryID int64) ([]byte, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Ledger  LedgerAPI
	Reports ReportAPI
}

func NewHandler(service ServiceAPI, ledger LedgerAPI, reports ReportAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
		Ledger:      ledger,
		Reports:     reports,
	}
}

// withID resolves the actor and the named id parameter, writing the error response itself.
func (h *Handler) withID(w http.ResponseWriter, r *http.Request, name string) (*internal.User, int64, bool) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return nil, 0, false
	}
	id, err := h.IDParam(r, name)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return nil, 0, false
	}
	return actor, id, true
}

// decodeOptional decodes a body only when one was sent.
func (h *Handler) decodeOptional(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return h.DecodeJSON(r, dst)
}

// CreatePeriod handles POST /payroll/periods
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto CreatePeriodDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	period, err := h.Service.CreatePeriod(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, period)
}

// ListPeriods handles GET /payroll/periods?status=&limit=&offset=
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := PeriodFilter{Status: PeriodStatus(query.Get("status"))}
	if v := query.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := query.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	periods, err := h.Service.ListPeriods(r.Context(), actor, filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"periods": periods})
}

// GetPeriod handles GET /payroll/periods/{id}
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	period, err := h.Service.GetPeriod(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, period)
}

// UpdatePeriod handles PATCH /payroll/periods/{id}
func (h *Handler) UpdatePeriod(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	var dto UpdatePeriodDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	period, err := h.Service.UpdatePeriod(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, period)
}

// DeletePeriod handles DELETE /payroll/periods/{id}
func (h *Handler) DeletePeriod(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.DeletePeriod(r.Context(), actor, id); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProcessPeriod handles POST /payroll/periods/{id}/process
func (h *Handler) ProcessPeriod(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	var dto ProcessPeriodDTO
	if err := h.decodeOptional(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	opts, err := dto.ToOptions()
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	result, err := h.Service.ProcessPeriod(r.Context(), actor, id, opts)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

// ApprovePeriod handles POST /payroll/periods/{id}/approve
func (h *Handler) ApprovePeriod(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	var dto ApprovePeriodDTO
	if err := h.decodeOptional(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	period, err := h.Service.ApprovePeriod(r.Context(), actor, id, ApproveOptions{AcceptPartial: dto.AcceptPartial})
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, period)
}

// MarkPeriodPaid handles POST /payroll/periods/{id}/mark-paid
func (h *Handler) MarkPeriodPaid(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	period, err := h.Service.MarkPeriodPaid(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, period)
}

// VoidPeriod handles POST /payroll/periods/{id}/void
func (h *Handler) VoidPeriod(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	var dto VoidPeriodDTO
	if err := h.decodeOptional(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	period, err := h.Service.VoidPeriod(r.Context(), actor, id, dto.Reason)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, period)
}

// ListEntries handles GET /payroll/periods/{id}/entries
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.Service.ListEntries(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// GetSummary handles GET /payroll/periods/{id}/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	summary, err := h.Reports.GetSummary(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, summary)
}

// GetEntry handles GET /payroll/entries/{id}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	entry, err := h.Service.GetEntry(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, entry)
}

// GetPayslip handles GET /payroll/entries/{id}/payslip
func (h *Handler) GetPayslip(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	pdf, err := h.Reports.RenderPayslip(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"payslip-%d.pdf\"", id))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		h.Logger.Error("failed to write payslip", "entry_id", id, "error", err)
	}
}

// ListAdjustments handles GET /payroll/entries/{id}/adjustments
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	adjustments, err := h.Ledger.ListFor(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"adjustments": adjustments})
}

// AddAdjustment handles POST /payroll/entries/{id}/adjustments
func (h *Handler) AddAdjustment(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	var dto AdjustmentDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	adjustment, err := h.Ledger.Add(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, adjustment)
}

// UpdateAdjustment handles PATCH /payroll/adjustments/{id}
func (h *Handler) UpdateAdjustment(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	var dto UpdateAdjustmentDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	adjustment, err := h.Ledger.Update(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, adjustment)
}

// RemoveAdjustment handles DELETE /payroll/adjustments/{id}
func (h *Handler) RemoveAdjustment(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.withID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Ledger.Remove(r.Context(), actor, id); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUserReport handles GET /payroll/users/{userID}/report?period_id=
func (h *Handler) GetUserReport(w http.ResponseWriter, r *http.Request) {
	actor, userID, ok := h.withID(w, r, "userID")
	if !ok {
		return
	}

	var periodID *int64
	if v := r.URL.Query().Get("period_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			h.HandleServiceError(w, r, internal.NewValidationFieldError("period_id", "invalid period_id", internal.ErrCodeValidationFailed))
			return
		}
		periodID = &id
	}

	reports, err := h.Reports.GetUserReport(r.Context(), actor, userID, periodID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}
