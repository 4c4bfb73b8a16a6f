package payrate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/transport"
	"github.com/frahmantamala/timetrack-payroll/pkg/logger"
)

type ServiceAPI interface {
	CreateRate(ctx context.Context, actor *internal.User, userID int64, dto CreateRateDTO) (*PayRate, error)
	UpdateRate(ctx context.Context, actor *internal.User, id int64, dto UpdateRateDTO) (*PayRate, error)
	DeactivateRate(ctx context.Context, actor *internal.User, id int64, reason string) (*PayRate, error)
	GetRate(ctx context.Context, actor *internal.User, id int64) (*PayRate, error)
	ListRates(ctx context.Context, actor *internal.User, userID int64) ([]*PayRate, error)
	GetHistory(ctx context.Context, actor *internal.User, rateID int64) ([]*HistoryEntry, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// CreateRate handles POST /users/{userID}/pay-rates
func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	userID, err := h.IDParam(r, "userID")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto CreateRateDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	rate, err := h.Service.CreateRate(r.Context(), actor, userID, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, rate)
}

// ListRates handles GET /users/{userID}/pay-rates
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	userID, err := h.IDParam(r, "userID")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	rates, err := h.Service.ListRates(r.Context(), actor, userID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"pay_rates": rates})
}

// GetRate handles GET /pay-rates/{id}
func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	rate, err := h.Service.GetRate(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rate)
}

// UpdateRate handles PATCH /pay-rates/{id}
func (h *Handler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto UpdateRateDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	rate, err := h.Service.UpdateRate(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rate)
}

// DeactivateRate handles POST /pay-rates/{id}/deactivate
func (h *Handler) DeactivateRate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto DeactivateRateDTO
	if r.ContentLength != 0 {
		if err := h.DecodeJSON(r, &dto); err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
	}

	rate, err := h.Service.DeactivateRate(r.Context(), actor, id, dto.Reason)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rate)
}

// GetHistory handles GET /pay-rates/{id}/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	history, err := h.Service.GetHistory(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}
