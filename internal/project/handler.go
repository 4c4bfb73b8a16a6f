package project

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/timetrack-payroll/internal/transport"
	"github.com/frahmantamala/timetrack-payroll/pkg/logger"
)

type ServiceAPI interface {
	GetActiveProjects(ctx context.Context) ([]ProjectResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// GetProjects handles GET /projects
func (h *Handler) GetProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Service.GetActiveProjects(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ProjectsResponse{
		Projects: projects,
	})
}
