package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// HealthHandler reports database reachability and whether any payroll run
// has held its processing lease for longer than allowed.
type HealthHandler struct {
	db    *sqlx.DB
	lease time.Duration
	now   func() time.Time
}

func NewHealthHandler(db *sqlx.DB, lease time.Duration) *HealthHandler {
	return &HealthHandler{db: db, lease: lease, now: time.Now}
}

func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
}

func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:     HealthHealthy,
		CheckedAt:  h.now().UTC(),
		Components: map[string]CheckEntry{},
	}

	db := h.checkDatabase(ctx)
	resp.Components["database"] = db
	if db.Status == HealthHealthy {
		resp.Components["payroll"] = h.checkPayroll(ctx)
	}
	for _, c := range resp.Components {
		switch {
		case c.Status == HealthUnhealthy:
			resp.Status = HealthUnhealthy
		case c.Status == HealthDegraded && resp.Status == HealthHealthy:
			resp.Status = HealthDegraded
		}
	}

	statusCode := http.StatusOK
	if resp.Status == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckEntry {
	start := time.Now()
	entry := CheckEntry{Status: HealthHealthy}
	if err := h.db.PingContext(ctx); err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	entry.DurationMs = time.Since(start).Milliseconds()
	return entry
}

// checkPayroll flags periods whose processing lease has run out; they block
// approval until someone reprocesses them.
func (h *HealthHandler) checkPayroll(ctx context.Context) CheckEntry {
	start := time.Now()
	entry := CheckEntry{Status: HealthHealthy}

	var started []sql.NullTime
	err := h.db.SelectContext(ctx, &started,
		`SELECT processing_started_at FROM payroll_periods WHERE status = 'processing'`)
	if err != nil {
		entry.Status = HealthDegraded
		entry.Message = "payroll periods unavailable"
	} else {
		stale := 0
		for _, t := range started {
			if !t.Valid || h.now().Sub(t.Time) > h.lease {
				stale++
			}
		}
		entry.Details = map[string]any{"periods_processing": len(started), "stale_leases": stale}
		if stale > 0 {
			entry.Status = HealthDegraded
			entry.Message = "payroll processing lease expired"
		}
	}
	entry.DurationMs = time.Since(start).Milliseconds()
	return entry
}
