package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/auth"
	"github.com/frahmantamala/timetrack-payroll/internal/payrate"
	"github.com/frahmantamala/timetrack-payroll/internal/payroll"
	"github.com/frahmantamala/timetrack-payroll/internal/project"
	"github.com/frahmantamala/timetrack-payroll/internal/transport/middleware"
	"github.com/frahmantamala/timetrack-payroll/internal/transport/swagger"
	"github.com/frahmantamala/timetrack-payroll/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/jmoiron/sqlx"
)

// Handlers groups the HTTP handlers the router mounts. Nil handlers are skipped.
type Handlers struct {
	Auth    *auth.Handler
	User    *user.Handler
	Project *project.Handler
	PayRate *payrate.Handler
	Payroll *payroll.Handler
}

// Guards gate routes before they reach the handlers.
type Guards struct {
	RBAC  *auth.RBACAuthorization
	Owner *auth.OwnerPolicy
}

type Options struct {
	AllowedOrigins  []string
	OpenAPI         *swagger.Document
	ProcessingLease time.Duration
}

func RegisterAllRoutes(router *chi.Mux, db *sqlx.DB, h Handlers, g Guards, opts Options, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, opts.ProcessingLease)

	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	router.NotFound(notFound)

	if opts.OpenAPI != nil {
		router.Handle("/openapi.yml", opts.OpenAPI)
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.Post("/logout", h.Auth.Logout)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)
			pr.Use(middleware.UserContext)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
			}
			if h.Project != nil {
				pr.Get("/projects", h.Project.GetProjects)
			}
			if h.PayRate != nil {
				payRateRoutes(pr, h.PayRate, g)
			}
			if h.Payroll != nil {
				pr.Route("/payroll", func(pr chi.Router) {
					payrollRoutes(pr, h.Payroll, g)
				})
			}
		})
	})
}

func payRateRoutes(r chi.Router, h *payrate.Handler, g Guards) {
	manage := g.RBAC.Require(internal.PermissionManagePayRates)

	r.With(manage).Post("/users/{userID}/pay-rates", h.CreateRate)
	r.With(g.Owner.RequireSelfOr(g.RBAC, "userID", internal.PermissionViewPayRates, internal.PermissionManagePayRates)).
		Get("/users/{userID}/pay-rates", h.ListRates)

	r.Route("/pay-rates/{id}", func(rr chi.Router) {
		rr.Get("/", h.GetRate)
		rr.Get("/history", h.GetHistory)
		rr.With(manage).Patch("/", h.UpdateRate)
		rr.With(manage).Post("/deactivate", h.DeactivateRate)
	})
}

func payrollRoutes(r chi.Router, h *payroll.Handler, g Guards) {
	manage := g.RBAC.Require(internal.PermissionManagePayroll)

	r.Route("/periods", func(pr chi.Router) {
		pr.With(manage).Post("/", h.CreatePeriod)
		pr.Get("/", h.ListPeriods)

		pr.Route("/{id}", func(ir chi.Router) {
			ir.Get("/", h.GetPeriod)
			ir.With(manage).Patch("/", h.UpdatePeriod)
			ir.With(manage).Delete("/", h.DeletePeriod)
			ir.With(manage).Post("/process", h.ProcessPeriod)
			ir.With(g.RBAC.Require(internal.PermissionApprovePayroll)).Post("/approve", h.ApprovePeriod)
			ir.With(g.RBAC.Require(internal.PermissionPayPayroll)).Post("/mark-paid", h.MarkPeriodPaid)
			ir.With(manage).Post("/void", h.VoidPeriod)
			ir.Get("/entries", h.ListEntries)
			ir.Get("/summary", h.GetSummary)
		})
	})

	r.Route("/entries/{id}", func(er chi.Router) {
		er.Get("/", h.GetEntry)
		er.Get("/payslip", h.GetPayslip)
		er.Get("/adjustments", h.ListAdjustments)
		er.With(manage).Post("/adjustments", h.AddAdjustment)
	})

	r.With(manage).Patch("/adjustments/{id}", h.UpdateAdjustment)
	r.With(manage).Delete("/adjustments/{id}", h.RemoveAdjustment)

	r.With(g.Owner.RequireSelfOr(g.RBAC, "userID", internal.PermissionViewPayrollReports)).
		Get("/users/{userID}/report", h.GetUserReport)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	status, body := internal.NewNotFoundError("route not found", "ROUTE_NOT_FOUND").ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
