package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/auth"
	authPostgres "github.com/frahmantamala/timetrack-payroll/internal/auth/postgres"
	"github.com/frahmantamala/timetrack-payroll/internal/core/events"
	"github.com/frahmantamala/timetrack-payroll/internal/notifier"
	"github.com/frahmantamala/timetrack-payroll/internal/payrate"
	payratePostgres "github.com/frahmantamala/timetrack-payroll/internal/payrate/postgres"
	"github.com/frahmantamala/timetrack-payroll/internal/payroll"
	payrollPostgres "github.com/frahmantamala/timetrack-payroll/internal/payroll/postgres"
	"github.com/frahmantamala/timetrack-payroll/internal/project"
	projectPostgres "github.com/frahmantamala/timetrack-payroll/internal/project/postgres"
	"github.com/frahmantamala/timetrack-payroll/internal/timesheet"
	timesheetPostgres "github.com/frahmantamala/timetrack-payroll/internal/timesheet/postgres"
	"github.com/frahmantamala/timetrack-payroll/internal/transport/rest"
	"github.com/frahmantamala/timetrack-payroll/internal/transport/swagger"
	"github.com/frahmantamala/timetrack-payroll/internal/user"
	userPostgres "github.com/frahmantamala/timetrack-payroll/internal/user/postgres"
	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

// Dependencies is the wired application shared by the server and the CLI commands.
type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Logger   *slog.Logger
	EventBus *events.EventBus
	Notifier *notifier.Notifier

	Checker  *auth.PermissionChecker
	Auth     *auth.Service
	Users    *user.Service
	Projects *project.Service
	PayRates *payrate.Service
	Payroll  *payroll.Service
	Ledger   *payroll.Ledger
	Reports  *payroll.ReportAssembler
}

func (d *Dependencies) Close() {
	d.EventBus.Close()
	d.Notifier.Drain()
	d.Notifier.Shutdown()
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	router, err := setupRoutes(deps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.Close()
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) (*chi.Mux, error) {
	doc, err := swagger.Load(context.Background(), deps.Config.Server.OpenAPIPath)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, deps.DB, rest.Handlers{
		Auth:    auth.NewHandler(deps.Auth),
		User:    user.NewHandler(deps.Users),
		Project: project.NewHandler(deps.Projects),
		PayRate: payrate.NewHandler(deps.PayRates),
		Payroll: payroll.NewHandler(deps.Payroll, deps.Ledger, deps.Reports),
	}, rest.Guards{
		RBAC:  auth.NewRBACAuthorization(deps.Checker, deps.Logger),
		Owner: auth.NewOwnerPolicy(deps.Checker),
	}, rest.Options{
		AllowedOrigins:  deps.Config.Server.Origins(),
		OpenAPI:         doc,
		ProcessingLease: deps.Config.Payroll.ProcessingLease,
	}, deps.Logger)
	return router, nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := setupLogger(config)

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	gdb, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	loc, err := config.Payroll.Location()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("invalid payroll timezone: %w", err)
	}
	policy, err := timesheet.NewOvertimePolicy(config.Payroll)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	bus := events.NewEventBus(log)
	notify := notifier.New(notifier.Config{
		WebhookURL: config.Notifier.WebhookURL,
		MaxWorkers: config.Notifier.MaxWorkers,
		QueueSize:  config.Notifier.QueueSize,
		Timeout:    config.Notifier.Timeout,
	}, log)
	notify.Subscribe(bus)

	checker := auth.NewPermissionChecker()
	tokens := auth.NewJWTTokenGenerator(config.Security.JWTSecret, config.Security.AccessTokenDuration, config.Security.RefreshTokenDuration)
	authService := auth.NewService(authPostgres.NewRepository(gdb), tokens, config.Security.BCryptCost, log)

	users := user.NewService(userPostgres.NewUserRepository(gdb), log)
	projects := project.NewService(projectPostgres.NewProjectRepository(gdb), log)

	rateRepo := payratePostgres.NewPayRateRepository(gdb)
	rates := payrate.NewService(rateRepo, projects, checker, log)

	aggregator := timesheet.NewAggregator(timesheetPostgres.NewTimeEntrySource(db), policy, loc, log)
	strategies := payrate.NewStrategies(
		decimal.NewFromFloat(config.Payroll.StandardDayHours),
		decimal.NewFromFloat(config.Payroll.StandardWeekHours),
	)
	calc := payroll.NewCalculator(payrate.NewResolver(rateRepo), strategies, aggregator)

	payrollRepo := payrollPostgres.NewPayrollRepository(gdb)
	payrollService := payroll.NewService(payrollRepo, calc, payroll.Scope{
		Rates: rates,
		Work:  aggregator,
		Users: users,
	}, checker, config.Payroll, log).WithPublisher(bus)

	return &Dependencies{
		Config:   config,
		DB:       db,
		Gorm:     gdb,
		Logger:   log,
		EventBus: bus,
		Notifier: notify,
		Checker:  checker,
		Auth:     authService,
		Users:    users,
		Projects: projects,
		PayRates: rates,
		Payroll:  payrollService,
		Ledger:   payroll.NewLedger(payrollRepo, checker, config.Payroll.AdjustmentRetries, log),
		Reports:  payroll.NewReportAssembler(payrollRepo, checker, log).WithNames(users),
	}, nil
}

// initDB opens the pgx-backed sqlx pool. gorm shares the same *sql.DB.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	db, err := sqlx.Open(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}
