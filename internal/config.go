package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Payroll       PayrollConfig       `mapstructure:"payroll"`
	Notifier      NotifierConfig      `mapstructure:"notifier"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	JWTSecret            string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m,max=1h"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" validate:"required,min=1h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

type PayrollConfig struct {
	Timezone          string         `mapstructure:"timezone"`
	Overtime          OvertimeConfig `mapstructure:"overtime"`
	StandardDayHours  float64        `mapstructure:"standard_day_hours"`
	StandardWeekHours float64        `mapstructure:"standard_week_hours"`
	MaxWorkers        int            `mapstructure:"max_workers"`
	ProcessingLease   time.Duration  `mapstructure:"processing_lease"`
	AdjustmentRetries int            `mapstructure:"adjustment_retries"`
}

type OvertimeConfig struct {
	Policy          string  `mapstructure:"policy" validate:"oneof=none daily weekly daily_weekly"`
	DailyThreshold  float64 `mapstructure:"daily_threshold"`
	WeeklyThreshold float64 `mapstructure:"weekly_threshold"`
}

type NotifierConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	MaxWorkers int           `mapstructure:"max_workers"`
	QueueSize  int           `mapstructure:"queue_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string        `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string        `mapstructure:"format" validate:"required,oneof=json text"`
	File   LogFileConfig `mapstructure:"file"`
}

type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ApplyDefaults fills zero values left by a partial config file.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.OpenAPIPath == "" {
		c.Server.OpenAPIPath = "api/openapi.yml"
	}
	if c.Security.AccessTokenDuration == 0 {
		c.Security.AccessTokenDuration = 15 * time.Minute
	}
	if c.Security.RefreshTokenDuration == 0 {
		c.Security.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}
	c.Payroll.ApplyDefaults()
	if c.Notifier.MaxWorkers == 0 {
		c.Notifier.MaxWorkers = 2
	}
	if c.Notifier.QueueSize == 0 {
		c.Notifier.QueueSize = 100
	}
	if c.Notifier.Timeout == 0 {
		c.Notifier.Timeout = 10 * time.Second
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
}

func (c *PayrollConfig) ApplyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Overtime.Policy == "" {
		c.Overtime.Policy = "daily"
	}
	if c.Overtime.DailyThreshold == 0 {
		c.Overtime.DailyThreshold = 8
	}
	if c.Overtime.WeeklyThreshold == 0 {
		c.Overtime.WeeklyThreshold = 40
	}
	if c.StandardDayHours == 0 {
		c.StandardDayHours = 8
	}
	if c.StandardWeekHours == 0 {
		c.StandardWeekHours = 40
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 4
	}
	if c.ProcessingLease == 0 {
		c.ProcessingLease = 15 * time.Minute
	}
	if c.AdjustmentRetries == 0 {
		c.AdjustmentRetries = 3
	}
}

// Location resolves the payroll timezone used to bucket time entries into days and weeks.
func (c *PayrollConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c *PayrollConfig) DailyThresholdHours() decimal.Decimal {
	return decimal.NewFromFloat(c.Overtime.DailyThreshold)
}

func (c *PayrollConfig) WeeklyThresholdHours() decimal.Decimal {
	return decimal.NewFromFloat(c.Overtime.WeeklyThreshold)
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

// LoadConfigFromEnv builds the configuration purely from environment variables (container deployments).
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_SERVER_PORT", 8080),
			BaseURL:           getEnv("HTTP_SERVER_BASE_URL", ""),
			AllowedOrigins:    getEnv("HTTP_SERVER_ALLOWED_ORIGINS", "*"),
			OpenAPIPath:       getEnv("HTTP_SERVER_OPENAPI_PATH", "api/openapi.yml"),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_SERVER_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_SERVER_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_SERVER_WRITE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DATABASE_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_SOURCE", ""),
		},
		Security: SecurityConfig{
			JWTSecret:            getEnv("SECURITY_JWT_SECRET", ""),
			AccessTokenDuration:  getEnvAsDuration("SECURITY_ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration: getEnvAsDuration("SECURITY_REFRESH_TOKEN_DURATION", 7*24*time.Hour),
			BCryptCost:           getEnvAsInt("SECURITY_BCRYPT_COST", 12),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
				File: LogFileConfig{
					Path:       getEnv("LOG_FILE_PATH", ""),
					MaxSizeMB:  getEnvAsInt("LOG_FILE_MAX_SIZE_MB", 100),
					MaxBackups: getEnvAsInt("LOG_FILE_MAX_BACKUPS", 5),
					MaxAgeDays: getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", 28),
					Compress:   getEnvAsBool("LOG_FILE_COMPRESS", true),
				},
			},
		},
		Payroll: PayrollConfig{
			Timezone: getEnv("PAYROLL_TIMEZONE", "UTC"),
			Overtime: OvertimeConfig{
				Policy:          getEnv("PAYROLL_OVERTIME_POLICY", "daily"),
				DailyThreshold:  getEnvAsFloat("PAYROLL_OVERTIME_DAILY_THRESHOLD", 8),
				WeeklyThreshold: getEnvAsFloat("PAYROLL_OVERTIME_WEEKLY_THRESHOLD", 40),
			},
			StandardDayHours:  getEnvAsFloat("PAYROLL_STANDARD_DAY_HOURS", 8),
			StandardWeekHours: getEnvAsFloat("PAYROLL_STANDARD_WEEK_HOURS", 40),
			MaxWorkers:        getEnvAsInt("PAYROLL_MAX_WORKERS", 4),
			ProcessingLease:   getEnvAsDuration("PAYROLL_PROCESSING_LEASE", 15*time.Minute),
			AdjustmentRetries: getEnvAsInt("PAYROLL_ADJUSTMENT_RETRIES", 3),
		},
		Notifier: NotifierConfig{
			WebhookURL: getEnv("NOTIFIER_WEBHOOK_URL", ""),
			MaxWorkers: getEnvAsInt("NOTIFIER_MAX_WORKERS", 2),
			QueueSize:  getEnvAsInt("NOTIFIER_QUEUE_SIZE", 100),
			Timeout:    getEnvAsDuration("NOTIFIER_TIMEOUT", 10*time.Second),
		},
	}
	return cfg
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Payroll.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payroll config: %v", err))
	}

	if err := c.Notifier.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("notifier config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

// Origins splits the comma separated allowed origins list.
func (c *ServerConfig) Origins() []string {
	if c.AllowedOrigins == "" {
		return []string{"*"}
	}
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters")
	}
	if c.BCryptCost != 0 && (c.BCryptCost < 10 || c.BCryptCost > 15) {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	return nil
}

func (c *PayrollConfig) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	switch c.Overtime.Policy {
	case "none", "daily", "weekly", "daily_weekly":
	default:
		return fmt.Errorf("unknown overtime policy %q", c.Overtime.Policy)
	}
	if c.Overtime.DailyThreshold <= 0 || c.Overtime.WeeklyThreshold <= 0 {
		return errors.New("overtime thresholds must be positive")
	}
	if c.StandardDayHours <= 0 || c.StandardWeekHours <= 0 {
		return errors.New("standard_day_hours and standard_week_hours must be positive")
	}
	if c.MaxWorkers < 1 {
		return errors.New("max_workers must be at least 1")
	}
	if c.AdjustmentRetries < 1 {
		return errors.New("adjustment_retries must be at least 1")
	}
	return nil
}

func (c *NotifierConfig) Validate() error {
	if c.WebhookURL == "" {
		return nil
	}
	u, err := url.Parse(c.WebhookURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid webhook_url %q", c.WebhookURL)
	}
	if c.MaxWorkers < 1 {
		return errors.New("max_workers must be at least 1")
	}
	return nil
}
