package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit"
	"github.com/frahmantamala/timetrack-payroll/internal"
	payrateDatamodel "github.com/frahmantamala/timetrack-payroll/internal/core/datamodel/payrate"
	projectDatamodel "github.com/frahmantamala/timetrack-payroll/internal/core/datamodel/project"
	timesheetDatamodel "github.com/frahmantamala/timetrack-payroll/internal/core/datamodel/timesheet"
	userDatamodel "github.com/frahmantamala/timetrack-payroll/internal/core/datamodel/user"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	clearData     bool
	seedEmployees int
	seedDays      int
	seedValue     int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed users, permissions, projects, pay rates and finished time entries for development and testing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer deps.Close()

		summary, err := seedData(cmd.Context(), deps.Gorm, seedOptions{
			Clear:      clearData,
			Employees:  seedEmployees,
			Days:       seedDays,
			Seed:       seedValue,
			BCryptCost: deps.Config.Security.BCryptCost,
			Now:        time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		deps.Logger.Info("seed complete",
			"users", summary.Users,
			"projects", summary.Projects,
			"pay_rates", summary.PayRates,
			"time_entries", summary.TimeEntries)
		fmt.Println("Seeded accounts use the password:", seedPassword)
		return nil
	},
}

const seedPassword = "password"

type seedOptions struct {
	Clear      bool
	Employees  int
	Days       int
	Seed       int64
	BCryptCost int
	Now        time.Time
}

type seedSummary struct {
	Users       int
	Projects    int
	PayRates    int
	TimeEntries int
}

type seedAccount struct {
	Email       string
	Name        string
	Permissions []string
}

// fixed accounts, one per payroll role
var seedAccounts = []seedAccount{
	{Email: "admin@mail.com", Name: "Payroll Admin", Permissions: []string{internal.PermissionAdmin}},
	{Email: "manager@mail.com", Name: "Payroll Manager", Permissions: []string{
		internal.PermissionManagePayroll, internal.PermissionManagePayRates,
		internal.PermissionViewPayRates, internal.PermissionViewPayrollReports,
	}},
	{Email: "approver@mail.com", Name: "Finance Approver", Permissions: []string{
		internal.PermissionApprovePayroll, internal.PermissionPayPayroll, internal.PermissionViewPayrollReports,
	}},
}

func seedData(ctx context.Context, db *gorm.DB, opts seedOptions) (seedSummary, error) {
	var summary seedSummary
	if opts.Seed != 0 {
		gofakeit.Seed(opts.Seed)
	} else {
		gofakeit.Seed(opts.Now.UnixNano())
	}
	cost := opts.BCryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), cost)
	if err != nil {
		return summary, err
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if opts.Clear {
			if err := clearSeedData(tx); err != nil {
				return err
			}
		}

		permIDs := make(map[string]int64, len(internal.AllPermissions))
		for _, name := range internal.AllPermissions {
			p := userDatamodel.Permission{Name: name, Description: name}
			if err := tx.Where(userDatamodel.Permission{Name: name}).FirstOrCreate(&p).Error; err != nil {
				return fmt.Errorf("failed to seed permission %s: %w", name, err)
			}
			permIDs[name] = p.ID
		}

		for _, acc := range seedAccounts {
			u, created, err := ensureUser(tx, acc.Email, acc.Name, string(hash))
			if err != nil {
				return err
			}
			if created {
				summary.Users++
			}
			for _, perm := range acc.Permissions {
				grant := userDatamodel.UserPermission{UserID: u.ID, PermissionID: permIDs[perm]}
				if err := tx.Where(grant).FirstOrCreate(&grant).Error; err != nil {
					return fmt.Errorf("failed to grant %s to %s: %w", perm, acc.Email, err)
				}
			}
		}

		projects := make([]projectDatamodel.Project, 0, 3)
		for i := 0; i < 3; i++ {
			p := projectDatamodel.Project{
				Name:        fmt.Sprintf("%s %d", gofakeit.Company(), i+1),
				Description: gofakeit.Sentence(6),
				IsActive:    true,
			}
			if err := tx.Create(&p).Error; err != nil {
				return fmt.Errorf("failed to seed project: %w", err)
			}
			projects = append(projects, p)
			summary.Projects++
		}

		yearStart := time.Date(opts.Now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < opts.Employees; i++ {
			name := gofakeit.Name()
			email := fmt.Sprintf("employee%d@mail.com", i+1)
			u, created, err := ensureUser(tx, email, name, string(hash))
			if err != nil {
				return err
			}
			if created {
				summary.Users++
			}

			rate := payrateDatamodel.PayRate{
				UserID:             u.ID,
				RateType:           "hourly",
				BaseRate:           decimal.NewFromInt(int64(gofakeit.Number(15, 60))),
				OvertimeMultiplier: decimal.RequireFromString("1.5"),
				Currency:           "USD",
				EffectiveFrom:      yearStart,
				IsActive:           true,
			}
			if err := tx.Create(&rate).Error; err != nil {
				return fmt.Errorf("failed to seed pay rate for %s: %w", email, err)
			}
			summary.PayRates++

			n, err := seedTimeEntries(tx, u.ID, projects, opts.Now, opts.Days)
			if err != nil {
				return err
			}
			summary.TimeEntries += n
		}
		return nil
	})
	return summary, err
}

func ensureUser(tx *gorm.DB, email, name, hash string) (*userDatamodel.User, bool, error) {
	var u userDatamodel.User
	err := tx.Where("email = ?", email).First(&u).Error
	if err == nil {
		return &u, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	u = userDatamodel.User{Email: email, Name: name, PasswordHash: hash, IsActive: true}
	if err := tx.Create(&u).Error; err != nil {
		return nil, false, fmt.Errorf("failed to seed user %s: %w", email, err)
	}
	return &u, true, nil
}

// seedTimeEntries writes one finished entry per weekday of the last days days.
func seedTimeEntries(tx *gorm.DB, userID int64, projects []projectDatamodel.Project, now time.Time, days int) (int, error) {
	count := 0
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for d := days; d >= 1; d-- {
		day := today.AddDate(0, 0, -d)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		start := day.Add(time.Duration(gofakeit.Number(7, 10)) * time.Hour)
		seconds := int64(gofakeit.Number(6*3600, 10*3600))
		end := start.Add(time.Duration(seconds) * time.Second)
		project := projects[gofakeit.Number(0, len(projects)-1)]

		entry := timesheetDatamodel.TimeEntry{
			UserID:      userID,
			ProjectID:   &project.ID,
			Description: gofakeit.Sentence(4),
			StartTime:   start,
			EndTime:     &end,
			Duration:    seconds,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return count, fmt.Errorf("failed to seed time entry: %w", err)
		}
		count++
	}
	return count, nil
}

func clearSeedData(tx *gorm.DB) error {
	for _, table := range []string{
		"payroll_run_skips", "payroll_runs", "payroll_adjustments", "payroll_entries", "payroll_periods",
		"pay_rate_history", "pay_rates", "time_entries", "projects",
	} {
		if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing payroll, rate, project and time data before seeding")
	seedCmd.Flags().IntVar(&seedEmployees, "employees", 5, "number of fake employees")
	seedCmd.Flags().IntVar(&seedDays, "days", 14, "days of time entries per employee")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 0, "faker seed for reproducible data")
}
