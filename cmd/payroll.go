package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/payroll"
	"github.com/spf13/cobra"
)

var payrollCmd = &cobra.Command{
	Use:   "payroll",
	Short: "Payroll period operations",
	Long:  `Run payroll operations without the HTTP server, e.g. from a scheduler.`,
}

var processPeriodCmd = &cobra.Command{
	Use:   "process [period-id]",
	Short: "Compute the entries of a draft period",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPeriod(args[0], func(ctx context.Context, deps *Dependencies, actor *internal.User, id int64) (interface{}, error) {
			opts, err := payroll.ProcessPeriodDTO{UserIDs: processUserIDs, RateTypes: processRateTypes}.ToOptions()
			if err != nil {
				return nil, err
			}
			return deps.Payroll.ProcessPeriod(ctx, actor, id, opts)
		})
	},
}

var summaryPeriodCmd = &cobra.Command{
	Use:   "summary [period-id]",
	Short: "Print the summary report of a period",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPeriod(args[0], func(ctx context.Context, deps *Dependencies, actor *internal.User, id int64) (interface{}, error) {
			return deps.Reports.GetSummary(ctx, actor, id)
		})
	},
}

var (
	processUserIDs   []int64
	processRateTypes []string
	actorID          int64
)

// withPeriod runs fn as an administrator acting under --actor and prints its result as JSON.
func withPeriod(rawID string, fn func(context.Context, *Dependencies, *internal.User, int64) (interface{}, error)) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid period id %q", rawID)
	}

	deps, err := initializeDependencies()
	if err != nil {
		return err
	}
	defer deps.Close()

	actor := &internal.User{ID: actorID, Permissions: []string{internal.PermissionAdmin}}
	result, err := fn(context.Background(), deps, actor, id)
	if err != nil {
		deps.Logger.Error("payroll command failed", "period_id", id, "error", err)
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func init() {
	payrollCmd.PersistentFlags().Int64Var(&actorID, "actor", 0, "user id recorded as the actor")
	processPeriodCmd.Flags().Int64SliceVar(&processUserIDs, "users", nil, "only process these user ids")
	processPeriodCmd.Flags().StringSliceVar(&processRateTypes, "rate-types", nil, "only process users holding these rate types")

	payrollCmd.AddCommand(processPeriodCmd)
	payrollCmd.AddCommand(summaryPeriodCmd)

	rootCmd.AddCommand(payrollCmd)
}
