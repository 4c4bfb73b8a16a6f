package cmd

import (
	"context"
	"fmt"

	"github.com/frahmantamala/timetrack-payroll/internal/core/events"
	"github.com/frahmantamala/timetrack-payroll/internal/notifier"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish payroll lifecycle events, e.g. to check a notifier webhook`,
}

var publishEventCmd = &cobra.Command{
	Use:       "publish [event-type]",
	Short:     "Publish a sample payroll lifecycle event",
	Long:      `Publish a sample event on a local bus with the configured webhook notifier attached`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: events.PeriodEventTypes,
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(args[0])
	},
}

var (
	eventPeriodID int64
	eventWebhook  string
)

func publishTestEvent(eventType string) error {
	known := false
	for _, t := range events.PeriodEventTypes {
		known = known || t == eventType
	}
	if !known {
		return fmt.Errorf("unknown event type %q, want one of %v", eventType, events.PeriodEventTypes)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := setupLogger(cfg)

	webhook := cfg.Notifier.WebhookURL
	if eventWebhook != "" {
		webhook = eventWebhook
	}
	if webhook == "" {
		return fmt.Errorf("no webhook configured, set notifier.webhook_url or --webhook")
	}

	bus := events.NewEventBus(log)
	notify := notifier.New(notifier.Config{WebhookURL: webhook, MaxWorkers: 1, Timeout: cfg.Notifier.Timeout}, log)
	notify.Subscribe(bus)

	event := events.NewPeriodEvent(eventType, eventPeriodID, "sample period", "draft", 0, "0.00")
	log.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())

	if err := bus.PublishSync(context.Background(), event); err != nil {
		return err
	}
	notify.Drain()
	notify.Shutdown()
	log.Info("test event published")
	return nil
}

func init() {
	publishEventCmd.Flags().Int64Var(&eventPeriodID, "period", 1, "period id carried by the event")
	publishEventCmd.Flags().StringVar(&eventWebhook, "webhook", "", "webhook url (overrides config)")

	eventCmd.AddCommand(publishEventCmd)
	rootCmd.AddCommand(eventCmd)
}
