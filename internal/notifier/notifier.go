package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal/core/events"
)

type Job struct {
	EventID   string
	EventType string
	Body      []byte
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, deliver func(Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker delivering event", "worker_id", w.ID, "event_id", job.EventID)
				deliver(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type Config struct {
	WebhookURL string
	MaxWorkers int
	QueueSize  int
	Timeout    time.Duration
}

// Notifier POSTs payroll lifecycle events to a webhook. Delivery is
// fire-and-forget: failures are logged and never reach the publisher.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger

	jobQueue   chan Job
	workerPool chan chan Job
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	pending    sync.WaitGroup
	once       sync.Once
}

func New(config Config, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Notifier{
		webhookURL: config.WebhookURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan Job, queueSize),
		workerPool: make(chan chan Job, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

// Subscribe registers the notifier for every payroll lifecycle event and
// starts the workers. It does nothing when no webhook is configured.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	if !n.Enabled() {
		n.logger.Info("payroll notifier disabled, no webhook_url configured")
		return
	}
	n.start()
	bus.SubscribeAll(n.HandleEvent, events.PeriodEventTypes...)
}

func (n *Notifier) start() {
	n.once.Do(func() {
		for i := 0; i < n.maxWorkers; i++ {
			NewWorker(i, n.workerPool, n.logger).Start(n.ctx, &n.wg, n.deliver)
		}

		n.wg.Add(1)
		go n.dispatch()

		n.logger.Info("payroll notifier started",
			"max_workers", n.maxWorkers,
			"queue_size", cap(n.jobQueue))
	})
}

func (n *Notifier) dispatch() {
	defer n.wg.Done()

	for {
		select {
		case job := <-n.jobQueue:
			select {
			case jobChannel := <-n.workerPool:
				select {
				case jobChannel <- job:
				case <-n.ctx.Done():
					return
				}
			case <-n.ctx.Done():
				return
			}
		case <-n.ctx.Done():
			n.logger.Info("notifier dispatcher shutting down", "dropped", len(n.jobQueue))
			return
		}
	}
}

// HandleEvent is an events.Handler. A full queue drops the event.
func (n *Notifier) HandleEvent(_ context.Context, event events.Event) error {
	body, err := json.Marshal(envelope{
		ID:         event.EventID(),
		Type:       event.EventType(),
		OccurredAt: event.OccurredAt(),
		Data:       event.Payload(),
	})
	if err != nil {
		n.logger.Error("failed to encode event", "event_id", event.EventID(), "error", err)
		return nil
	}

	job := Job{EventID: event.EventID(), EventType: event.EventType(), Body: body}
	n.pending.Add(1)
	select {
	case n.jobQueue <- job:
	default:
		n.pending.Done()
		n.logger.Warn("notifier queue full, dropping event",
			"event_id", job.EventID,
			"event_type", job.EventType,
			"queue_capacity", cap(n.jobQueue))
	}
	return nil
}

type envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

func (n *Notifier) deliver(job Job) {
	defer n.pending.Done()
	if err := n.post(job); err != nil {
		n.logger.Warn("webhook delivery failed",
			"event_id", job.EventID,
			"event_type", job.EventType,
			"error", err)
		return
	}
	n.logger.Debug("webhook delivered", "event_id", job.EventID, "event_type", job.EventType)
}

func (n *Notifier) post(job Job) error {
	req, err := http.NewRequestWithContext(n.ctx, http.MethodPost, n.webhookURL, bytes.NewReader(job.Body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", job.EventType)
	req.Header.Set("X-Event-ID", job.EventID)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Drain blocks until every queued event has been delivered or has failed.
// Call it before Shutdown.
func (n *Notifier) Drain() {
	n.pending.Wait()
}

func (n *Notifier) Shutdown() {
	n.logger.Info("shutting down payroll notifier")
	n.cancel()
	n.wg.Wait()
}
