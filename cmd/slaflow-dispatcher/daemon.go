package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/fieldline/slaflow/pkg/persistence"
	"github.com/fieldline/slaflow/pkg/queue"
	"github.com/fieldline/slaflow/pkg/workflow"
)

// Daemon consumes SLA events from the dispatch queue and fans them out to the
// engine. The queue's consumer group makes each event single-owner, so two
// dispatcher processes never run the same pending event twice. It also sweeps
// old terminal executions for every tenant it has served.
type Daemon struct {
	id     string
	engine *workflow.Engine
	store  persistence.Store
	queue  *queue.Queue
	logger *slog.Logger

	cleanupInterval time.Duration
	retention       time.Duration

	mu      sync.Mutex
	tenants map[string]struct{}
}

func NewDaemon(
	id string,
	engine *workflow.Engine,
	store persistence.Store,
	dispatchQueue *queue.Queue,
	logger *slog.Logger,
	cleanupInterval, retention time.Duration,
) *Daemon {
	return &Daemon{
		id:              id,
		engine:          engine,
		store:           store,
		queue:           dispatchQueue,
		logger:          logger.With("module", "dispatcher", "dispatcher_id", id),
		cleanupInterval: cleanupInterval,
		retention:       retention,
		tenants:         make(map[string]struct{}),
	}
}

// Start runs the consumer and the retention sweeper until the context is
// cancelled or a termination signal arrives.
func (d *Daemon) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.logger.InfoContext(ctx, "Starting dispatcher")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-signals:
			d.logger.InfoContext(ctx, "Shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	d.queue.Consume(ctx, d.handleJob)

	if d.cleanupInterval > 0 {
		go d.sweepLoop(ctx)
	}

	<-ctx.Done()
	d.logger.Info("Dispatcher stopped")
}

// handleJob dispatches one SLA event. Failures of individual executions are
// persisted on their records and must not requeue the event; only a failure
// before any workflow was launched is worth another delivery.
func (d *Daemon) handleJob(ctx context.Context, job queue.DispatchJob) error {
	logger := d.logger.With(
		"tenant_id", job.TenantID,
		"event_type", job.EventType,
		"ticket_id", job.TicketID,
	)

	eventData := job.EventData
	if eventData == nil {
		eventData = map[string]any{}
	}

	if _, ok := eventData["ticket_id"]; !ok && job.TicketID != "" {
		eventData["ticket_id"] = job.TicketID
	}

	d.rememberTenant(job.TenantID)

	executions, err := d.engine.DispatchEvent(ctx, job.TenantID, job.TriggeredBy, job.EventType, eventData)
	if err != nil && executions == nil {
		logger.ErrorContext(ctx, "Failed to dispatch event", "error", err)

		return err
	}

	if err != nil {
		logger.WarnContext(ctx, "Event dispatched with failed executions", "executions", len(executions), "error", err)
	} else {
		logger.InfoContext(ctx, "Event dispatched", "executions", len(executions))
	}

	return nil
}

func (d *Daemon) rememberTenant(tenantID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tenants[tenantID] = struct{}{}
}

func (d *Daemon) knownTenants() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	tenants := make([]string, 0, len(d.tenants))
	for tenantID := range d.tenants {
		tenants = append(tenants, tenantID)
	}

	sort.Strings(tenants)

	return tenants
}

func (d *Daemon) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

func (d *Daemon) sweep(ctx context.Context) {
	for _, tenantID := range d.knownTenants() {
		removed, err := d.store.CleanupOldExecutions(ctx, tenantID, d.retention)
		if err != nil {
			d.logger.ErrorContext(ctx, "Retention sweep failed", "tenant_id", tenantID, "error", err)

			continue
		}

		if removed > 0 {
			d.logger.InfoContext(ctx, "Removed old executions", "tenant_id", tenantID, "removed", removed)
		}
	}
}
