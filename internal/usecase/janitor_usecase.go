package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/config"
	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// Janitor job names, also the job_gates primary keys.
const (
	JobBackfillEvents = "backfill_events"
	JobPollAttempts   = "poll_pending_attempts"
	JobStuckReport    = "stuck_report"

	janitorRunGate = "janitor_run"
)

// GateClosedError reports a janitor run rejected by the durable rate gate.
type GateClosedError struct {
	NextAllowedAt time.Time
}

func (e *GateClosedError) Error() string {
	return fmt.Sprintf("janitor gate closed until %s", e.NextAllowedAt.Format(time.RFC3339))
}

// JanitorOptions narrows one run: a single job instead of all three, a lower
// batch limit, or a dry run that only counts what a real run would touch.
type JanitorOptions struct {
	Job    string
	DryRun bool
	Limit  int
}

// JanitorReport summarizes one run for the trigger response and the log.
type JanitorReport struct {
	Trigger          string    `json:"trigger"`
	DryRun           bool      `json:"dry_run,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	EventsBackfilled int       `json:"events_backfilled"`
	AttemptsPolled   int       `json:"attempts_polled"`
	AttemptsOrphaned int       `json:"attempts_orphaned"`
	StuckOrders      int       `json:"stuck_orders"`
	JobErrors        int       `json:"job_errors"`
}

type JanitorUsecase interface {
	// Run executes the selected janitor jobs once, behind the durable rate
	// gate. A closed gate yields a *GateClosedError carrying the retry time.
	Run(ctx context.Context, trigger string, opts JanitorOptions) (*JanitorReport, error)
}

type DefaultJanitorUsecase struct {
	OrderRepo  domain.OrderRepository
	EventRepo  domain.ProviderEventRepository
	GateRepo   domain.JobGateRepository
	EventUC    EventUsecase
	RestockUC  RestockUsecase
	PSPClients map[domain.PaymentProvider]domain.PSPClient
	Metrics    *metrics.FulfillmentMetrics
	Log        *zap.SugaredLogger
	Cfg        config.Janitor
}

func NewDefaultJanitorUsecase(
	orderRepo domain.OrderRepository,
	eventRepo domain.ProviderEventRepository,
	gateRepo domain.JobGateRepository,
	eventUC EventUsecase,
	restockUC RestockUsecase,
	pspClients map[domain.PaymentProvider]domain.PSPClient,
	m *metrics.FulfillmentMetrics,
	log *zap.SugaredLogger,
	cfg config.Janitor) *DefaultJanitorUsecase {

	return &DefaultJanitorUsecase{
		OrderRepo:  orderRepo,
		EventRepo:  eventRepo,
		GateRepo:   gateRepo,
		EventUC:    eventUC,
		RestockUC:  restockUC,
		PSPClients: pspClients,
		Metrics:    m,
		Log:        log,
		Cfg:        cfg,
	}
}

func (uc *DefaultJanitorUsecase) Run(ctx context.Context, trigger string, opts JanitorOptions) (*JanitorReport, error) {
	now := time.Now()
	// Dry runs only read, so they bypass the gate and never consume it.
	if !opts.DryRun {
		passed, nextAllowed, err := uc.GateRepo.TryPass(ctx, janitorRunGate, now, uc.Cfg.MinInterval)
		if err != nil {
			return nil, err
		}
		if !passed {
			uc.countRun("gate", "rejected")
			return nil, &GateClosedError{NextAllowedAt: nextAllowed}
		}
	}

	report := &JanitorReport{Trigger: trigger, DryRun: opts.DryRun, StartedAt: now}
	if opts.Job == "" || opts.Job == JobBackfillEvents {
		uc.backfillEvents(ctx, report, opts)
	}
	if opts.Job == "" || opts.Job == JobPollAttempts {
		uc.pollPendingAttempts(ctx, report, opts)
	}
	if opts.Job == "" || opts.Job == JobStuckReport {
		uc.reportStuckOrders(ctx, report, opts)
	}

	uc.Log.Infow("janitor run finished",
		"trigger", trigger,
		"dry_run", opts.DryRun,
		"events_backfilled", report.EventsBackfilled,
		"attempts_polled", report.AttemptsPolled,
		"attempts_orphaned", report.AttemptsOrphaned,
		"stuck_orders", report.StuckOrders,
		"job_errors", report.JobErrors)
	return report, nil
}

// batchLimit applies the caller's override without exceeding the configured
// ceiling.
func (uc *DefaultJanitorUsecase) batchLimit(opts JanitorOptions) int {
	if opts.Limit > 0 && opts.Limit < uc.Cfg.BatchLimit {
		return opts.Limit
	}
	return uc.Cfg.BatchLimit
}

// backfillEvents re-drives stored-but-unapplied events, the safety net behind
// store-only intake mode and crashed inline applications.
func (uc *DefaultJanitorUsecase) backfillEvents(ctx context.Context, report *JanitorReport, opts JanitorOptions) {
	events, err := uc.EventRepo.ListUnapplied(ctx, time.Now(), uc.batchLimit(opts))
	if err != nil {
		uc.Log.Errorw("backfill listing failed", "error", err)
		uc.countRun(JobBackfillEvents, "error")
		report.JobErrors++
		return
	}
	if opts.DryRun {
		report.EventsBackfilled = len(events)
		return
	}
	for _, event := range events {
		if err := uc.EventUC.ApplyEvent(ctx, event.ID); err != nil {
			uc.Log.Errorw("backfill application failed", "event_id", event.ID, "error", err)
			report.JobErrors++
			continue
		}
		report.EventsBackfilled++
	}
	uc.countRun(JobBackfillEvents, "ok")
}

// pollPendingAttempts reconciles attempts whose webhook never arrived: polls
// the provider for attempts with a reference, and fails+restocks orphans that
// never obtained one.
func (uc *DefaultJanitorUsecase) pollPendingAttempts(ctx context.Context, report *JanitorReport, opts JanitorOptions) {
	cutoff := time.Now().Add(-uc.Cfg.StaleAttemptAfter)
	attempts, err := uc.OrderRepo.ListStaleOpenAttempts(ctx, cutoff, uc.batchLimit(opts))
	if err != nil {
		uc.Log.Errorw("stale attempt listing failed", "error", err)
		uc.countRun(JobPollAttempts, "error")
		report.JobErrors++
		return
	}
	if opts.DryRun {
		for _, attempt := range attempts {
			if attempt.ProviderPaymentIntentID == "" {
				report.AttemptsOrphaned++
			} else {
				report.AttemptsPolled++
			}
		}
		return
	}
	for _, attempt := range attempts {
		if attempt.ProviderPaymentIntentID == "" {
			if err := uc.failOrphanedAttempt(ctx, attempt); err != nil {
				uc.Log.Errorw("orphaned attempt cleanup failed", "attempt_id", attempt.ID, "error", err)
				report.JobErrors++
				continue
			}
			report.AttemptsOrphaned++
			continue
		}
		if err := uc.pollOne(ctx, attempt); err != nil {
			uc.Log.Warnw("attempt poll failed", "attempt_id", attempt.ID, "error", err)
			report.JobErrors++
			continue
		}
		report.AttemptsPolled++
	}
	uc.countRun(JobPollAttempts, "ok")
}

// pollOne asks the provider for the live status and feeds it through the same
// intake path webhooks use. The synthesized payload is deterministic per
// (invoice, status, modified time), so repeated polls of an unchanged intent
// dedup to a stored no-op instead of piling up events.
func (uc *DefaultJanitorUsecase) pollOne(ctx context.Context, attempt *domain.PaymentAttempt) error {
	psp, ok := uc.PSPClients[attempt.Provider]
	if !ok {
		return fmt.Errorf("no client for provider %q", attempt.Provider)
	}
	intent, err := psp.GetIntentStatus(ctx, attempt.ProviderPaymentIntentID)
	if err != nil {
		return err
	}

	modified := ""
	var modifiedAt *time.Time
	if intent.ProviderModifiedAt != nil {
		modified = *intent.ProviderModifiedAt
		if t, err := time.Parse(time.RFC3339, modified); err == nil {
			modifiedAt = &t
		}
	}
	raw := []byte(fmt.Sprintf(`{"poll":{"provider":%q,"invoice_id":%q,"status":%q,"modified_at":%q}}`,
		attempt.Provider, intent.ProviderRef, intent.Status, modified))

	_, err = uc.EventUC.Ingest(ctx, &domain.ProviderNotification{
		Provider:           attempt.Provider,
		InvoiceID:          intent.ProviderRef,
		Status:             intent.Status,
		AmountMinor:        intent.AmountMinor,
		Currency:           attempt.Currency,
		ProviderModifiedAt: modifiedAt,
		Raw:                raw,
	}, true)
	return err
}

// failOrphanedAttempt closes an attempt that crashed before obtaining a
// provider reference: nothing to poll, nothing the provider can deliver.
func (uc *DefaultJanitorUsecase) failOrphanedAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error {
	if err := uc.OrderRepo.UpdateAttemptStatus(ctx, attempt.ID, domain.AttemptFailed,
		"ORPHANED", "no provider reference after stale cutoff"); err != nil {
		return err
	}
	if _, err := uc.OrderRepo.UpdatePaymentStatusGuarded(ctx, attempt.OrderID, domain.PaymentStatusUpdate{
		To:             domain.PaymentFailed,
		From:           domain.AllowedPaymentSources(domain.PaymentFailed),
		FailureCode:    "ORPHANED",
		FailureMessage: "payment attempt never reached the provider",
	}); err != nil {
		return err
	}
	return uc.RestockUC.RestockOrder(ctx, attempt.OrderID, RestockReasonOrphaned)
}

// reportStuckOrders surfaces orders parked in review states; it changes
// nothing, operators act on the log lines.
func (uc *DefaultJanitorUsecase) reportStuckOrders(ctx context.Context, report *JanitorReport, opts JanitorOptions) {
	cutoff := time.Now().Add(-uc.Cfg.StuckOrderAfter)
	orders, err := uc.OrderRepo.ListStuckOrders(ctx, cutoff, uc.batchLimit(opts))
	if err != nil {
		uc.Log.Errorw("stuck order listing failed", "error", err)
		uc.countRun(JobStuckReport, "error")
		report.JobErrors++
		return
	}
	for _, order := range orders {
		uc.Log.Warnw("order needs operator attention",
			"order_id", order.ID,
			"payment_status", order.PaymentStatus,
			"shipping_status", order.ShippingStatus,
			"failure_code", order.FailureCode,
			"updated_at", order.UpdatedAt)
	}
	report.StuckOrders = len(orders)
	uc.countRun(JobStuckReport, "ok")
}

func (uc *DefaultJanitorUsecase) countRun(job, outcome string) {
	if uc.Metrics != nil {
		uc.Metrics.JanitorRunsTotal.WithLabelValues(job, outcome).Inc()
	}
}
