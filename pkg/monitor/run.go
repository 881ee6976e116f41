package monitor

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/menatics/andromeda/pkg/clients"
	"github.com/menatics/andromeda/pkg/config"
	"github.com/menatics/andromeda/pkg/notify"
	"github.com/menatics/andromeda/pkg/observability"
)

// InvoiceCounter polls a client's external invoicing database
type InvoiceCounter interface {
	CountInvoices(ctx context.Context, profile *clients.TechnicalProfile, from, to time.Time) (int, error)
}

// RunLocker guards against overlapping runs
type RunLocker interface {
	Acquire(ctx context.Context) bool
	Release(ctx context.Context)
}

// AlertMemory suppresses repeated consumption alerts. Consulted only when
// repeat-daily alerting is disabled. Delivered alerts are recorded after
// the send, so a failed delivery does not suppress the next attempt.
type AlertMemory interface {
	AlreadySent(ctx context.Context, clientID int64, level string) bool
	MarkSent(ctx context.Context, clientID int64, level string)
}

// Run outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
	OutcomeFatal     = "fatal"
)

// ClientError records one client the run could not fully process
type ClientError struct {
	ClientID   int64
	ClientName string
	Err        error
}

// Summary is the result of one monitoring run
type Summary struct {
	RunID         string
	Outcome       string
	Started       time.Time
	Duration      time.Duration
	Processed     int
	StatusChanges int
	Polls         int
	AlertsSent    int
	RemindersSent int
	Errors        []ClientError
}

// Runner executes the daily reconciliation over all eligible clients
type Runner struct {
	repo    clients.Repository
	counter InvoiceCounter
	mailer  notify.Mailer
	lock    RunLocker
	alerts  AlertMemory
	cfg     config.MonitorConfig
	logger  *observability.Logger
	metrics *observability.Metrics

	// console mirrors the run log; swapped in tests
	console io.Writer
	// now is the run clock; swapped in tests
	now func() time.Time
}

// NewRunner assembles a Runner. alerts may be nil when repeat-daily
// alerting is on.
func NewRunner(
	repo clients.Repository,
	counter InvoiceCounter,
	mailer notify.Mailer,
	lock RunLocker,
	alerts AlertMemory,
	cfg config.MonitorConfig,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Runner {
	return &Runner{
		repo:    repo,
		counter: counter,
		mailer:  mailer,
		lock:    lock,
		alerts:  alerts,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Run executes one full monitoring pass. A fatal error before the client
// loop returns a non-nil error; per-client failures do not, they are
// collected in the summary.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	started := r.now()
	summary := &Summary{
		RunID:   uuid.New().String(),
		Started: started,
	}

	if !r.lock.Acquire(ctx) {
		r.logger.WithField("run_id", summary.RunID).Warn("another run holds the lock, skipping")
		summary.Outcome = OutcomeSkipped
		r.countRun(summary)
		return summary, nil
	}
	defer r.lock.Release(ctx)

	runLog := OpenRunLog(r.cfg.LogDir, started, r.console, observability.InfoLevel)
	defer runLog.Close()
	log := runLog.Logger.WithField("run_id", summary.RunID)
	ctx = observability.WithRunID(ctx, summary.RunID)

	log.WithField("date", started.Format("2006-01-02")).Info("monitoring run started")

	pending, err := r.repo.GetStatusByCode(ctx, clients.StatusPending)
	if err != nil {
		return r.fatal(ctx, log, summary, "resolve pending status", err)
	}

	accounts, err := r.repo.ListEligible(ctx)
	if err != nil {
		return r.fatal(ctx, log, summary, "load eligible accounts", err)
	}
	log.WithField("clients", len(accounts)).Info("eligible clients loaded")

	for _, account := range accounts {
		r.processClient(ctx, log, summary, account, pending)
		summary.Processed++
	}

	if len(summary.Errors) > 0 {
		entries := make([]notify.DigestEntry, 0, len(summary.Errors))
		for _, ce := range summary.Errors {
			entries = append(entries, notify.DigestEntry{
				ClientID:   ce.ClientID,
				ClientName: ce.ClientName,
				Detail:     ce.Err.Error(),
			})
		}
		msg := notify.BuildErrorDigest(started, entries, r.cfg.OperationsEmails)
		if err := r.mailer.Send(ctx, msg); err != nil {
			log.WithError(err).Error("failed to send error digest")
		}
	}

	summary.Outcome = OutcomeCompleted
	summary.Duration = r.now().Sub(started)
	r.countRun(summary)

	log.WithFields(map[string]interface{}{
		"processed":      summary.Processed,
		"status_changes": summary.StatusChanges,
		"polls":          summary.Polls,
		"alerts_sent":    summary.AlertsSent,
		"reminders_sent": summary.RemindersSent,
		"errors":         len(summary.Errors),
		"duration":       summary.Duration.String(),
	}).Info("monitoring run finished")

	return summary, nil
}

// fatal handles the pre-loop failure path: nothing has been touched yet,
// so log, alert operations, and stop.
func (r *Runner) fatal(ctx context.Context, log *observability.Logger, summary *Summary, stage string, cause error) (*Summary, error) {
	log.WithError(cause).WithField("stage", stage).Error("monitoring run aborted before processing clients")

	msg := notify.BuildRunFailure(summary.Started, stage, cause, r.cfg.OperationsEmails)
	if err := r.mailer.Send(ctx, msg); err != nil {
		log.WithError(err).Error("failed to send run failure alert")
	}

	summary.Outcome = OutcomeFatal
	summary.Duration = r.now().Sub(summary.Started)
	r.countRun(summary)
	return summary, fmt.Errorf("monitoring run aborted at %s: %w", stage, cause)
}

// processClient runs the status rule, the consumption poll and the expiry
// reminder for one client. Panics and errors stay inside this boundary.
func (r *Runner) processClient(ctx context.Context, log *observability.Logger, summary *Summary, account *clients.ClientAccount, pending *clients.AccountStatus) {
	clog := log.WithFields(map[string]interface{}{
		"client_id":   account.ID,
		"client_name": account.Name,
	})
	ctx = observability.WithClientID(ctx, account.ID)

	defer func() {
		if rec := recover(); rec != nil {
			clog.WithField("panic", fmt.Sprintf("%v", rec)).Error("client processing panicked")
			clog.Debug(string(debug.Stack()))
			r.recordError(summary, account, fmt.Errorf("panic: %v", rec))
		}
	}()

	if r.metrics != nil {
		r.metrics.ClientsProcessed.Inc()
	}

	today := r.now()

	// Status transition near expiry
	if account.Status.Code != pending.Code && DueForPending(account, today) {
		if err := r.repo.UpdateStatus(ctx, account.ID, pending.ID); err != nil {
			r.recordError(summary, account, fmt.Errorf("failed to mark pending: %w", err))
		} else {
			summary.StatusChanges++
			if r.metrics != nil {
				r.metrics.StatusTransitionsTotal.Inc()
			}
			clog.WithField("from", account.Status.Code).Info("client moved to pending renewal")
		}
	}

	// Consumption poll; needs both cycle bounds
	sub := account.Subscription
	updated := false
	if sub.RenewalDate != nil && sub.ExpiryDate != nil {
		count, err := r.counter.CountInvoices(ctx, account.Technical, *sub.RenewalDate, *sub.ExpiryDate)
		if err != nil {
			clog.WithError(err).Warn("invoice poll failed, keeping previous counter")
			r.recordError(summary, account, err)
		} else {
			summary.Polls++
			if err := r.repo.UpdateConsumedInvoices(ctx, sub.ID, count); err != nil {
				r.recordError(summary, account, fmt.Errorf("failed to store invoice count: %w", err))
			} else {
				sub.ConsumedInvoices = count
				updated = true
				r.evaluateAlert(ctx, clog, summary, account, count)
			}
		}
	}

	// Expiry reminder, regardless of poll outcome
	r.sendReminder(ctx, clog, summary, account, today)

	// One outcome line per client, even when nothing changed
	clog.WithFields(map[string]interface{}{
		"invoices":        sub.ConsumedInvoices,
		"counter_updated": updated,
	}).Info("client processed")
}

func (r *Runner) evaluateAlert(ctx context.Context, clog *observability.Logger, summary *Summary, account *clients.ClientAccount, consumed int) {
	level, pct := EvaluateConsumption(account.Subscription.Plan, consumed)
	if level == AlertNone {
		return
	}

	dedup := !r.cfg.AlertRepeatDaily && r.alerts != nil
	if dedup && r.alerts.AlreadySent(ctx, account.ID, level.String()) {
		clog.WithField("level", level.String()).Debug("consumption alert already sent, suppressed")
		return
	}

	msg := notify.BuildConsumptionAlert(notify.ConsumptionAlert{
		ClientName: account.Name,
		TaxID:      account.TaxID,
		PlanName:   account.Subscription.Plan.Name,
		Consumed:   consumed,
		Limit:      account.Subscription.Plan.InvoiceLimit,
		Percent:    pct,
		ExpiryDate: account.Subscription.ExpiryDate,
		Critical:   level == AlertCritical,
	}, r.cfg.OperationsEmails)

	if err := r.mailer.Send(ctx, msg); err != nil {
		clog.WithError(err).Error("failed to send consumption alert")
		return
	}
	if dedup {
		r.alerts.MarkSent(ctx, account.ID, level.String())
	}

	summary.AlertsSent++
	clog.WithFields(map[string]interface{}{
		"level":   level.String(),
		"percent": fmt.Sprintf("%.1f", pct),
	}).Info("consumption alert sent")
}

func (r *Runner) sendReminder(ctx context.Context, clog *observability.Logger, summary *Summary, account *clients.ClientAccount, today time.Time) {
	if !DueForReminder(account, today) {
		return
	}
	if !account.EmailOptIn {
		clog.Info("expiry reminder due but client opted out")
		return
	}
	if account.Email == "" {
		clog.Warn("expiry reminder due but client has no email address")
		return
	}

	msg, err := notify.BuildExpiryReminder(notify.ReminderData{
		ClientName:     account.Name,
		PlanName:       account.Subscription.Plan.Name,
		ExpiryDate:     *account.Subscription.ExpiryDate,
		UnsubscribeURL: fmt.Sprintf("%s/unsubscribe/%d", r.cfg.BaseURL, account.ID),
	}, account.Email)
	if err != nil {
		clog.WithError(err).Error("failed to build expiry reminder")
		return
	}

	if err := r.mailer.Send(ctx, msg); err != nil {
		clog.WithError(err).Error("failed to send expiry reminder")
		return
	}

	summary.RemindersSent++
	clog.Info("expiry reminder sent")
}

func (r *Runner) recordError(summary *Summary, account *clients.ClientAccount, err error) {
	summary.Errors = append(summary.Errors, ClientError{
		ClientID:   account.ID,
		ClientName: account.Name,
		Err:        err,
	})
	if r.metrics != nil {
		r.metrics.ClientErrors.Inc()
	}
}

func (r *Runner) countRun(summary *Summary) {
	if r.metrics == nil {
		return
	}
	r.metrics.RunsTotal.With(prometheus.Labels{"outcome": summary.Outcome}).Inc()
	if summary.Outcome != OutcomeSkipped {
		r.metrics.RunDuration.Observe(summary.Duration.Seconds())
	}
}
