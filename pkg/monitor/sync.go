package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/menatics/andromeda/pkg/clients"
	"github.com/menatics/andromeda/pkg/config"
	"github.com/menatics/andromeda/pkg/notify"
	"github.com/menatics/andromeda/pkg/observability"
)

// ErrNotEligible is returned when a sync is requested for a client that
// lacks a subscription, a technical profile, or the cycle dates the poll
// needs.
var ErrNotEligible = errors.New("client is not eligible for sync")

// SyncResult is the outcome of an ad-hoc single-client sync
type SyncResult struct {
	ClientName   string
	InvoiceCount int
}

// SyncService performs the consumption poll for one client on demand,
// outside the daily run
type SyncService struct {
	repo    clients.Repository
	counter InvoiceCounter
	mailer  notify.Mailer
	cfg     config.MonitorConfig
	logger  *observability.Logger
}

// NewSyncService assembles a SyncService
func NewSyncService(repo clients.Repository, counter InvoiceCounter, mailer notify.Mailer, cfg config.MonitorConfig, logger *observability.Logger) *SyncService {
	return &SyncService{
		repo:    repo,
		counter: counter,
		mailer:  mailer,
		cfg:     cfg,
		logger:  logger,
	}
}

// SyncClient polls the client's external database, overwrites the stored
// counter and evaluates the consumption alert, synchronously. Returns
// clients.ErrNotFound for an unknown id and ErrNotEligible when the
// client cannot be polled.
func (s *SyncService) SyncClient(ctx context.Context, id int64) (*SyncResult, error) {
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if !account.Eligible() {
		return nil, ErrNotEligible
	}
	sub := account.Subscription
	if sub.RenewalDate == nil || sub.ExpiryDate == nil {
		return nil, fmt.Errorf("%w: subscription has no cycle dates", ErrNotEligible)
	}

	log := s.logger.WithFields(map[string]interface{}{
		"client_id":   account.ID,
		"client_name": account.Name,
	})

	count, err := s.counter.CountInvoices(ctx, account.Technical, *sub.RenewalDate, *sub.ExpiryDate)
	if err != nil {
		log.WithError(err).Warn("ad-hoc sync poll failed")
		return nil, err
	}

	if err := s.repo.UpdateConsumedInvoices(ctx, sub.ID, count); err != nil {
		return nil, err
	}

	level, pct := EvaluateConsumption(sub.Plan, count)
	if level != AlertNone {
		msg := notify.BuildConsumptionAlert(notify.ConsumptionAlert{
			ClientName: account.Name,
			TaxID:      account.TaxID,
			PlanName:   sub.Plan.Name,
			Consumed:   count,
			Limit:      sub.Plan.InvoiceLimit,
			Percent:    pct,
			ExpiryDate: sub.ExpiryDate,
			Critical:   level == AlertCritical,
		}, s.cfg.OperationsEmails)
		if err := s.mailer.Send(ctx, msg); err != nil {
			log.WithError(err).Error("failed to send consumption alert")
		}
	}

	log.WithField("invoice_count", count).Info("ad-hoc sync completed")
	return &SyncResult{
		ClientName:   account.Name,
		InvoiceCount: count,
	}, nil
}
