package monitor

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menatics/andromeda/pkg/clients"
	"github.com/menatics/andromeda/pkg/config"
	"github.com/menatics/andromeda/pkg/extsource"
	"github.com/menatics/andromeda/pkg/notify"
	"github.com/menatics/andromeda/pkg/observability"
)

func TestSyncClient(t *testing.T) {
	repo := newFakeRepo(testAccount(1))
	counter := &fakeCounter{counts: map[int64]int{100: 230}}
	mailer := &fakeMailer{}

	svc := NewSyncService(repo, counter, mailer, config.MonitorConfig{}, observability.NewLogger(observability.ErrorLevel, io.Discard))

	result, err := svc.SyncClient(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Client 1", result.ClientName)
	assert.Equal(t, 230, result.InvoiceCount)
	assert.Equal(t, 230, repo.counterUpdates[10])
}

func TestSyncClientNotFound(t *testing.T) {
	svc := NewSyncService(newFakeRepo(), &fakeCounter{}, &fakeMailer{}, config.MonitorConfig{}, observability.NewLogger(observability.ErrorLevel, io.Discard))

	_, err := svc.SyncClient(context.Background(), 999)
	assert.ErrorIs(t, err, clients.ErrNotFound)
}

func TestSyncClientNotEligible(t *testing.T) {
	account := testAccount(1, func(a *clients.ClientAccount) {
		a.Technical = nil
	})
	svc := NewSyncService(newFakeRepo(account), &fakeCounter{}, &fakeMailer{}, config.MonitorConfig{}, observability.NewLogger(observability.ErrorLevel, io.Discard))

	_, err := svc.SyncClient(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestSyncClientMissingCycleDates(t *testing.T) {
	account := testAccount(1, func(a *clients.ClientAccount) {
		a.Subscription.ExpiryDate = nil
	})
	svc := NewSyncService(newFakeRepo(account), &fakeCounter{}, &fakeMailer{}, config.MonitorConfig{}, observability.NewLogger(observability.ErrorLevel, io.Discard))

	_, err := svc.SyncClient(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestSyncClientSourceUnavailable(t *testing.T) {
	repo := newFakeRepo(testAccount(1))
	counter := &fakeCounter{errs: map[int64]error{100: extsource.ErrUnavailable}}
	svc := NewSyncService(repo, counter, &fakeMailer{}, config.MonitorConfig{}, observability.NewLogger(observability.ErrorLevel, io.Discard))

	_, err := svc.SyncClient(context.Background(), 1)
	assert.ErrorIs(t, err, extsource.ErrUnavailable)
	assert.Empty(t, repo.counterUpdates)
}

func TestSyncClientSendsAlert(t *testing.T) {
	account := testAccount(1, func(a *clients.ClientAccount) {
		a.Subscription.Plan = clients.Plan{ID: 2, Name: "Plan 100", InvoiceLimit: 100}
	})
	repo := newFakeRepo(account)
	counter := &fakeCounter{counts: map[int64]int{100: 92}}
	mailer := &fakeMailer{}

	cfg := config.MonitorConfig{OperationsEmails: []string{"ops@menatics.example"}}
	svc := NewSyncService(repo, counter, mailer, cfg, observability.NewLogger(observability.ErrorLevel, io.Discard))

	result, err := svc.SyncClient(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 92, result.InvoiceCount)

	alerts := mailer.byKind(notify.KindConsumption)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Subject, "CRÍTICA")
}
