package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menatics/andromeda/pkg/clients"
	"github.com/menatics/andromeda/pkg/config"
	"github.com/menatics/andromeda/pkg/extsource"
	"github.com/menatics/andromeda/pkg/monitor"
	"github.com/menatics/andromeda/pkg/observability"
)

type fakeSyncer struct {
	result *monitor.SyncResult
	err    error
}

func (f *fakeSyncer) SyncClient(ctx context.Context, id int64) (*monitor.SyncResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeRepo struct {
	optOuts     []int64
	optOutErr   error
	unknownByID map[int64]bool
}

func (f *fakeRepo) ListEligible(ctx context.Context) ([]*clients.ClientAccount, error) {
	return nil, nil
}

func (f *fakeRepo) GetAccount(ctx context.Context, id int64) (*clients.ClientAccount, error) {
	return nil, clients.ErrNotFound
}

func (f *fakeRepo) GetStatusByCode(ctx context.Context, code string) (*clients.AccountStatus, error) {
	return nil, clients.ErrNotFound
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, accountID, statusID int64) error { return nil }

func (f *fakeRepo) UpdateConsumedInvoices(ctx context.Context, subscriptionID int64, count int) error {
	return nil
}

func (f *fakeRepo) SetEmailOptIn(ctx context.Context, accountID int64, optIn bool) error {
	if f.optOutErr != nil {
		return f.optOutErr
	}
	if f.unknownByID[accountID] {
		return clients.ErrNotFound
	}
	if !optIn {
		f.optOuts = append(f.optOuts, accountID)
	}
	return nil
}

func testServer(repo *fakeRepo, syncer *fakeSyncer) *Server {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	return NewServer(config.ServerConfig{Host: "127.0.0.1", Port: "0"}, repo, syncer, logger, metrics, registry)
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHandleSync(t *testing.T) {
	syncer := &fakeSyncer{result: &monitor.SyncResult{ClientName: "Acme", InvoiceCount: 230}}
	rec := doRequest(t, testServer(&fakeRepo{}, syncer), http.MethodPost, "/api/v1/clients/42/sync")

	require.Equal(t, http.StatusOK, rec.Code)

	var body syncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "Acme", body.ClientName)
	assert.Equal(t, 230, body.InvoiceCount)
}

func TestHandleSyncClientNotFound(t *testing.T) {
	syncer := &fakeSyncer{err: clients.ErrNotFound}
	rec := doRequest(t, testServer(&fakeRepo{}, syncer), http.MethodPost, "/api/v1/clients/999/sync")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestHandleSyncNotEligible(t *testing.T) {
	syncer := &fakeSyncer{err: monitor.ErrNotEligible}
	rec := doRequest(t, testServer(&fakeRepo{}, syncer), http.MethodPost, "/api/v1/clients/7/sync")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestHandleSyncSourceUnavailable(t *testing.T) {
	syncer := &fakeSyncer{err: extsource.ErrUnavailable}
	rec := doRequest(t, testServer(&fakeRepo{}, syncer), http.MethodPost, "/api/v1/clients/7/sync")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleSyncUnexpectedErrorHidesDetail(t *testing.T) {
	syncer := &fakeSyncer{err: errors.New("pq: password authentication failed")}
	rec := doRequest(t, testServer(&fakeRepo{}, syncer), http.MethodPost, "/api/v1/clients/7/sync")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestHandleSyncInvalidID(t *testing.T) {
	rec := doRequest(t, testServer(&fakeRepo{}, &fakeSyncer{}), http.MethodPost, "/api/v1/clients/abc/sync")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUnsubscribe(t *testing.T) {
	repo := &fakeRepo{}
	server := testServer(repo, &fakeSyncer{})

	rec := doRequest(t, server, http.MethodGet, "/unsubscribe/42")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{42}, repo.optOuts)

	// Idempotent: a second click still succeeds
	rec = doRequest(t, server, http.MethodGet, "/unsubscribe/42")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleUnsubscribeUnknownClient(t *testing.T) {
	repo := &fakeRepo{unknownByID: map[int64]bool{999: true}}
	rec := doRequest(t, testServer(repo, &fakeSyncer{}), http.MethodGet, "/unsubscribe/999")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestHandleHealth(t *testing.T) {
	rec := doRequest(t, testServer(&fakeRepo{}, &fakeSyncer{}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestMetricsEndpoint(t *testing.T) {
	rec := doRequest(t, testServer(&fakeRepo{}, &fakeSyncer{}), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSyncRequiresPost(t *testing.T) {
	rec := doRequest(t, testServer(&fakeRepo{}, &fakeSyncer{}), http.MethodGet, "/api/v1/clients/42/sync")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
