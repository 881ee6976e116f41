package extsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"github.com/prometheus/client_golang/prometheus"

	"github.com/menatics/andromeda/pkg/clients"
	"github.com/menatics/andromeda/pkg/observability"
)

// ErrUnavailable is returned when the client's invoicing database cannot
// be reached or queried. Callers treat it as a transient condition: the
// stored counter stays as it was and the next run tries again.
var ErrUnavailable = errors.New("external invoicing database unavailable")

// MaxConnectTimeout caps how long a poll waits for the remote server.
// Client databases live on customer networks; a hung connection must not
// stall the whole batch.
const MaxConnectTimeout = 10 * time.Second

// invoiceCountQuery counts issued electronic documents in a half-open
// date range. The legacy schema stores FechaEmision as DD/MM/YYYY text,
// so the bounds are passed as strings, not dates.
const invoiceCountQuery = `SELECT COUNT(*) FROM FacElec_Documentos WHERE FechaEmision >= @p1 AND FechaEmision < @p2`

// openFunc opens a database handle. Swapped in tests.
type openFunc func(driverName, dataSourceName string) (*sql.DB, error)

// Counter polls external SQL Server invoicing databases for issued
// invoice counts. Each poll opens its own short-lived connection; remote
// credentials vary per client, so no pool is kept.
type Counter struct {
	connectTimeout time.Duration
	logger         *observability.Logger
	metrics        *observability.Metrics
	open           openFunc
}

// NewCounter creates a Counter. A connectTimeout of zero or anything
// above MaxConnectTimeout is clamped to MaxConnectTimeout.
func NewCounter(connectTimeout time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Counter {
	if connectTimeout <= 0 || connectTimeout > MaxConnectTimeout {
		connectTimeout = MaxConnectTimeout
	}
	return &Counter{
		connectTimeout: connectTimeout,
		logger:         logger,
		metrics:        metrics,
		open:           sql.Open,
	}
}

// CountInvoices returns the number of invoices the client issued in the
// current subscription cycle, counted directly in the client's external
// database. The range is [from, to): documents issued on the cycle start
// date count, documents issued on the end date do not.
func (c *Counter) CountInvoices(ctx context.Context, profile *clients.TechnicalProfile, from, to time.Time) (int, error) {
	if profile == nil {
		return 0, fmt.Errorf("no technical profile")
	}

	start := time.Now()
	count, err := c.countInvoices(ctx, profile, from, to)
	if c.metrics != nil {
		c.metrics.PollDuration.Observe(time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "unavailable"
		}
		c.metrics.PollsTotal.With(prometheus.Labels{"status": status}).Inc()
	}
	return count, err
}

func (c *Counter) countInvoices(ctx context.Context, profile *clients.TechnicalProfile, from, to time.Time) (int, error) {
	log := c.logger.WithContext(ctx)

	db, err := c.open("sqlserver", buildDSN(profile, c.connectTimeout))
	if err != nil {
		log.WithError(err).WithField("host", profile.Server.Host).Warn("failed to open external database")
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer db.Close()

	// Exactly one query per poll; the handle never outlives the call.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	var count int
	err = db.QueryRowContext(ctx, invoiceCountQuery, formatDate(from), formatDate(to)).Scan(&count)
	if err != nil {
		log.WithError(err).WithFields(map[string]interface{}{
			"host":     profile.Server.Host,
			"database": profile.DatabaseName,
		}).Warn("failed to count invoices in external database")
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return count, nil
}

// formatDate renders a time as the DD/MM/YYYY string the legacy schema
// stores in FechaEmision
func formatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// buildDSN assembles a sqlserver connection URL for a client profile
func buildDSN(profile *clients.TechnicalProfile, connectTimeout time.Duration) string {
	query := url.Values{}
	query.Set("database", profile.DatabaseName)
	query.Set("dial timeout", fmt.Sprintf("%d", int(connectTimeout.Seconds())))

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(profile.Server.User, profile.Server.Password),
		Host:     fmt.Sprintf("%s:%d", profile.Server.Host, profile.Server.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}
