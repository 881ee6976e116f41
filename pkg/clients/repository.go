package clients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/menatics/andromeda/pkg/observability"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Repository provides access to client account data
type Repository interface {
	// ListEligible returns the accounts the daily monitor processes:
	// active accounts with both a subscription and a technical profile.
	ListEligible(ctx context.Context) ([]*ClientAccount, error)

	// GetAccount loads one account with its subscription and technical
	// profile when present. Returns ErrNotFound when the id is unknown.
	GetAccount(ctx context.Context, id int64) (*ClientAccount, error)

	// GetStatusByCode resolves a catalog status by its stable code
	GetStatusByCode(ctx context.Context, code string) (*AccountStatus, error)

	// UpdateStatus moves an account to the given catalog status
	UpdateStatus(ctx context.Context, accountID, statusID int64) error

	// UpdateConsumedInvoices overwrites the stored invoice counter
	UpdateConsumedInvoices(ctx context.Context, subscriptionID int64, count int) error

	// SetEmailOptIn flips the account's email preference
	SetEmailOptIn(ctx context.Context, accountID int64, optIn bool) error
}

// PostgresRepository implements Repository against PostgreSQL
type PostgresRepository struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewPostgresRepository creates a repository backed by the given database
func NewPostgresRepository(db *sql.DB, logger *observability.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

const accountColumns = `
	a.id, a.name, a.tax_id, a.phone, a.email, a.active, a.email_opt_in, a.observations,
	st.id, st.code, st.label,
	s.id, s.created_on, s.renewal_date, s.expiry_date, s.signature_expiry,
	s.consumed_invoices, s.agreed_price_cents, s.observations,
	s.mod_sales, s.mod_purchases, s.mod_treasury, s.mod_inventory,
	p.id, p.name, p.invoice_limit, p.price_cents, p.term_months,
	t.id, t.database_name,
	d.id, d.name, d.host, d.port, d.db_user, d.db_password`

const accountJoins = `
	FROM accounts a
	JOIN account_statuses st ON st.id = a.status_id
	LEFT JOIN subscriptions s ON s.account_id = a.id
	LEFT JOIN plans p ON p.id = s.plan_id
	LEFT JOIN technical_profiles t ON t.account_id = a.id
	LEFT JOIN database_servers d ON d.id = t.server_id`

// ListEligible implements Repository
func (r *PostgresRepository) ListEligible(ctx context.Context) ([]*ClientAccount, error) {
	query := "SELECT" + accountColumns + accountJoins + `
	WHERE a.active = TRUE AND s.id IS NOT NULL AND t.id IS NOT NULL
	ORDER BY a.id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*ClientAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	r.logger.WithField("count", len(accounts)).Debug("loaded eligible accounts")
	return accounts, nil
}

// GetAccount implements Repository
func (r *PostgresRepository) GetAccount(ctx context.Context, id int64) (*ClientAccount, error) {
	query := "SELECT" + accountColumns + accountJoins + `
	WHERE a.id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return account, nil
}

// GetStatusByCode implements Repository
func (r *PostgresRepository) GetStatusByCode(ctx context.Context, code string) (*AccountStatus, error) {
	var status AccountStatus
	err := r.db.QueryRowContext(ctx,
		"SELECT id, code, label FROM account_statuses WHERE code = $1",
		code,
	).Scan(&status.ID, &status.Code, &status.Label)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get status %q: %w", code, err)
	}
	return &status, nil
}

// UpdateStatus implements Repository
func (r *PostgresRepository) UpdateStatus(ctx context.Context, accountID, statusID int64) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET status_id = $1, updated_at = NOW() WHERE id = $2",
		statusID, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update status for account %d: %w", accountID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateConsumedInvoices implements Repository
func (r *PostgresRepository) UpdateConsumedInvoices(ctx context.Context, subscriptionID int64, count int) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE subscriptions SET consumed_invoices = $1 WHERE id = $2",
		count, subscriptionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update consumed invoices for subscription %d: %w", subscriptionID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEmailOptIn implements Repository
func (r *PostgresRepository) SetEmailOptIn(ctx context.Context, accountID int64, optIn bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET email_opt_in = $1, updated_at = NOW() WHERE id = $2",
		optIn, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update email opt-in for account %d: %w", accountID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*ClientAccount, error) {
	var (
		account ClientAccount

		subID            sql.NullInt64
		createdOn        sql.NullTime
		renewalDate      sql.NullTime
		expiryDate       sql.NullTime
		signatureExpiry  sql.NullTime
		consumedInvoices sql.NullInt64
		agreedPriceCents sql.NullInt64
		subObservations  sql.NullString
		modSales         sql.NullBool
		modPurchases     sql.NullBool
		modTreasury      sql.NullBool
		modInventory     sql.NullBool

		planID           sql.NullInt64
		planName         sql.NullString
		planInvoiceLimit sql.NullInt64
		planPriceCents   sql.NullInt64
		planTermMonths   sql.NullInt64

		techID       sql.NullInt64
		databaseName sql.NullString

		serverID   sql.NullInt64
		serverName sql.NullString
		serverHost sql.NullString
		serverPort sql.NullInt64
		serverUser sql.NullString
		serverPass sql.NullString

		phone sql.NullString
		email sql.NullString
	)

	err := row.Scan(
		&account.ID, &account.Name, &account.TaxID, &phone, &email,
		&account.Active, &account.EmailOptIn, &account.Observations,
		&account.Status.ID, &account.Status.Code, &account.Status.Label,
		&subID, &createdOn, &renewalDate, &expiryDate, &signatureExpiry,
		&consumedInvoices, &agreedPriceCents, &subObservations,
		&modSales, &modPurchases, &modTreasury, &modInventory,
		&planID, &planName, &planInvoiceLimit, &planPriceCents, &planTermMonths,
		&techID, &databaseName,
		&serverID, &serverName, &serverHost, &serverPort, &serverUser, &serverPass,
	)
	if err != nil {
		return nil, err
	}

	account.Phone = phone.String
	account.Email = email.String

	if subID.Valid {
		sub := &ServiceSubscription{
			ID:               subID.Int64,
			ConsumedInvoices: int(consumedInvoices.Int64),
			AgreedPriceCents: agreedPriceCents.Int64,
			Observations:     subObservations.String,
			ModSales:         modSales.Bool,
			ModPurchases:     modPurchases.Bool,
			ModTreasury:      modTreasury.Bool,
			ModInventory:     modInventory.Bool,
		}
		if createdOn.Valid {
			t := createdOn.Time
			sub.CreatedOn = &t
		}
		if renewalDate.Valid {
			t := renewalDate.Time
			sub.RenewalDate = &t
		}
		if expiryDate.Valid {
			t := expiryDate.Time
			sub.ExpiryDate = &t
		}
		if signatureExpiry.Valid {
			t := signatureExpiry.Time
			sub.SignatureExpiry = &t
		}
		if planID.Valid {
			sub.Plan = Plan{
				ID:           planID.Int64,
				Name:         planName.String,
				InvoiceLimit: int(planInvoiceLimit.Int64),
				PriceCents:   planPriceCents.Int64,
				TermMonths:   int(planTermMonths.Int64),
			}
		}
		account.Subscription = sub
	}

	if techID.Valid {
		account.Technical = &TechnicalProfile{
			ID:           techID.Int64,
			DatabaseName: databaseName.String,
			Server: DatabaseServer{
				ID:       serverID.Int64,
				Name:     serverName.String,
				Host:     serverHost.String,
				Port:     int(serverPort.Int64),
				User:     serverUser.String,
				Password: serverPass.String,
			},
		}
	}

	return &account, nil
}
