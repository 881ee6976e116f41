package clients

import (
	"strings"
	"time"
)

// Status codes in the account status catalog. The catalog is open (rows are
// data, operators can add more); these are the codes the monitor reasons
// about. Comparison is always by code, never by display label.
const (
	StatusNew       = "new"
	StatusRenewed   = "renewed"
	StatusActive    = "active"
	StatusPending   = "pending"
	StatusSuspended = "suspended"
)

// AccountStatus is a row of the status catalog
type AccountStatus struct {
	ID    int64  `json:"id"`
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Plan defines an invoicing product sold to clients
type Plan struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	// InvoiceLimit is the number of invoices permitted per subscription
	// cycle. Zero means unmetered.
	InvoiceLimit int   `json:"invoice_limit"`
	PriceCents   int64 `json:"price_cents"`
	TermMonths   int   `json:"term_months"`
}

// Unmetered reports whether the plan never triggers consumption alerts.
// A plan is unmetered when its limit is zero (or negative, defensively
// from imports) or its name marks it as unlimited.
func (p Plan) Unmetered() bool {
	return p.InvoiceLimit <= 0 || containsUnlimited(p.Name)
}

func containsUnlimited(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "ilimitado") || strings.Contains(lower, "unlimited")
}

// ServiceSubscription holds the contracted service for one client
type ServiceSubscription struct {
	ID   int64 `json:"id"`
	Plan Plan  `json:"plan"`

	CreatedOn       *time.Time `json:"created_on,omitempty"`
	RenewalDate     *time.Time `json:"renewal_date,omitempty"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
	SignatureExpiry *time.Time `json:"signature_expiry,omitempty"`

	// ConsumedInvoices mirrors the count in the client's external invoicing
	// database as of the most recent successful poll. It is overwritten by
	// the monitor, never incremented, and stays stale when a poll fails.
	ConsumedInvoices int `json:"consumed_invoices"`

	AgreedPriceCents int64  `json:"agreed_price_cents"`
	Observations     string `json:"observations,omitempty"`

	// Licensed system modules
	ModSales     bool `json:"mod_sales"`
	ModPurchases bool `json:"mod_purchases"`
	ModTreasury  bool `json:"mod_treasury"`
	ModInventory bool `json:"mod_inventory"`
}

// DaysToExpiry returns the whole calendar days between today and the expiry
// date, and false when no expiry date is set. The result is negative once
// the subscription has expired.
func (s *ServiceSubscription) DaysToExpiry(today time.Time) (int, bool) {
	if s == nil || s.ExpiryDate == nil {
		return 0, false
	}

	y1, m1, d1 := today.Date()
	y2, m2, d2 := s.ExpiryDate.Date()
	t1 := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)

	return int(t2.Sub(t1).Hours() / 24), true
}

// DatabaseServer holds connection credentials for a shared SQL Server host
// where one or more client invoicing databases live
type DatabaseServer struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
}

// TechnicalProfile binds a client to its external invoicing database
type TechnicalProfile struct {
	ID           int64          `json:"id"`
	Server       DatabaseServer `json:"server"`
	DatabaseName string         `json:"database_name"`
}

// ClientAccount is a reseller client record
type ClientAccount struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	TaxID        string        `json:"tax_id"`
	Phone        string        `json:"phone,omitempty"`
	Email        string        `json:"email,omitempty"`
	Active       bool          `json:"active"`
	EmailOptIn   bool          `json:"email_opt_in"`
	Status       AccountStatus `json:"status"`
	Observations string        `json:"observations,omitempty"`

	Subscription *ServiceSubscription `json:"subscription,omitempty"`
	Technical    *TechnicalProfile    `json:"technical,omitempty"`
}

// Eligible reports whether the account is monitored by the daily job:
// active, with a subscription and a technical profile.
func (c *ClientAccount) Eligible() bool {
	return c != nil && c.Active && c.Subscription != nil && c.Technical != nil
}
