// Package clients holds the reseller's client account model and its
// PostgreSQL persistence layer.
//
// An account is monitored by the daily job only when it is active and
// carries both a service subscription (the contracted plan) and a
// technical profile (where its external invoicing database lives).
// Account lifecycle state is an open catalog; code compares statuses by
// their stable code, never by display label.
package clients
