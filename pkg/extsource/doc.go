// Package extsource polls the external SQL Server databases where each
// client's invoicing system records its issued documents.
//
// These databases belong to the clients, not to us: they may be offline,
// slow, or behind a flaky VPN at any time. Every poll therefore uses its
// own short-lived connection with a hard connect timeout, and any failure
// surfaces as ErrUnavailable rather than an abort.
package extsource
