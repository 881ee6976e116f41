// Package monitor implements the daily reconciliation over all eligible
// client accounts: it polls each client's external invoicing database,
// overwrites the stored consumption counter, moves accounts nearing
// expiry to pending, and sends consumption alerts and renewal reminders.
//
// One failing client never stops the batch. Each client is processed
// inside a recover boundary; failures are collected and reported once at
// the end of the run in a digest to operations. Only two conditions abort
// a run, both before any client is touched: the pending status cannot be
// resolved, or the eligible set cannot be loaded.
package monitor
