package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/menatics/andromeda/pkg/clients"
)

func accountWithExpiry(statusCode string, expiry *time.Time) *clients.ClientAccount {
	return &clients.ClientAccount{
		ID:     1,
		Name:   "Acme",
		Active: true,
		Status: clients.AccountStatus{ID: 1, Code: statusCode, Label: statusCode},
		Subscription: &clients.ServiceSubscription{
			ID:         1,
			Plan:       clients.Plan{Name: "Plan 500", InvoiceLimit: 500},
			ExpiryDate: expiry,
		},
		Technical: &clients.TechnicalProfile{ID: 1},
	}
}

func TestDueForPending(t *testing.T) {
	today := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	expiringIn := func(days int) *time.Time {
		d := today.AddDate(0, 0, days)
		return &d
	}

	tests := []struct {
		name   string
		status string
		expiry *time.Time
		want   bool
	}{
		{"active expiring in 5 days", clients.StatusActive, expiringIn(5), true},
		{"active expiring in 3 days", clients.StatusActive, expiringIn(3), true},
		{"active expiring today", clients.StatusActive, expiringIn(0), true},
		{"active expiring in 6 days", clients.StatusActive, expiringIn(6), false},
		{"active already expired", clients.StatusActive, expiringIn(-1), false},
		{"new expiring in 2 days", clients.StatusNew, expiringIn(2), true},
		{"renewed expiring in 4 days", clients.StatusRenewed, expiringIn(4), true},
		{"already pending", clients.StatusPending, expiringIn(3), false},
		{"suspended", clients.StatusSuspended, expiringIn(3), false},
		{"unknown catalog code", "trial", expiringIn(3), false},
		{"no expiry date", clients.StatusActive, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := accountWithExpiry(tt.status, tt.expiry)
			assert.Equal(t, tt.want, DueForPending(account, today))
		})
	}
}
