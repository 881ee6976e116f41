package monitor

import (
	"time"

	"github.com/menatics/andromeda/pkg/clients"
)

// pendingWindowDays is how many days before expiry an account is moved to
// pending so the renewal can be handled before service stops
const pendingWindowDays = 5

// autoTransitionSources are the status codes the expiry rule may move to
// pending. The catalog is open; any other code, known or not, is left to
// manual handling.
var autoTransitionSources = map[string]bool{
	clients.StatusNew:     true,
	clients.StatusRenewed: true,
	clients.StatusActive:  true,
}

// DueForPending reports whether the account should be moved to pending:
// its current status allows the automated transition and its subscription
// expires within the pending window (inclusive on both ends). Already
// expired accounts are not touched; that is a suspension decision, made
// elsewhere.
func DueForPending(account *clients.ClientAccount, today time.Time) bool {
	if !autoTransitionSources[account.Status.Code] {
		return false
	}

	days, ok := account.Subscription.DaysToExpiry(today)
	if !ok {
		return false
	}
	return days >= 0 && days <= pendingWindowDays
}
