package monitor

import (
	"time"

	"github.com/menatics/andromeda/pkg/clients"
)

// reminderLeadDays is the exact number of days before expiry on which the
// renewal reminder goes out. Exactly one reminder per cycle: the rule
// fires on this day only, so a run missed by an outage does not replay it
// later.
const reminderLeadDays = 15

// DueForReminder reports whether the expiry reminder should go to this
// client today. Opt-out and a missing email address are checked by the
// caller; this is the date rule only.
func DueForReminder(account *clients.ClientAccount, today time.Time) bool {
	days, ok := account.Subscription.DaysToExpiry(today)
	return ok && days == reminderLeadDays
}
