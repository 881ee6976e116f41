package monitor

import (
	"github.com/menatics/andromeda/pkg/clients"
)

// AlertLevel grades how close a client is to exhausting its plan
type AlertLevel int

const (
	AlertNone AlertLevel = iota
	AlertWarning
	AlertCritical
)

func (l AlertLevel) String() string {
	switch l {
	case AlertWarning:
		return "warning"
	case AlertCritical:
		return "critical"
	default:
		return "none"
	}
}

// Consumption thresholds as percentages of the plan limit. Lower bounds
// are inclusive: exactly 80% warns, exactly 90% is critical.
const (
	warningThreshold  = 80.0
	criticalThreshold = 90.0
)

// EvaluateConsumption grades the client's invoice usage against its plan.
// Unmetered plans never alert, whatever the count. The returned percent
// is 0 for unmetered plans.
func EvaluateConsumption(plan clients.Plan, consumed int) (AlertLevel, float64) {
	if plan.Unmetered() {
		return AlertNone, 0
	}

	pct := float64(consumed) / float64(plan.InvoiceLimit) * 100

	switch {
	case pct >= criticalThreshold:
		return AlertCritical, pct
	case pct >= warningThreshold:
		return AlertWarning, pct
	default:
		return AlertNone, pct
	}
}
