package notify

import (
	"tokenalert_backend/models"
	"tokenalert_backend/services/alerts"
	"tokenalert_backend/services/market"
)

// Multi fans one firing out to several notifiers. Delivery stays
// fire-and-forget; a slow or failing sink never blocks the others.
type Multi struct {
	sinks []alerts.Notifier
}

// NewMulti creates a fan-out over sinks
func NewMulti(sinks ...alerts.Notifier) *Multi {
	return &Multi{sinks: sinks}
}

// Notify forwards the firing to every sink
func (m *Multi) Notify(alert models.Alert, snapshot market.PriceSnapshot) {
	for _, sink := range m.sinks {
		sink.Notify(alert, snapshot)
	}
}
