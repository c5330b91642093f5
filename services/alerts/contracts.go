package alerts

import (
	"tokenalert_backend/models"
	"tokenalert_backend/services/market"
)

// Repository persists alerts. The registry stays authoritative between
// calls; a failed Save or Delete never corrupts in-memory state.
type Repository interface {
	Load() ([]models.Alert, error)
	Save(alert models.Alert) error
	Delete(id string) error
}

// Notifier delivers a fired alert. Delivery is fire-and-forget: the
// monitor never blocks on it and never retries.
type Notifier interface {
	Notify(alert models.Alert, snapshot market.PriceSnapshot)
}
