package notify

import (
	"log"

	"tokenalert_backend/models"
	"tokenalert_backend/services/market"
)

// LogNotifier writes every firing to the process log. Always wired in
// so firings are visible even with no clients connected.
type LogNotifier struct{}

// NewLogNotifier creates a log notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify prints the alert's message with its observed value
func (n *LogNotifier) Notify(alert models.Alert, snapshot market.PriceSnapshot) {
	log.Printf("%s (current: %s, user: %s)", alert.Message, alert.CurrentValue.StringFixed(2), alert.UserID)
}
