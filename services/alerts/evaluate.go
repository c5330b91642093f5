package alerts

import (
	"github.com/shopspring/decimal"

	"tokenalert_backend/models"
	"tokenalert_backend/services/market"
)

// Evaluate reports whether the alert's condition holds against the
// snapshot. All thresholds are boundary-inclusive. Invalid snapshots
// and unknown kinds never match. The function reads nothing but its
// arguments and mutates nothing.
func Evaluate(alert models.Alert, snapshot market.PriceSnapshot) bool {
	if !snapshot.IsValid {
		return false
	}

	target := alert.TargetValue
	switch alert.Kind {
	case models.AlertPriceAbove:
		return decimal.NewFromFloat(snapshot.CurrentPrice).GreaterThanOrEqual(target)
	case models.AlertPriceBelow:
		return decimal.NewFromFloat(snapshot.CurrentPrice).LessThanOrEqual(target)
	case models.AlertPercentChange:
		change := decimal.NewFromFloat(snapshot.ChangePercent24h).Abs()
		return change.GreaterThanOrEqual(target.Abs())
	case models.AlertVolumeSpike:
		return decimal.NewFromFloat(snapshot.Volume24h).GreaterThanOrEqual(target)
	case models.AlertRSIOversold:
		if !snapshot.HasRSI {
			return false
		}
		return decimal.NewFromFloat(snapshot.RSI).LessThanOrEqual(target)
	case models.AlertRSIOverbought:
		if !snapshot.HasRSI {
			return false
		}
		return decimal.NewFromFloat(snapshot.RSI).GreaterThanOrEqual(target)
	default:
		return false
	}
}

// CurrentValueFor picks the snapshot field the alert kind watches,
// used to stamp the alert's last observed value.
func CurrentValueFor(kind models.AlertKind, snapshot market.PriceSnapshot) decimal.Decimal {
	switch kind {
	case models.AlertPercentChange:
		return decimal.NewFromFloat(snapshot.ChangePercent24h)
	case models.AlertVolumeSpike:
		return decimal.NewFromFloat(snapshot.Volume24h)
	case models.AlertRSIOversold, models.AlertRSIOverbought:
		return decimal.NewFromFloat(snapshot.RSI)
	default:
		return decimal.NewFromFloat(snapshot.CurrentPrice)
	}
}
