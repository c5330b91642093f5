package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AlertKind identifies the condition an alert watches
type AlertKind string

// Alert kind constants
const (
	AlertPriceAbove    AlertKind = "price_above"
	AlertPriceBelow    AlertKind = "price_below"
	AlertPercentChange AlertKind = "percent_change"
	AlertVolumeSpike   AlertKind = "volume_spike"
	AlertRSIOversold   AlertKind = "rsi_oversold"
	AlertRSIOverbought AlertKind = "rsi_overbought"
)

// AlertStatus identifies the lifecycle state of an alert
type AlertStatus string

// Alert status constants
const (
	AlertStatusInactive  AlertStatus = "inactive"
	AlertStatusActive    AlertStatus = "active"
	AlertStatusTriggered AlertStatus = "triggered"
	AlertStatusPaused    AlertStatus = "paused"
)

// UserTier identifies the subscription level of a user
type UserTier string

// User tier constants
const (
	TierFree    UserTier = "free"
	TierPremium UserTier = "premium"
)

// DefaultCooldownMinutes is applied to new alerts
const DefaultCooldownMinutes = 60

// Alert represents a standing user condition over one asset's market data
type Alert struct {
	ID              string          `gorm:"primaryKey" json:"id"`
	UserID          string          `gorm:"index;not null" json:"user_id"`
	Symbol          string          `gorm:"index;not null" json:"symbol"`
	Kind            AlertKind       `json:"kind"`
	TargetValue     decimal.Decimal `gorm:"type:decimal(24,8)" json:"target_value"`
	CurrentValue    decimal.Decimal `gorm:"type:decimal(24,8)" json:"current_value"`
	Status          AlertStatus     `gorm:"index" json:"status"`
	Message         string          `json:"message"`
	IsRepeatable    bool            `gorm:"default:true" json:"is_repeatable"`
	CooldownMinutes int             `gorm:"default:60" json:"cooldown_minutes"`
	RequiredTier    UserTier        `gorm:"default:'free'" json:"required_tier"`
	TriggerCount    int             `gorm:"default:0" json:"trigger_count"`
	LastTriggered   time.Time       `json:"last_triggered"` // zero = never
	LastChecked     time.Time       `json:"last_checked"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Clone returns a copy safe to hand to callers outside the registry lock
func (a *Alert) Clone() Alert {
	return *a
}

// Cooldown returns the minimum time between two firings of this alert
func (a *Alert) Cooldown() time.Duration {
	return time.Duration(a.CooldownMinutes) * time.Minute
}

// InCooldown reports whether the alert fired too recently to fire again
func (a *Alert) InCooldown(now time.Time) bool {
	if a.LastTriggered.IsZero() {
		return false
	}
	return now.Sub(a.LastTriggered) < a.Cooldown()
}

// BuildAlertMessage formats the human-readable description stored on an alert
func BuildAlertMessage(symbol string, kind AlertKind, target decimal.Decimal) string {
	value := target.StringFixed(2)
	switch kind {
	case AlertPriceAbove:
		return fmt.Sprintf("Alert: %s above %s", symbol, value)
	case AlertPriceBelow:
		return fmt.Sprintf("Alert: %s below %s", symbol, value)
	case AlertPercentChange:
		return fmt.Sprintf("Alert: %s 24h change beyond %s%%", symbol, value)
	case AlertVolumeSpike:
		return fmt.Sprintf("Alert: %s 24h volume above %s", symbol, value)
	case AlertRSIOversold:
		return fmt.Sprintf("Alert: %s RSI below %s", symbol, value)
	case AlertRSIOverbought:
		return fmt.Sprintf("Alert: %s RSI above %s", symbol, value)
	default:
		return fmt.Sprintf("Alert: %s %s %s", symbol, kind, value)
	}
}

// ValidAlertKinds returns valid alert kinds
func ValidAlertKinds() []AlertKind {
	return []AlertKind{
		AlertPriceAbove,
		AlertPriceBelow,
		AlertPercentChange,
		AlertVolumeSpike,
		AlertRSIOversold,
		AlertRSIOverbought,
	}
}

// IsValidAlertKind checks if the alert kind is valid
func IsValidAlertKind(kind AlertKind) bool {
	for _, valid := range ValidAlertKinds() {
		if kind == valid {
			return true
		}
	}
	return false
}

// ValidTiers returns valid user tiers
func ValidTiers() []UserTier {
	return []UserTier{TierFree, TierPremium}
}

// ParseTier maps a raw tier string to a known tier, defaulting to free
func ParseTier(raw string) UserTier {
	for _, valid := range ValidTiers() {
		if UserTier(raw) == valid {
			return valid
		}
	}
	return TierFree
}

// MigrateAlertModels runs database migrations for alert-related models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(&Alert{})
}
