package alerts

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tokenalert_backend/models"
)

// Quotas bound how many alerts the registry accepts
type Quotas struct {
	FreeTier    int
	PremiumTier int
	Capacity    int
}

// DefaultQuotas returns the standard limits
func DefaultQuotas() Quotas {
	return Quotas{FreeTier: 100, PremiumTier: 1000, Capacity: 10000}
}

// PerUser returns the quota for one tier
func (q Quotas) PerUser(tier models.UserTier) int {
	if tier == models.TierPremium {
		return q.PremiumTier
	}
	return q.FreeTier
}

// CreateInput carries the caller-supplied fields of a new alert
type CreateInput struct {
	UserID          string
	Tier            models.UserTier
	Symbol          string
	Kind            models.AlertKind
	TargetValue     decimal.Decimal
	IsRepeatable    bool
	CooldownMinutes int
}

// RegistryStats summarizes registry occupancy
type RegistryStats struct {
	TotalAlerts     int `json:"total_alerts"`
	ActiveAlerts    int `json:"active_alerts"`
	PausedAlerts    int `json:"paused_alerts"`
	TriggeredAlerts int `json:"triggered_alerts"`
	TotalTriggers   int `json:"total_triggers"`
	Capacity        int `json:"capacity"`
}

// Registry owns every live alert. A single RWMutex guards the whole
// table; operations are short enough that finer locking buys nothing.
// In-memory state is authoritative; the repository trails it.
type Registry struct {
	mu     sync.RWMutex
	alerts map[string]*models.Alert
	order  []string
	byUser map[string][]string
	dirty  map[string]bool
	live   int

	repo   Repository
	quotas Quotas
	now    func() time.Time
}

// NewRegistry creates an empty registry backed by repo
func NewRegistry(repo Repository, quotas Quotas) *Registry {
	if quotas.Capacity <= 0 {
		quotas = DefaultQuotas()
	}
	return &Registry{
		alerts: make(map[string]*models.Alert),
		byUser: make(map[string][]string),
		dirty:  make(map[string]bool),
		repo:   repo,
		quotas: quotas,
		now:    time.Now,
	}
}

// LoadFromRepository seeds the registry from persisted alerts.
// Rows for ids the registry already holds are ignored; memory wins.
func (r *Registry) LoadFromRepository() error {
	stored, err := r.repo.Load()
	if err != nil {
		return fmt.Errorf("%w: load: %v", ErrStorageFailure, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	restored := 0
	for i := range stored {
		a := stored[i]
		if _, exists := r.alerts[a.ID]; exists {
			continue
		}
		if a.Status == models.AlertStatusInactive {
			continue
		}
		copy := a
		r.alerts[a.ID] = &copy
		r.order = append(r.order, a.ID)
		r.byUser[a.UserID] = append(r.byUser[a.UserID], a.ID)
		r.live++
		restored++
	}
	log.Printf("Alert registry restored %d alerts from storage", restored)
	return nil
}

// Create validates, admits, and persists a new alert.
// A failed persist rolls the in-memory insert back.
func (r *Registry) Create(input CreateInput) (models.Alert, error) {
	if err := validateInput(input); err != nil {
		return models.Alert{}, err
	}
	if input.CooldownMinutes <= 0 {
		input.CooldownMinutes = models.DefaultCooldownMinutes
	}

	now := r.now()
	alert := models.Alert{
		ID:              uuid.New().String(),
		UserID:          input.UserID,
		Symbol:          input.Symbol,
		Kind:            input.Kind,
		TargetValue:     input.TargetValue,
		Status:          models.AlertStatusActive,
		Message:         models.BuildAlertMessage(input.Symbol, input.Kind, input.TargetValue),
		IsRepeatable:    input.IsRepeatable,
		CooldownMinutes: input.CooldownMinutes,
		RequiredTier:    input.Tier,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	r.mu.Lock()
	if r.live >= r.quotas.Capacity {
		r.mu.Unlock()
		return models.Alert{}, fmt.Errorf("%w: capacity %d reached", ErrCapacityExceeded, r.quotas.Capacity)
	}
	limit := r.quotas.PerUser(input.Tier)
	if len(r.byUser[input.UserID]) >= limit {
		r.mu.Unlock()
		return models.Alert{}, fmt.Errorf("%w: %s tier limit %d", ErrQuotaExceeded, input.Tier, limit)
	}
	r.insertLocked(&alert)
	r.mu.Unlock()

	if err := r.repo.Save(alert); err != nil {
		r.mu.Lock()
		r.removeLocked(alert.ID)
		r.mu.Unlock()
		return models.Alert{}, fmt.Errorf("%w: save: %v", ErrStorageFailure, err)
	}
	return alert, nil
}

// Delete tombstones an alert. The record stays in memory with status
// inactive but its quota and capacity slots free immediately, even
// when the backing delete fails; the purge job reaps leftover rows.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	alert, ok := r.alerts[id]
	if !ok || alert.Status == models.AlertStatusInactive {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	alert.Status = models.AlertStatusInactive
	alert.UpdatedAt = r.now()
	r.live--
	delete(r.dirty, id)
	r.byUser[alert.UserID] = removeID(r.byUser[alert.UserID], id)
	if len(r.byUser[alert.UserID]) == 0 {
		delete(r.byUser, alert.UserID)
	}
	r.mu.Unlock()

	if err := r.repo.Delete(id); err != nil {
		log.Printf("Alert %s tombstoned but storage delete failed: %v", id, err)
		return fmt.Errorf("%w: delete: %v", ErrStorageFailure, err)
	}
	return nil
}

// Pause suspends evaluation for an active alert
func (r *Registry) Pause(id string) error {
	return r.transition(id, models.AlertStatusActive, models.AlertStatusPaused)
}

// Resume reactivates a paused alert
func (r *Registry) Resume(id string) error {
	return r.transition(id, models.AlertStatusPaused, models.AlertStatusActive)
}

func (r *Registry) transition(id string, from, to models.AlertStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if alert.Status != from {
		return fmt.Errorf("%w: cannot move %s alert to %s", ErrInvalidInput, alert.Status, to)
	}
	alert.Status = to
	alert.UpdatedAt = r.now()
	r.dirty[id] = true
	return nil
}

// GetByID returns a copy of one alert. Tombstoned alerts are hidden.
func (r *Registry) GetByID(id string) (models.Alert, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	alert, ok := r.alerts[id]
	if !ok || alert.Status == models.AlertStatusInactive {
		return models.Alert{}, false
	}
	return alert.Clone(), true
}

// ListByUser returns the user's alerts in insertion order
func (r *Registry) ListByUser(userID string) []models.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byUser[userID]
	out := make([]models.Alert, 0, len(ids))
	for _, id := range ids {
		if alert, ok := r.alerts[id]; ok {
			out = append(out, alert.Clone())
		}
	}
	return out
}

// ListIDs returns every live alert id in insertion order
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, r.live)
	for _, id := range r.order {
		if alert, ok := r.alerts[id]; ok && alert.Status != models.AlertStatusInactive {
			out = append(out, id)
		}
	}
	return out
}

// CommitTrigger records a firing. The alert's state is re-read under
// the write lock so a concurrent pause or delete between evaluation
// and commit wins.
func (r *Registry) CommitTrigger(id string, firedAt time.Time, currentValue decimal.Decimal) (models.Alert, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok || alert.Status != models.AlertStatusActive {
		return models.Alert{}, false
	}
	if alert.InCooldown(firedAt) {
		return models.Alert{}, false
	}
	alert.TriggerCount++
	alert.LastTriggered = firedAt
	alert.LastChecked = firedAt
	alert.CurrentValue = currentValue
	alert.UpdatedAt = firedAt
	if !alert.IsRepeatable {
		alert.Status = models.AlertStatusTriggered
	}
	r.dirty[id] = true
	return alert.Clone(), true
}

// MarkChecked stamps an evaluation pass that did not fire
func (r *Registry) MarkChecked(id string, checkedAt time.Time, currentValue decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok {
		return
	}
	alert.LastChecked = checkedAt
	alert.CurrentValue = currentValue
	r.dirty[id] = true
}

// FlushDirty persists every alert touched since the last flush.
// Alerts whose save fails stay dirty for the next pass.
func (r *Registry) FlushDirty() (int, error) {
	r.mu.RLock()
	pending := make([]models.Alert, 0, len(r.dirty))
	for id := range r.dirty {
		if alert, ok := r.alerts[id]; ok {
			pending = append(pending, alert.Clone())
		}
	}
	r.mu.RUnlock()

	flushed := 0
	var lastErr error
	for _, alert := range pending {
		if err := r.repo.Save(alert); err != nil {
			lastErr = err
			continue
		}
		r.mu.Lock()
		delete(r.dirty, alert.ID)
		r.mu.Unlock()
		flushed++
	}
	if lastErr != nil {
		return flushed, fmt.Errorf("%w: flush: %v", ErrStorageFailure, lastErr)
	}
	return flushed, nil
}

// Stats returns a point-in-time occupancy summary
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := RegistryStats{
		TotalAlerts: r.live,
		Capacity:    r.quotas.Capacity,
	}
	for _, alert := range r.alerts {
		if alert.Status == models.AlertStatusInactive {
			continue
		}
		stats.TotalTriggers += alert.TriggerCount
		switch alert.Status {
		case models.AlertStatusActive:
			stats.ActiveAlerts++
		case models.AlertStatusPaused:
			stats.PausedAlerts++
		case models.AlertStatusTriggered:
			stats.TriggeredAlerts++
		}
	}
	return stats
}

func (r *Registry) insertLocked(alert *models.Alert) {
	r.alerts[alert.ID] = alert
	r.order = append(r.order, alert.ID)
	r.byUser[alert.UserID] = append(r.byUser[alert.UserID], alert.ID)
	r.live++
}

// removeLocked fully evicts an alert, used only to roll back an
// insert whose persist failed. Tombstoning goes through Delete.
func (r *Registry) removeLocked(id string) {
	alert, ok := r.alerts[id]
	if !ok {
		return
	}
	delete(r.alerts, id)
	delete(r.dirty, id)
	r.live--
	r.order = removeID(r.order, id)
	r.byUser[alert.UserID] = removeID(r.byUser[alert.UserID], id)
	if len(r.byUser[alert.UserID]) == 0 {
		delete(r.byUser, alert.UserID)
	}
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func validateInput(input CreateInput) error {
	if input.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if input.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidInput)
	}
	if !models.IsValidAlertKind(input.Kind) {
		return fmt.Errorf("%w: unknown alert kind %q", ErrInvalidInput, input.Kind)
	}
	switch input.Kind {
	case models.AlertPriceAbove, models.AlertPriceBelow, models.AlertVolumeSpike:
		if input.TargetValue.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: target must be positive", ErrInvalidInput)
		}
	case models.AlertRSIOversold, models.AlertRSIOverbought:
		if input.TargetValue.LessThan(decimal.Zero) || input.TargetValue.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: RSI target must be between 0 and 100", ErrInvalidInput)
		}
	}
	if input.CooldownMinutes < 0 {
		return fmt.Errorf("%w: cooldown cannot be negative", ErrInvalidInput)
	}
	return nil
}
