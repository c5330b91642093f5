package alertstore

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tokenalert_backend/models"
)

// GormRepository persists alerts through gorm. It satisfies the
// registry's Repository contract.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository over db
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Load returns every stored alert
func (r *GormRepository) Load() ([]models.Alert, error) {
	var alerts []models.Alert
	if err := r.db.Order("created_at asc").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	return alerts, nil
}

// Save upserts one alert row
func (r *GormRepository) Save(alert models.Alert) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&alert).Error
	if err != nil {
		return fmt.Errorf("save alert %s: %w", alert.ID, err)
	}
	return nil
}

// Delete removes one alert row
func (r *GormRepository) Delete(id string) error {
	if err := r.db.Delete(&models.Alert{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete alert %s: %w", id, err)
	}
	return nil
}

// PurgeInactiveBefore removes rows that went inactive before cutoff.
// Rows left behind by failed deletes get reaped here.
func (r *GormRepository) PurgeInactiveBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("status = ? AND updated_at < ?", models.AlertStatusInactive, cutoff).
		Delete(&models.Alert{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge inactive alerts: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("Purged %d inactive alerts older than %s", result.RowsAffected, cutoff.Format(time.RFC3339))
	}
	return result.RowsAffected, nil
}
