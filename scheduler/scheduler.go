package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"tokenalert_backend/services/alerts"
	"tokenalert_backend/services/alertstore"
	"tokenalert_backend/services/indicators"
)

// inactiveRetention is how long tombstoned rows survive before the
// purge job reaps them
const inactiveRetention = 30 * 24 * time.Hour

// Scheduler runs the engine's background maintenance jobs
type Scheduler struct {
	cron       *gocron.Scheduler
	registry   *alerts.Registry
	store      *alertstore.GormRepository
	indicators *indicators.MongoSource
}

// NewScheduler creates a scheduler; store and indicators may be nil
func NewScheduler(registry *alerts.Registry, store *alertstore.GormRepository, ind *indicators.MongoSource) *Scheduler {
	return &Scheduler{
		cron:       gocron.NewScheduler(time.UTC),
		registry:   registry,
		store:      store,
		indicators: ind,
	}
}

// Start registers and launches all jobs asynchronously
func (s *Scheduler) Start() {
	if _, err := s.cron.Every(1).Minute().Do(s.flushDirtyAlerts); err != nil {
		log.Printf("Failed to schedule alert flush job: %v", err)
	}

	if s.store != nil {
		if _, err := s.cron.Every(1).Day().At("03:00").Do(s.purgeInactiveAlerts); err != nil {
			log.Printf("Failed to schedule purge job: %v", err)
		}
	}

	if s.indicators != nil {
		if _, err := s.cron.Every(5).Minutes().Do(s.refreshIndicators); err != nil {
			log.Printf("Failed to schedule indicator refresh job: %v", err)
		}
	}

	s.cron.StartAsync()
	log.Println("Scheduler started")
}

// Stop halts all jobs, waiting for running ones to finish
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) flushDirtyAlerts() {
	flushed, err := s.registry.FlushDirty()
	if err != nil {
		log.Printf("Alert flush incomplete: %v", err)
		return
	}
	if flushed > 0 {
		log.Printf("Flushed %d alerts to storage", flushed)
	}
}

func (s *Scheduler) purgeInactiveAlerts() {
	cutoff := time.Now().Add(-inactiveRetention)
	if _, err := s.store.PurgeInactiveBefore(cutoff); err != nil {
		log.Printf("Inactive alert purge failed: %v", err)
	}
}

func (s *Scheduler) refreshIndicators() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.indicators.Refresh(ctx); err != nil {
		log.Printf("Indicator refresh failed: %v", err)
	}
}
