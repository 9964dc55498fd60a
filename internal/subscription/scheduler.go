package subscription

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dineflow/dineflow-backend/pkg/database"
)

// Scheduler downgrades expired paid subscriptions to the free plan.
type Scheduler struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewScheduler(db *gorm.DB, log *logrus.Logger) *Scheduler {
	return &Scheduler{db: db, log: log}
}

// Start begins the scheduler loop (runs every hour)
func (s *Scheduler) Start() {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		s.Run()
		for range ticker.C {
			s.Run()
		}
	}()
	s.log.Info("subscription scheduler started")
}

func (s *Scheduler) Run() {
	s.DowngradeExpiredSubscriptions()
}

// DowngradeExpiredSubscriptions resets expired paid plans to free limits
func (s *Scheduler) DowngradeExpiredSubscriptions() {
	var subscriptions []database.Subscription
	s.db.Where(
		"plan <> ? AND status = ? AND current_period_end < ?",
		"free", "active", time.Now(),
	).Find(&subscriptions)

	free := Plans["free"]
	for _, sub := range subscriptions {
		previousPlan := sub.Plan

		sub.Plan = free.ID
		sub.Status = "active"
		sub.MaxUsers = free.MaxUsers
		sub.MaxMenuItems = free.MaxMenuItems
		sub.MaxDailySales = free.MaxDailySales
		if err := s.db.Save(&sub).Error; err != nil {
			s.log.WithError(err).WithField("business_id", sub.BusinessID).
				Error("failed to downgrade expired subscription")
			continue
		}

		s.log.WithFields(logrus.Fields{
			"business_id": sub.BusinessID,
			"from_plan":   previousPlan,
		}).Info("downgraded expired subscription to free")
	}
}
