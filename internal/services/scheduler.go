package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Scheduler runs periodic delivery passes in the background until its context
// is cancelled. A pass also runs immediately on start so a restart never
// delays overdue drafts by a full interval.
type Scheduler struct {
	Delivery *DeliveryService
	Interval time.Duration
}

// Start launches the loop in its own goroutine and returns a channel that is
// closed once the loop has fully stopped.
func (s *Scheduler) Start(ctx context.Context, db *gorm.DB) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.runPass(ctx, db)

		t := time.NewTicker(s.Interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				s.runPass(ctx, db)
			case <-ctx.Done():
				log.Info().Msg("delivery scheduler stopped")
				return
			}
		}
	}()
	return done
}

func (s *Scheduler) runPass(ctx context.Context, db *gorm.DB) {
	if _, err := s.Delivery.RunDelivery(ctx, db); err != nil {
		log.Error().Err(err).Msg("scheduled delivery pass failed")
	}
}
