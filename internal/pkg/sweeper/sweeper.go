package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/internal/pkg/billing"
	"github.com/careerpilot/careerpilot/internal/pkg/env"
)

// Sweeper periodically downgrades users whose paid entitlement window lapsed
// without a renewal event. It is a safety net behind the webhook flow: under
// normal operation the provider's events keep plan history current.
type Sweeper struct {
	cron *cron.Cron
	svc  *billing.Service
}

// New creates a sweeper over the given database handle.
func New(db *gorm.DB) *Sweeper {
	return &Sweeper{
		cron: cron.New(),
		svc:  billing.NewServiceFromDB(db),
	}
}

// Start registers the sweep schedule and runs the cron loop in the background.
// The schedule comes from PLAN_SWEEP_SCHEDULE, default daily at 03:10.
func (s *Sweeper) Start() error {
	schedule := env.GetEnv("PLAN_SWEEP_SCHEDULE", "10 3 * * *")
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[Sweeper] plan expiration sweep scheduled (%s)", schedule)
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce performs a single sweep immediately. Used at startup to catch up
// after downtime.
func (s *Sweeper) RunOnce(ctx context.Context) {
	expired, err := s.svc.ExpireLapsedPlans(ctx)
	if err != nil {
		log.Printf("[Sweeper] plan expiration sweep failed: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("[Sweeper] downgraded %d lapsed plan(s) to free", expired)
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	s.RunOnce(ctx)
}
