// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartExpirySweep retires expired catalog rewards once an hour.
func (s *RewardService) StartExpirySweep() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			swept, err := s.SweepExpired()
			if err != nil {
				log.Printf("[Scheduler] reward expiry sweep failed: %v", err)
				return
			}
			if swept > 0 {
				log.Printf("[Scheduler] retired %d expired catalog rewards", swept)
			}
		}),
	)
}
