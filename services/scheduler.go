// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartPartitionScheduler keeps the current and next month's score log
// partitions provisioned so writers never create one on the hot path.
// The first run happens at startup before the job is scheduled.
func (s *ScoreLogService) StartPartitionScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(6*time.Hour),
		gocron.NewTask(func() {
			if err := s.Partitions.EnsureCurrentAndNext(); err != nil {
				log.Printf("[Scheduler] Partition provisioning failed: %v", err)
				return
			}
			log.Printf("✅ Score log partitions provisioned for current and next month")
		}),
	)
}
