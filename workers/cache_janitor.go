package workers

import (
	"context"
	"log"
	"time"

	"game-score-system/cache"
)

// PollExpiredEntries sweeps the memory cache tier on an interval.
// Expired entries are already invisible to readers; the sweep frees
// the slots so capacity eviction stays rare.
func PollExpiredEntries(ctx context.Context, memory *cache.MemoryTier, interval time.Duration) {
	log.Println("Starting memory cache janitor...")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Memory cache janitor stopped.")
			return
		case <-ticker.C:
			if removed := memory.PurgeExpired(); removed > 0 {
				log.Printf("🧹 Purged %d expired cache entries (size now %d)", removed, memory.Len())
			}
		}
	}
}
