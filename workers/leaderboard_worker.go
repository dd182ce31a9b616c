package workers

import (
	"context"
	"log"
	"time"

	"faith-engagement-system/services"
)

// PollLeaderboard periodically refreshes the in-memory leaderboard snapshot
// so hot leaderboard reads are served without a table scan. Read views
// tolerate staleness, so a failed refresh just leaves the previous snapshot
// in place until the next tick.
func PollLeaderboard(ctx context.Context, svc *services.LeaderboardService, interval time.Duration) {
	log.Println("Starting leaderboard snapshot polling...")

	// Take an initial snapshot so the cache is warm before the first tick.
	if err := svc.RefreshSnapshot(100); err != nil {
		log.Printf("⚠️ Initial leaderboard snapshot failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Leaderboard snapshot polling stopped.")
			return
		case <-ticker.C:
			if err := svc.RefreshSnapshot(100); err != nil {
				log.Printf("❌ Leaderboard snapshot refresh failed: %v", err)
				continue
			}
			log.Println("✅ Leaderboard snapshot refreshed")
		}
	}
}
