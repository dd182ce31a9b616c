// handlers/leaderboard_routes.go
package handlers

import (
	"strconv"

	"faith-engagement-system/middleware"
	"faith-engagement-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, leaderboardService *services.LeaderboardService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Get("/s/leaderboard", func(c *fiber.Ctx) error {
		by := c.Query("by", services.DefaultLeaderboardOrdering)
		limit, _ := strconv.Atoi(c.Query("limit", "50"))

		// Serve the snapshot when one is warm and the default page size is
		// requested; fall through to a live query otherwise.
		if limit == 50 {
			if entries, refreshedAt, ok := leaderboardService.CachedTop(by); ok {
				return c.JSON(fiber.Map{
					"by":           by,
					"entries":      entries,
					"refreshed_at": refreshedAt,
					"cached":       true,
				})
			}
		}

		entries, err := leaderboardService.Top(by, limit)
		if err != nil {
			return c.Status(errorStatus(err)).JSON(fiber.Map{
				"error": "failed to load leaderboard",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"by":      by,
			"entries": entries,
			"cached":  false,
		})
	})

	securedGroup.Get("/s/leaderboard/me", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		by := c.Query("by", services.DefaultLeaderboardOrdering)

		entry, err := leaderboardService.RankFor(userID, by)
		if err != nil {
			return c.Status(errorStatus(err)).JSON(fiber.Map{
				"error": "failed to compute rank",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"by":    by,
			"entry": entry,
		})
	})
}
