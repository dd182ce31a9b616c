// handlers/engagement_routes.go
package handlers

import (
	"errors"

	"faith-engagement-system/middleware"
	"faith-engagement-system/models"
	"faith-engagement-system/services"
	"faith-engagement-system/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupEngagementRoutes(app *fiber.App, engagementService *services.EngagementService, milestoneService *services.MilestoneService) {
	// 🔐 Secured routes — require user context (userID, roles) from Gateway.
	// The gateway forwards paths like /api/v1/engagement/s/session -> /s/session
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Post("/s/session", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var input services.SessionInput
		if err := c.BodyParser(&input); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		result, err := engagementService.RecordSession(userID, input)
		if err != nil {
			return c.Status(errorStatus(err)).JSON(fiber.Map{
				"error": "failed to record session",
				"cause": err.Error(),
			})
		}

		response := stateResponse(result.State)
		response["streak_message"] = result.StreakMessage
		response["is_new_streak"] = result.IsNewStreak
		if result.Milestone != nil {
			response["milestone"] = fiber.Map{
				"days":          result.Milestone.Days,
				"name":          result.Milestone.DisplayName(),
				"code":          result.Milestone.Code(),
				"freeze_reward": result.Milestone.FreezeReward,
			}
		}
		return c.JSON(response)
	})

	securedGroup.Get("/s/engagement", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		state, err := engagementService.EnsureState(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load engagement state",
				"cause": err.Error(),
			})
		}

		milestones, err := milestoneService.ListForUser(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load milestones",
				"cause": err.Error(),
			})
		}

		response := stateResponse(state)
		response["milestones_achieved"] = milestones
		return c.JSON(response)
	})

	securedGroup.Get("/s/goals", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		state, err := engagementService.EnsureState(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load engagement state",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"daily_goals":         state.DailyGoals(),
			"completed_goals":     state.CompletedGoals(),
			"total_goals":         5,
			"progress_percentage": state.GoalProgressPercentage(),
			"today_completed":     state.TodayCompleted,
		})
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Post("/freezes/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id"`
			Count  int    `json:"count"`
			Reason string `json:"reason"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		state, err := engagementService.GrantFreezes(req.UserID, req.Count)
		if err != nil {
			return c.Status(errorStatus(err)).JSON(fiber.Map{
				"error": "freeze grant failed",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"message":           "freezes granted successfully",
			"user_id":           req.UserID,
			"freezes_available": state.FreezesAvailable,
		})
	})
}

// stateResponse builds the full engagement projection for the client,
// including the derived display fields.
func stateResponse(state *models.EngagementState) fiber.Map {
	return fiber.Map{
		"user_id":             state.UserID,
		"current_streak":      state.CurrentStreak,
		"longest_streak":      state.LongestStreak,
		"total_active_days":   state.TotalActiveDays,
		"last_active_date":    state.LastActiveDate,
		"streak_start_date":   state.StreakStartDate,
		"freezes_available":   state.FreezesAvailable,
		"today_completed":     state.TodayCompleted,
		"daily_goals":         state.DailyGoals(),
		"progress_percentage": state.GoalProgressPercentage(),
		"usage": fiber.Map{
			"total_sessions":           state.TotalSessions,
			"total_time_spent_seconds": state.TotalTimeSpentSeconds,
			"today_time_spent_seconds": state.TodayTimeSpentSeconds,
			"total_time_formatted":     utils.FormatSeconds(state.TotalTimeSpentSeconds),
			"today_time_formatted":     utils.FormatSeconds(state.TodayTimeSpentSeconds),
			"last_opened_at":           state.LastOpenedAt,
			"recent_sessions":          state.RecentSessions,
		},
		"xp": fiber.Map{
			"total_xp":         state.TotalXP,
			"today_xp":         state.TodayXP,
			"level":            state.Level(),
			"xp_to_next_level": state.XPToNextLevel(),
		},
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrInvalidTimestamp):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
