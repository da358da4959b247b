package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/app/repository"
	"github.com/careerpilot/careerpilot/internal/pkg/billing"
	"github.com/careerpilot/careerpilot/internal/pkg/cache"
	"github.com/careerpilot/careerpilot/internal/pkg/database"
	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
)

// HandleGetAccount returns account information for the authenticated user.
func HandleGetAccount(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	repos := repository.GetGlobalRepositories()
	account, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	plan, _, err := billing.NewServiceFromDB(database.GetDB()).CurrentPlan(userCtx.UserID)
	if err != nil {
		log.Printf("[User] resolving plan for user %d failed: %v", userCtx.UserID, err)
		plan = entitlements.PlanFree
	}

	profileCount, _ := repos.Profile.CountByUserID(userCtx.UserID)
	resumeCount, _ := repos.Resume.CountByUserID(userCtx.UserID)
	opportunityCount, _ := repos.Opportunity.CountByUserID(userCtx.UserID)
	recruiterCount, _ := repos.Recruiter.CountByUserID(userCtx.UserID)

	return c.JSON(fiber.Map{
		"id":            account.ID,
		"name":          account.Name,
		"email":         account.Email,
		"status":        account.Status,
		"plan":          string(plan),
		"is_premium":    account.IsPremium,
		"is_admin":      account.Role == "admin",
		"created_at":    account.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at": formatTimePtr(account.LastLoginAt),
		"stats": fiber.Map{
			"profiles":      profileCount,
			"resumes":       resumeCount,
			"opportunities": opportunityCount,
			"recruiters":    recruiterCount,
		},
	})
}

// HandleGetQuota returns remaining quota per resource. The snapshot is cached
// briefly and invalidated by any quota-touching write.
func HandleGetQuota(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	key := cache.QuotaKey(userCtx.UserID)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if cached, err := cache.Default().Get(ctx, key); err == nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(cached)
	}

	remaining, err := quotaLedger().Remaining(userCtx.UserID)
	if err != nil {
		log.Printf("[User] loading quota for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load quota"})
	}

	payload := fiber.Map{"remaining": quotaMap(remaining)}
	if body, err := json.Marshal(payload); err == nil {
		_ = cache.Default().Set(ctx, key, string(body), listCacheTTL)
	}
	return c.JSON(payload)
}

// HandleAdminStats returns service-wide counters. Admin only.
func HandleAdminStats(c *fiber.Ctx) error {
	userCount, err := repository.GetGlobalRepositories().User.Count()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load stats"})
	}
	return c.JSON(fiber.Map{"users": userCount})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
