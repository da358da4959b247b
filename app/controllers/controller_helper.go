package controllers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/careerpilot/careerpilot/app/repository"
	"github.com/careerpilot/careerpilot/internal/pkg/cache"
	"github.com/careerpilot/careerpilot/internal/pkg/quota"
	"github.com/careerpilot/careerpilot/internal/pkg/usercontext"
)

var validate = validator.New()

const listCacheTTL = 5 * time.Minute

// requireUser resolves the authenticated user or writes a 401 and reports false.
func requireUser(c *fiber.Ctx) (usercontext.UserContext, bool) {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
		return userCtx, false
	}
	return userCtx, true
}

// parseIDParam reads a positive numeric path parameter or writes a 400.
func parseIDParam(c *fiber.Ctx, name string) (uint, bool) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid " + name + " parameter"})
		return 0, false
	}
	return uint(id), true
}

// handleQuotaError maps quota errors onto API responses. Exhaustion is an
// expected condition and answers 402 so the client can show an upgrade prompt.
func handleQuotaError(c *fiber.Ctx, err error, resource string) error {
	if errors.Is(err, quota.ErrQuotaExhausted) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":    "upgrade_required",
			"message":  "Your " + resource + " quota is used up. Upgrade your plan to continue.",
			"resource": resource,
		})
	}
	if errors.Is(err, quota.ErrInvalidQuotaType) {
		log.Printf("[Quota] invalid resource type %q: %v", resource, err)
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to reserve quota"})
}

// validationMessage flattens the first validator error into a readable string.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "Field '" + fe.Field() + "' failed validation (" + fe.Tag() + ")"
	}
	return "Invalid request body"
}

// invalidateUserCaches drops cached lists and quota snapshots after a write.
func invalidateUserCaches(userID uint, resources ...string) {
	keys := make([]string, 0, len(resources)+1)
	for _, r := range resources {
		keys = append(keys, cache.UserListKey(userID, r))
	}
	keys = append(keys, cache.QuotaKey(userID))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cache.Default().Invalidate(ctx, keys...); err != nil {
		log.Printf("[Cache] invalidate failed for user %d: %v", userID, err)
	}
}

func quotaLedger() *quota.Ledger {
	return quota.NewLedger(repository.GetGlobalRepositories().PlanHistory)
}
