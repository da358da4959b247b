package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/app/models"
	"github.com/careerpilot/careerpilot/app/repository"
	"github.com/careerpilot/careerpilot/internal/pkg/cache"
	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
)

type profileRequest struct {
	Title          string `json:"title" validate:"required,min=1,max=200"`
	Headline       string `json:"headline" validate:"max=255"`
	Summary        string `json:"summary"`
	Location       string `json:"location"`
	Phone          string `json:"phone"`
	ContactEmail   string `json:"contact_email" validate:"omitempty,email"`
	WebsiteURL     string `json:"website_url" validate:"omitempty,url"`
	LinkedInURL    string `json:"linkedin_url" validate:"omitempty,url"`
	ExperienceJSON string `json:"experience_json"`
	EducationJSON  string `json:"education_json"`
	SkillsJSON     string `json:"skills_json"`
}

// HandleCreateProfile reserves one profile quota unit, then persists the
// profile. The quota reservation is rolled back if the insert fails.
func HandleCreateProfile(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req profileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": validationMessage(err)})
	}

	ledger := quotaLedger()
	if err := ledger.Consume(userCtx.UserID, entitlements.ResourceProfiles); err != nil {
		return handleQuotaError(c, err, string(entitlements.ResourceProfiles))
	}

	profile := &models.Profile{
		UserID:         userCtx.UserID,
		Title:          req.Title,
		Headline:       req.Headline,
		Summary:        req.Summary,
		Location:       req.Location,
		Phone:          req.Phone,
		ContactEmail:   req.ContactEmail,
		WebsiteURL:     req.WebsiteURL,
		LinkedInURL:    req.LinkedInURL,
		ExperienceJSON: req.ExperienceJSON,
		EducationJSON:  req.EducationJSON,
		SkillsJSON:     req.SkillsJSON,
	}
	if err := repository.GetGlobalRepositories().Profile.Create(profile); err != nil {
		if restoreErr := ledger.Restore(userCtx.UserID, entitlements.ResourceProfiles); restoreErr != nil {
			log.Printf("[Profile] quota restore after failed insert for user %d: %v", userCtx.UserID, restoreErr)
		}
		log.Printf("[Profile] create for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create profile"})
	}

	invalidateUserCaches(userCtx.UserID, "profiles")
	return c.Status(fiber.StatusCreated).JSON(profile)
}

// HandleListProfiles returns all profiles of the authenticated user.
func HandleListProfiles(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	key := cache.UserListKey(userCtx.UserID, "profiles")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if cached, err := cache.Default().Get(ctx, key); err == nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(cached)
	}

	profiles, err := repository.GetGlobalRepositories().Profile.GetByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load profiles"})
	}

	body, err := json.Marshal(fiber.Map{"profiles": profiles, "count": len(profiles)})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to encode profiles"})
	}
	_ = cache.Default().Set(ctx, key, string(body), listCacheTTL)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

// HandleGetProfile returns one profile owned by the authenticated user.
func HandleGetProfile(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	profile, err := repository.GetGlobalRepositories().Profile.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load profile"})
	}
	if profile.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Profile not found"})
	}

	return c.JSON(profile)
}

// HandleUpdateProfile updates an owned profile. Updates do not touch quota.
func HandleUpdateProfile(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	repo := repository.GetGlobalRepositories().Profile
	profile, err := repo.GetByID(id)
	if err != nil || profile.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Profile not found"})
	}

	var req profileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": validationMessage(err)})
	}

	profile.Title = req.Title
	profile.Headline = req.Headline
	profile.Summary = req.Summary
	profile.Location = req.Location
	profile.Phone = req.Phone
	profile.ContactEmail = req.ContactEmail
	profile.WebsiteURL = req.WebsiteURL
	profile.LinkedInURL = req.LinkedInURL
	profile.ExperienceJSON = req.ExperienceJSON
	profile.EducationJSON = req.EducationJSON
	profile.SkillsJSON = req.SkillsJSON

	if err := repo.Update(profile); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update profile"})
	}

	invalidateUserCaches(userCtx.UserID, "profiles")
	return c.JSON(profile)
}

// HandleDeleteProfile removes an owned profile and returns its quota unit.
func HandleDeleteProfile(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	repo := repository.GetGlobalRepositories().Profile
	profile, err := repo.GetByID(id)
	if err != nil || profile.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Profile not found"})
	}

	if err := repo.Delete(id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete profile"})
	}
	if err := quotaLedger().Restore(userCtx.UserID, entitlements.ResourceProfiles); err != nil {
		log.Printf("[Profile] quota restore after delete for user %d: %v", userCtx.UserID, err)
	}

	invalidateUserCaches(userCtx.UserID, "profiles")
	return c.JSON(fiber.Map{"deleted": true})
}
