package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/app/models"
	"github.com/careerpilot/careerpilot/app/repository"
	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
)

type resumeRequest struct {
	ProfileID   uint   `json:"profile_id" validate:"required,min=1"`
	Kind        string `json:"kind" validate:"omitempty,oneof=resume cover_letter linkedin_bio"`
	Title       string `json:"title" validate:"required,min=1,max=200"`
	TargetRole  string `json:"target_role" validate:"max=200"`
	ContentJSON string `json:"content_json"`
}

// HandleCreateResume persists a document against the resumes quota.
func HandleCreateResume(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req resumeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": validationMessage(err)})
	}
	if req.Kind == "" {
		req.Kind = models.ResumeKindResume
	}

	// The referenced profile must belong to the caller.
	profile, err := repository.GetGlobalRepositories().Profile.GetByID(req.ProfileID)
	if err != nil || profile.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Profile not found"})
	}

	ledger := quotaLedger()
	if err := ledger.Consume(userCtx.UserID, entitlements.ResourceResumes); err != nil {
		return handleQuotaError(c, err, string(entitlements.ResourceResumes))
	}

	resume := &models.Resume{
		UserID:      userCtx.UserID,
		ProfileID:   req.ProfileID,
		Kind:        req.Kind,
		Title:       req.Title,
		TargetRole:  req.TargetRole,
		ContentJSON: req.ContentJSON,
	}
	if err := repository.GetGlobalRepositories().Resume.Create(resume); err != nil {
		if restoreErr := ledger.Restore(userCtx.UserID, entitlements.ResourceResumes); restoreErr != nil {
			log.Printf("[Resume] quota restore after failed insert for user %d: %v", userCtx.UserID, restoreErr)
		}
		log.Printf("[Resume] create for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create resume"})
	}

	invalidateUserCaches(userCtx.UserID, "resumes")
	return c.Status(fiber.StatusCreated).JSON(resume)
}

// HandleListResumes returns the user's documents, optionally filtered by profile.
func HandleListResumes(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	repo := repository.GetGlobalRepositories().Resume

	if profileID := c.QueryInt("profile_id"); profileID > 0 {
		profile, err := repository.GetGlobalRepositories().Profile.GetByID(uint(profileID))
		if err != nil || profile.UserID != userCtx.UserID {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Profile not found"})
		}
		resumes, err := repo.GetByProfileID(uint(profileID))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load resumes"})
		}
		return c.JSON(fiber.Map{"resumes": resumes, "count": len(resumes)})
	}

	resumes, err := repo.GetByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load resumes"})
	}
	return c.JSON(fiber.Map{"resumes": resumes, "count": len(resumes)})
}

// HandleGetResume returns one owned document.
func HandleGetResume(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	resume, err := repository.GetGlobalRepositories().Resume.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Resume not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load resume"})
	}
	if resume.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Resume not found"})
	}

	return c.JSON(resume)
}

// HandleUpdateResume updates an owned document without touching quota.
func HandleUpdateResume(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	repo := repository.GetGlobalRepositories().Resume
	resume, err := repo.GetByID(id)
	if err != nil || resume.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Resume not found"})
	}

	var req resumeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": validationMessage(err)})
	}

	resume.Title = req.Title
	resume.TargetRole = req.TargetRole
	resume.ContentJSON = req.ContentJSON
	if req.Kind != "" {
		resume.Kind = req.Kind
	}

	if err := repo.Update(resume); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update resume"})
	}

	invalidateUserCaches(userCtx.UserID, "resumes")
	return c.JSON(resume)
}

// HandleDeleteResume removes an owned document and returns its quota unit.
func HandleDeleteResume(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	repo := repository.GetGlobalRepositories().Resume
	resume, err := repo.GetByID(id)
	if err != nil || resume.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Resume not found"})
	}

	if err := repo.Delete(id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete resume"})
	}
	if err := quotaLedger().Restore(userCtx.UserID, entitlements.ResourceResumes); err != nil {
		log.Printf("[Resume] quota restore after delete for user %d: %v", userCtx.UserID, err)
	}

	invalidateUserCaches(userCtx.UserID, "resumes")
	return c.JSON(fiber.Map{"deleted": true})
}
