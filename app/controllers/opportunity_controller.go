package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/app/models"
	"github.com/careerpilot/careerpilot/app/repository"
	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
)

type opportunityRequest struct {
	Company     string `json:"company" validate:"required,min=1,max=200"`
	RoleTitle   string `json:"role_title" validate:"required,min=1,max=200"`
	Stage       string `json:"stage" validate:"omitempty,oneof=wishlist applied interview offer rejected"`
	PostingURL  string `json:"posting_url" validate:"omitempty,url"`
	Location    string `json:"location" validate:"max=150"`
	SalaryRange string `json:"salary_range" validate:"max=100"`
	Notes       string `json:"notes"`
}

// HandleCreateOpportunity tracks a new application against the opportunities quota.
func HandleCreateOpportunity(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req opportunityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": validationMessage(err)})
	}
	if req.Stage == "" {
		req.Stage = models.OpportunityStageWishlist
	}

	ledger := quotaLedger()
	if err := ledger.Consume(userCtx.UserID, entitlements.ResourceOpportunities); err != nil {
		return handleQuotaError(c, err, string(entitlements.ResourceOpportunities))
	}

	op := &models.Opportunity{
		UserID:      userCtx.UserID,
		Company:     req.Company,
		RoleTitle:   req.RoleTitle,
		Stage:       req.Stage,
		PostingURL:  req.PostingURL,
		Location:    req.Location,
		SalaryRange: req.SalaryRange,
		Notes:       req.Notes,
	}
	if req.Stage == models.OpportunityStageApplied {
		now := time.Now()
		op.AppliedAt = &now
	}

	if err := repository.GetGlobalRepositories().Opportunity.Create(op); err != nil {
		if restoreErr := ledger.Restore(userCtx.UserID, entitlements.ResourceOpportunities); restoreErr != nil {
			log.Printf("[Opportunity] quota restore after failed insert for user %d: %v", userCtx.UserID, restoreErr)
		}
		log.Printf("[Opportunity] create for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create opportunity"})
	}

	invalidateUserCaches(userCtx.UserID, "opportunities")
	return c.Status(fiber.StatusCreated).JSON(op)
}

// HandleListOpportunities returns tracked applications, optionally by stage.
func HandleListOpportunities(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	repo := repository.GetGlobalRepositories().Opportunity

	if stage := c.Query("stage"); stage != "" {
		if !models.ValidStage(stage) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unknown stage " + stage})
		}
		ops, err := repo.GetByUserIDAndStage(userCtx.UserID, stage)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load opportunities"})
		}
		return c.JSON(fiber.Map{"opportunities": ops, "count": len(ops)})
	}

	ops, err := repo.GetByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load opportunities"})
	}
	return c.JSON(fiber.Map{"opportunities": ops, "count": len(ops)})
}

// HandleGetOpportunity returns one owned opportunity.
func HandleGetOpportunity(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	op, err := repository.GetGlobalRepositories().Opportunity.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Opportunity not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load opportunity"})
	}
	if op.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Opportunity not found"})
	}

	return c.JSON(op)
}

// HandleUpdateOpportunity updates an owned opportunity. Moving into the
// applied stage stamps AppliedAt once.
func HandleUpdateOpportunity(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	repo := repository.GetGlobalRepositories().Opportunity
	op, err := repo.GetByID(id)
	if err != nil || op.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Opportunity not found"})
	}

	var req opportunityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": validationMessage(err)})
	}

	op.Company = req.Company
	op.RoleTitle = req.RoleTitle
	op.PostingURL = req.PostingURL
	op.Location = req.Location
	op.SalaryRange = req.SalaryRange
	op.Notes = req.Notes
	if req.Stage != "" && req.Stage != op.Stage {
		if req.Stage == models.OpportunityStageApplied && op.AppliedAt == nil {
			now := time.Now()
			op.AppliedAt = &now
		}
		op.Stage = req.Stage
	}

	if err := repo.Update(op); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update opportunity"})
	}

	invalidateUserCaches(userCtx.UserID, "opportunities")
	return c.JSON(op)
}

// HandleDeleteOpportunity removes an owned opportunity and returns its quota unit.
func HandleDeleteOpportunity(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	repo := repository.GetGlobalRepositories().Opportunity
	op, err := repo.GetByID(id)
	if err != nil || op.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Opportunity not found"})
	}

	if err := repo.Delete(id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete opportunity"})
	}
	if err := quotaLedger().Restore(userCtx.UserID, entitlements.ResourceOpportunities); err != nil {
		log.Printf("[Opportunity] quota restore after delete for user %d: %v", userCtx.UserID, err)
	}

	invalidateUserCaches(userCtx.UserID, "opportunities")
	return c.JSON(fiber.Map{"deleted": true})
}
