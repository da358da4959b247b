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

type recruiterRequest struct {
	OpportunityID *uint  `json:"opportunity_id"`
	Name          string `json:"name" validate:"required,min=1,max=150"`
	Company       string `json:"company" validate:"max=200"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"max=50"`
	LinkedInURL   string `json:"linkedin_url" validate:"omitempty,url"`
	Notes         string `json:"notes"`
}

// HandleCreateRecruiter stores a contact against the contacts quota.
func HandleCreateRecruiter(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req recruiterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": validationMessage(err)})
	}

	if req.OpportunityID != nil {
		op, err := repository.GetGlobalRepositories().Opportunity.GetByID(*req.OpportunityID)
		if err != nil || op.UserID != userCtx.UserID {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Opportunity not found"})
		}
	}

	ledger := quotaLedger()
	if err := ledger.Consume(userCtx.UserID, entitlements.ResourceContacts); err != nil {
		return handleQuotaError(c, err, string(entitlements.ResourceContacts))
	}

	rec := &models.Recruiter{
		UserID:        userCtx.UserID,
		OpportunityID: req.OpportunityID,
		Name:          req.Name,
		Company:       req.Company,
		Email:         req.Email,
		Phone:         req.Phone,
		LinkedInURL:   req.LinkedInURL,
		Notes:         req.Notes,
	}
	if err := repository.GetGlobalRepositories().Recruiter.Create(rec); err != nil {
		if restoreErr := ledger.Restore(userCtx.UserID, entitlements.ResourceContacts); restoreErr != nil {
			log.Printf("[Recruiter] quota restore after failed insert for user %d: %v", userCtx.UserID, restoreErr)
		}
		log.Printf("[Recruiter] create for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create contact"})
	}

	invalidateUserCaches(userCtx.UserID, "recruiters")
	return c.Status(fiber.StatusCreated).JSON(rec)
}

// HandleListRecruiters returns the user's recruiter contacts.
func HandleListRecruiters(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	recs, err := repository.GetGlobalRepositories().Recruiter.GetByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load contacts"})
	}
	return c.JSON(fiber.Map{"recruiters": recs, "count": len(recs)})
}

// HandleGetRecruiter returns one owned contact.
func HandleGetRecruiter(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	rec, err := repository.GetGlobalRepositories().Recruiter.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Contact not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load contact"})
	}
	if rec.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Contact not found"})
	}

	return c.JSON(rec)
}

// HandleUpdateRecruiter updates an owned contact without touching quota.
func HandleUpdateRecruiter(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	repo := repository.GetGlobalRepositories().Recruiter
	rec, err := repo.GetByID(id)
	if err != nil || rec.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Contact not found"})
	}

	var req recruiterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": validationMessage(err)})
	}

	if req.OpportunityID != nil {
		op, err := repository.GetGlobalRepositories().Opportunity.GetByID(*req.OpportunityID)
		if err != nil || op.UserID != userCtx.UserID {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Opportunity not found"})
		}
	}

	rec.OpportunityID = req.OpportunityID
	rec.Name = req.Name
	rec.Company = req.Company
	rec.Email = req.Email
	rec.Phone = req.Phone
	rec.LinkedInURL = req.LinkedInURL
	rec.Notes = req.Notes

	if err := repo.Update(rec); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update contact"})
	}

	invalidateUserCaches(userCtx.UserID, "recruiters")
	return c.JSON(rec)
}

// HandleDeleteRecruiter removes an owned contact and returns its quota unit.
func HandleDeleteRecruiter(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	repo := repository.GetGlobalRepositories().Recruiter
	rec, err := repo.GetByID(id)
	if err != nil || rec.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Contact not found"})
	}

	if err := repo.Delete(id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete contact"})
	}
	if err := quotaLedger().Restore(userCtx.UserID, entitlements.ResourceContacts); err != nil {
		log.Printf("[Recruiter] quota restore after delete for user %d: %v", userCtx.UserID, err)
	}

	invalidateUserCaches(userCtx.UserID, "recruiters")
	return c.JSON(fiber.Map{"deleted": true})
}
