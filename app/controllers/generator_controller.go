package controllers

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/careerpilot/careerpilot/app/models"
	"github.com/careerpilot/careerpilot/app/repository"
	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
	"github.com/careerpilot/careerpilot/internal/pkg/generator"
)

type generateRequest struct {
	ProfileID      uint   `json:"profile_id" validate:"required,min=1"`
	Kind           string `json:"kind" validate:"required,oneof=resume cover_letter linkedin_bio"`
	TargetRole     string `json:"target_role" validate:"max=200"`
	JobDescription string `json:"job_description" validate:"max=20000"`
}

// HandleGenerate produces resume, cover letter or LinkedIn bio content from a
// profile. Each call consumes one interactions quota unit, success or not, and
// is recorded for auditing.
func HandleGenerate(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": validationMessage(err)})
	}

	profile, err := repository.GetGlobalRepositories().Profile.GetByID(req.ProfileID)
	if err != nil || profile.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Profile not found"})
	}

	if err := quotaLedger().Consume(userCtx.UserID, entitlements.ResourceInteractions); err != nil {
		return handleQuotaError(c, err, string(entitlements.ResourceInteractions))
	}

	messages := buildPromptMessages(req.Kind, profile, req.TargetRole, req.JobDescription)
	promptChars := 0
	for _, m := range messages {
		promptChars += len(m.Content)
	}

	client := generator.NewClientFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	content, genErr := client.Generate(ctx, messages)

	interaction := &models.Interaction{
		UserID:      userCtx.UserID,
		ProfileID:   profile.ID,
		Kind:        req.Kind,
		Model:       client.Model,
		PromptChars: promptChars,
		OutputChars: len(content),
		Succeeded:   genErr == nil,
	}
	if err := repository.GetGlobalRepositories().Interaction.Create(interaction); err != nil {
		log.Printf("[Generator] recording interaction for user %d failed: %v", userCtx.UserID, err)
	}
	invalidateUserCaches(userCtx.UserID)

	if genErr != nil {
		log.Printf("[Generator] generation for user %d failed: %v", userCtx.UserID, genErr)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "generation_failed", "message": "Content generation failed, please try again"})
	}

	response := fiber.Map{"kind": req.Kind, "content": content}
	// Structured output is best effort; malformed JSON falls back to raw text.
	if req.Kind == models.ResumeKindResume {
		if structured, err := generator.ExtractJSON(content); err == nil {
			response["structured"] = structured
		}
	}

	return c.JSON(response)
}

// HandleListInteractions returns the user's generation history, newest first.
func HandleListInteractions(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	repo := repository.GetGlobalRepositories().Interaction
	items, err := repo.GetByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load interactions"})
	}
	total, err := repo.CountByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load interactions"})
	}

	return c.JSON(fiber.Map{"interactions": items, "count": len(items), "total": total})
}

func buildPromptMessages(kind string, profile *models.Profile, targetRole, jobDescription string) []generator.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Candidate: %s", profile.Title)
	if profile.Headline != "" {
		fmt.Fprintf(&sb, "\nHeadline: %s", profile.Headline)
	}
	if profile.Summary != "" {
		fmt.Fprintf(&sb, "\nSummary: %s", profile.Summary)
	}
	if profile.Location != "" {
		fmt.Fprintf(&sb, "\nLocation: %s", profile.Location)
	}
	if profile.ExperienceJSON != "" {
		fmt.Fprintf(&sb, "\nExperience (JSON): %s", profile.ExperienceJSON)
	}
	if profile.EducationJSON != "" {
		fmt.Fprintf(&sb, "\nEducation (JSON): %s", profile.EducationJSON)
	}
	if profile.SkillsJSON != "" {
		fmt.Fprintf(&sb, "\nSkills (JSON): %s", profile.SkillsJSON)
	}
	if targetRole != "" {
		fmt.Fprintf(&sb, "\nTarget role: %s", targetRole)
	}
	if jobDescription != "" {
		fmt.Fprintf(&sb, "\nJob description:\n%s", jobDescription)
	}

	var system string
	switch kind {
	case models.ResumeKindCoverLetter:
		system = "You are an expert career coach. Write a tailored, professional cover letter for the candidate below. Address the job description when one is given. Return plain text only."
	case models.ResumeKindLinkedInBio:
		system = "You are an expert personal branding writer. Write a compelling LinkedIn 'About' section for the candidate below, first person, under 2600 characters. Return plain text only."
	default:
		system = "You are an expert resume writer. Produce a complete resume for the candidate below as a single JSON object with keys: summary, experience, education, skills. Respond with JSON only."
	}

	return []generator.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: sb.String()},
	}
}
