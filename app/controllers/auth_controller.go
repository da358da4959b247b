package controllers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/app/models"
	"github.com/careerpilot/careerpilot/app/repository"
	"github.com/careerpilot/careerpilot/internal/pkg/middleware"
	"github.com/careerpilot/careerpilot/internal/pkg/session"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister creates a local account and logs the user in.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": validationMessage(err)})
	}

	users := repository.GetGlobalRepositories().User
	if existing, err := users.GetByEmail(req.Email); err == nil && existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "email_taken", "message": "An account with this email already exists"})
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": validationMessage(err)})
	}
	if err := users.Create(user); err != nil {
		log.Printf("[Auth] creating user failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create account"})
	}

	if err := startUserSession(c, user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to start session"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": user.ID, "name": user.Name, "email": user.Email})
}

// HandleLogin authenticates by email and password.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": validationMessage(err)})
	}

	user, err := repository.GetGlobalRepositories().User.GetByEmail(req.Email)
	if err != nil || user == nil || !user.CheckPassword(req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_credentials", "message": "Email or password is incorrect"})
	}
	if !user.IsActive() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "account_disabled", "message": "This account is not active"})
	}

	if err := startUserSession(c, user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to start session"})
	}

	return c.JSON(fiber.Map{"id": user.ID, "name": user.Name, "email": user.Email, "is_premium": user.IsPremium})
}

// HandleLogout destroys the session.
func HandleLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		_ = sess.Destroy()
	}
	return c.JSON(fiber.Map{"logged_out": true})
}

// HandleOAuthLogin starts the provider flow (e.g. /auth/google).
func HandleOAuthLogin(c *fiber.Ctx) error {
	if user, err := gothfiber.CompleteUserAuth(c); err == nil {
		return finishOAuthLogin(c, user.Provider, user.UserID, user.Email, firstNonEmpty(user.Name, user.NickName, user.Email, "User"))
	}
	return gothfiber.BeginAuthHandler(c)
}

// HandleOAuthCallback completes the provider flow and logs the user in.
func HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "oauth_failed", "message": fmt.Sprintf("OAuth failed: %v", err)})
	}
	return finishOAuthLogin(c, u.Provider, u.UserID, u.Email, firstNonEmpty(u.Name, u.NickName, u.Email, "User"))
}

func finishOAuthLogin(c *fiber.Ctx, provider, providerUserID, email, name string) error {
	users := repository.GetGlobalRepositories().User

	user, err := users.GetByOAuth(provider, providerUserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Account lookup failed"})
	}

	if user == nil || user.ID == 0 {
		// Match an existing local account by email before creating a new one.
		if email != "" {
			if byEmail, err := users.GetByEmail(email); err == nil && byEmail != nil {
				user = byEmail
			}
		}
		if user == nil || user.ID == 0 {
			// Placeholder password; OAuth accounts never log in with it.
			placeholder := fmt.Sprintf("oauth_%d", time.Now().UnixNano())
			hash, _ := models.HashPassword(placeholder)
			if email == "" {
				email = fmt.Sprintf("%s_%s@%s.oauth.local", provider, providerUserID, provider)
			}
			user = &models.User{
				Name:     name,
				Email:    email,
				Password: hash,
				Role:     models.ROLE_USER,
				Status:   models.STATUS_ACTIVE,
			}
			if err := users.Create(user); err != nil {
				log.Printf("[Auth] creating OAuth user failed: %v", err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create account"})
			}
		}
		user.OAuthProvider = provider
		user.OAuthID = providerUserID
		if err := users.Update(user); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to link provider account"})
		}
	}

	if !user.IsActive() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "account_disabled", "message": "This account is not active"})
	}

	if err := startUserSession(c, user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to start session"})
	}

	return c.Redirect("/", fiber.StatusSeeOther)
}

func startUserSession(c *fiber.Ctx, user *models.User) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}
	sess.Set(middleware.SessionKeyUserID, user.ID)
	sess.Set(middleware.SessionKeyUserName, user.Name)
	sess.Set(middleware.SessionKeyUserEmail, user.Email)
	sess.Set(middleware.SessionKeyIsAdmin, user.Role == models.ROLE_ADMIN)
	if err := sess.Save(); err != nil {
		return err
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := repository.GetGlobalRepositories().User.Update(user); err != nil {
		log.Printf("[Auth] updating last login for user %d failed: %v", user.ID, err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
