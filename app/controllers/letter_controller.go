package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/coverpilothq/coverpilot/app/repository"
	"github.com/coverpilothq/coverpilot/internal/pkg/entitlements"
	"github.com/coverpilothq/coverpilot/internal/pkg/letters"
	"github.com/coverpilothq/coverpilot/internal/pkg/usercontext"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// LetterController serves cover letter generation and retrieval. Every
// generation request passes the quota gate inside the letters service.
type LetterController struct {
	svc  *letters.Service
	repo repository.CoverLetterRepository
}

// NewLetterController creates the controller.
func NewLetterController(svc *letters.Service, repo repository.CoverLetterRepository) *LetterController {
	return &LetterController{svc: svc, repo: repo}
}

// HandleGenerate creates a new cover letter for the caller.
func (lc *LetterController) HandleGenerate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req letters.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	letter, err := lc.svc.Generate(ctx, userCtx.UserID, req)
	if err != nil {
		if errors.Is(err, letters.ErrQuotaExceeded) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error": "monthly letter quota exceeded",
				"quota": entitlements.FreeMonthlyLetterQuota,
			})
		}
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		log.Errorf("letter generation failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "letter generation failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(letter)
}

// HandleList returns the caller's letters, newest first.
func (lc *LetterController) HandleList(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, err := lc.repo.GetByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		log.Errorf("letter list failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "letter list failed"})
	}
	total, err := lc.repo.CountByUserID(userCtx.UserID)
	if err != nil {
		log.Errorf("letter count failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "letter list failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"letters": items,
		"total":   total,
		"offset":  offset,
		"limit":   limit,
	})
}

// HandleGet returns one letter by its public UUID. Letters are private to
// their owner; anything else is a 404.
func (lc *LetterController) HandleGet(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	letter, err := lc.repo.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "letter not found"})
		}
		log.Errorf("letter lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "letter lookup failed"})
	}
	if letter.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "letter not found"})
	}

	return c.Status(fiber.StatusOK).JSON(letter)
}
