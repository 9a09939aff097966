package letters

import (
	"context"
	"errors"
	"time"

	"github.com/coverpilothq/coverpilot/app/models"
	"github.com/coverpilothq/coverpilot/app/repository"
	"github.com/coverpilothq/coverpilot/internal/pkg/billing"
	"github.com/coverpilothq/coverpilot/internal/pkg/metrics/counter"
	"github.com/coverpilothq/coverpilot/internal/pkg/usage"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
)

// ErrQuotaExceeded is returned when a free account has used up its monthly
// letter quota. The paid path never hits it.
var ErrQuotaExceeded = errors.New("monthly letter quota exceeded")

var requestValidate = validator.New()

// Service gates and executes letter generation. The quota decision reads
// plan standing from the ledger and the month's usage from the letter log
// on every call; nothing is cached across requests.
type Service struct {
	letters   repository.CoverLetterRepository
	billing   *billing.Service
	generator Generator
	now       func() time.Time
}

// NewService creates a letter generation service.
func NewService(letters repository.CoverLetterRepository, billingSvc *billing.Service, generator Generator) *Service {
	return &Service{
		letters:   letters,
		billing:   billingSvc,
		generator: generator,
		now:       time.Now,
	}
}

// WithClock overrides the clock. Used by tests to pin the month window.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Generate runs the quota gate and produces a new letter for the account.
func (s *Service) Generate(ctx context.Context, userID uint, req GenerateRequest) (*models.CoverLetter, error) {
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}
	if err := requestValidate.Struct(&req); err != nil {
		return nil, err
	}

	standing, err := s.billing.GetStanding(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !standing.Active {
		used, err := usage.CountThisMonth(s.letters, userID, s.now())
		if err != nil {
			return nil, err
		}
		if !usage.WithinQuota(used, standing.Quota) {
			return nil, ErrQuotaExceeded
		}
	}

	content, model, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	letter := &models.CoverLetter{
		UserID:      userID,
		JobTitle:    req.JobTitle,
		CompanyName: req.CompanyName,
		JobPosting:  req.JobPosting,
		Resume:      req.Resume,
		Content:     content,
		Model:       model,
	}
	if err := s.letters.Create(letter); err != nil {
		return nil, err
	}

	// Best-effort stats counter, flushed to the DB in batches.
	if err := counter.AddLetterGenerated(userID); err != nil {
		log.Warnf("failed to buffer letter counter for user %d: %v", userID, err)
	}

	return letter, nil
}

// Remaining returns how many letters the account may still generate this
// month. A negative value means unlimited.
func (s *Service) Remaining(ctx context.Context, userID uint) (int64, error) {
	standing, err := s.billing.GetStanding(ctx, userID)
	if err != nil {
		return 0, err
	}
	if standing.Quota < 0 {
		return -1, nil
	}
	used, err := usage.CountThisMonth(s.letters, userID, s.now())
	if err != nil {
		return 0, err
	}
	remaining := int64(standing.Quota) - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
