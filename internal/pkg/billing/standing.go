package billing

import (
	"context"
	"errors"
	"time"

	"github.com/coverpilothq/coverpilot/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// Standing is the computed plan view for an account. It is derived from
// the ledger on every call; nothing is cached, so a plan change is visible
// on the next query.
type Standing struct {
	Active                 bool              `json:"active"`
	Plan                   entitlements.Plan `json:"plan"`
	Quota                  int               `json:"quota"`
	ProviderSubscriptionID string            `json:"provider_subscription_id,omitempty"`
	Status                 string            `json:"status,omitempty"`
	CurrentPeriodEnd       *time.Time        `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool              `json:"cancel_at_period_end,omitempty"`
}

// FreeStanding is the default standing for accounts without an active
// subscription.
func FreeStanding() *Standing {
	return &Standing{
		Active: false,
		Plan:   entitlements.PlanFree,
		Quota:  entitlements.FreeMonthlyLetterQuota,
	}
}

// GetStanding returns the plan standing for an account. When several
// active rows exist (a data anomaly) the most recently started one wins;
// absence of an active row yields the free standing, never an error.
func (s *Service) GetStanding(ctx context.Context, userID uint) (*Standing, error) {
	_ = ctx
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}

	sub, err := s.repo.GetLatestActiveSubscriptionByUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FreeStanding(), nil
		}
		return nil, err
	}

	return &Standing{
		Active:                 true,
		Plan:                   entitlements.PlanPro,
		Quota:                  entitlements.MonthlyLetterQuota(entitlements.PlanPro),
		ProviderSubscriptionID: sub.ProviderSubscriptionID,
		Status:                 sub.Status,
		CurrentPeriodEnd:       sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
	}, nil
}
