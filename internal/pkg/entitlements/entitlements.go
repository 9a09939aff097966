package entitlements

import "strings"

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// FreeMonthlyLetterQuota is the number of cover letters a free account may
// generate per calendar month.
const FreeMonthlyLetterQuota = 2

// NormalizePlan maps arbitrary stored plan strings onto a known plan.
func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPro):
		return PlanPro
	default:
		return PlanFree
	}
}

// MonthlyLetterQuota returns the letter quota for a plan. A negative value
// means unlimited.
func MonthlyLetterQuota(plan Plan) int {
	switch plan {
	case PlanPro:
		return -1
	default:
		return FreeMonthlyLetterQuota
	}
}

// IsUnlimited reports whether the plan has no monthly letter cap.
func IsUnlimited(plan Plan) bool {
	return MonthlyLetterQuota(plan) < 0
}
