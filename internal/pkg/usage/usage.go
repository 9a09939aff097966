package usage

import (
	"errors"
	"time"
)

// LetterCounter is the slice of the cover letter repository the usage
// counter needs: a filtered count over creation timestamps.
type LetterCounter interface {
	CountByUserInWindow(userID uint, start, end time.Time) (int64, error)
}

// MonthWindow returns the calendar-month window containing now, in the
// server's local zone: first day 00:00:00 through last day 23:59:59.
func MonthWindow(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}

// CountThisMonth returns how many letters the account generated in the
// current calendar month. Pure read, computed on demand; nothing is
// cached or denormalized.
func CountThisMonth(repo LetterCounter, userID uint, now time.Time) (int64, error) {
	if repo == nil {
		return 0, errors.New("letter counter repository is required")
	}
	if userID == 0 {
		return 0, errors.New("user_id is required")
	}
	start, end := MonthWindow(now)
	return repo.CountByUserInWindow(userID, start, end)
}

// WithinQuota reports whether another generation is allowed given a quota.
// A negative quota means unlimited.
func WithinQuota(used int64, quota int) bool {
	if quota < 0 {
		return true
	}
	return used < int64(quota)
}
