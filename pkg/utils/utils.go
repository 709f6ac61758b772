package utils

import (
	"time"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// NextDueDate returns the due date one calendar month after from.
// AddDate normalizes overflow (Jan 31 + 1 month lands in early March), which
// matches how the platform has always billed.
func NextDueDate(from time.Time) time.Time {
	return from.AddDate(0, 1, 0)
}

// IsDateOverdue checks if a due date is in the past relative to now.
func IsDateOverdue(dueDate time.Time, now time.Time) bool {
	return now.After(dueDate)
}

// StartOfDay truncates a timestamp to midnight in its location.
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// NormalizePagination clamps page/limit to sane bounds.
func NormalizePagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// Offset converts normalized page/limit into a SQL offset.
func Offset(page, limit int) int {
	return (page - 1) * limit
}

// TotalPages returns the page count for a result set.
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return pages
}
