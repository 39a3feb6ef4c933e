package reports

import (
	"strings"
	"time"

	"github.com/riddle015/riverhacks/internal/apperr"
)

const (
	StatusSubmitted  = "submitted"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// KnownStatuses may follow each other in any order.
var KnownStatuses = []string{StatusSubmitted, StatusInProgress, StatusResolved, StatusClosed}

func IsKnownStatus(s string) bool {
	for _, k := range KnownStatuses {
		if s == k {
			return true
		}
	}
	return false
}

// IsTerminal reports whether reaching s stamps resolved_at.
func IsTerminal(s string) bool {
	return s == StatusResolved || s == StatusClosed
}

// normalizeStatus trims the value and, in strict mode, requires a known status.
func normalizeStatus(raw string, strict bool) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", apperr.Validation("status is required")
	}
	if !strict {
		return s, nil
	}
	s = strings.ToLower(s)
	if !IsKnownStatus(s) {
		return "", apperr.Validation("unknown status %q (expected one of %s)", raw, strings.Join(KnownStatuses, ", "))
	}
	return s, nil
}

// applyTransition moves r to status at now. resolved_at is set on the first
// terminal transition and never cleared.
func applyTransition(r *Report, status string, now time.Time) {
	r.Status = status
	r.UpdatedAt = now
	if IsTerminal(status) && r.ResolvedAt == nil {
		t := now
		r.ResolvedAt = &t
	}
}

// commitTime returns a timestamp strictly after the report's last write, so
// update created_at values follow commit order even when clocks collide.
func commitTime(r *Report, now time.Time) time.Time {
	if !now.After(r.UpdatedAt) {
		return r.UpdatedAt.Add(time.Microsecond)
	}
	return now
}
