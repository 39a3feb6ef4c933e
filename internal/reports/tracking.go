package reports

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var trackingPattern = regexp.MustCompile(`^\d{14}-[0-9a-f]{8}$`)

// TrackingNumber formats YYYYMMDDHHMMSS-XXXXXXXX from the UTC creation time and
// the first 8 hex characters of the report id.
func TrackingNumber(createdAt time.Time, id uuid.UUID) string {
	return createdAt.UTC().Format("20060102150405") + "-" + strings.ReplaceAll(id.String(), "-", "")[:8]
}

func ValidTrackingNumber(s string) bool {
	return trackingPattern.MatchString(s)
}
