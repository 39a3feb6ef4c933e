// Package seeds loads demo reports for local development.
package seeds

import (
	"context"
	"fmt"

	"github.com/riddle015/riverhacks/internal/logger"
	"github.com/riddle015/riverhacks/internal/reports"
)

type demoReport struct {
	category    string
	severity    int
	lon, lat    float64
	description string
	// trail is applied in order after creation.
	trail []string
}

var demoReports = []demoReport{
	{"infrastructure", 3, -97.7431, 30.2672, "Pothole on Congress Ave near 6th St", nil},
	{"traffic", 4, -97.7501, 30.2751, "Signal out at Lamar and 15th", []string{reports.StatusInProgress}},
	{"crime", 5, -97.7370, 30.2629, "Break-ins reported along Rainey St", nil},
	{"environment", 2, -97.7531, 30.2752, "Illegal dumping behind the rec center", []string{reports.StatusInProgress, reports.StatusResolved}},
	{"public_services", 2, -97.7332, 30.2845, "Missed trash pickup on Duval", nil},
	{"noise", 3, -97.7601, 30.2621, "Late night construction noise on Barton Springs Rd", []string{reports.StatusInProgress}},
	{"animals", 3, -97.7401, 30.2702, "Loose dog near the Capitol grounds", nil},
	{"other", 1, -97.7398, 30.2583, "Graffiti on the Lady Bird Lake trail bridge", []string{reports.StatusClosed}},
}

// Result counts what SeedAll wrote.
type Result struct {
	Reports int
	Updates int
	Skipped bool
}

// SeedAll creates the demo reports unless the store already has reports,
// or force is set.
func SeedAll(ctx context.Context, store *reports.Store, force bool, log *logger.Logger) (Result, error) {
	log = logger.OrNop(log)
	var res Result

	if !force {
		existing, err := store.ListReports(ctx, reports.ListOptions{Limit: 1})
		if err != nil {
			return res, err
		}
		if len(existing) > 0 {
			log.Info("reports already present, skipping demo seed")
			res.Skipped = true
			return res, nil
		}
	}

	for _, d := range demoReports {
		r, err := store.CreateReport(ctx, reports.CreateInput{
			CategoryID:  d.category,
			Description: d.description,
			Severity:    d.severity,
			Longitude:   d.lon,
			Latitude:    d.lat,
		})
		if err != nil {
			return res, fmt.Errorf("seed %q: %w", d.description, err)
		}
		res.Reports++
		for _, status := range d.trail {
			if _, err := store.AppendUpdate(ctx, r.ID.String(), reports.UpdateInput{
				Status:  status,
				Comment: "seeded: " + status,
			}); err != nil {
				return res, fmt.Errorf("seed update %s on %s: %w", status, r.TrackingNumber, err)
			}
			res.Updates++
		}
	}
	log.Info("demo reports seeded", "reports", res.Reports, "updates", res.Updates)
	return res, nil
}
