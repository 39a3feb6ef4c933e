package reports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/riddle015/riverhacks/internal/apperr"
	"github.com/riddle015/riverhacks/internal/db"
	"github.com/riddle015/riverhacks/internal/geo"
	"github.com/riddle015/riverhacks/internal/logger"
	"github.com/riddle015/riverhacks/internal/metrics"
)

// DefaultListLimit caps unfiltered listings.
const DefaultListLimit = 100

const maxTrackingAttempts = 3

// Locator derives council district and neighborhood for a point.
type Locator interface {
	Locate(p geo.Point) (districtID *int, neighborhood *string)
}

type Options struct {
	// StrictStatus rejects statuses outside KnownStatuses.
	StrictStatus bool
	// Retries bounds the retries of transient store failures.
	Retries int
	Locator Locator
	Logger  *logger.Logger
	Now     func() time.Time
}

// Store owns reports, their update trail and votes.
type Store struct {
	db      *gorm.DB
	strict  bool
	retries int
	locator Locator
	log     *logger.Logger
	now     func() time.Time

	onChange []func(context.Context)
}

func NewStore(gdb *gorm.DB, opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		db:      gdb,
		strict:  opts.StrictStatus,
		retries: opts.Retries,
		locator: opts.Locator,
		log:     logger.OrNop(opts.Logger),
		now:     now,
	}
}

// OnChange registers fn to run after every committed create, update or
// delete. Register before serving requests.
func (s *Store) OnChange(fn func(context.Context)) {
	s.onChange = append(s.onChange, fn)
}

func (s *Store) changed(ctx context.Context) {
	for _, fn := range s.onChange {
		fn(ctx)
	}
}

func (s *Store) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// CreateInput is a new report submission.
type CreateInput struct {
	OwnerID       *string
	CategoryID    string
	SubcategoryID *int
	Title         string
	Description   string
	Severity      int
	Longitude     float64
	Latitude      float64
	Address       string
}

func (in CreateInput) validate() error {
	var missing []string
	if strings.TrimSpace(in.CategoryID) == "" {
		missing = append(missing, "category_id")
	}
	if strings.TrimSpace(in.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}
	if in.Severity < 1 || in.Severity > 5 {
		return apperr.Validation("severity must be between 1 and 5, got %d", in.Severity)
	}
	return nil
}

// CreateReport validates and persists a report in status "submitted".
func (s *Store) CreateReport(ctx context.Context, in CreateInput) (*Report, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	pt, err := geo.NewPoint(in.Longitude, in.Latitude)
	if err != nil {
		return nil, err
	}
	categoryID := strings.TrimSpace(in.CategoryID)
	if err := s.checkCategory(ctx, categoryID); err != nil {
		return nil, err
	}

	var district *int
	var hood *string
	if s.locator != nil {
		district, hood = s.locator.Locate(pt)
	}

	for attempt := 1; ; attempt++ {
		now := s.clock()
		id := uuid.New()
		r := &Report{
			ID:              id,
			TrackingNumber:  TrackingNumber(now, id),
			UserID:          blankToNil(in.OwnerID),
			CategoryID:      categoryID,
			SubcategoryID:   in.SubcategoryID,
			Severity:        in.Severity,
			Title:           strings.TrimSpace(in.Title),
			Description:     strings.TrimSpace(in.Description),
			Location:        pt,
			Longitude:       pt.Lon,
			Latitude:        pt.Lat,
			Address:         strings.TrimSpace(in.Address),
			CouncilDistrict: district,
			Neighborhood:    hood,
			Status:          StatusSubmitted,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		err := db.Retry(ctx, s.retries, "create_report", func() error {
			return s.db.WithContext(ctx).Omit(clause.Associations).Create(r).Error
		})
		if err == nil {
			metrics.ReportsCreatedTotal.Inc()
			s.log.Info("report created", "report_id", r.ID, "tracking_number", r.TrackingNumber, "category", r.CategoryID)
			s.changed(ctx)
			return r, nil
		}

		classified := db.Classify("create report", err)
		if apperr.KindOf(classified) == apperr.KindConflict && attempt < maxTrackingAttempts {
			s.log.Warn("tracking number collision, regenerating", "tracking_number", r.TrackingNumber, "attempt", attempt)
			continue
		}
		return nil, classified
	}
}

func (s *Store) checkCategory(ctx context.Context, id string) error {
	var n int64
	err := db.Retry(ctx, s.retries, "check_category", func() error {
		return s.db.WithContext(ctx).Model(&Category{}).
			Where("category_id = ? AND is_active = ?", id, true).
			Count(&n).Error
	})
	if err != nil {
		return db.Classify("check category", err)
	}
	if n == 0 {
		return apperr.Validation("unknown category %q", id)
	}
	return nil
}

// GetReport fails with NotFound when the id is unknown or malformed.
func (s *Store) GetReport(ctx context.Context, id string) (*Report, error) {
	rid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.NotFound("report %s not found", id)
	}
	var r Report
	err = db.Retry(ctx, s.retries, "get_report", func() error {
		return s.db.WithContext(ctx).Take(&r, "report_id = ?", rid).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("report %s not found", id)
	}
	if err != nil {
		return nil, db.Classify("get report", err)
	}
	return &r, nil
}

type ListOptions struct {
	OwnerID *string
	// Limit <= 0 means DefaultListLimit without an owner filter and no cap with one.
	Limit int
}

// ListReports returns reports newest first.
func (s *Store) ListReports(ctx context.Context, opts ListOptions) ([]Report, error) {
	owner := blankToNil(opts.OwnerID)

	var out []Report
	err := db.Retry(ctx, s.retries, "list_reports", func() error {
		q := s.db.WithContext(ctx).Order("created_at DESC").Order("report_id")
		if owner != nil {
			q = q.Where("user_id = ?", *owner)
		}
		switch {
		case opts.Limit > 0:
			q = q.Limit(opts.Limit)
		case owner == nil:
			q = q.Limit(DefaultListLimit)
		}
		out = nil
		return q.Find(&out).Error
	})
	if err != nil {
		return nil, db.Classify("list reports", err)
	}
	return out, nil
}

type UpdateInput struct {
	ActorID        *string
	Status         string
	Comment        string
	ParentUpdateID *uuid.UUID
}

// AppendUpdate inserts an update and moves the report to its status in one
// transaction, holding the report row lock so concurrent appends serialize.
func (s *Store) AppendUpdate(ctx context.Context, reportID string, in UpdateInput) (*ReportUpdate, error) {
	rid, err := uuid.Parse(reportID)
	if err != nil {
		return nil, apperr.NotFound("report %s not found", reportID)
	}
	status, err := normalizeStatus(in.Status, s.strict)
	if err != nil {
		return nil, err
	}
	comment := strings.TrimSpace(in.Comment)
	if comment == "" {
		return nil, apperr.Validation("comment is required")
	}

	var upd *ReportUpdate
	err = db.Retry(ctx, s.retries, "append_update", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var r Report
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Take(&r, "report_id = ?", rid).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("report %s not found", reportID)
				}
				return err
			}

			if in.ParentUpdateID != nil {
				var n int64
				if err := tx.Model(&ReportUpdate{}).
					Where("update_id = ? AND report_id = ?", *in.ParentUpdateID, rid).
					Count(&n).Error; err != nil {
					return err
				}
				if n == 0 {
					return apperr.Validation("parent update %s does not belong to report %s", in.ParentUpdateID, reportID)
				}
			}

			var last struct{ Seq int }
			if err := tx.Model(&ReportUpdate{}).
				Select("COALESCE(MAX(seq), 0) AS seq").
				Where("report_id = ?", rid).
				Scan(&last).Error; err != nil {
				return err
			}

			now := commitTime(&r, s.clock())
			u := &ReportUpdate{
				ID:             uuid.New(),
				ReportID:       rid,
				Seq:            last.Seq + 1,
				UserID:         blankToNil(in.ActorID),
				StatusChange:   status,
				Comment:        comment,
				ParentUpdateID: in.ParentUpdateID,
				CreatedAt:      now,
			}
			if err := tx.Omit(clause.Associations).Create(u).Error; err != nil {
				return err
			}

			applyTransition(&r, status, now)
			if err := tx.Model(&Report{}).Where("report_id = ?", rid).Updates(map[string]interface{}{
				"status":      r.Status,
				"updated_at":  r.UpdatedAt,
				"resolved_at": r.ResolvedAt,
			}).Error; err != nil {
				return err
			}
			upd = u
			return nil
		})
	})
	if err != nil {
		return nil, db.Classify("append update", err)
	}

	metrics.UpdatesAppendedTotal.WithLabelValues(upd.StatusChange).Inc()
	s.log.Info("report updated", "report_id", rid, "status", upd.StatusChange, "seq", upd.Seq)
	s.changed(ctx)
	return upd, nil
}

// ListUpdates returns the audit trail in commit order.
func (s *Store) ListUpdates(ctx context.Context, reportID string) ([]ReportUpdate, error) {
	r, err := s.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	var out []ReportUpdate
	err = db.Retry(ctx, s.retries, "list_updates", func() error {
		out = nil
		return s.db.WithContext(ctx).
			Where("report_id = ?", r.ID).
			Order("seq ASC").
			Find(&out).Error
	})
	if err != nil {
		return nil, db.Classify("list updates", err)
	}
	return out, nil
}

// DeleteReport removes a report together with its updates and votes.
func (s *Store) DeleteReport(ctx context.Context, reportID string) error {
	rid, err := uuid.Parse(reportID)
	if err != nil {
		return apperr.NotFound("report %s not found", reportID)
	}
	err = db.Retry(ctx, s.retries, "delete_report", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("report_id = ?", rid).Delete(&Vote{}).Error; err != nil {
				return err
			}
			if err := tx.Where("report_id = ?", rid).Delete(&ReportUpdate{}).Error; err != nil {
				return err
			}
			res := tx.Where("report_id = ?", rid).Delete(&Report{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperr.NotFound("report %s not found", reportID)
			}
			return nil
		})
	})
	if err != nil {
		return db.Classify("delete report", err)
	}
	s.log.Info("report deleted", "report_id", rid)
	s.changed(ctx)
	return nil
}

// Points returns every report matching f, oldest first.
func (s *Store) Points(ctx context.Context, f Filter) ([]Report, error) {
	var out []Report
	err := db.Retry(ctx, s.retries, "points", func() error {
		q := s.db.WithContext(ctx)
		if len(f.CategoryIDs) > 0 {
			q = q.Where("category_id IN ?", f.CategoryIDs)
		}
		if len(f.Statuses) > 0 {
			q = q.Where("status IN ?", f.Statuses)
		}
		if f.Start != nil {
			q = q.Where("created_at >= ?", f.Start.UTC())
		}
		if f.End != nil {
			q = q.Where("created_at < ?", f.End.UTC())
		}
		if f.CouncilDistrict != nil {
			q = q.Where("council_district = ?", *f.CouncilDistrict)
		}
		out = nil
		return q.Order("created_at ASC").Order("report_id").Find(&out).Error
	})
	if err != nil {
		return nil, db.Classify("query reports", err)
	}
	return out, nil
}

// Nearby returns reports created at or after since within meters of center,
// nearest first.
func (s *Store) Nearby(ctx context.Context, center geo.Point, since time.Time, meters float64) ([]NearbyReport, error) {
	if meters <= 0 {
		return nil, apperr.Validation("radius must be positive")
	}
	bound := geo.BoundAround(center, meters)

	var rows []Report
	err := db.Retry(ctx, s.retries, "nearby", func() error {
		rows = nil
		return s.db.WithContext(ctx).
			Where("longitude BETWEEN ? AND ?", bound.Min.Lon(), bound.Max.Lon()).
			Where("latitude BETWEEN ? AND ?", bound.Min.Lat(), bound.Max.Lat()).
			Where("created_at >= ?", since.UTC()).
			Find(&rows).Error
	})
	if err != nil {
		return nil, db.Classify("nearby reports", err)
	}

	out := make([]NearbyReport, 0, len(rows))
	for _, r := range rows {
		d := geo.DistanceMeters(center, r.Location)
		if d <= meters {
			out = append(out, NearbyReport{Report: r, DistanceMeters: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].Report.CreatedAt.After(out[j].Report.CreatedAt)
	})
	return out, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := db.Retry(ctx, s.retries, "list_categories", func() error {
		out = nil
		return s.db.WithContext(ctx).Where("is_active = ?", true).Order("category_id").Find(&out).Error
	})
	if err != nil {
		return nil, db.Classify("list categories", err)
	}
	return out, nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *Store) String() string {
	return fmt.Sprintf("reports.Store(%s)", s.db.Dialector.Name())
}
