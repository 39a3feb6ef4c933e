package reports

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/riddle015/riverhacks/internal/geo"
)

// Category is an entry of the issue category catalog, keyed by slug.
type Category struct {
	ID            string `gorm:"column:category_id;primaryKey;size:50" json:"category_id"`
	Name          string `gorm:"size:100;not null" json:"name"`
	Description   string `gorm:"type:text" json:"description,omitempty"`
	IconName      string `gorm:"size:50" json:"icon_name,omitempty"`
	SeverityLevel int    `gorm:"not null;default:3" json:"severity_level"`
	IsActive      bool   `gorm:"not null;default:true" json:"is_active"`
}

func (Category) TableName() string { return "issue_categories" }

type Report struct {
	ID             uuid.UUID `gorm:"column:report_id;type:uuid;primaryKey" json:"report_id"`
	TrackingNumber string    `gorm:"size:24;uniqueIndex;not null" json:"tracking_number"`
	UserID         *string   `gorm:"size:64;index" json:"user_id"`

	CategoryID    string    `gorm:"size:50;not null;index" json:"category_id"`
	Category      *Category `gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	SubcategoryID *int      `json:"subcategory_id"`
	Severity      int       `gorm:"not null" json:"severity"`
	Title         string    `gorm:"size:255" json:"title,omitempty"`
	Description   string    `gorm:"type:text;not null" json:"description"`

	// Location is the source of truth; Longitude/Latitude mirror it for
	// bounding-box filters.
	Location        geo.Point `gorm:"column:location_point;not null" json:"-"`
	Longitude       float64   `gorm:"not null;index:idx_reports_lon_lat,priority:1" json:"longitude"`
	Latitude        float64   `gorm:"not null;index:idx_reports_lon_lat,priority:2" json:"latitude"`
	Address         string    `gorm:"size:255" json:"address,omitempty"`
	CouncilDistrict *int      `gorm:"index" json:"council_district"`
	Neighborhood    *string   `gorm:"size:100" json:"neighborhood"`

	Status     string     `gorm:"size:50;not null;index" json:"status"`
	CreatedAt  time.Time  `gorm:"not null;index;autoCreateTime:false" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

func (Report) TableName() string { return "reports" }

// MarshalJSON adds the GeoJSON location next to the flat coordinates.
func (r Report) MarshalJSON() ([]byte, error) {
	type alias Report
	return json.Marshal(struct {
		alias
		Location *geojson.Geometry `json:"location"`
	}{alias(r), r.Location.FeatureGeometry()})
}

// ReportUpdate is an append-only audit entry. Seq orders a report's updates
// in commit order.
type ReportUpdate struct {
	ID             uuid.UUID  `gorm:"column:update_id;type:uuid;primaryKey" json:"update_id"`
	ReportID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_report_updates_seq,priority:1" json:"report_id"`
	Report         *Report    `gorm:"foreignKey:ReportID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Seq            int        `gorm:"not null;uniqueIndex:idx_report_updates_seq,priority:2" json:"seq"`
	UserID         *string    `gorm:"size:64" json:"user_id"`
	StatusChange   string     `gorm:"size:50;not null" json:"status_change"`
	Comment        string     `gorm:"type:text;not null" json:"comment"`
	ParentUpdateID *uuid.UUID `gorm:"type:uuid" json:"parent_update_id,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;autoCreateTime:false" json:"created_at"`
}

func (ReportUpdate) TableName() string { return "report_updates" }

// Vote is one user's reaction to a report; (report_id, user_id) is unique.
type Vote struct {
	ID        uuid.UUID `gorm:"column:vote_id;type:uuid;primaryKey" json:"vote_id"`
	ReportID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_report_votes_user,priority:1" json:"report_id"`
	Report    *Report   `gorm:"foreignKey:ReportID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_report_votes_user,priority:2" json:"user_id"`
	VoteType  string    `gorm:"size:20;not null" json:"vote_type"`
	Comment   string    `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false" json:"created_at"`
}

func (Vote) TableName() string { return "report_votes" }

const (
	VoteUp      = "upvote"
	VoteDown    = "downvote"
	VoteConfirm = "confirm"
)

// VoteSummary counts votes per type.
type VoteSummary struct {
	ReportID  uuid.UUID `json:"report_id"`
	Upvotes   int64     `json:"upvotes"`
	Downvotes int64     `json:"downvotes"`
	Confirms  int64     `json:"confirms"`
}

// Filter restricts point queries. Zero values mean no restriction; all
// supplied fields are ANDed.
type Filter struct {
	CategoryIDs     []string
	Statuses        []string
	Start           *time.Time // inclusive
	End             *time.Time // exclusive
	CouncilDistrict *int
}

// NearbyReport is a report with its distance from the query point.
type NearbyReport struct {
	Report         Report  `json:"report"`
	DistanceMeters float64 `json:"distance_meters"`
}
