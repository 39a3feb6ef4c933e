package regions

import (
	"fmt"
	"strings"
	"time"

	"github.com/riddle015/riverhacks/internal/geo"
)

// Neighborhood is read-only reference data imported by alertctl.
type Neighborhood struct {
	ID        int          `gorm:"column:neighborhood_id;primaryKey" json:"neighborhood_id"`
	Name      string       `gorm:"size:100;not null" json:"name"`
	Boundary  geo.Boundary `json:"-"`
	CreatedAt time.Time    `json:"created_at"`
}

func (Neighborhood) TableName() string { return "neighborhoods" }

type CouncilDistrict struct {
	ID            int          `gorm:"column:district_id;primaryKey;autoIncrement:false" json:"district_id"`
	Name          string       `gorm:"size:100;not null" json:"name"`
	Boundary      geo.Boundary `json:"-"`
	CouncilMember string       `gorm:"size:200" json:"council_member,omitempty"`
	ContactEmail  string       `gorm:"size:255" json:"contact_email,omitempty"`
	ContactPhone  string       `gorm:"size:20" json:"contact_phone,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (CouncilDistrict) TableName() string { return "council_districts" }

// Kind selects which region table an import or lookup targets.
type Kind string

const (
	KindNeighborhood    Kind = "neighborhoods"
	KindCouncilDistrict Kind = "council_districts"
)

// Region is the in-memory form both tables load into.
type Region struct {
	ID       int
	Name     string
	Boundary geo.Boundary
}

// ParseKind accepts the table name or its singular form.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "neighborhoods", "neighborhood":
		return KindNeighborhood, nil
	case "council_districts", "council_district", "districts", "district":
		return KindCouncilDistrict, nil
	}
	return "", fmt.Errorf("unknown region kind %q (want neighborhoods or council_districts)", s)
}

func (k Kind) Table() string { return string(k) }

func (k Kind) IDColumn() string {
	if k == KindCouncilDistrict {
		return "district_id"
	}
	return "neighborhood_id"
}
