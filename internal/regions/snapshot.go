package regions

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/riddle015/riverhacks/internal/db"
	"github.com/riddle015/riverhacks/internal/geo"
	"github.com/riddle015/riverhacks/internal/logger"
)

// Snapshot is an immutable, sorted copy of the region tables.
type Snapshot struct {
	Neighborhoods []Region
	Districts     []Region
}

// Locate returns the first district and neighborhood (lowest id) containing p.
func (s *Snapshot) Locate(p geo.Point) (districtID *int, neighborhood *string) {
	if s == nil {
		return nil, nil
	}
	if r := first(s.Districts, p); r != nil {
		id := r.ID
		districtID = &id
	}
	if r := first(s.Neighborhoods, p); r != nil {
		name := r.Name
		neighborhood = &name
	}
	return districtID, neighborhood
}

func first(regions []Region, p geo.Point) *Region {
	for i := range regions {
		if regions[i].Boundary.Contains(p) {
			return &regions[i]
		}
	}
	return nil
}

// Repository loads region tables and keeps the current snapshot.
type Repository struct {
	db      *gorm.DB
	log     *logger.Logger
	current atomic.Pointer[Snapshot]
	loaded  atomic.Bool
}

func NewRepository(gdb *gorm.DB, log *logger.Logger) *Repository {
	r := &Repository{db: gdb, log: logger.OrNop(log)}
	r.current.Store(&Snapshot{})
	return r
}

// Reload replaces the snapshot with the current table contents.
func (r *Repository) Reload(ctx context.Context) (*Snapshot, error) {
	var hoods []Neighborhood
	if err := r.db.WithContext(ctx).Order("neighborhood_id").Find(&hoods).Error; err != nil {
		return nil, fmt.Errorf("load neighborhoods: %w", err)
	}
	var districts []CouncilDistrict
	if err := r.db.WithContext(ctx).Order("district_id").Find(&districts).Error; err != nil {
		return nil, fmt.Errorf("load council districts: %w", err)
	}

	snap := &Snapshot{
		Neighborhoods: make([]Region, 0, len(hoods)),
		Districts:     make([]Region, 0, len(districts)),
	}
	for _, h := range hoods {
		snap.Neighborhoods = append(snap.Neighborhoods, Region{ID: h.ID, Name: h.Name, Boundary: h.Boundary})
	}
	for _, d := range districts {
		snap.Districts = append(snap.Districts, Region{ID: d.ID, Name: d.Name, Boundary: d.Boundary})
	}
	sort.Slice(snap.Neighborhoods, func(i, j int) bool { return snap.Neighborhoods[i].ID < snap.Neighborhoods[j].ID })
	sort.Slice(snap.Districts, func(i, j int) bool { return snap.Districts[i].ID < snap.Districts[j].ID })

	r.current.Store(snap)
	r.loaded.Store(true)
	r.log.Info("regions loaded", "neighborhoods", len(snap.Neighborhoods), "districts", len(snap.Districts))
	return snap, nil
}

func (r *Repository) Snapshot() *Snapshot {
	return r.current.Load()
}

// Locate uses the last loaded snapshot.
func (r *Repository) Locate(p geo.Point) (*int, *string) {
	return r.Snapshot().Locate(p)
}

// Neighborhoods serves the current snapshot. The tables are read only when
// no load has succeeded yet.
func (r *Repository) Neighborhoods(ctx context.Context) ([]Region, error) {
	if r.loaded.Load() {
		return r.Snapshot().Neighborhoods, nil
	}
	snap, err := r.Reload(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Neighborhoods, nil
}

// Refresh reloads the snapshot every interval until ctx is done, so imports
// run by alertctl reach a live server.
func (r *Repository) Refresh(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.Reload(ctx); err != nil && ctx.Err() == nil {
				r.log.Warn("region reload failed, keeping previous snapshot", "err", err)
			}
		}
	}
}

// Migrate creates the region tables and their spatial indexes.
func Migrate(gdb *gorm.DB) error {
	if err := db.EnsureExtensions(gdb, "postgis"); err != nil {
		return err
	}
	if err := gdb.AutoMigrate(&Neighborhood{}, &CouncilDistrict{}); err != nil {
		return fmt.Errorf("migrate regions: %w", err)
	}
	for _, k := range []Kind{KindNeighborhood, KindCouncilDistrict} {
		if err := db.EnsureSpatialIndex(gdb, k.Table(), "boundary"); err != nil {
			return err
		}
	}
	return nil
}
