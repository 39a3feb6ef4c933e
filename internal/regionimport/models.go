package regionimport

import (
	"github.com/riddle015/riverhacks/internal/geo"
	"github.com/riddle015/riverhacks/internal/regions"
)

type Config struct {
	FilePath    string
	DatabaseURL string
	Kind        regions.Kind
	// IDProperty and NameProperty override the feature property lookups.
	IDProperty   string
	NameProperty string
	// Prune deletes rows of Kind that are not in the file.
	Prune bool
}

// Row is one region parsed from a feature.
type Row struct {
	ID       int
	Name     string
	Boundary geo.Boundary
}

// Result summarizes an import.
type Result struct {
	Upserted int
	Pruned   int64
}
