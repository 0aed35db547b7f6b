package domain

import "time"

// Worker models an assignable human in the external directory.
// The engine only reads worker records; CurrentLoad is recomputed from live
// open request counts by the directory, never stored authoritatively.
type Worker struct {
	ID          string
	Name        string
	Active      bool
	SortOrder   int
	Skills      map[string]int
	Territories []string
	CurrentLoad int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Proficiency returns the worker's proficiency (1-5) for a product type,
// or 0 when the skill is absent.
func (w *Worker) Proficiency(productType string) int {
	if w.Skills == nil {
		return 0
	}
	return w.Skills[productType]
}

// CoversTerritory reports whether the worker serves the given city or region.
func (w *Worker) CoversTerritory(territory string) bool {
	for _, t := range w.Territories {
		if t == territory {
			return true
		}
	}
	return false
}
