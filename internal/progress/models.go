// Package progress tracks seeding runs. Readers take the most recent record;
// writers hold an explicit run handle. Status only moves forward and
// counters never decrease, so overlapping invocations of the same stage
// cannot move a run backwards.
package progress

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusInitializing      Status = "initializing"
	StatusCountries         Status = "countries"
	StatusCountriesComplete Status = "countries_complete"
	StatusRegions           Status = "regions"
	StatusCompleted         Status = "completed"
)

// statusOrder is the only allowed direction of travel.
var statusOrder = []Status{
	StatusInitializing,
	StatusCountries,
	StatusCountriesComplete,
	StatusRegions,
	StatusCompleted,
}

// Rank is the position of s in the run lifecycle, or -1 if unknown.
func (s Status) Rank() int { return slices.Index(statusOrder, s) }

const TableName = "seeding_progress"

type Record struct {
	ID                 uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	Status             Status            `json:"status" gorm:"type:text;not null"`
	CurrentStep        string            `json:"current_step"`
	TotalCountries     int               `json:"total_countries" gorm:"not null;default:0"`
	ProcessedCountries int               `json:"processed_countries" gorm:"not null;default:0"`
	TotalRegions       int               `json:"total_regions" gorm:"not null;default:0"`
	ProcessedRegions   int               `json:"processed_regions" gorm:"not null;default:0"`
	Details            datatypes.JSONMap `json:"details,omitempty" gorm:"type:jsonb"`
	CreatedAt          time.Time         `json:"created_at" gorm:"index"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func (Record) TableName() string { return TableName }

// Update is one advance request. Zero counters and an empty status or step
// leave the stored value alone; Details replaces the stored details when set.
type Update struct {
	Status             Status
	Step               string
	TotalCountries     int
	ProcessedCountries int
	TotalRegions       int
	ProcessedRegions   int
	Details            map[string]any
}

func (u Update) validate() error {
	if u.Status != "" && u.Status.Rank() < 0 {
		return fmt.Errorf("unknown progress status %q", u.Status)
	}
	if u.TotalCountries < 0 || u.ProcessedCountries < 0 || u.TotalRegions < 0 || u.ProcessedRegions < 0 {
		return fmt.Errorf("progress counters must not be negative")
	}
	return nil
}

// apply is the in-process form of the SQL advance.
func (r *Record) apply(u Update, now time.Time) {
	if u.Status != "" && u.Status.Rank() > r.Status.Rank() {
		r.Status = u.Status
	}
	if u.Step != "" {
		r.CurrentStep = u.Step
	}
	r.TotalCountries = max(r.TotalCountries, u.TotalCountries)
	r.ProcessedCountries = max(r.ProcessedCountries, u.ProcessedCountries)
	r.TotalRegions = max(r.TotalRegions, u.TotalRegions)
	r.ProcessedRegions = max(r.ProcessedRegions, u.ProcessedRegions)
	if u.Details != nil {
		r.Details = datatypes.JSONMap(u.Details)
	}
	r.UpdatedAt = now
}
