package regions

import (
	"time"

	"github.com/EmpoweredVote/cii-backend/internal/geo"
	"github.com/lib/pq"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedRecord(code string, t RegionType, year int) *Record {
	return &Record{
		RegionCode: code,
		RegionType: t,
		Country:    ParentCode(code),
		RegionName: code + " name",
		DataYear:   year,
		Geometry:   Boundary{geo.Polygon{geo.Ring{{0, 0}, {0, 2}, {2, 2}, {2, 0}, {0, 0}}}},
		Centroid:   Point{1, 1},
		Metrics: Metrics{
			Population:     Float(1000),
			TemperatureAvg: Float(15),
			DroughtIndex:   Float(0.3),
		},
		Scores:      Scores{CIIScore: Float(0.4)},
		DataSources: pq.StringArray{TagSynthetic},
		LastUpdated: testNow,
	}
}
