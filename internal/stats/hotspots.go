package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Hotspot ranking never returns more than this many entries.
const maxHotspots = 50

// HotspotParams selects the completed jobs ranked into hotspots.
type HotspotParams struct {
	Kind  string
	Since time.Time
	Until time.Time
}

// Hotspot is one ranked entry: a completed job scored by its magnitude metric.
type Hotspot struct {
	JobID       uuid.UUID `json:"job_id"`
	Kind        string    `json:"kind"`
	Magnitude   float64   `json:"magnitude"`
	Confidence  float64   `json:"confidence"`
	Risk        string    `json:"risk"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	CompletedAt time.Time `json:"completed_at"`
}

// Hotspots ranks completed jobs in the window by magnitude descending, capped
// at 50, and classifies each into a risk level from combined
// magnitude+confidence thresholds.
func (s *Service) Hotspots(ctx context.Context, params HotspotParams) ([]Hotspot, error) {
	jobs, err := s.completedJobs(ctx, params.Kind, "", params.Since, params.Until)
	if err != nil {
		return nil, fmt.Errorf("loading completed jobs: %w", err)
	}

	hotspots := make([]Hotspot, 0, len(jobs))
	for _, j := range jobs {
		if j.CompletedAt == nil {
			continue
		}
		mag := magnitude(j)
		conf := confidence(j)
		lat, lng := inputCenter(j.Input)
		hotspots = append(hotspots, Hotspot{
			JobID:       j.ID,
			Kind:        j.Kind,
			Magnitude:   mag,
			Confidence:  conf,
			Risk:        classifyRisk(mag, conf),
			Latitude:    lat,
			Longitude:   lng,
			CompletedAt: j.CompletedAt.UTC(),
		})
	}

	sort.SliceStable(hotspots, func(i, k int) bool {
		return hotspots[i].Magnitude > hotspots[k].Magnitude
	})
	if len(hotspots) > maxHotspots {
		hotspots = hotspots[:maxHotspots]
	}
	return hotspots, nil
}

// classifyRisk combines magnitude and confidence: high demands both a strong
// signal and high confidence; weak signals rank low regardless of confidence.
func classifyRisk(magnitude, confidence float64) string {
	switch {
	case magnitude >= 15 && confidence >= 70:
		return RiskHigh
	case magnitude >= 5 && confidence >= 50:
		return RiskMedium
	default:
		return RiskLow
	}
}
