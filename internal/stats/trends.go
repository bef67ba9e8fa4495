package stats

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// Relative change beyond which the month-over-month direction is no longer
// considered stable.
const trendChangeThreshold = 0.10

// TrendParams selects the jobs bucketed into a trend report.
type TrendParams struct {
	Kind  string
	Owner string
	Since time.Time
	Until time.Time
}

// TrendBucket aggregates the completed jobs of one calendar month.
type TrendBucket struct {
	Period    string  `json:"period"` // YYYY-MM
	JobCount  int     `json:"job_count"`
	Total     float64 `json:"total"`
	Mean      float64 `json:"mean"`
	Max       float64 `json:"max"`
}

// TrendReport is the output of the trend analysis operation.
type TrendReport struct {
	Buckets       []TrendBucket `json:"buckets"`
	Direction     string        `json:"direction"`
	ChangePercent float64       `json:"change_percent"`
}

// Trends buckets completed jobs by calendar month and classifies the direction
// by comparing the mean of the most recent third of buckets against the
// earliest third, with a ±10% stability band.
func (s *Service) Trends(ctx context.Context, params TrendParams) (*TrendReport, error) {
	jobs, err := s.completedJobs(ctx, params.Kind, params.Owner, params.Since, params.Until)
	if err != nil {
		return nil, fmt.Errorf("loading completed jobs: %w", err)
	}

	byPeriod := make(map[string][]float64)
	for _, j := range jobs {
		if j.CompletedAt == nil {
			continue
		}
		period := j.CompletedAt.UTC().Format("2006-01")
		byPeriod[period] = append(byPeriod[period], magnitude(j))
	}

	periods := make([]string, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Strings(periods)

	buckets := make([]TrendBucket, 0, len(periods))
	for _, p := range periods {
		values := byPeriod[p]
		var total, max float64
		for _, v := range values {
			total += v
			if v > max {
				max = v
			}
		}
		buckets = append(buckets, TrendBucket{
			Period:   p,
			JobCount: len(values),
			Total:    total,
			Mean:     total / float64(len(values)),
			Max:      max,
		})
	}

	direction, change := classifyDirection(buckets)
	return &TrendReport{Buckets: buckets, Direction: direction, ChangePercent: change}, nil
}

// classifyDirection compares the most recent third of buckets against the
// earliest third. Fewer than two buckets is always stable.
func classifyDirection(buckets []TrendBucket) (string, float64) {
	n := len(buckets)
	if n < 2 {
		return TrendStable, 0
	}

	third := n / 3
	if third < 1 {
		third = 1
	}

	earlier := meanOfBuckets(buckets[:third])
	recent := meanOfBuckets(buckets[n-third:])

	if earlier == 0 {
		if recent > 0 {
			return TrendIncreasing, 100
		}
		return TrendStable, 0
	}

	change := (recent - earlier) / earlier
	switch {
	case change > trendChangeThreshold:
		return TrendIncreasing, change * 100
	case change < -trendChangeThreshold:
		return TrendDecreasing, change * 100
	default:
		return TrendStable, change * 100
	}
}

func meanOfBuckets(buckets []TrendBucket) float64 {
	if len(buckets) == 0 {
		return 0
	}
	var sum float64
	for _, b := range buckets {
		sum += b.Mean
	}
	return sum / float64(len(buckets))
}
