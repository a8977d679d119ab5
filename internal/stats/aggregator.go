// Package stats derives dashboard metrics from the audit feed and the
// device registry. Compute is a pure function of its inputs: no hidden
// state, so the same records always yield the same stats.
package stats

import (
	"math"
	"time"

	"credential-service/internal/models"
)

// TypeBreakdown counts events by subject population.
type TypeBreakdown struct {
	Students int `json:"students"`
	Staff    int `json:"staff"`
}

// Stats is the derived metric set rendered by the dashboard.
type Stats struct {
	TotalAttempts       int           `json:"total_attempts"`
	SuccessRate         float64       `json:"success_rate"`
	AverageConfidence   float64       `json:"average_confidence"`
	ByUserType          TypeBreakdown `json:"by_user_type"`
	DevicesOnline       int           `json:"devices_online"`
	RecentActivityCount int           `json:"recent_activity_count"`
}

// Options tunes the aggregation window.
type Options struct {
	// Now anchors the recent-activity window; zero means time.Now().
	Now time.Time
	// RecentWindow bounds RecentActivityCount; zero means 24h.
	RecentWindow time.Duration
}

// Compute aggregates records and devices into dashboard stats.
// Security alerts are excluded from attempt counting: they annotate
// other events rather than representing attempts themselves. An empty
// record set yields a zero success rate, never a division error.
func Compute(records []models.AuditRecord, devices []models.DeviceRecord, opts Options) Stats {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	window := opts.RecentWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	cutoff := now.Add(-window)

	var s Stats
	var successes int
	var confidenceSum, confidenceCount int

	for i := range records {
		rec := &records[i]
		if rec.Type == models.RecordSecurityAlert {
			continue
		}

		s.TotalAttempts++
		if rec.Status == models.StatusSuccess {
			successes++
		}
		if v, ok := rec.ConfidenceValue(); ok {
			confidenceSum += v
			confidenceCount++
		}
		switch rec.SubjectType {
		case models.SubjectStudent:
			s.ByUserType.Students++
		case models.SubjectStaff:
			s.ByUserType.Staff++
		}
		if rec.Timestamp.After(cutoff) {
			s.RecentActivityCount++
		}
	}

	if s.TotalAttempts > 0 {
		s.SuccessRate = round2(float64(successes) / float64(s.TotalAttempts) * 100)
	}
	if confidenceCount > 0 {
		s.AverageConfidence = round2(float64(confidenceSum) / float64(confidenceCount))
	}

	for i := range devices {
		if devices[i].Status == models.DeviceOnline {
			s.DevicesOnline++
		}
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
