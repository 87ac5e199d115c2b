// Package anomaly flags statistically notable period-over-period changes and
// ranks them by a severity/impact score.
package anomaly

import (
	"math"
	"sort"
	"time"
)

// DefaultThreshold is the percent change at which a shift counts as an
// anomaly.
const DefaultThreshold = 20.0

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityPositive Severity = "positive"
)

// Check is the verdict for one current/previous value pair.
type Check struct {
	IsAnomaly     bool     `json:"isAnomaly"`
	ChangePercent float64  `json:"changePercent"`
	Severity      Severity `json:"severity"`
}

// DimensionDelta is one dimension value's period-over-period movement.
type DimensionDelta struct {
	Dimension     string  `json:"dimension"`
	CurrentValue  float64 `json:"currentValue"`
	PreviousValue float64 `json:"previousValue"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// Anomaly is one metric's flagged movement, optionally with per-dimension
// drilldowns attached. Ephemeral: built per analysis request, ranked and
// discarded.
type Anomaly struct {
	Metric        string              `json:"metric"`
	Severity      Severity            `json:"severity"`
	ChangePercent float64             `json:"changePercent"`
	CurrentValue  float64             `json:"currentValue"`
	PreviousValue float64             `json:"previousValue"`
	Dimensions    *DimensionBreakdown `json:"dimensions,omitempty"`
	DetectedAt    time.Time           `json:"detectedAt"`
	Score         float64             `json:"score"`
}

// DimensionBreakdown carries the channel and device drilldowns for one
// anomalous metric.
type DimensionBreakdown struct {
	Channels          []DimensionDelta `json:"channels"`
	AnomalousChannels []DimensionDelta `json:"anomalousChannels"`
	Devices           []DimensionDelta `json:"devices"`
	AnomalousDevices  []DimensionDelta `json:"anomalousDevices"`
}

// DetectAnomaly compares one value pair. A previous value of zero is never
// anomalous, avoiding division by zero. Severity: positive at or above the
// threshold, critical at or below -40%, warning otherwise.
func DetectAnomaly(current, previous, threshold float64) Check {
	if previous == 0 {
		return Check{IsAnomaly: false, ChangePercent: 0, Severity: SeverityWarning}
	}

	changePercent := (current - previous) / previous * 100
	absChange := math.Abs(changePercent)

	severity := SeverityWarning
	switch {
	case changePercent <= -threshold && absChange >= 40:
		severity = SeverityCritical
	case changePercent >= threshold:
		severity = SeverityPositive
	}

	return Check{
		IsAnomaly:     absChange >= threshold,
		ChangePercent: round1(changePercent),
		Severity:      severity,
	}
}

// FindAnomalousDimensions keeps deltas whose change exceeds the threshold,
// sorted by descending absolute percent change. Ties keep input order.
func FindAnomalousDimensions(deltas []DimensionDelta, threshold float64) []DimensionDelta {
	anomalous := make([]DimensionDelta, 0, len(deltas))
	for _, d := range deltas {
		if DetectAnomaly(d.CurrentValue, d.PreviousValue, threshold).IsAnomaly {
			anomalous = append(anomalous, d)
		}
	}
	sort.SliceStable(anomalous, func(i, j int) bool {
		return math.Abs(anomalous[i].ChangePercent) > math.Abs(anomalous[j].ChangePercent)
	})
	return anomalous
}

// CalculateAnomalyScore weights relative change by the log-scale magnitude of
// the values involved, so big metrics with modest swings can outrank tiny
// metrics with huge swings.
func CalculateAnomalyScore(changePercent, current, previous float64) float64 {
	return math.Abs(changePercent) * math.Log10(math.Max(current, previous)+1)
}

// RankAnomalies attaches scores and sorts by descending score. Ties keep
// input order.
func RankAnomalies(anomalies []Anomaly) []Anomaly {
	ranked := append([]Anomaly(nil), anomalies...)
	for i := range ranked {
		ranked[i].Score = CalculateAnomalyScore(
			ranked[i].ChangePercent, ranked[i].CurrentValue, ranked[i].PreviousValue)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// TimePoint is one day's value in a series.
type TimePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// SuddenChange reports the first trend break found in a series.
type SuddenChange struct {
	HasChange  bool   `json:"hasChange"`
	ChangeDate string `json:"changeDate,omitempty"`
	ChangeType string `json:"changeType,omitempty"` // spike or drop
}

// DetectSuddenChange scans a series of at least 7 points for the first index
// where the centered 3-point moving average shifts more than 30%.
func DetectSuddenChange(series []TimePoint) SuddenChange {
	if len(series) < 7 {
		return SuddenChange{}
	}

	movingAvg := func(idx int) float64 {
		start := idx - 2
		if start < 0 {
			start = 0
		}
		end := idx + 1
		if end > len(series) {
			end = len(series)
		}
		var sum float64
		for _, p := range series[start:end] {
			sum += p.Value
		}
		return sum / float64(end-start)
	}

	for i := 3; i < len(series)-3; i++ {
		before := movingAvg(i - 3)
		after := movingAvg(i + 3)
		changePercent := (after - before) / before * 100

		if math.Abs(changePercent) > 30 {
			changeType := "drop"
			if changePercent > 0 {
				changeType = "spike"
			}
			return SuddenChange{HasChange: true, ChangeDate: series[i].Date, ChangeType: changeType}
		}
	}

	return SuddenChange{}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
