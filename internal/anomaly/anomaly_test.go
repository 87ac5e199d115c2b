package anomaly

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectAnomaly(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		previous float64
		want     Check
	}{
		{
			name: "twenty percent increase is positive", current: 120, previous: 100,
			want: Check{IsAnomaly: true, ChangePercent: 20, Severity: SeverityPositive},
		},
		{
			name: "halving is critical", current: 50, previous: 100,
			want: Check{IsAnomaly: true, ChangePercent: -50, Severity: SeverityCritical},
		},
		{
			name: "small dip is not anomalous", current: 90, previous: 100,
			want: Check{IsAnomaly: false, ChangePercent: -10, Severity: SeverityWarning},
		},
		{
			name: "moderate drop is warning", current: 75, previous: 100,
			want: Check{IsAnomaly: true, ChangePercent: -25, Severity: SeverityWarning},
		},
		{
			name: "zero previous is never anomalous", current: 500, previous: 0,
			want: Check{IsAnomaly: false, ChangePercent: 0, Severity: SeverityWarning},
		},
		{
			name: "unchanged", current: 100, previous: 100,
			want: Check{IsAnomaly: false, ChangePercent: 0, Severity: SeverityWarning},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectAnomaly(tt.current, tt.previous, DefaultThreshold)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectAnomalyRoundsChangePercent(t *testing.T) {
	got := DetectAnomaly(133, 100, DefaultThreshold)
	assert.Equal(t, 33.0, got.ChangePercent)

	got = DetectAnomaly(1, 3, DefaultThreshold)
	assert.Equal(t, -66.7, got.ChangePercent)
}

func TestFindAnomalousDimensions(t *testing.T) {
	deltas := []DimensionDelta{
		{Dimension: "Direct", CurrentValue: 110, PreviousValue: 100, ChangePercent: 10},
		{Dimension: "Organic Search", CurrentValue: 50, PreviousValue: 100, ChangePercent: -50},
		{Dimension: "Referral", CurrentValue: 130, PreviousValue: 100, ChangePercent: 30},
		{Dimension: "Email", CurrentValue: 300, PreviousValue: 0, ChangePercent: 0},
	}

	got := FindAnomalousDimensions(deltas, DefaultThreshold)

	// Only the threshold-crossing deltas survive, sorted by absolute change.
	// The zero-baseline channel is excluded even though it grew from nothing.
	assert.Len(t, got, 2)
	assert.Equal(t, "Organic Search", got[0].Dimension)
	assert.Equal(t, "Referral", got[1].Dimension)
}

func TestCalculateAnomalyScore(t *testing.T) {
	// |Δ%| * log10(max(current, previous)+1)
	assert.InDelta(t, 50*3.0, CalculateAnomalyScore(-50, 500, 999), 0.01)

	// A large metric with a modest swing outranks a tiny metric with a huge one.
	big := CalculateAnomalyScore(25, 100000, 80000)
	small := CalculateAnomalyScore(90, 10, 19)
	assert.Greater(t, big, small)
}

func TestRankAnomalies(t *testing.T) {
	anomalies := []Anomaly{
		{Metric: "sessions", ChangePercent: 20, CurrentValue: 120, PreviousValue: 100},
		{Metric: "totalRevenue", ChangePercent: -50, CurrentValue: 50000, PreviousValue: 100000},
	}

	ranked := RankAnomalies(anomalies)

	assert.Equal(t, "totalRevenue", ranked[0].Metric)
	assert.Equal(t, "sessions", ranked[1].Metric)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)

	// Input slice is left untouched.
	assert.Zero(t, anomalies[0].Score)
}

func TestRankAnomaliesStableOnTies(t *testing.T) {
	anomalies := []Anomaly{
		{Metric: "a", ChangePercent: 20, CurrentValue: 120, PreviousValue: 100},
		{Metric: "b", ChangePercent: 20, CurrentValue: 120, PreviousValue: 100},
		{Metric: "c", ChangePercent: 20, CurrentValue: 120, PreviousValue: 100},
	}

	ranked := RankAnomalies(anomalies)
	assert.Equal(t, "a", ranked[0].Metric)
	assert.Equal(t, "b", ranked[1].Metric)
	assert.Equal(t, "c", ranked[2].Metric)
}

func TestDetectSuddenChangeSpike(t *testing.T) {
	series := make([]TimePoint, 8)
	for i := range series {
		value := 100.0
		if i >= 4 {
			value = 200.0
		}
		series[i] = TimePoint{Date: fmt.Sprintf("2024030%d", i+1), Value: value}
	}

	got := DetectSuddenChange(series)

	assert.True(t, got.HasChange)
	assert.Equal(t, "spike", got.ChangeType)
	assert.Equal(t, "20240304", got.ChangeDate)
}

func TestDetectSuddenChangeDrop(t *testing.T) {
	series := make([]TimePoint, 10)
	for i := range series {
		value := 300.0
		if i >= 5 {
			value = 100.0
		}
		series[i] = TimePoint{Date: fmt.Sprintf("202403%02d", i+1), Value: value}
	}

	got := DetectSuddenChange(series)

	assert.True(t, got.HasChange)
	assert.Equal(t, "drop", got.ChangeType)
}

func TestDetectSuddenChangeFlatSeries(t *testing.T) {
	series := make([]TimePoint, 14)
	for i := range series {
		series[i] = TimePoint{Date: fmt.Sprintf("202403%02d", i+1), Value: 100}
	}

	assert.False(t, DetectSuddenChange(series).HasChange)
}

func TestDetectSuddenChangeShortSeries(t *testing.T) {
	series := []TimePoint{
		{Date: "20240301", Value: 100},
		{Date: "20240302", Value: 500},
		{Date: "20240303", Value: 100},
	}

	assert.False(t, DetectSuddenChange(series).HasChange)
}
