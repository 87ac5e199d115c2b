package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractComparisonPeriodsMonthPair(t *testing.T) {
	p1, p2 := ExtractComparisonPeriods("先月と今月の売上を比較して")
	assert.Equal(t, PeriodSpec{Label: "先月", Type: "relative_month", Offset: -1}, p1)
	assert.Equal(t, PeriodSpec{Label: "今月", Type: "relative_month", Offset: 0}, p2)
}

func TestExtractComparisonPeriodsWeekPair(t *testing.T) {
	p1, p2 := ExtractComparisonPeriods("先週と今週のセッションはどう違う？")
	assert.Equal(t, PeriodSpec{Label: "先週", Type: "relative_week", Offset: -1}, p1)
	assert.Equal(t, PeriodSpec{Label: "今週", Type: "relative_week", Offset: 0}, p2)
}

func TestExtractComparisonPeriodsDayPair(t *testing.T) {
	p1, p2 := ExtractComparisonPeriods("昨日と今日のPVを比べて")
	assert.Equal(t, PeriodSpec{Label: "昨日", Type: "relative_day", Offset: -1}, p1)
	assert.Equal(t, PeriodSpec{Label: "今日", Type: "relative_day", Offset: 0}, p2)
}

func TestExtractComparisonPeriodsNamedMonths(t *testing.T) {
	p1, p2 := ExtractComparisonPeriods("8月と9月の売上を比較")
	assert.Equal(t, PeriodSpec{Label: "8月", Type: "named_month"}, p1)
	assert.Equal(t, PeriodSpec{Label: "9月", Type: "named_month"}, p2)

	// Question order wins, and 10月 is not double-counted as 1月.
	p1, p2 = ExtractComparisonPeriods("10月と9月ではどちらが多い？")
	assert.Equal(t, "10月", p1.Label)
	assert.Equal(t, "9月", p2.Label)
}

func TestExtractComparisonPeriodsDefault(t *testing.T) {
	p1, p2 := ExtractComparisonPeriods("最近の期間比較をお願い")
	assert.Equal(t, PeriodSpec{Label: "先月", Type: "relative_month", Offset: -1}, p1)
	assert.Equal(t, PeriodSpec{Label: "今月", Type: "relative_month", Offset: 0}, p2)
}

func TestExtractComparisonPeriodsMonthPairWinsOverNamed(t *testing.T) {
	// 先月/今月 take priority even when a named month also appears.
	p1, p2 := ExtractComparisonPeriods("9月もいいけど先月と今月の比較を")
	assert.Equal(t, "relative_month", p1.Type)
	assert.Equal(t, "relative_month", p2.Type)
}
