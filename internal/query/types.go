package query

// TimeframeType discriminates how a Timeframe describes its date range.
type TimeframeType string

const (
	TimeframeRelative TimeframeType = "relative"
	TimeframeNamed    TimeframeType = "named"
	TimeframeAbsolute TimeframeType = "absolute"
)

// Timeframe is a symbolic date range before resolution to concrete dates.
// Relative and named timeframes carry a period token; absolute ones carry
// explicit ISO dates.
type Timeframe struct {
	Type      TimeframeType `json:"type"`
	Period    string        `json:"period,omitempty"`
	StartDate string        `json:"startDate,omitempty"`
	EndDate   string        `json:"endDate,omitempty"`
}

// AnalysisType is the shape of answer a question asks for.
type AnalysisType string

const (
	SimpleQuery      AnalysisType = "simple_query"
	Comparison       AnalysisType = "comparison"
	Ranking          AnalysisType = "ranking"
	Trend            AnalysisType = "trend"
	DeviceBreakdown  AnalysisType = "device_breakdown"
	PeriodComparison AnalysisType = "period_comparison"
)

// AnalysisConfig is the structured interpretation of a free-text question.
// Metrics is never empty; unrecognized questions fall back to page views over
// the last seven days.
type AnalysisConfig struct {
	Timeframe    Timeframe    `json:"timeframe"`
	Metrics      []string     `json:"metrics"`
	Dimensions   []string     `json:"dimensions"`
	AnalysisType AnalysisType `json:"analysisType"`
}

// DateRange is a resolved calendar range, both bounds inclusive, formatted as
// YYYY-MM-DD.
type DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// PeriodSpec describes one side of a period-to-period comparison.
// Offset counts whole periods back from today; offset 0 means the current,
// still-running period.
type PeriodSpec struct {
	Label  string `json:"label"`
	Type   string `json:"type"` // relative_month, relative_week, relative_day, named_month
	Offset int    `json:"offset,omitempty"`
}

// DefaultMetric is used whenever a question names no recognizable metric.
const DefaultMetric = "screenPageViews"

// DefaultConfig is the best-effort result when nothing in a question can be
// interpreted, or when LLM classification fails.
func DefaultConfig() AnalysisConfig {
	return AnalysisConfig{
		Timeframe:    Timeframe{Type: TimeframeRelative, Period: "last_7_days"},
		Metrics:      []string{DefaultMetric},
		Dimensions:   []string{},
		AnalysisType: SimpleQuery,
	}
}
