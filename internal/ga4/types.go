package ga4

// Record is one flattened report row: dimension values as strings, metric
// values as float64. It is the single currency between the fetcher and the
// summarizer.
type Record map[string]any

// FetchParams describes one runReport call.
type FetchParams struct {
	PropertyID  string   `json:"propertyId"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	Metrics     []string `json:"metrics"`
	Dimensions  []string `json:"dimensions"`
	AccessToken string   `json:"accessToken"`
	Limit       int64    `json:"limit,omitempty"`
}

type nameRef struct {
	Name string `json:"name"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type runReportRequest struct {
	DateRanges []dateRange `json:"dateRanges"`
	Dimensions []nameRef   `json:"dimensions"`
	Metrics    []nameRef   `json:"metrics"`
	Limit      int64       `json:"limit,omitempty"`
}

type dimensionHeader struct {
	Name string `json:"name"`
}

type metricHeader struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type rowValue struct {
	Value string `json:"value"`
}

type reportRow struct {
	DimensionValues []rowValue `json:"dimensionValues"`
	MetricValues    []rowValue `json:"metricValues"`
}

type runReportResponse struct {
	DimensionHeaders []dimensionHeader `json:"dimensionHeaders"`
	MetricHeaders    []metricHeader    `json:"metricHeaders"`
	Rows             []reportRow       `json:"rows"`
}
