package apimodels

import "github.com/Fumiaki0604/ga4-analytics-chat/internal/query"

// ChatResponse carries the textual answer plus enough metadata to explain
// how it was produced.
type ChatResponse struct {
	// The generated answer text
	Answer string `json:"answer"`

	// The structured interpretation the answer was built from
	Analysis query.AnalysisConfig `json:"analysis"`

	// Metadata about the request
	Metadata ChatMetadata `json:"metadata"`
}

type ChatMetadata struct {
	// Time taken for the whole pipeline
	Duration string `json:"duration"`

	// Resolved report window
	DateRange query.DateRange `json:"dateRange"`

	// Number of report rows the answer was computed from
	Rows int `json:"rows"`
}
