package apimodels

// ChatRequest is a natural-language analytics question about one GA4
// property. The access token is the caller's bearer credential for the
// Analytics APIs; it is passed through, never stored.
type ChatRequest struct {
	Question    string `json:"question"`
	PropertyID  string `json:"propertyId"`
	AccessToken string `json:"accessToken"`

	// Optional parameters to control analysis behavior
	Options ChatOptions `json:"options,omitempty"`
}

type ChatOptions struct {
	// Limit caps the number of report rows fetched.
	Limit int64 `json:"limit,omitempty"`
}
