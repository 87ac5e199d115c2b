package ga4

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Fumiaki0604/ga4-analytics-chat/internal/config"
)

// Client issues report requests against the Google Analytics Data API. Unlike
// the classifier, the fetch path is strict: a failed report means the answer
// would be fabricated, so errors always propagate.
type Client struct {
	httpClient    *http.Client
	dataEndpoint  string
	adminEndpoint string
}

func NewClient(cfg config.GA4Config) (*Client, error) {
	if cfg.DataEndpoint == "" {
		return nil, fmt.Errorf("GA4 data endpoint cannot be empty")
	}

	return &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		dataEndpoint:  strings.TrimSuffix(cfg.DataEndpoint, "/"),
		adminEndpoint: strings.TrimSuffix(cfg.AdminEndpoint, "/"),
	}, nil
}

// RunReport executes one report request and flattens the columnar response
// into records.
func (c *Client) RunReport(ctx context.Context, params FetchParams) ([]Record, error) {
	reqBody := runReportRequest{
		DateRanges: []dateRange{{StartDate: params.StartDate, EndDate: params.EndDate}},
		Dimensions: toNameRefs(params.Dimensions),
		Metrics:    toNameRefs(params.Metrics),
		Limit:      params.Limit,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal report request: %w", err)
	}

	url := fmt.Sprintf("%s/properties/%s:runReport", c.dataEndpoint, params.PropertyID)
	slog.Debug("running GA4 report", "property", params.PropertyID, "start", params.StartDate, "end", params.EndDate)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build report request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+params.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analytics API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read analytics API response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analytics API error: %d %s", resp.StatusCode, string(body))
	}

	var report runReportResponse
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decode analytics API response: %w", err)
	}

	records := flattenReport(report)
	slog.Debug("GA4 report fetched", "rows", len(records))
	return records, nil
}

// flattenReport turns the columnar API shape into one record per row.
// Metric headers flagged TYPE_FLOAT or TYPE_INTEGER parse as floats; any
// other header type is forced to an integer. The asymmetry is inherited
// behavior that downstream formatting depends on.
func flattenReport(report runReportResponse) []Record {
	if len(report.Rows) == 0 {
		return []Record{}
	}

	records := make([]Record, 0, len(report.Rows))
	for _, row := range report.Rows {
		rec := make(Record, len(report.DimensionHeaders)+len(report.MetricHeaders))

		for i, header := range report.DimensionHeaders {
			value := ""
			if i < len(row.DimensionValues) {
				value = row.DimensionValues[i].Value
			}
			rec[header.Name] = value
		}

		for i, header := range report.MetricHeaders {
			value := "0"
			if i < len(row.MetricValues) && row.MetricValues[i].Value != "" {
				value = row.MetricValues[i].Value
			}
			if header.Type == "TYPE_FLOAT" || header.Type == "TYPE_INTEGER" {
				rec[header.Name] = parseFloat(value)
			} else {
				rec[header.Name] = parseLeadingInt(value)
			}
		}

		records = append(records, rec)
	}
	return records
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseLeadingInt mimics integer coercion of a decimal string: "12.5"
// becomes 12, garbage becomes 0.
func parseLeadingInt(s string) float64 {
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || (end == 0 && (s[end] == '-' || s[end] == '+'))) {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return float64(n)
}

// ValidateProperty checks that the credential can see the property at all.
func (c *Client) ValidateProperty(ctx context.Context, propertyID, accessToken string) (bool, error) {
	url := fmt.Sprintf("%s/properties/%s", c.adminEndpoint, propertyID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("build property request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("admin API request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func toNameRefs(names []string) []nameRef {
	refs := make([]nameRef, 0, len(names))
	for _, name := range names {
		refs = append(refs, nameRef{Name: name})
	}
	return refs
}

// AvailableMetrics lists the metric identifiers the classifier vocabulary
// can produce.
func AvailableMetrics() []string {
	return []string{
		"activeUsers",
		"sessions",
		"screenPageViews",
		"totalRevenue",
		"transactions",
		"bounceRate",
		"sessionDuration",
		"conversions",
	}
}

// AvailableDimensions lists the dimension identifiers supported for
// breakdowns.
func AvailableDimensions() []string {
	return []string{
		"date",
		"deviceCategory",
		"sessionDefaultChannelGrouping",
		"sessionSource",
		"sessionMedium",
		"pagePath",
		"pageTitle",
		"country",
		"city",
		"browser",
		"operatingSystem",
	}
}
