package anomaly

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Fumiaki0604/ga4-analytics-chat/internal/config"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/ga4"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/llm"
)

type stubProvider struct {
	response string
	err      error
	calls    int32
	lastUser string
}

func (s *stubProvider) Complete(system, user string, opts ...llm.Option) (*llm.Response, error) {
	atomic.AddInt32(&s.calls, 1)
	s.lastUser = user
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.response}, nil
}

// reportRequest mirrors the fields of the Data API payload the tests need to
// dispatch on.
type reportRequest struct {
	DateRanges []struct {
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	} `json:"dateRanges"`
	Dimensions []struct {
		Name string `json:"name"`
	} `json:"dimensions"`
}

func metricsResponse(values map[string]string) map[string]any {
	headers := make([]map[string]string, 0, len(standardMetrics))
	row := make([]map[string]string, 0, len(standardMetrics))
	for _, m := range standardMetrics {
		headers = append(headers, map[string]string{"name": m, "type": "TYPE_INTEGER"})
		row = append(row, map[string]string{"value": values[m]})
	}
	return map[string]any{
		"metricHeaders": headers,
		"rows":          []map[string]any{{"metricValues": row}},
	}
}

func breakdownResponse(dimension string, sessions map[string]string) map[string]any {
	rows := make([]map[string]any, 0, len(sessions))
	for _, name := range []string{"Organic Search", "Direct"} {
		v, ok := sessions[name]
		if !ok {
			continue
		}
		rows = append(rows, map[string]any{
			"dimensionValues": []map[string]string{{"value": name}},
			"metricValues":    []map[string]string{{"value": v}, {"value": "0"}},
		})
	}
	return map[string]any{
		"dimensionHeaders": []map[string]string{{"name": dimension}},
		"metricHeaders": []map[string]string{
			{"name": "sessions", "type": "TYPE_INTEGER"},
			{"name": "totalRevenue", "type": "TYPE_INTEGER"},
		},
		"rows": rows,
	}
}

func insightRequest() InsightRequest {
	return InsightRequest{
		PropertyID:        "123456",
		CurrentStartDate:  "2024-03-08",
		CurrentEndDate:    "2024-03-14",
		PreviousStartDate: "2024-03-01",
		PreviousEndDate:   "2024-03-07",
		AccessToken:       "test-token",
	}
}

// newInsightsServer answers overall metric fetches and channel/device
// drilldowns, keyed on the requested date range and dimensions.
func newInsightsServer(t *testing.T, current, previous map[string]string, ga4Calls *int32) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(ga4Calls, 1)

		var req reportRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.DateRanges, 1)
		isCurrent := req.DateRanges[0].StartDate == "2024-03-08"

		var resp map[string]any
		switch {
		case len(req.Dimensions) == 0:
			if isCurrent {
				resp = metricsResponse(current)
			} else {
				resp = metricsResponse(previous)
			}
		default:
			dimension := req.Dimensions[0].Name
			if isCurrent {
				resp = breakdownResponse(dimension, map[string]string{"Organic Search": "40", "Direct": "80"})
			} else {
				resp = breakdownResponse(dimension, map[string]string{"Organic Search": "100", "Direct": "80"})
			}
		}

		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newInsightsClient(t *testing.T, ts *httptest.Server) *ga4.Client {
	t.Helper()
	client, err := ga4.NewClient(config.GA4Config{
		DataEndpoint:  ts.URL,
		AdminEndpoint: ts.URL,
		Timeout:       5 * time.Second,
	})
	assert.NoError(t, err)
	return client
}

func TestGenerateReportRanksAnomalies(t *testing.T) {
	current := map[string]string{
		"sessions": "120", "screenPageViews": "1000", "transactions": "10",
		"totalRevenue": "50000", "activeUsers": "90",
	}
	previous := map[string]string{
		"sessions": "100", "screenPageViews": "1000", "transactions": "10",
		"totalRevenue": "100000", "activeUsers": "90",
	}

	var ga4Calls int32
	ts := newInsightsServer(t, current, previous, &ga4Calls)
	defer ts.Close()

	provider := &stubProvider{response: `{"hypotheses": [{"title": "検索流入の減少", "description": "オーガニック検索からのセッションが急減している", "confidence": "high", "evidence": ["チャネル別で検索流入が-60%"], "actionItems": ["Search Consoleを確認する"], "impact": "売上への直接影響"}]}`}

	ins := NewInsights(newInsightsClient(t, ts), provider, "gpt-4o-mini")
	report, err := ins.GenerateReport(context.Background(), insightRequest())

	assert.NoError(t, err)
	assert.True(t, report.HasAnomalies)
	assert.Len(t, report.Anomalies, 2)

	// The revenue drop scores far above the session gain: 50 * log10(100001)
	// versus 20 * log10(121).
	assert.Equal(t, "売上", report.Anomalies[0].Metric)
	assert.Equal(t, SeverityCritical, report.Anomalies[0].Severity)
	assert.Equal(t, -50.0, report.Anomalies[0].ChangePercent)
	assert.Equal(t, "セッション数", report.Anomalies[1].Metric)
	assert.Equal(t, SeverityPositive, report.Anomalies[1].Severity)
	assert.Greater(t, report.Anomalies[0].Score, report.Anomalies[1].Score)

	// Two overall fetches plus two per drilldown dimension.
	assert.Equal(t, int32(6), atomic.LoadInt32(&ga4Calls))

	// The shared breakdown is attached to every flagged metric.
	for _, a := range report.Anomalies {
		if assert.NotNil(t, a.Dimensions) {
			assert.NotEmpty(t, a.Dimensions.Channels)
			if assert.NotEmpty(t, a.Dimensions.AnomalousChannels) {
				assert.Equal(t, "Organic Search", a.Dimensions.AnomalousChannels[0].Dimension)
				assert.Equal(t, -60.0, a.Dimensions.AnomalousChannels[0].ChangePercent)
			}
		}
	}

	if assert.Len(t, report.Hypotheses, 1) {
		assert.Equal(t, "検索流入の減少", report.Hypotheses[0].Title)
	}
	assert.Contains(t, provider.lastUser, "売上")
	assert.Contains(t, provider.lastUser, "2024-03-08 〜 2024-03-14")

	if assert.NotNil(t, report.Period) {
		assert.Equal(t, "2024-03-08", report.Period.Current.Start)
		assert.Equal(t, "2024-03-07", report.Period.Previous.End)
	}
}

func TestGenerateReportNoAnomalies(t *testing.T) {
	flat := map[string]string{
		"sessions": "100", "screenPageViews": "1000", "transactions": "10",
		"totalRevenue": "50000", "activeUsers": "90",
	}

	var ga4Calls int32
	ts := newInsightsServer(t, flat, flat, &ga4Calls)
	defer ts.Close()

	provider := &stubProvider{response: "{}"}
	ins := NewInsights(newInsightsClient(t, ts), provider, "gpt-4o-mini")

	report, err := ins.GenerateReport(context.Background(), insightRequest())

	assert.NoError(t, err)
	assert.False(t, report.HasAnomalies)
	assert.Equal(t, "異常は検出されませんでした。すべてのメトリクスが正常範囲内です。", report.Message)
	assert.Empty(t, report.Anomalies)

	// A quiet period stops after the two overall fetches and never asks the
	// model for hypotheses.
	assert.Equal(t, int32(2), atomic.LoadInt32(&ga4Calls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&provider.calls))
}

func TestGenerateReportHypothesisFailureIsSoft(t *testing.T) {
	current := map[string]string{
		"sessions": "200", "screenPageViews": "1000", "transactions": "10",
		"totalRevenue": "50000", "activeUsers": "90",
	}
	previous := map[string]string{
		"sessions": "100", "screenPageViews": "1000", "transactions": "10",
		"totalRevenue": "50000", "activeUsers": "90",
	}

	tests := []struct {
		name     string
		provider *stubProvider
	}{
		{name: "unparseable response", provider: &stubProvider{response: "this is not json"}},
		{name: "request error", provider: &stubProvider{err: errors.New("rate limited")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ga4Calls int32
			ts := newInsightsServer(t, current, previous, &ga4Calls)
			defer ts.Close()

			ins := NewInsights(newInsightsClient(t, ts), tt.provider, "gpt-4o-mini")
			report, err := ins.GenerateReport(context.Background(), insightRequest())

			assert.NoError(t, err)
			assert.True(t, report.HasAnomalies)

			// The model failing never leaves the report without a lead: the
			// static fallback hypothesis takes its place.
			if assert.Len(t, report.Hypotheses, 1) {
				assert.Equal(t, "技術的な問題が発生している可能性", report.Hypotheses[0].Title)
				assert.Equal(t, "medium", report.Hypotheses[0].Confidence)
				assert.NotEmpty(t, report.Hypotheses[0].ActionItems)
			}
		})
	}
}

func TestGenerateReportFetchFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusForbidden)
	}))
	defer ts.Close()

	ins := NewInsights(newInsightsClient(t, ts), &stubProvider{}, "gpt-4o-mini")
	report, err := ins.GenerateReport(context.Background(), insightRequest())

	assert.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "fetch current period metrics")
}
