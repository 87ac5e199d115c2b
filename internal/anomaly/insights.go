package anomaly

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Fumiaki0604/ga4-analytics-chat/internal/ga4"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/llm"
)

var standardMetrics = []string{"sessions", "screenPageViews", "transactions", "totalRevenue", "activeUsers"}

var metricLabels = map[string]string{
	"sessions":        "セッション数",
	"screenPageViews": "ページビュー数",
	"transactions":    "トランザクション数",
	"totalRevenue":    "売上",
	"activeUsers":     "アクティブユーザー数",
}

// InsightRequest names the two periods to compare.
type InsightRequest struct {
	PropertyID        string `json:"propertyId"`
	CurrentStartDate  string `json:"currentStartDate"`
	CurrentEndDate    string `json:"currentEndDate"`
	PreviousStartDate string `json:"previousStartDate"`
	PreviousEndDate   string `json:"previousEndDate"`
	AccessToken       string `json:"accessToken"`
}

// Hypothesis is one model-generated explanation for the detected anomalies.
type Hypothesis struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Confidence  string   `json:"confidence"`
	Evidence    []string `json:"evidence"`
	ActionItems []string `json:"actionItems"`
	Impact      string   `json:"impact"`
}

type PeriodWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type ReportPeriod struct {
	Current  PeriodWindow `json:"current"`
	Previous PeriodWindow `json:"previous"`
}

// InsightReport is the full outcome of one anomaly analysis.
type InsightReport struct {
	HasAnomalies bool          `json:"hasAnomalies"`
	Message      string        `json:"message,omitempty"`
	Anomalies    []Anomaly     `json:"anomalies,omitempty"`
	Hypotheses   []Hypothesis  `json:"hypotheses,omitempty"`
	Period       *ReportPeriod `json:"period,omitempty"`
}

// Insights runs the anomaly pipeline: overall metrics for both periods,
// channel and device drilldowns for the worst movers, score ranking, and a
// model-generated hypothesis list.
type Insights struct {
	ga4Client *ga4.Client
	provider  llm.Provider
	model     string
	now       func() time.Time
}

func NewInsights(ga4Client *ga4.Client, provider llm.Provider, model string) *Insights {
	return &Insights{
		ga4Client: ga4Client,
		provider:  provider,
		model:     model,
		now:       time.Now,
	}
}

// GenerateReport compares the two requested periods. Report fetches are
// strict and sequential; only the hypothesis step degrades silently.
func (ins *Insights) GenerateReport(ctx context.Context, req InsightRequest) (*InsightReport, error) {
	slog.Info("starting insight analysis",
		"property", req.PropertyID, "currentStart", req.CurrentStartDate, "currentEnd", req.CurrentEndDate)

	current, err := ins.fetchOverall(ctx, req, req.CurrentStartDate, req.CurrentEndDate)
	if err != nil {
		return nil, fmt.Errorf("fetch current period metrics: %w", err)
	}
	previous, err := ins.fetchOverall(ctx, req, req.PreviousStartDate, req.PreviousEndDate)
	if err != nil {
		return nil, fmt.Errorf("fetch previous period metrics: %w", err)
	}

	var anomalies []Anomaly
	for _, metric := range standardMetrics {
		cur := firstRowValue(current, metric)
		prev := firstRowValue(previous, metric)

		check := DetectAnomaly(cur, prev, DefaultThreshold)
		if !check.IsAnomaly {
			continue
		}
		anomalies = append(anomalies, Anomaly{
			Metric:        metricLabels[metric],
			Severity:      check.Severity,
			ChangePercent: check.ChangePercent,
			CurrentValue:  cur,
			PreviousValue: prev,
			DetectedAt:    ins.now(),
		})
	}

	slog.Info("anomaly detection finished", "anomalies", len(anomalies))

	if len(anomalies) == 0 {
		return &InsightReport{
			HasAnomalies: false,
			Message:      "異常は検出されませんでした。すべてのメトリクスが正常範囲内です。",
		}, nil
	}

	breakdown, err := ins.fetchBreakdown(ctx, req)
	if err != nil {
		return nil, err
	}

	detailed := anomalies
	if len(detailed) > 3 {
		detailed = detailed[:3]
	}
	for i := range detailed {
		detailed[i].Dimensions = breakdown
	}

	hypotheses := ins.generateHypotheses(detailed, req)

	return &InsightReport{
		HasAnomalies: true,
		Anomalies:    RankAnomalies(detailed),
		Hypotheses:   hypotheses,
		Period: &ReportPeriod{
			Current:  PeriodWindow{Start: req.CurrentStartDate, End: req.CurrentEndDate},
			Previous: PeriodWindow{Start: req.PreviousStartDate, End: req.PreviousEndDate},
		},
	}, nil
}

func (ins *Insights) fetchOverall(ctx context.Context, req InsightRequest, start, end string) ([]ga4.Record, error) {
	return ins.ga4Client.RunReport(ctx, ga4.FetchParams{
		PropertyID:  req.PropertyID,
		StartDate:   start,
		EndDate:     end,
		Metrics:     standardMetrics,
		Dimensions:  []string{},
		AccessToken: req.AccessToken,
	})
}

// fetchBreakdown drills the comparison down by channel and device. The same
// breakdown serves every flagged metric; sessions is the drilldown measure.
func (ins *Insights) fetchBreakdown(ctx context.Context, req InsightRequest) (*DimensionBreakdown, error) {
	channels, err := ins.fetchDeltas(ctx, req, "sessionDefaultChannelGrouping")
	if err != nil {
		return nil, fmt.Errorf("fetch channel breakdown: %w", err)
	}
	devices, err := ins.fetchDeltas(ctx, req, "deviceCategory")
	if err != nil {
		return nil, fmt.Errorf("fetch device breakdown: %w", err)
	}

	return &DimensionBreakdown{
		Channels:          channels,
		AnomalousChannels: FindAnomalousDimensions(channels, DefaultThreshold),
		Devices:           devices,
		AnomalousDevices:  FindAnomalousDimensions(devices, DefaultThreshold),
	}, nil
}

func (ins *Insights) fetchDeltas(ctx context.Context, req InsightRequest, dimension string) ([]DimensionDelta, error) {
	fetch := func(start, end string) ([]ga4.Record, error) {
		return ins.ga4Client.RunReport(ctx, ga4.FetchParams{
			PropertyID:  req.PropertyID,
			StartDate:   start,
			EndDate:     end,
			Metrics:     []string{"sessions", "totalRevenue"},
			Dimensions:  []string{dimension},
			AccessToken: req.AccessToken,
		})
	}

	current, err := fetch(req.CurrentStartDate, req.CurrentEndDate)
	if err != nil {
		return nil, err
	}
	previous, err := fetch(req.PreviousStartDate, req.PreviousEndDate)
	if err != nil {
		return nil, err
	}

	previousByValue := make(map[string]float64, len(previous))
	for _, rec := range previous {
		if v, ok := rec[dimension].(string); ok {
			previousByValue[v] = recordValue(rec, "sessions")
		}
	}

	deltas := make([]DimensionDelta, 0, len(current))
	for _, rec := range current {
		value, _ := rec[dimension].(string)
		cur := recordValue(rec, "sessions")
		prev := previousByValue[value]

		change := cur - prev
		changePercent := 0.0
		if prev > 0 {
			changePercent = round1(change / prev * 100)
		}
		deltas = append(deltas, DimensionDelta{
			Dimension:     value,
			CurrentValue:  cur,
			PreviousValue: prev,
			Change:        change,
			ChangePercent: changePercent,
		})
	}
	return deltas, nil
}

const hypothesisSystemPrompt = "あなたはWebサイト分析のエキスパートです。データから具体的で実行可能な仮説を提示します。必ずJSON形式のみで回答してください。"

// fallbackHypotheses stands in when the model cannot produce a usable answer,
// so an insight report never ships without at least one lead to follow.
func fallbackHypotheses() []Hypothesis {
	return []Hypothesis{{
		Title:       "技術的な問題が発生している可能性",
		Description: "特定のデバイスやチャネルで大きな変化が見られます。サイトの動作確認を推奨します。",
		Confidence:  "medium",
		Evidence:    []string{"特定のディメンションで異常が集中"},
		ActionItems: []string{"サイトの動作確認", "エラーログの確認"},
		Impact:      "検出された異常メトリクスに影響",
	}}
}

// generateHypotheses asks the model for up to three explanations. This call
// is an enhancement: any failure yields the static fallback list, never an
// error.
func (ins *Insights) generateHypotheses(anomalies []Anomaly, req InsightRequest) []Hypothesis {
	prompt := buildHypothesisPrompt(anomalies, req)

	resp, err := ins.provider.Complete(hypothesisSystemPrompt, prompt, llm.WithModel(ins.model))
	if err != nil {
		slog.Warn("hypothesis generation failed", "error", err)
		return fallbackHypotheses()
	}

	var parsed struct {
		Hypotheses []Hypothesis `json:"hypotheses"`
	}
	content := stripFence(resp.Content)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		slog.Warn("hypothesis response was not valid JSON", "error", err)
		return fallbackHypotheses()
	}
	return parsed.Hypotheses
}

func buildHypothesisPrompt(anomalies []Anomaly, req InsightRequest) string {
	var b strings.Builder

	b.WriteString("あなたはWebサイト分析のエキスパートです。以下のGA4データから異常の原因仮説を最大3つ提示してください。\n\n")
	fmt.Fprintf(&b, "## 分析期間\n- 現在期間: %s 〜 %s\n- 前期間: %s 〜 %s\n\n",
		req.CurrentStartDate, req.CurrentEndDate, req.PreviousStartDate, req.PreviousEndDate)
	b.WriteString("## 検知された異常\n")

	for i, a := range anomalies {
		fmt.Fprintf(&b, "\n### 異常%d: %s\n", i+1, a.Metric)
		fmt.Fprintf(&b, "- 変化: %s%%\n", signedPercent(a.ChangePercent))
		fmt.Fprintf(&b, "- 現在値: %.0f\n- 前期値: %.0f\n", a.CurrentValue, a.PreviousValue)
		fmt.Fprintf(&b, "- 深刻度: %s\n", severityLabel(a.Severity))

		if a.Dimensions == nil {
			continue
		}
		b.WriteString("\n#### チャネル別内訳（上位5件）:\n")
		writeDeltas(&b, topN(a.Dimensions.Channels, 5))
		if len(a.Dimensions.AnomalousChannels) > 0 {
			b.WriteString("\n⚠️ 異常なチャネル:\n")
			writeDeltas(&b, a.Dimensions.AnomalousChannels)
		}
		b.WriteString("\n#### デバイス別内訳:\n")
		writeDeltas(&b, a.Dimensions.Devices)
		if len(a.Dimensions.AnomalousDevices) > 0 {
			b.WriteString("\n⚠️ 異常なデバイス:\n")
			writeDeltas(&b, a.Dimensions.AnomalousDevices)
		}
	}

	b.WriteString(`
## 出力形式（JSON）

必ず以下のJSON形式で出力してください。テキストの説明は不要です。

{
  "hypotheses": [
    {
      "title": "仮説のタイトル（30文字以内、具体的に）",
      "description": "仮説の詳細説明（100文字程度）",
      "confidence": "high" | "medium" | "low",
      "evidence": ["根拠1", "根拠2", "根拠3"],
      "actionItems": ["確認方法1", "確認方法2", "確認方法3"],
      "impact": "影響範囲の説明（50文字程度）"
    }
  ]
}

## 重要な指示
1. 最も確からしい仮説から順に並べてください
2. 各仮説は具体的かつ実行可能な内容にしてください
3. 「〜の可能性」ではなく断定形で記載してください
4. 必ずJSON形式のみを出力してください
`)

	return b.String()
}

func writeDeltas(b *strings.Builder, deltas []DimensionDelta) {
	if len(deltas) == 0 {
		b.WriteString("データなし\n")
		return
	}
	for _, d := range deltas {
		fmt.Fprintf(b, "- %s: %s%% (%.0f vs %.0f)\n",
			d.Dimension, signedPercent(d.ChangePercent), d.CurrentValue, d.PreviousValue)
	}
}

func severityLabel(s Severity) string {
	switch s {
	case SeverityCritical:
		return "緊急"
	case SeverityWarning:
		return "注意"
	default:
		return "ポジティブ"
	}
}

func signedPercent(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.1f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func topN(deltas []DimensionDelta, n int) []DimensionDelta {
	if len(deltas) > n {
		return deltas[:n]
	}
	return deltas
}

func firstRowValue(records []ga4.Record, metric string) float64 {
	if len(records) == 0 {
		return 0
	}
	return recordValue(records[0], metric)
}

func recordValue(rec ga4.Record, key string) float64 {
	if f, ok := rec[key].(float64); ok {
		return f
	}
	return 0
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
