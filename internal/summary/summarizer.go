// Package summary turns normalized report records into short Japanese text
// answers, dispatched on the analysis type the classifier chose.
package summary

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Fumiaki0604/ga4-analytics-chat/internal/ga4"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/query"
)

const noDataMessage = "データが見つかりませんでした。"

// Summarize produces a plain-text answer for the given records. Empty input
// short-circuits to a fixed no-data message regardless of analysis type.
func Summarize(records []ga4.Record, question string, analysisType query.AnalysisType) string {
	if len(records) == 0 {
		return noDataMessage
	}

	if pattern := detectCompositePattern(question, analysisType); pattern != "" {
		return summarizeComposite(records, question, pattern)
	}

	switch analysisType {
	case query.Ranking:
		return summarizeRanking(records, question)
	case query.Comparison:
		return summarizeComparison(records, question)
	case query.Trend:
		return summarizeTrend(records, question)
	case query.DeviceBreakdown:
		return summarizeDeviceBreakdown(records, question)
	default:
		return summarizeSimple(records, question)
	}
}

func summarizeSimple(records []ga4.Record, question string) string {
	metrics := numericFields(records[0])
	if len(metrics) == 0 {
		return "メトリクスデータが見つかりませんでした。"
	}

	metric := selectRelevantMetric(question, metrics)
	total := sumField(records, metric)

	return fmt.Sprintf("%s: %s", metricDisplayName(metric), formatNumber(total, metric))
}

func summarizeRanking(records []ga4.Record, question string) string {
	metrics := numericFields(records[0])
	dimensions := stringFields(records[0])
	if len(metrics) == 0 || len(dimensions) == 0 {
		return "ランキング分析に必要なデータが不足しています。"
	}

	metric := selectRelevantMetric(question, metrics)
	dimension := dimensions[0]

	sorted := append([]ga4.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return numValue(sorted[i], metric) > numValue(sorted[j], metric)
	})
	if len(sorted) > 5 {
		sorted = sorted[:5]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%sのランキング（上位5位）:\n\n", metricDisplayName(metric))
	for i, rec := range sorted {
		fmt.Fprintf(&b, "%d位: %s - %s\n",
			i+1, dimValue(rec, dimension), formatNumber(numValue(rec, metric), metric))
	}
	return b.String()
}

func summarizeComparison(records []ga4.Record, question string) string {
	metrics := numericFields(records[0])
	dimensions := stringFields(records[0])
	if len(metrics) == 0 || len(dimensions) == 0 {
		return "比較分析に必要なデータが不足しています。"
	}

	metric := selectRelevantMetric(question, metrics)
	groups := aggregateBy(records, dimensions[0], metric)

	var b strings.Builder
	fmt.Fprintf(&b, "%sの比較:\n\n", metricDisplayName(metric))
	for _, g := range groups {
		fmt.Fprintf(&b, "%s: %s\n", g.key, formatNumber(g.value, metric))
	}
	return b.String()
}

func summarizeTrend(records []ga4.Record, question string) string {
	metrics := numericFields(records[0])
	if len(metrics) == 0 {
		return "トレンド分析に必要なデータが不足しています。"
	}

	metric := selectRelevantMetric(question, metrics)
	sorted := sortByDate(records)

	var total float64
	values := make([]float64, len(sorted))
	for i, rec := range sorted {
		values[i] = numValue(rec, metric)
		total += values[i]
	}
	average := total / float64(len(values))

	first, last := values[0], values[len(values)-1]
	changeRate := 0.0
	if first != 0 {
		changeRate = (last - first) / first * 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%sの推移:\n\n", metricDisplayName(metric))
	fmt.Fprintf(&b, "合計: %s\n", formatNumber(total, metric))
	fmt.Fprintf(&b, "平均: %s\n", formatNumber(average, metric))
	fmt.Fprintf(&b, "変化率: %s%%\n", signedPercent(changeRate))
	return b.String()
}

func summarizeDeviceBreakdown(records []ga4.Record, question string) string {
	deviceRecords := make([]ga4.Record, 0, len(records))
	for _, rec := range records {
		if dimRaw(rec, "deviceCategory") != "" {
			deviceRecords = append(deviceRecords, rec)
		}
	}
	if len(deviceRecords) == 0 {
		return "デバイス別データが見つかりませんでした。"
	}

	metrics := numericFields(deviceRecords[0])
	if len(metrics) == 0 {
		return "デバイス別分析に必要なメトリクスが見つかりませんでした。"
	}

	metric := selectRelevantMetric(question, metrics)
	groups := aggregateBy(deviceRecords, "deviceCategory", metric)

	var b strings.Builder
	fmt.Fprintf(&b, "デバイス別%s:\n\n", metricDisplayName(metric))
	for _, g := range groups {
		fmt.Fprintf(&b, "%s: %s\n", g.key, formatNumber(g.value, metric))
	}
	return b.String()
}

// selectRelevantMetric picks the metric the question is actually asking
// about, falling back to the first available numeric field.
func selectRelevantMetric(question string, available []string) string {
	lower := strings.ToLower(question)

	candidates := []struct {
		metric   string
		keywords []string
	}{
		{"totalRevenue", []string{"売上", "revenue"}},
		{"screenPageViews", []string{"pv", "ページビュー"}},
		{"activeUsers", []string{"ユーザー", "user"}},
		{"sessions", []string{"セッション", "session"}},
		{"transactions", []string{"トランザクション", "購入"}},
	}

	for _, c := range candidates {
		if !contains(available, c.metric) {
			continue
		}
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.metric
			}
		}
	}
	return available[0]
}

var metricDisplayNames = map[string]string{
	"totalRevenue":    "売上",
	"screenPageViews": "ページビュー",
	"activeUsers":     "アクティブユーザー",
	"sessions":        "セッション",
	"transactions":    "トランザクション",
	"bounceRate":      "直帰率",
	"sessionDuration": "セッション継続時間",
}

func metricDisplayName(metric string) string {
	if name, ok := metricDisplayNames[metric]; ok {
		return name
	}
	return metric
}

func formatNumber(value float64, metric string) string {
	switch metric {
	case "totalRevenue":
		return "¥" + groupThousands(int64(math.Round(value)))
	case "bounceRate":
		return fmt.Sprintf("%.1f%%", value*100)
	default:
		return groupThousands(int64(math.Round(value)))
	}
}

// groupThousands inserts comma separators, matching toLocaleString output
// for integral values.
func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s
}

func signedPercent(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.1f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

// sortByDate returns a chronologically ordered copy when the records carry a
// date dimension, the input unchanged otherwise.
func sortByDate(records []ga4.Record) []ga4.Record {
	sorted := append([]ga4.Record(nil), records...)
	if _, ok := records[0]["date"]; ok {
		sort.SliceStable(sorted, func(i, j int) bool {
			return parseReportDate(dimRaw(sorted[i], "date")).Before(parseReportDate(dimRaw(sorted[j], "date")))
		})
	}
	return sorted
}

// parseReportDate understands GA4's compact YYYYMMDD date dimension, with
// ISO dates as a fallback.
func parseReportDate(s string) time.Time {
	if len(s) == 8 {
		if t, err := time.Parse("20060102", s); err == nil {
			return t
		}
	}
	t, _ := time.Parse("2006-01-02", s)
	return t
}

type group struct {
	key   string
	value float64
}

// aggregateBy sums metric per dimension value, ordered by descending sum.
// Ties keep first-seen order.
func aggregateBy(records []ga4.Record, dimension, metric string) []group {
	totals := make(map[string]float64)
	var order []string
	for _, rec := range records {
		key := dimValue(rec, dimension)
		if _, seen := totals[key]; !seen {
			order = append(order, key)
		}
		totals[key] += numValue(rec, metric)
	}

	groups := make([]group, len(order))
	for i, key := range order {
		groups[i] = group{key: key, value: totals[key]}
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].value > groups[j].value })
	return groups
}

// numericFields returns the record's numeric keys in sorted order, so that
// "first available metric" is deterministic.
func numericFields(rec ga4.Record) []string {
	var fields []string
	for key, value := range rec {
		if _, ok := value.(float64); ok {
			fields = append(fields, key)
		}
	}
	sort.Strings(fields)
	return fields
}

func stringFields(rec ga4.Record) []string {
	var fields []string
	for key, value := range rec {
		if _, ok := value.(string); ok {
			fields = append(fields, key)
		}
	}
	sort.Strings(fields)
	return fields
}

func numValue(rec ga4.Record, key string) float64 {
	if f, ok := rec[key].(float64); ok {
		return f
	}
	return 0
}

func dimRaw(rec ga4.Record, key string) string {
	if s, ok := rec[key].(string); ok {
		return s
	}
	return ""
}

// dimValue substitutes the catch-all bucket for missing dimension values.
func dimValue(rec ga4.Record, key string) string {
	if s := dimRaw(rec, key); s != "" {
		return s
	}
	return "その他"
}

func sumField(records []ga4.Record, key string) float64 {
	var total float64
	for _, rec := range records {
		total += numValue(rec, key)
	}
	return total
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
