package summary

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Fumiaki0604/ga4-analytics-chat/internal/ga4"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/query"
)

// Composite patterns refine a base analysis type when the question asks for
// an extra angle (percentages, growth, conversion rates, differences, a
// forecast). Detection is plain substring matching on the lowered question.
func detectCompositePattern(question string, analysisType query.AnalysisType) string {
	lower := strings.ToLower(question)

	if analysisType == query.DeviceBreakdown &&
		containsAny(lower, "割合", "パーセント", "%") {
		return "device_breakdown_with_percentage"
	}

	if analysisType == query.Ranking &&
		containsAny(lower, "成長", "増加", "変化") {
		return "ranking_with_growth"
	}

	if containsAny(lower, "チャネル", "channel") &&
		containsAny(lower, "コンバージョン", "conversion") {
		return "channel_with_conversion"
	}

	if analysisType == query.Comparison &&
		containsAny(lower, "差分", "違い", "差") {
		return "comparison_with_difference"
	}

	if analysisType == query.Trend &&
		containsAny(lower, "予測", "今後", "将来") {
		return "trend_with_forecast"
	}

	return ""
}

func summarizeComposite(records []ga4.Record, question, pattern string) string {
	switch pattern {
	case "device_breakdown_with_percentage":
		return deviceBreakdownWithPercentage(records, question)
	case "ranking_with_growth":
		return rankingWithGrowth(records, question)
	case "channel_with_conversion":
		return channelWithConversion(records)
	case "comparison_with_difference":
		return comparisonWithDifference(records, question)
	case "trend_with_forecast":
		return trendWithForecast(records, question)
	}
	return summarizeDeviceBreakdown(records, question)
}

func deviceBreakdownWithPercentage(records []ga4.Record, question string) string {
	metrics := numericFields(records[0])
	if len(metrics) == 0 {
		return "デバイス別分析に必要なメトリクスが見つかりませんでした。"
	}
	metric := selectRelevantMetric(question, metrics)
	groups := aggregateBy(records, "deviceCategory", metric)

	var total float64
	for _, g := range groups {
		total += g.value
	}

	var b strings.Builder
	fmt.Fprintf(&b, "デバイス別%s:\n", metricDisplayName(metric))
	for _, g := range groups {
		fmt.Fprintf(&b, "%s: %s\n", g.key, formatNumber(g.value, metric))
	}

	b.WriteString("\n割合:\n")
	for _, g := range groups {
		percentage := 0.0
		if total > 0 {
			percentage = g.value / total * 100
		}
		fmt.Fprintf(&b, "%s: %.1f%%\n", g.key, percentage)
	}
	return b.String()
}

func rankingWithGrowth(records []ga4.Record, question string) string {
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
		growthInfo := ""
		if i < len(sorted)-1 {
			current := numValue(rec, metric)
			next := numValue(sorted[i+1], metric)
			if next > 0 {
				growthInfo = fmt.Sprintf(" (+%.1f%% vs %d位)", (current-next)/next*100, i+2)
			}
		}
		fmt.Fprintf(&b, "%d位: %s - %s%s\n",
			i+1, dimValue(rec, dimension), formatNumber(numValue(rec, metric), metric), growthInfo)
	}
	return b.String()
}

func channelWithConversion(records []ga4.Record) string {
	hasConversionData := false
	for _, rec := range records {
		_, hasSessions := rec["sessions"]
		_, hasTransactions := rec["transactions"]
		if hasSessions && hasTransactions {
			hasConversionData = true
			break
		}
	}
	if !hasConversionData {
		return "コンバージョン率の計算に必要なデータ（セッション数・トランザクション数）が不足しています。"
	}

	type channelTotals struct {
		sessions     float64
		transactions float64
		revenue      float64
	}
	totals := make(map[string]*channelTotals)
	var order []string
	for _, rec := range records {
		channel := dimValue(rec, "sessionDefaultChannelGrouping")
		t, seen := totals[channel]
		if !seen {
			t = &channelTotals{}
			totals[channel] = t
			order = append(order, channel)
		}
		t.sessions += numValue(rec, "sessions")
		t.transactions += numValue(rec, "transactions")
		t.revenue += numValue(rec, "totalRevenue")
	}

	sort.SliceStable(order, func(i, j int) bool {
		return totals[order[i]].sessions > totals[order[j]].sessions
	})

	var b strings.Builder
	b.WriteString("チャネル別分析:\n\n")
	for _, channel := range order {
		t := totals[channel]
		conversionRate := 0.0
		if t.sessions > 0 {
			conversionRate = t.transactions / t.sessions * 100
		}
		var avgOrderValue int64
		if t.transactions > 0 {
			avgOrderValue = int64(math.Round(t.revenue / t.transactions))
		}

		fmt.Fprintf(&b, "%s:\n", channel)
		fmt.Fprintf(&b, "  セッション: %s\n", groupThousands(int64(math.Round(t.sessions))))
		fmt.Fprintf(&b, "  トランザクション: %s\n", groupThousands(int64(math.Round(t.transactions))))
		fmt.Fprintf(&b, "  コンバージョン率: %.2f%%\n", conversionRate)
		fmt.Fprintf(&b, "  平均注文単価: ¥%s\n\n", groupThousands(avgOrderValue))
	}
	return b.String()
}

func comparisonWithDifference(records []ga4.Record, question string) string {
	metrics := numericFields(records[0])
	dimensions := stringFields(records[0])
	if len(metrics) == 0 || len(dimensions) == 0 {
		return "比較分析に必要なデータが不足しています。"
	}

	metric := selectRelevantMetric(question, metrics)
	groups := aggregateBy(records, dimensions[0], metric)

	var b strings.Builder
	fmt.Fprintf(&b, "%sの比較:\n\n", metricDisplayName(metric))
	for i, g := range groups {
		fmt.Fprintf(&b, "%s: %s", g.key, formatNumber(g.value, metric))
		if i > 0 {
			top := groups[0].value
			difference := top - g.value
			percentageDiff := 0.0
			if top > 0 {
				percentageDiff = difference / top * 100
			}
			fmt.Fprintf(&b, " (1位との差: %s, -%.1f%%)", formatNumber(difference, metric), percentageDiff)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func trendWithForecast(records []ga4.Record, question string) string {
	trendResult := summarizeTrend(records, question)

	metrics := numericFields(records[0])
	metric := selectRelevantMetric(question, metrics)

	if len(records) < 3 {
		return trendResult + "\n\n予測: データ不足のため予測できません（3日以上のデータが必要）"
	}

	// The forecast reads the chronological tail, not the arrival order.
	sorted := sortByDate(records)
	recent := sorted[len(sorted)-3:]
	trend := (numValue(recent[2], metric) - numValue(recent[0], metric)) / 2
	next := numValue(recent[2], metric) + trend

	return trendResult + fmt.Sprintf("\n予測（簡易線形）:\n次期予想値: %s", formatNumber(next, metric))
}

// PeriodData pairs one comparison period's label with its fetched records.
type PeriodData struct {
	Label string
	Data  []ga4.Record
}

// SummarizePeriodComparison answers 先月vs今月 style questions by comparing
// the summed relevant metric of both periods.
func SummarizePeriodComparison(period1, period2 PeriodData, question string) string {
	if len(period1.Data) == 0 && len(period2.Data) == 0 {
		return noDataMessage
	}

	base := period1.Data
	if len(base) == 0 {
		base = period2.Data
	}
	metrics := numericFields(base[0])
	if len(metrics) == 0 {
		return "メトリクスデータが見つかりませんでした。"
	}
	metric := selectRelevantMetric(question, metrics)

	v1 := sumField(period1.Data, metric)
	v2 := sumField(period2.Data, metric)

	change := v2 - v1
	changeRate := 0.0
	if v1 > 0 {
		changeRate = change / v1 * 100
	}

	symbol := "➡️"
	if change > 0 {
		symbol = "📈"
	} else if change < 0 {
		symbol = "📉"
	}

	display := metricDisplayName(metric)
	return fmt.Sprintf("%sの%s: %s\n%sの%s: %s\n\n%s 変化: %s (%s%%)",
		period1.Label, display, formatNumber(v1, metric),
		period2.Label, display, formatNumber(v2, metric),
		symbol, formatNumber(math.Abs(change), metric), signedPercent(changeRate))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
