package query

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Classifier turns a free-text analytics question into a structured analysis
// configuration. Implementations are best-effort and never fail: unmatched
// input degrades to DefaultConfig.
type Classifier interface {
	Classify(ctx context.Context, question, propertyID string) AnalysisConfig
}

// keywordEntry maps a substring to one or more identifiers. Entries are held
// in slices, not maps, so matching order is fixed and classification is
// deterministic.
type keywordEntry struct {
	keyword string
	ids     []string
}

// timeframeEntry maps a substring to a symbolic timeframe. First match wins.
type timeframeEntry struct {
	keyword   string
	timeframe Timeframe
}

var timeframeKeywords = []timeframeEntry{
	{"先週", Timeframe{Type: TimeframeRelative, Period: "last_week"}},
	{"今週", Timeframe{Type: TimeframeRelative, Period: "this_week"}},
	{"先月", Timeframe{Type: TimeframeRelative, Period: "last_month"}},
	{"今月", Timeframe{Type: TimeframeRelative, Period: "this_month"}},
	{"昨日", Timeframe{Type: TimeframeRelative, Period: "yesterday"}},
	{"今日", Timeframe{Type: TimeframeRelative, Period: "today"}},
	{"過去7日", Timeframe{Type: TimeframeRelative, Period: "last_7_days"}},
	{"過去30日", Timeframe{Type: TimeframeRelative, Period: "last_30_days"}},
	// Two-digit months first so "1月" cannot shadow "10月".
	{"10月", Timeframe{Type: TimeframeNamed, Period: "10月"}},
	{"11月", Timeframe{Type: TimeframeNamed, Period: "11月"}},
	{"12月", Timeframe{Type: TimeframeNamed, Period: "12月"}},
	{"1月", Timeframe{Type: TimeframeNamed, Period: "1月"}},
	{"2月", Timeframe{Type: TimeframeNamed, Period: "2月"}},
	{"3月", Timeframe{Type: TimeframeNamed, Period: "3月"}},
	{"4月", Timeframe{Type: TimeframeNamed, Period: "4月"}},
	{"5月", Timeframe{Type: TimeframeNamed, Period: "5月"}},
	{"6月", Timeframe{Type: TimeframeNamed, Period: "6月"}},
	{"7月", Timeframe{Type: TimeframeNamed, Period: "7月"}},
	{"8月", Timeframe{Type: TimeframeNamed, Period: "8月"}},
	{"9月", Timeframe{Type: TimeframeNamed, Period: "9月"}},
}

var metricKeywords = []keywordEntry{
	{"売上", []string{"totalRevenue"}},
	{"収益", []string{"totalRevenue"}},
	{"revenue", []string{"totalRevenue"}},
	{"pv", []string{"screenPageViews"}},
	{"ページビュー", []string{"screenPageViews"}},
	{"pageview", []string{"screenPageViews"}},
	{"ユーザー", []string{"activeUsers"}},
	{"user", []string{"activeUsers"}},
	{"セッション", []string{"sessions"}},
	{"session", []string{"sessions"}},
	{"トランザクション", []string{"transactions"}},
	{"transaction", []string{"transactions"}},
	{"購入", []string{"transactions"}},
	{"コンバージョン", []string{"transactions"}},
}

var dimensionKeywords = []keywordEntry{
	{"デバイス", []string{"deviceCategory"}},
	{"device", []string{"deviceCategory"}},
	{"ページ", []string{"pagePath", "pageTitle"}},
	{"page", []string{"pagePath", "pageTitle"}},
	{"チャネル", []string{"sessionDefaultChannelGrouping"}},
	{"channel", []string{"sessionDefaultChannelGrouping"}},
	{"ソース", []string{"sessionSource"}},
	{"source", []string{"sessionSource"}},
	{"日別", []string{"date"}},
	{"推移", []string{"date"}},
	{"トレンド", []string{"date"}},
	{"trend", []string{"date"}},
}

// Explicit dates take priority over timeframe keywords.
var (
	slashDateRE    = regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`)
	japaneseDateRE = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
	shortDateRE    = regexp.MustCompile(`(?:^|[^/\d])(\d{1,2})/(\d{1,2})(?:$|[^/\d])`)
)

// KeywordClassifier classifies questions by substring matching against fixed
// Japanese/English vocabularies. It is fully deterministic.
type KeywordClassifier struct {
	now func() time.Time
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{now: time.Now}
}

func (c *KeywordClassifier) Classify(_ context.Context, question, _ string) AnalysisConfig {
	metrics := matchKeywords(question, metricKeywords)
	if len(metrics) == 0 {
		metrics = []string{DefaultMetric}
	}

	return AnalysisConfig{
		Timeframe:    c.extractTimeframe(question),
		Metrics:      metrics,
		Dimensions:   matchKeywords(question, dimensionKeywords),
		AnalysisType: DetermineAnalysisType(question),
	}
}

func (c *KeywordClassifier) extractTimeframe(question string) Timeframe {
	if tf, ok := c.extractExplicitDates(question); ok {
		return tf
	}

	for _, entry := range timeframeKeywords {
		if strings.Contains(question, entry.keyword) {
			return entry.timeframe
		}
	}

	return Timeframe{Type: TimeframeRelative, Period: "last_7_days"}
}

// extractExplicitDates scans for literal dates (2024/3/15, 2024年3月15日,
// 3/15). One date yields a single-day range; two or more yield the span
// between the earliest and latest.
func (c *KeywordClassifier) extractExplicitDates(question string) (Timeframe, bool) {
	var dates []time.Time

	for _, m := range slashDateRE.FindAllStringSubmatch(question, -1) {
		if d, ok := buildDate(m[1], m[2], m[3]); ok {
			dates = append(dates, d)
		}
	}
	for _, m := range japaneseDateRE.FindAllStringSubmatch(question, -1) {
		if d, ok := buildDate(m[1], m[2], m[3]); ok {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		year := strconv.Itoa(c.now().Year())
		for _, m := range shortDateRE.FindAllStringSubmatch(question, -1) {
			if d, ok := buildDate(year, m[1], m[2]); ok {
				dates = append(dates, d)
			}
		}
	}

	if len(dates) == 0 {
		return Timeframe{}, false
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return Timeframe{
		Type:      TimeframeAbsolute,
		StartDate: formatDate(dates[0]),
		EndDate:   formatDate(dates[len(dates)-1]),
	}, true
}

func buildDate(year, month, day string) (time.Time, bool) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), true
}

// matchKeywords accumulates identifiers from every matching keyword, in table
// order, with duplicates removed. Matching is case-insensitive substring
// containment.
func matchKeywords(question string, entries []keywordEntry) []string {
	lower := strings.ToLower(question)
	ids := []string{}
	seen := make(map[string]bool)
	for _, entry := range entries {
		if !strings.Contains(lower, strings.ToLower(entry.keyword)) {
			continue
		}
		for _, id := range entry.ids {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// DetermineAnalysisType picks the answer shape from question keywords,
// independently of metric and dimension extraction.
func DetermineAnalysisType(question string) AnalysisType {
	lower := strings.ToLower(question)

	switch {
	case containsAny(lower, "比較", "vs", "対"):
		return Comparison
	case containsAny(lower, "ランキング", "順位", "トップ", "最も"):
		return Ranking
	case containsAny(lower, "推移", "変化", "トレンド", "傾向"):
		return Trend
	case containsAny(lower, "デバイス", "device"):
		return DeviceBreakdown
	}
	return SimpleQuery
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Normalize enforces the invariants both classifier strategies guarantee:
// metrics never empty, dimensions never nil, analysis type always one of the
// known tags.
func Normalize(cfg AnalysisConfig) AnalysisConfig {
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = []string{DefaultMetric}
	}
	if cfg.Dimensions == nil {
		cfg.Dimensions = []string{}
	}
	switch cfg.AnalysisType {
	case SimpleQuery, Comparison, Ranking, Trend, DeviceBreakdown, PeriodComparison:
	default:
		cfg.AnalysisType = SimpleQuery
	}
	if cfg.Timeframe.Type == "" {
		cfg.Timeframe = Timeframe{Type: TimeframeRelative, Period: "last_7_days"}
	}
	return cfg
}
