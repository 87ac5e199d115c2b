package query

import "strings"

// ExtractComparisonPeriods pulls the two periods a comparison question refers
// to. Month pairs win over week pairs, which win over day pairs; two named
// months ("8月と9月") are honored as full calendar months. Anything ambiguous
// defaults to last month versus this month.
func ExtractComparisonPeriods(question string) (PeriodSpec, PeriodSpec) {
	switch {
	case strings.Contains(question, "先月") && strings.Contains(question, "今月"):
		return PeriodSpec{Label: "先月", Type: "relative_month", Offset: -1},
			PeriodSpec{Label: "今月", Type: "relative_month", Offset: 0}

	case strings.Contains(question, "先週") && strings.Contains(question, "今週"):
		return PeriodSpec{Label: "先週", Type: "relative_week", Offset: -1},
			PeriodSpec{Label: "今週", Type: "relative_week", Offset: 0}

	case strings.Contains(question, "昨日") && strings.Contains(question, "今日"):
		return PeriodSpec{Label: "昨日", Type: "relative_day", Offset: -1},
			PeriodSpec{Label: "今日", Type: "relative_day", Offset: 0}
	}

	if months := namedMonthsIn(question); len(months) >= 2 {
		return PeriodSpec{Label: months[0], Type: "named_month"},
			PeriodSpec{Label: months[1], Type: "named_month"}
	}

	return PeriodSpec{Label: "先月", Type: "relative_month", Offset: -1},
		PeriodSpec{Label: "今月", Type: "relative_month", Offset: 0}
}

// namedMonthsIn returns named month tokens in question order. Longer tokens
// are masked as they match so "10月" is never double-counted as "1月".
func namedMonthsIn(question string) []string {
	tokens := []string{"10月", "11月", "12月", "1月", "2月", "3月", "4月", "5月", "6月", "7月", "8月", "9月"}

	type hit struct {
		pos   int
		token string
	}
	var hits []hit
	masked := question
	for _, tok := range tokens {
		for {
			i := strings.Index(masked, tok)
			if i < 0 {
				break
			}
			hits = append(hits, hit{pos: i, token: tok})
			masked = masked[:i] + strings.Repeat("\x00", len(tok)) + masked[i+len(tok):]
		}
	}

	for i := range hits {
		for j := i + 1; j < len(hits); j++ {
			if hits[j].pos < hits[i].pos {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
	}

	months := make([]string, 0, len(hits))
	for _, h := range hits {
		months = append(months, h.token)
	}
	return months
}
