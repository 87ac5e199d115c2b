package query

import (
	"fmt"
	"time"
)

const isoDate = "2006-01-02"

// Resolve converts a symbolic timeframe into concrete calendar dates relative
// to today. It never fails: anything unrecognized degrades to the last seven
// days, matching the classifier's best-effort contract.
func Resolve(tf Timeframe, today time.Time) DateRange {
	today = truncateToDay(today)

	switch tf.Type {
	case TimeframeAbsolute:
		return resolveAbsolute(tf, today)
	case TimeframeNamed:
		return resolveNamedMonth(tf.Period, today)
	}

	switch tf.Period {
	case "today":
		return DateRange{formatDate(today), formatDate(today)}

	case "yesterday":
		y := today.AddDate(0, 0, -1)
		return DateRange{formatDate(y), formatDate(y)}

	case "last_7_days":
		return DateRange{formatDate(today.AddDate(0, 0, -7)), formatDate(today)}

	case "last_30_days":
		return DateRange{formatDate(today.AddDate(0, 0, -30)), formatDate(today)}

	case "last_week":
		// The 7-day block ending the day before the most recent Sunday.
		end := today.AddDate(0, 0, -int(today.Weekday())-1)
		return DateRange{formatDate(end.AddDate(0, 0, -6)), formatDate(end)}

	case "this_week":
		start := today.AddDate(0, 0, -int(today.Weekday()))
		return DateRange{formatDate(start), formatDate(today)}

	case "last_month":
		start := time.Date(today.Year(), today.Month()-1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(today.Year(), today.Month(), 0, 0, 0, 0, 0, time.UTC)
		return DateRange{formatDate(start), formatDate(end)}

	case "this_month":
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return DateRange{formatDate(start), formatDate(today)}
	}

	return defaultRange(today)
}

// ResolvePeriod resolves one side of a period comparison. Offset 0 keeps the
// current period truncated at today; nonzero offsets return the full
// historical period.
func ResolvePeriod(p PeriodSpec, today time.Time) DateRange {
	today = truncateToDay(today)

	switch p.Type {
	case "relative_month":
		start := time.Date(today.Year(), today.Month()+time.Month(p.Offset), 1, 0, 0, 0, 0, time.UTC)
		if p.Offset == 0 {
			return DateRange{formatDate(start), formatDate(today)}
		}
		end := start.AddDate(0, 1, -1)
		return DateRange{formatDate(start), formatDate(end)}

	case "relative_week":
		start := today.AddDate(0, 0, -int(today.Weekday())+7*p.Offset)
		if p.Offset == 0 {
			return DateRange{formatDate(start), formatDate(today)}
		}
		return DateRange{formatDate(start), formatDate(start.AddDate(0, 0, 6))}

	case "relative_day":
		day := today.AddDate(0, 0, p.Offset)
		return DateRange{formatDate(day), formatDate(day)}

	case "named_month":
		return resolveNamedMonth(p.Label, today)
	}

	return defaultRange(today)
}

// resolveNamedMonth maps a named month like "9月" to its most recent
// past-or-current occurrence, always as the full calendar month. A named
// month later than the current one belongs to the previous year.
func resolveNamedMonth(period string, today time.Time) DateRange {
	var month int
	if _, err := fmt.Sscanf(period, "%d月", &month); err != nil || month < 1 || month > 12 {
		return defaultRange(today)
	}

	year := today.Year()
	if month > int(today.Month()) {
		year--
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return DateRange{formatDate(start), formatDate(end)}
}

func resolveAbsolute(tf Timeframe, today time.Time) DateRange {
	if tf.StartDate == "" && tf.EndDate == "" {
		return defaultRange(today)
	}
	start, end := tf.StartDate, tf.EndDate
	if start == "" {
		start = end
	}
	if end == "" {
		end = start
	}
	return DateRange{start, end}
}

func defaultRange(today time.Time) DateRange {
	return DateRange{formatDate(today.AddDate(0, 0, -7)), formatDate(today)}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func formatDate(t time.Time) string {
	return t.Format(isoDate)
}
