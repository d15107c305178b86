package payment

import "time"

// AdvancePeriod returns the subscription end date for a period starting at
// start. Calendar months are advanced with end-of-month clamping, so a
// monthly period starting Jan 31 ends Feb 29 in a leap year rather than
// spilling into March.
func AdvancePeriod(start time.Time, cycle string) time.Time {
	if normalizeCycle(cycle) == "yearly" {
		return addMonthsClamped(start, 12)
	}
	return addMonthsClamped(start, 1)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysInMonth(firstOfTarget.Year(), firstOfTarget.Month()); d > last {
		d = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
