package yield

import "time"

// TruncateDay returns t at UTC midnight.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthWindow returns the [start, end) period of month monthIndex, counted
// from the day of the first deposit.
func MonthWindow(anchor time.Time, monthIndex int) (time.Time, time.Time) {
	if monthIndex < 1 {
		monthIndex = 1
	}
	day := TruncateDay(anchor)
	return day.AddDate(0, monthIndex-1, 0), day.AddDate(0, monthIndex, 0)
}

// MonthIndexFor returns the 1-based month index containing t. Times before the
// anchor belong to the first month.
func MonthIndexFor(anchor, t time.Time) int {
	day := TruncateDay(anchor)
	t = t.UTC()
	if t.Before(day) {
		return 1
	}
	ay, am, _ := day.Date()
	ty, tm, _ := t.Date()
	k := (ty-ay)*12 + int(tm-am) + 1
	if k < 1 {
		k = 1
	}
	// The estimate is off by one when the anchor day does not exist in
	// every month or when t sits before the anchor's day of month.
	for k > 1 {
		start, _ := MonthWindow(anchor, k)
		if !t.Before(start) {
			break
		}
		k--
	}
	for {
		_, end := MonthWindow(anchor, k)
		if t.Before(end) {
			return k
		}
		k++
	}
}

// CalendarDays lists every UTC day in [start, end). The simulated market never
// closes, so weekends and holidays are included.
func CalendarDays(start, end time.Time) []time.Time {
	days := make([]time.Time, 0, 31)
	for d := TruncateDay(start); d.Before(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
