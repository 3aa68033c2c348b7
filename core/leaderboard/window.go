package leaderboard

import "time"

// WindowFor returns the time window of period ending at now.
// Periodic windows start at the beginning of the current UTC day, ISO week (Monday) or month.
func WindowFor(period Period, now time.Time) Window {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	w := Window{To: now}

	switch period {
	case PeriodDaily:
		w.From = day
	case PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7 // days since Monday
		w.From = day.AddDate(0, 0, -offset)
	case PeriodMonthly:
		w.From = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return w
}
