package features

import "time"

// CalendarNames are the names of the leading calendar features.
func CalendarNames() []string {
	return []string{"day_of_year", "month", "day", "year"}
}

// CalendarFeatures returns day of year, month, day of month and year for t in UTC.
func CalendarFeatures(t time.Time) []float64 {
	t = t.UTC()
	return []float64{
		float64(t.YearDay()),
		float64(t.Month()),
		float64(t.Day()),
		float64(t.Year()),
	}
}

// NextDay returns the calendar day after t.
func NextDay(t time.Time) time.Time {
	return t.AddDate(0, 0, 1)
}
