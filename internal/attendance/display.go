package attendance

import (
	"log"
	"time"
)

const defaultReportTimezone = "America/New_York"

// ReportLocation resolves the fixed reporting timezone. Stored timestamps are
// instants; only displayed values are rendered in this zone.
func ReportLocation(name string) *time.Location {
	if name == "" {
		name = defaultReportTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("invalid report timezone %q: %v, using UTC", name, err)
		return time.UTC
	}
	return loc
}

// DisplayTime renders an instant the way the club front end shows it,
// e.g. "2/21/2026, 3:04:05 PM".
func DisplayTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("1/2/2006, 3:04:05 PM")
}

// DisplayDate renders the date part only, e.g. "2/21/2026".
func DisplayDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("1/2/2006")
}
