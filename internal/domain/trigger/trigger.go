// internal/domain/trigger/trigger.go
package trigger

import (
	"sort"
	"time"
	// Embed the IANA zone database so local-time math never depends on the
	// host's tzdata.
	_ "time/tzdata"
)

// Target is the local wall-clock time that fires a notification.
type Target struct {
	Hour   int
	Minute int
}

// DefaultTarget is 09:00 local time.
var DefaultTarget = Target{Hour: 9, Minute: 0}

// ZoneMatch is one timezone whose local clock reads the target at the
// scanned instant, together with that local time.
type ZoneMatch struct {
	Zone  string
	Local time.Time
}

// MatchZones computes local wall-clock time for every zone at the instant
// now and returns the zones where hour and minute equal the target. Zone
// names that do not resolve are returned separately so the caller can log
// them without aborting the scan.
func MatchZones(now time.Time, zones []string, target Target) (matches []ZoneMatch, unknown []string) {
	for _, name := range zones {
		loc, err := time.LoadLocation(name)
		if err != nil {
			unknown = append(unknown, name)
			continue
		}
		local := now.In(loc)
		if local.Hour() == target.Hour && local.Minute() == target.Minute {
			matches = append(matches, ZoneMatch{Zone: name, Local: local})
		}
	}
	return matches, unknown
}

// MonthDay is a calendar birthday independent of year.
type MonthDay struct {
	Month int
	Day   int
}

// ObservedBirthdays returns the birth dates observed on the given local
// date. On Feb 28 of a non-leap year it returns both (2, 28) and (2, 29):
// people born on leap day are congratulated on the 28th when the 29th does
// not exist. In a leap year the two dates stay distinct.
func ObservedBirthdays(local time.Time) []MonthDay {
	observed := []MonthDay{{Month: int(local.Month()), Day: local.Day()}}
	if local.Month() == time.February && local.Day() == 28 && !IsLeapYear(local.Year()) {
		observed = append(observed, MonthDay{Month: 2, Day: 29})
	}
	return observed
}

// IsLeapYear implements the Gregorian leap rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DateGroup is a set of matched zones that observe the same birthday on the
// same local calendar date. One directory query serves the whole group.
type DateGroup struct {
	Year     int
	Birthday MonthDay
	Zones    []string
}

// GroupByObservedDate buckets zone matches by (year, observed month, day).
// Zones east and west of the date line can sit on different calendar dates
// in the same scanned minute, so the year is part of the key. The result is
// ordered deterministically for stable processing and logging.
func GroupByObservedDate(matches []ZoneMatch) []DateGroup {
	type key struct {
		year  int
		month int
		day   int
	}
	buckets := make(map[key][]string)
	for _, m := range matches {
		for _, md := range ObservedBirthdays(m.Local) {
			k := key{year: m.Local.Year(), month: md.Month, day: md.Day}
			buckets[k] = append(buckets[k], m.Zone)
		}
	}

	groups := make([]DateGroup, 0, len(buckets))
	for k, zones := range buckets {
		sort.Strings(zones)
		groups = append(groups, DateGroup{
			Year:     k.year,
			Birthday: MonthDay{Month: k.month, Day: k.day},
			Zones:    zones,
		})
	}
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Birthday.Month != b.Birthday.Month {
			return a.Birthday.Month < b.Birthday.Month
		}
		return a.Birthday.Day < b.Birthday.Day
	})
	return groups
}
