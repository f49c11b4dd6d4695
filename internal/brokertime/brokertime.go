// Package brokertime converts bar timestamps reported in broker server time into UTC.
package brokertime

import "time"

// Converter holds the broker clock settings.
// With FollowsDST the broker runs on EET: UTC+3 between the last Sunday of March and
// the last Sunday of October, UTC+2 otherwise. Without it, OffsetHours is used as is.
type Converter struct {
	OffsetHours int
	FollowsDST  bool
}

// UTC is the identity converter.
var UTC = Converter{}

// Offset returns the broker offset in effect at the given broker wall-clock time.
func (c Converter) Offset(at time.Time) time.Duration {
	if !c.FollowsDST {
		return time.Duration(c.OffsetHours) * time.Hour
	}
	year := at.Year()
	naive := time.Date(year, at.Month(), at.Day(), at.Hour(), at.Minute(), at.Second(), 0, time.UTC)
	if !naive.Before(lastSunday(year, time.March)) && naive.Before(lastSunday(year, time.October)) {
		return 3 * time.Hour
	}
	return 2 * time.Hour
}

// ToUTC shifts a broker timestamp to UTC. The wall clock of t is read as broker time
// regardless of its location.
func (c Converter) ToUTC(t time.Time) time.Time {
	naive := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return naive.Add(-c.Offset(naive))
}

// FromUTC shifts a UTC timestamp to broker wall-clock time.
func (c Converter) FromUTC(t time.Time) time.Time {
	t = t.UTC()
	shifted := t.Add(c.Offset(t))
	// re-evaluate near the switch dates so the result lies in the right regime
	return t.Add(c.Offset(shifted))
}

func lastSunday(year int, month time.Month) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() != time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
