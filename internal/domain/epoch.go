package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Epoch is the calendar timestamp of one TEC map, as written in the map header.
// It is comparable and used as a map key.
type Epoch struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// EpochFromTime truncates t to whole seconds in UTC.
func EpochFromTime(t time.Time) Epoch {
	t = t.UTC()
	return Epoch{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// Time returns the epoch as a UTC time.
func (e Epoch) Time() time.Time {
	return time.Date(e.Year, time.Month(e.Month), e.Day, e.Hour, e.Minute, e.Second, 0, time.UTC)
}

// Before reports whether e is chronologically earlier than other.
func (e Epoch) Before(other Epoch) bool {
	a := [6]int{e.Year, e.Month, e.Day, e.Hour, e.Minute, e.Second}
	b := [6]int{other.Year, other.Month, other.Day, other.Hour, other.Minute, other.Second}
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// String formats the epoch as RFC3339.
func (e Epoch) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02dZ", e.Year, e.Month, e.Day, e.Hour, e.Minute, e.Second)
}

// GPSTimeOfWeek converts the epoch to GPS week and seconds of week.
func (e Epoch) GPSTimeOfWeek() (int, float64, error) {
	return GPSTimeOfWeek(e.Year, e.Month, e.Day, e.Hour, e.Minute, float64(e.Second))
}

// GPSTimeOfWeek converts a calendar timestamp to GPS week number and seconds
// of week using the Julian Date of the day. Seconds are rounded to the
// nearest half second. No leap-second correction is applied.
func GPSTimeOfWeek(year, month, day, hour, minute int, second float64) (int, float64, error) {
	if err := validateCalendar(year, month, day, hour, minute, second); err != nil {
		return 0, 0, err
	}

	jd := julian.CalendarGregorianToJD(year, month, float64(day))
	days := jd - GPSEpochJD
	if days < 0 {
		return 0, 0, fmt.Errorf("%w: %04d-%02d-%02d is before the GPS epoch", ErrValidation, year, month, day)
	}

	secs := days*SecondsPerDay + float64(hour)*3600 + float64(minute)*60 + second
	week := int(math.Floor(secs / SecondsPerWeek))
	sow := math.Round((secs-float64(week)*SecondsPerWeek)*2) / 2
	if sow >= SecondsPerWeek {
		week++
		sow -= SecondsPerWeek
	}

	return week, sow, nil
}

func validateCalendar(year, month, day, hour, minute int, second float64) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d out of range", ErrValidation, month)
	}
	// time.Date normalizes overflowing days, so a round trip detects them.
	if t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC); day < 1 || t.Day() != day {
		return fmt.Errorf("%w: day %d out of range for %04d-%02d", ErrValidation, day, year, month)
	}
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", ErrValidation, hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", ErrValidation, minute)
	}
	if math.IsNaN(second) || second < 0 || second > 60 {
		return fmt.Errorf("%w: second %v out of range", ErrValidation, second)
	}
	return nil
}
