// Package units converts stored UTC values for display.
package units

import (
	"fmt"
	"time"
)

// LoadTimezone resolves an IANA zone name. The empty string and "UTC" both
// mean UTC.
func LoadTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// IsTimezoneValid reports whether tz names a zone in the tz database.
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := LoadTimezone(tz)
	return err == nil
}

// ConvertTime expresses a stored UTC time in tz.
func ConvertTime(utc time.Time, tz string) (time.Time, error) {
	loc, err := LoadTimezone(tz)
	if err != nil {
		return utc, err
	}
	return utc.In(loc), nil
}
