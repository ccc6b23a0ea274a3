// Package calendar implements date arithmetic for the Sunday-Thursday
// business workweek. Friday and Saturday are the weekend.
package calendar

import (
	"time"

	"github.com/andresuchdata/otp-service/internal/domain"
)

// IsWorkingDay reports whether d falls on a working day (Sunday-Thursday).
func IsWorkingDay(d domain.Date) bool {
	wd := d.Weekday()
	return wd != time.Friday && wd != time.Saturday
}

// NextWorkingDay returns d unchanged when it is already a working day,
// otherwise the next working day after it.
func NextWorkingDay(d domain.Date) domain.Date {
	for !IsWorkingDay(d) {
		d = d.AddDays(1)
	}
	return d
}

// AddWorkingDays advances d by exactly n working days, skipping Friday and
// Saturday. Adding zero returns d unchanged even when d itself is a weekend.
func AddWorkingDays(d domain.Date, n int) domain.Date {
	for i := 0; i < n; i++ {
		d = d.AddDays(1)
		for !IsWorkingDay(d) {
			d = d.AddDays(1)
		}
	}
	return d
}
