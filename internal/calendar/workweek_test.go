package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/andresuchdata/otp-service/internal/domain"
)

// 2026-01-26 is a Monday.
var (
	monday   = domain.NewDate(2026, time.January, 26)
	tuesday  = domain.NewDate(2026, time.January, 27)
	thursday = domain.NewDate(2026, time.January, 29)
	friday   = domain.NewDate(2026, time.January, 30)
	saturday = domain.NewDate(2026, time.January, 31)
	sunday   = domain.NewDate(2026, time.February, 1)
)

func TestIsWorkingDay(t *testing.T) {
	assert.True(t, IsWorkingDay(sunday))
	assert.True(t, IsWorkingDay(monday))
	assert.True(t, IsWorkingDay(tuesday))
	assert.True(t, IsWorkingDay(thursday))

	assert.False(t, IsWorkingDay(friday))
	assert.False(t, IsWorkingDay(saturday))
}

func TestNextWorkingDay(t *testing.T) {
	// Working days map to themselves.
	assert.Equal(t, monday, NextWorkingDay(monday))
	assert.Equal(t, thursday, NextWorkingDay(thursday))

	// Friday and Saturday both advance to Sunday.
	assert.Equal(t, sunday, NextWorkingDay(friday))
	assert.Equal(t, sunday, NextWorkingDay(saturday))
}

func TestAddWorkingDays(t *testing.T) {
	tests := []struct {
		name  string
		start domain.Date
		n     int
		want  domain.Date
	}{
		{"zero is identity", thursday, 0, thursday},
		{"zero is identity even on weekend", friday, 0, friday},
		{"within week", monday, 2, domain.NewDate(2026, time.January, 28)},
		{"thursday plus one skips to sunday", thursday, 1, sunday},
		{"thursday plus two lands monday", thursday, 2, domain.NewDate(2026, time.February, 2)},
		{"sunday plus four lands thursday", sunday, 4, domain.NewDate(2026, time.February, 5)},
		{"full week", sunday, 5, domain.NewDate(2026, time.February, 8)},
		{"two weeks", monday, 10, domain.NewDate(2026, time.February, 9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddWorkingDays(tt.start, tt.n))
		})
	}
}

func TestAddWorkingDaysNeverLandsOnWeekend(t *testing.T) {
	d := monday
	for n := 1; n <= 30; n++ {
		d = AddWorkingDays(monday, n)
		assert.NotEqual(t, time.Friday, d.Weekday())
		assert.NotEqual(t, time.Saturday, d.Weekday())
	}
}
