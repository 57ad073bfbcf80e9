package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPSTimeOfWeek_KnownDates(t *testing.T) {
	tests := []struct {
		name                   string
		year, month, day, h, m int
		sec                    float64
		week                   int
		sow                    float64
	}{
		{"gps epoch", 1980, 1, 6, 0, 0, 0, 0, 0},
		{"start of week 1982", 2017, 12, 31, 0, 0, 0, 1982, 0},
		{"monday 2018-01-01", 2018, 1, 1, 0, 0, 0, 1982, 86400},
		{"midday in february", 2018, 2, 14, 12, 30, 15, 1988, 3*86400 + 12*3600 + 30*60 + 15},
		{"saturday before rollover", 2019, 4, 6, 23, 59, 59, 2047, 6*86400 + 86399},
		{"week 2048 after rollover", 2019, 4, 7, 0, 0, 0, 2048, 0},
		{"leap day", 2020, 2, 29, 6, 0, 0, 2094, 6*86400 + 6*3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			week, sow, err := GPSTimeOfWeek(tt.year, tt.month, tt.day, tt.h, tt.m, tt.sec)
			require.NoError(t, err)
			assert.Equal(t, tt.week, week)
			assert.Equal(t, tt.sow, sow)
		})
	}
}

func TestGPSTimeOfWeek_HalfSecondRounding(t *testing.T) {
	_, sow, err := GPSTimeOfWeek(2017, 12, 31, 0, 0, 10.26)
	require.NoError(t, err)
	assert.Equal(t, 10.5, sow)

	_, sow, err = GPSTimeOfWeek(2017, 12, 31, 0, 0, 10.74)
	require.NoError(t, err)
	assert.Equal(t, 10.5, sow)

	_, sow, err = GPSTimeOfWeek(2017, 12, 31, 0, 0, 10.76)
	require.NoError(t, err)
	assert.Equal(t, 11.0, sow)
}

func TestGPSTimeOfWeek_RoundingCarriesIntoNextWeek(t *testing.T) {
	week, sow, err := GPSTimeOfWeek(2018, 1, 6, 23, 59, 59.9)
	require.NoError(t, err)
	assert.Equal(t, 1983, week)
	assert.Equal(t, 0.0, sow)
}

func TestGPSTimeOfWeek_Validation(t *testing.T) {
	tests := []struct {
		name                   string
		year, month, day, h, m int
		sec                    float64
	}{
		{"month zero", 2018, 0, 1, 0, 0, 0},
		{"month thirteen", 2018, 13, 1, 0, 0, 0},
		{"day zero", 2018, 1, 0, 0, 0, 0},
		{"february 30", 2018, 2, 30, 0, 0, 0},
		{"february 29 in common year", 2019, 2, 29, 0, 0, 0},
		{"hour 24", 2018, 1, 1, 24, 0, 0},
		{"minute 60", 2018, 1, 1, 0, 60, 0},
		{"negative second", 2018, 1, 1, 0, 0, -1},
		{"before gps epoch", 1980, 1, 5, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := GPSTimeOfWeek(tt.year, tt.month, tt.day, tt.h, tt.m, tt.sec)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestEpoch_OrderingAndTime(t *testing.T) {
	a := Epoch{Year: 2018, Month: 1, Day: 1, Hour: 0}
	b := Epoch{Year: 2018, Month: 1, Day: 1, Hour: 2}
	c := Epoch{Year: 2017, Month: 12, Day: 31, Hour: 23, Minute: 59, Second: 59}

	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.False(t, a.Before(a))
	assert.True(t, c.Before(a))

	epochs := []Epoch{b, a, c}
	SortEpochs(epochs)
	assert.Equal(t, []Epoch{c, a, b}, epochs)

	assert.Equal(t, time.Date(2018, 1, 1, 2, 0, 0, 0, time.UTC), b.Time())
	assert.Equal(t, b, EpochFromTime(b.Time()))
	assert.Equal(t, "2018-01-01T02:00:00Z", b.String())

	week, sow, err := a.GPSTimeOfWeek()
	require.NoError(t, err)
	assert.Equal(t, 1982, week)
	assert.Equal(t, 86400.0, sow)
}
