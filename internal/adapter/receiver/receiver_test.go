package receiver

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeFixture(t *testing.T, tracker *Tracker) []Fix {
	t.Helper()
	f, err := os.Open("../../../testdata/receiver.nmea")
	require.NoError(t, err)
	defer f.Close()

	var fixes []Fix
	require.NoError(t, Decode(context.Background(), f, tracker, func(fix Fix) error {
		fixes = append(fixes, fix)
		return nil
	}))
	return fixes
}

func TestDecode_FixesFromLog(t *testing.T) {
	fixes := decodeFixture(t, NewTracker(time.Time{}))

	// The first GGA precedes any RMC date and the fourth has no fix.
	require.Len(t, fixes, 2)

	first := fixes[0]
	assert.Equal(t, time.Date(2018, 1, 1, 2, 0, 0, 0, time.UTC), first.Time)
	assert.InDelta(t, 5.0, first.Lat, 1e-9)
	assert.InDelta(t, 15.0, first.Lon, 1e-9)
	assert.InDelta(t, 100.0, first.AltitudeM, 1e-9)

	// Only the GPS talker's satellites are kept.
	require.Len(t, first.Satellites, 5)
	assert.Equal(t, Satellite{PRN: 1, ElevationDeg: 45, AzimuthDeg: 90, SNR: 40}, first.Satellites[0])
	assert.Equal(t, Satellite{PRN: 17, ElevationDeg: 30, AzimuthDeg: 45, SNR: 38}, first.Satellites[4])

	second := fixes[1]
	assert.Equal(t, time.Date(2018, 1, 1, 2, 0, 2, 500*int(time.Millisecond), time.UTC), second.Time)
	assert.InDelta(t, -5.0, second.Lat, 1e-9)
	assert.InDelta(t, -15.0, second.Lon, 1e-9)
}

func TestDecode_SeededDate(t *testing.T) {
	fixes := decodeFixture(t, NewTracker(time.Date(2017, 12, 31, 18, 0, 0, 0, time.UTC)))

	// The seeded date lets the first GGA through; RMC then moves to 2018-01-01.
	require.Len(t, fixes, 3)
	assert.Equal(t, time.Date(2017, 12, 31, 1, 59, 59, 0, time.UTC), fixes[0].Time)
	assert.Empty(t, fixes[0].Satellites)
	assert.Equal(t, 2018, fixes[1].Time.Year())
}

func TestDecode_CallbackErrorStops(t *testing.T) {
	boom := errors.New("stop")
	f, err := os.Open("../../../testdata/receiver.nmea")
	require.NoError(t, err)
	defer f.Close()

	calls := 0
	err = Decode(context.Background(), f, NewTracker(time.Time{}), func(Fix) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDecode_NoTrailingNewline(t *testing.T) {
	input := "$GPRMC,020000.00,A,0500.000,N,01500.000,E,0.0,0.0,010118,,,A*54\n" +
		"$GPGGA,020000.00,0500.000,N,01500.000,E,1,05,1.0,100.0,M,0.0,M,,*5A"

	var n int
	require.NoError(t, Decode(context.Background(), strings.NewReader(input), NewTracker(time.Time{}), func(Fix) error {
		n++
		return nil
	}))
	assert.Equal(t, 1, n)
}

func TestDecode_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Decode(ctx, strings.NewReader("$GPRMC,020000.00,A,0500.000,N,01500.000,E,0.0,0.0,010118,,,A*54\n"), NewTracker(time.Time{}), func(Fix) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

// A read blocked on a source that never produces data returns once the
// context is cancelled, because Decode closes the source.
func TestDecode_CancelUnblocksRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Decode(ctx, pr, NewTracker(time.Time{}), func(Fix) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Decode did not return after cancellation")
	}
}

func TestTracker_IncompleteGSVNotCommitted(t *testing.T) {
	tracker := NewTracker(time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC))

	s, err := nmea.Parse("$GPGSV,2,1,05,01,45,090,40,03,10,270,35,07,90,000,45,11,00,180,20*77")
	require.NoError(t, err)
	tracker.Update(s)

	s, err = nmea.Parse("$GPGGA,020000.00,0500.000,N,01500.000,E,1,05,1.0,100.0,M,0.0,M,,*5A")
	require.NoError(t, err)
	fix, ok := tracker.Update(s)
	require.True(t, ok)
	assert.Empty(t, fix.Satellites)
}

func TestFullYear(t *testing.T) {
	assert.Equal(t, 2018, fullYear(18))
	assert.Equal(t, 1994, fullYear(94))
	assert.Equal(t, 2079, fullYear(79))
}
