// Package receiver decodes GNSS receiver output in NMEA 0183.
//
// GGA sentences give the antenna position, RMC the date, and GSV the
// elevation and azimuth of every satellite in view. A Fix is emitted for
// each GGA once a date is known.
package receiver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"go.ngs.io/iono-api/internal/metrics"
)

// Satellite is one GPS satellite as reported by GSV.
type Satellite struct {
	PRN          int64   `json:"prn"`
	ElevationDeg float64 `json:"elevation_deg"`
	AzimuthDeg   float64 `json:"azimuth_deg"`
	SNR          int64   `json:"snr"`
}

// Fix is the receiver state at one GGA epoch.
type Fix struct {
	Time       time.Time   `json:"time"`
	Lat        float64     `json:"lat"`
	Lon        float64     `json:"lon"`
	AltitudeM  float64     `json:"altitude_m"`
	Quality    string      `json:"quality"`
	Satellites []Satellite `json:"satellites"`
}

// Tracker accumulates NMEA sentences into fixes.
type Tracker struct {
	date    time.Time // UTC midnight of the current day; zero until known.
	sats    []Satellite
	pending []Satellite
}

// NewTracker creates a tracker. date seeds the calendar day for logs that
// carry no RMC sentences; pass the zero time to wait for RMC.
func NewTracker(date time.Time) *Tracker {
	t := &Tracker{}
	if !date.IsZero() {
		y, m, d := date.UTC().Date()
		t.date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// Update feeds one sentence and returns the completed fix, if any.
func (t *Tracker) Update(s nmea.Sentence) (*Fix, bool) {
	metrics.ReceiverSentences.WithLabelValues(s.DataType()).Inc()

	switch s.DataType() {
	case nmea.TypeRMC:
		m := s.(nmea.RMC)
		if m.Date.Valid {
			t.date = time.Date(fullYear(m.Date.YY), time.Month(m.Date.MM), m.Date.DD, 0, 0, 0, 0, time.UTC)
		}

	case nmea.TypeGSV:
		m := s.(nmea.GSV)
		if s.TalkerID() != "GP" {
			return nil, false
		}
		if m.MessageNumber == 1 {
			t.pending = t.pending[:0]
		}
		for _, info := range m.Info {
			t.pending = append(t.pending, Satellite{
				PRN:          info.SVPRNNumber,
				ElevationDeg: float64(info.Elevation),
				AzimuthDeg:   float64(info.Azimuth),
				SNR:          info.SNR,
			})
		}
		if m.MessageNumber == m.TotalMessages {
			t.sats = append(t.sats[:0], t.pending...)
		}

	case nmea.TypeGGA:
		m := s.(nmea.GGA)
		if m.FixQuality == nmea.Invalid || !m.Time.Valid || t.date.IsZero() {
			return nil, false
		}
		fix := &Fix{
			Time: t.date.Add(time.Duration(m.Time.Hour)*time.Hour +
				time.Duration(m.Time.Minute)*time.Minute +
				time.Duration(m.Time.Second)*time.Second +
				time.Duration(m.Time.Millisecond)*time.Millisecond),
			Lat:        m.Latitude,
			Lon:        m.Longitude,
			AltitudeM:  m.Altitude,
			Quality:    m.FixQuality,
			Satellites: append([]Satellite(nil), t.sats...),
		}
		return fix, true
	}

	return nil, false
}

// fullYear expands an RMC two-digit year; 80-99 are 19xx.
func fullYear(yy int) int {
	if yy >= 80 {
		return 1900 + yy
	}
	return 2000 + yy
}

// Decode reads NMEA lines from r and calls fn for every fix. Lines that do
// not parse are skipped. Decode returns fn's first error, or nil at EOF.
//
// When ctx is cancelled Decode returns ctx.Err(). If r is an io.Closer it is
// closed on cancellation so that a read blocked on a serial port returns.
func Decode(ctx context.Context, r io.Reader, tracker *Tracker, fn func(Fix) error) error {
	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	reader := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := reader.ReadString('\n')
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "$") {
			sentence, perr := nmea.Parse(line)
			if perr != nil {
				log.WithError(perr).Debug("skipping NMEA sentence")
			} else if fix, ok := tracker.Update(sentence); ok {
				if ferr := fn(*fix); ferr != nil {
					return ferr
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read NMEA: %w", err)
		}
	}
}

// OpenSerial opens a receiver serial port with 8N1 framing.
func OpenSerial(port string, baud uint) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:        port,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	p, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", port, err)
	}
	log.WithFields(log.Fields{"port": port, "baud": baud}).Info("receiver serial port opened")
	return p, nil
}
