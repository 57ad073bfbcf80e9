// Package mqtt publishes delay reports to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"go.ngs.io/iono-api/internal/domain"
)

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Sink publishes one retained JSON message per report under a topic
// prefix, e.g. "iono/delay/codg0010.18i".
type Sink struct {
	client  publisher
	prefix  string
	timeout time.Duration
}

// NewSink connects to broker and returns a sink publishing under prefix.
func NewSink(broker, clientID, prefix string) (*Sink, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	log.WithField("broker", broker).Info("connected to MQTT broker")

	return &Sink{client: client, prefix: strings.TrimSuffix(prefix, "/"), timeout: 10 * time.Second}, nil
}

// Name implements sink.Sink.
func (s *Sink) Name() string { return "mqtt" }

// Topic returns the topic a report is published to.
func (s *Sink) Topic(report *domain.DelayReport) string {
	return s.prefix + "/" + report.IonexFile
}

// Write implements sink.Sink.
func (s *Sink) Write(ctx context.Context, report *domain.DelayReport) error {
	payload, err := json.Marshal(NewMessage(report))
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	token := s.client.Publish(s.Topic(report), 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
		return fmt.Errorf("mqtt publish to %s timed out", s.Topic(report))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	s.client.Disconnect(250)
	return nil
}

// Message is the published JSON document.
type Message struct {
	ID         string             `json:"id"`
	IonexFile  string             `json:"ionex_file"`
	NavFile    string             `json:"nav_file,omitempty"`
	Target     domain.Target      `json:"target"`
	Box        domain.BoundingBox `json:"bounding_box"`
	Skipped    int                `json:"skipped"`
	ComputedAt time.Time          `json:"computed_at"`
	Points     []MessagePoint     `json:"points"`
}

// MessagePoint is one epoch of a Message.
type MessagePoint struct {
	Epoch           string   `json:"epoch"`
	TECU            float64  `json:"tecu"`
	GridDelayM      float64  `json:"grid_delay_m"`
	KlobucharDelayM *float64 `json:"klobuchar_delay_m,omitempty"`
}

// NewMessage builds the message for a report.
func NewMessage(report *domain.DelayReport) Message {
	m := Message{
		ID:         report.ID,
		IonexFile:  report.IonexFile,
		NavFile:    report.NavFile,
		Target:     report.Target,
		Box:        report.Box,
		Skipped:    report.Skipped,
		ComputedAt: report.ComputedAt,
		Points:     make([]MessagePoint, 0, len(report.Records)),
	}
	for _, rec := range report.Records {
		p := MessagePoint{Epoch: rec.Epoch.String(), TECU: rec.TECU, GridDelayM: rec.GridDelayM}
		if rec.HasKlobuchar {
			v := rec.KlobucharDelayM
			p.KlobucharDelayM = &v
		}
		m.Points = append(m.Points, p)
	}
	return m
}
