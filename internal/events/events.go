// Package events publishes week updates to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"paceload/internal/store"
)

// WeekUpdatedType names the event emitted after a week's load is stored.
const WeekUpdatedType = "training_load.week_updated"

// WeekUpdated is the JSON payload of a week update event.
type WeekUpdated struct {
	Type             string      `json:"type"`
	AthleteID        int64       `json:"athlete_id"`
	WeekStart        string      `json:"week_start"`
	NumZones         int         `json:"num_zones"`
	TotalMinutes     float64     `json:"total_minutes"`
	TotalLoadMinutes float64     `json:"total_load_minutes"`
	TotalMonotony    float64     `json:"total_monotony"`
	TotalStrain      float64     `json:"total_strain"`
	Zones            []ZoneEvent `json:"zones"`
	OccurredAt       time.Time   `json:"occurred_at"`
}

// ZoneEvent is one zone's load within a WeekUpdated event.
type ZoneEvent struct {
	ZoneNumber  int     `json:"zone_number"`
	LoadMinutes float64 `json:"load_minutes"`
	Monotony    float64 `json:"monotony"`
	Strain      float64 `json:"strain"`
}

// NewWeekUpdated builds the event for a stored week.
func NewWeekUpdated(w *store.WeeklyMonotonyStrain, now time.Time) WeekUpdated {
	ev := WeekUpdated{
		Type:             WeekUpdatedType,
		AthleteID:        w.AthleteID,
		WeekStart:        store.FormatDate(w.WeekStart),
		NumZones:         w.NumZones,
		TotalMinutes:     w.TotalLoadMinutes,
		TotalLoadMinutes: w.TotalLoadMinutes,
		TotalMonotony:    w.TotalMonotony,
		TotalStrain:      w.TotalStrain,
		Zones:            make([]ZoneEvent, 0, len(w.Zones)),
		OccurredAt:       now.UTC(),
	}
	for _, z := range w.Zones {
		ev.Zones = append(ev.Zones, ZoneEvent{
			ZoneNumber:  z.ZoneNumber,
			LoadMinutes: z.LoadMinutes,
			Monotony:    z.Monotony,
			Strain:      z.Strain,
		})
	}
	return ev
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes week events to a Kafka topic keyed by athlete, so
// one athlete's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	})
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: time.Now}
}

// PublishWeekUpdated sends the event for a stored week.
func (p *KafkaPublisher) PublishWeekUpdated(ctx context.Context, week *store.WeeklyMonotonyStrain) error {
	payload, err := json.Marshal(NewWeekUpdated(week, p.now()))
	if err != nil {
		return fmt.Errorf("encoding week event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(week.AthleteID, 10)),
		Value: payload,
		Time:  p.now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(WeekUpdatedType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		publishedCounter.WithLabelValues("error").Inc()
		return fmt.Errorf("writing week event: %w", err)
	}
	publishedCounter.WithLabelValues("ok").Inc()
	return nil
}

// Close flushes and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop discards events. It is used when no brokers are configured.
type Noop struct{}

func (Noop) PublishWeekUpdated(context.Context, *store.WeeklyMonotonyStrain) error { return nil }
func (Noop) Close() error                                                          { return nil }
