// Package kafka publishes finished zonal statistics and rendering flags to a
// Kafka topic so downstream consumers (dashboards, warehouses) pick them up
// without polling the export directory.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/veerylabs/rangemap/internal/composite"
	"github.com/veerylabs/rangemap/internal/config"
	"github.com/veerylabs/rangemap/internal/zonal"
)

// StatsWriter produces zonal statistic records to the configured topic.
type StatsWriter struct {
	writer  *kafkago.Writer
	species string
	logger  *slog.Logger
}

// NewStatsWriter creates a Kafka producer for the stats topic.
func NewStatsWriter(cfg *config.Config, logger *slog.Logger) *StatsWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaStatsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &StatsWriter{writer: w, species: cfg.Species, logger: logger}
}

// PublishStats serializes and publishes a batch of statistics in a single
// WriteMessages call.
func (w *StatsWriter) PublishStats(ctx context.Context, stats []zonal.Stat) error {
	if len(stats) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(stats))
	for i := range stats {
		msg, err := serializeStat(w.species, stats[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka: publishing %d stats: %w", len(stats), err)
	}
	w.logger.Info("published zonal stats", "count", len(stats), "topic", w.writer.Topic)
	return nil
}

// PublishFlags publishes the rendering flags derived for the species run as
// a single record keyed by species.
func (w *StatsWriter) PublishFlags(ctx context.Context, flags composite.Flags) error {
	data, err := json.Marshal(flagsRecord{
		Species:        w.species,
		SplitMigration: flags.SplitMigration,
		ShowYearRound:  flags.ShowYearRound,
	})
	if err != nil {
		return fmt.Errorf("serialize rendering flags: %w", err)
	}
	msg := kafkago.Message{
		Key:   []byte(w.species),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "species", Value: []byte(w.species)},
			{Key: "record_type", Value: []byte("rendering_flags")},
		},
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publishing rendering flags: %w", err)
	}
	w.logger.Info("published rendering flags", "topic", w.writer.Topic,
		"split_migration", flags.SplitMigration, "show_yearround", flags.ShowYearRound)
	return nil
}

type flagsRecord struct {
	Species        string `json:"species"`
	SplitMigration bool   `json:"split_migration"`
	ShowYearRound  bool   `json:"show_yearround"`
}

func (w *StatsWriter) Close() error {
	return w.writer.Close()
}

// serializeStat marshals one statistic into a Kafka message. The key groups
// all values for one (region, season, statistic) onto one partition so
// consumers see them in production order.
func serializeStat(species string, s zonal.Stat) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize zonal stat: %w", err)
	}
	key := fmt.Sprintf("%s|%s|%s", s.RegionID, s.Season, s.Kind)
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "species", Value: []byte(species)},
			{Key: "produced_at", Value: []byte(s.ProducedAt.Format(time.RFC3339))},
		},
	}, nil
}
