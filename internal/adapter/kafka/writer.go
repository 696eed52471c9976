package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/config"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces table rows to a Kafka topic.
// It implements pipeline.TableSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic. Rows are
// keyed by region and hash-partitioned, so one region's rows stay in order.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadTable publishes one message per row in a single WriteMessages call.
func (w *Writer) LoadTable(ctx context.Context, table domain.Table) error {
	if len(table.Rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(table.Rows))
	for i := range table.Rows {
		msg, err := serializeRow(table.Rows[i], table)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d rows to %s: %w", len(msgs), w.writer.Topic, err)
	}
	w.logger.Debug("table rows produced", "topic", w.writer.Topic, "rows", len(msgs), "source", table.Source)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeRow marshals a Row into a Kafka message carrying the table's
// source and generation time as headers.
func serializeRow(row domain.Row, table domain.Table) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize row for %s: %w", row.Region, err)
	}
	return kafkago.Message{
		Key:   []byte(row.Region),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(table.Source)},
			{Key: "generated_at", Value: []byte(table.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
