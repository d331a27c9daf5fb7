package sink

import (
	"context"
	"fmt"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/openwearables/zeppsync/internal/record"
)

// Writer maps normalized records onto InfluxDB points and writes them under
// one measurement. The destination is timestamp-indexed, so write order does
// not need to match generation order.
type Writer struct {
	client      influxdb2.Client
	org         string
	bucket      string
	measurement string
	logger      *slog.Logger
}

func New(url, token, org, bucket, measurement string, logger *slog.Logger) *Writer {
	return &Writer{
		client:      influxdb2.NewClient(url, token),
		org:         org,
		bucket:      bucket,
		measurement: measurement,
		logger:      logger,
	}
}

// Close releases the underlying client. Safe to call after a failed write;
// points already written are not rolled back.
func (w *Writer) Close() {
	w.client.Close()
}

// Write sends every record as one point, attaching the band serial as an
// extra tag on each.
func (w *Writer) Write(ctx context.Context, records []record.Record, serial string) error {
	writeAPI := w.client.WriteAPIBlocking(w.org, w.bucket)

	w.logger.Info("writing records", "count", len(records), "bucket", w.bucket)
	for _, rec := range records {
		if err := writeAPI.WritePoint(ctx, w.point(rec, serial)); err != nil {
			return fmt.Errorf("write point: %w", err)
		}
	}
	return nil
}

func (w *Writer) point(rec record.Record, serial string) *write.Point {
	p := influxdb2.NewPointWithMeasurement(w.measurement)
	for k, v := range rec.Tags {
		p.AddTag(k, v)
	}
	p.AddTag("serial_num", serial)
	for k, v := range rec.Fields {
		p.AddField(k, v)
	}
	return p.SetTime(rec.Time)
}
