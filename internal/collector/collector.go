package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openwearables/zeppsync/internal/extract"
	"github.com/openwearables/zeppsync/internal/record"
	"github.com/openwearables/zeppsync/internal/zepp"
)

// API is the slice of the Zepp client the collector needs.
type API interface {
	BandData(ctx context.Context, fromDate, toDate string) ([]zepp.DayData, error)
	StressEvents(ctx context.Context, from, to time.Time) ([]json.RawMessage, error)
	BloodOxygenEvents(ctx context.Context, from, to time.Time) ([]json.RawMessage, error)
	PaiEvents(ctx context.Context, from, to time.Time) ([]json.RawMessage, error)
}

// Collector runs one synchronous collection pass: the mandatory band
// summary fetch plus the independently fallible event-stream fetches.
type Collector struct {
	api       API
	queryDays int
	logger    *slog.Logger
	now       func() time.Time
}

func New(api API, queryDays int, logger *slog.Logger) *Collector {
	return &Collector{
		api:       api,
		queryDays: queryDays,
		logger:    logger,
		now:       time.Now,
	}
}

// Result is the full normalized output of one run. Serial is the band
// serial number to tag every record with, "unknown" when no day reported one.
type Result struct {
	Records []record.Record
	Serial  string
}

// Run performs the collection. A band-data failure is fatal; a failure in
// any one of the optional event fetches is logged, that metric is skipped,
// and the run proceeds with partial data.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	now := c.now()

	result, err := c.bandData(ctx, now)
	if err != nil {
		return nil, err
	}

	// Event queries span local midnight of the window start through the
	// end of today; the API rejects mid-day boundaries.
	from := midnightOf(now.AddDate(0, 0, -c.queryDays))
	to := endOfDay(now).Add(999 * time.Millisecond)

	optional := []struct {
		name  string
		fetch func() ([]record.Record, error)
	}{
		{"stress", func() ([]record.Record, error) {
			items, err := c.api.StressEvents(ctx, from, to)
			if err != nil {
				return nil, err
			}
			return extract.Stress(items)
		}},
		{"blood_oxygen", func() ([]record.Record, error) {
			items, err := c.api.BloodOxygenEvents(ctx, from, to)
			if err != nil {
				return nil, err
			}
			return extract.BloodOxygen(items, c.logger)
		}},
		{"pai", func() ([]record.Record, error) {
			items, err := c.api.PaiEvents(ctx, from, to)
			if err != nil {
				return nil, err
			}
			return extract.Pai(items)
		}},
	}

	for _, metric := range optional {
		c.logger.Info("retrieving metric", "metric", metric.name)
		records, err := metric.fetch()
		if err != nil {
			c.logger.Warn("skipping optional metric", "metric", metric.name, "error", err)
			continue
		}
		result.Records = append(result.Records, records...)
	}

	return result, nil
}

// bandData fetches the per-day summaries, decodes each day's envelope and
// heart-rate blob, and dispatches envelope keys to their extractors. Any
// failure here fails the run.
func (c *Collector) bandData(ctx context.Context, now time.Time) (*Result, error) {
	c.logger.Info("retrieving band data", "days", c.queryDays)

	from := now.AddDate(0, 0, -c.queryDays)
	days, err := c.api.BandData(ctx, from.Format("2006-01-02"), now.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("fetch band data: %w", err)
	}

	midnight := midnightOf(now)
	result := &Result{Serial: "unknown"}

	for _, day := range days {
		dayStart, err := extract.DayStart(day.Date)
		if err != nil {
			return nil, err
		}

		// Closed days get a stable end-of-day anchor so re-runs are
		// idempotent; the in-progress day's summary rows advance with now.
		anchor := now
		if dayStart.Before(midnight) {
			anchor = endOfDay(dayStart)
		}

		if day.HeartRate != "" {
			blob, err := zepp.DecodeHeartRateBlob(day.HeartRate)
			if err != nil {
				return nil, fmt.Errorf("day %s: %w", day.Date, err)
			}
			result.Records = append(result.Records, extract.HeartRate(blob, dayStart)...)
		}

		envelope, err := zepp.DecodeEnvelope(day.Summary)
		if err != nil {
			return nil, fmt.Errorf("day %s: %w", day.Date, err)
		}
		if err := c.dispatch(envelope, anchor, day.Date, result); err != nil {
			return nil, fmt.Errorf("day %s: %w", day.Date, err)
		}
	}

	return result, nil
}

// dispatch routes each envelope key to its extractor. Unrecognized keys are
// logged and skipped, never fatal.
func (c *Collector) dispatch(envelope map[string]json.RawMessage, anchor time.Time, day string, result *Result) error {
	for key, raw := range envelope {
		switch key {
		case "stp":
			var stp extract.StepSummary
			if err := json.Unmarshal(raw, &stp); err != nil {
				return fmt.Errorf("parse step summary: %w", err)
			}
			records, err := extract.Steps(stp, anchor, day)
			if err != nil {
				return err
			}
			result.Records = append(result.Records, records...)
		case "slp":
			var slp extract.SleepSummary
			if err := json.Unmarshal(raw, &slp); err != nil {
				return fmt.Errorf("parse sleep summary: %w", err)
			}
			records, err := extract.Sleep(slp, anchor, day)
			if err != nil {
				return err
			}
			result.Records = append(result.Records, records...)
		case "goal":
			goal, err := envelopeInt(raw)
			if err != nil {
				return fmt.Errorf("parse goal: %w", err)
			}
			result.Records = append(result.Records, record.Record{
				Time:   anchor,
				Tags:   map[string]string{},
				Fields: map[string]any{"step_goal": goal},
			})
		case "sync":
			sync, err := envelopeInt(raw)
			if err != nil {
				return fmt.Errorf("parse sync: %w", err)
			}
			result.Records = append(result.Records, record.Record{
				Time:   anchor,
				Tags:   map[string]string{},
				Fields: map[string]any{"last_sync": sync},
			})
		case "sn":
			var sn string
			if err := json.Unmarshal(raw, &sn); err != nil {
				return fmt.Errorf("parse serial: %w", err)
			}
			if sn != "" {
				result.Serial = sn
			}
		default:
			c.logger.Info("skipped envelope key", "key", key, "value", string(raw))
		}
	}
	return nil
}

// envelopeInt reads a scalar envelope value that the provider serializes
// either as a number or a quoted number.
func envelopeInt(raw json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		// Quoted form: unwrap the string then parse.
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		n = json.Number(s)
	}
	return n.Int64()
}

func midnightOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// endOfDay returns 23:59:59 of t's calendar day. Built from calendar
// components rather than a fixed duration so DST-transition days still
// anchor on the same day.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
