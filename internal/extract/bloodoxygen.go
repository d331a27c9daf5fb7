package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openwearables/zeppsync/internal/record"
)

type bloodEvent struct {
	SubType   string  `json:"subType"`
	Timestamp int64   `json:"timestamp"`
	Extra     string  `json:"extra"`
	ODI       float64 `json:"odi"`
	Score     float64 `json:"score"`
}

// BloodOxygen normalizes SpO2 events. Each item becomes one record keyed by
// its subtype: overnight desaturation index reads, possible sleep-apnea
// events, and manual readings triggered from the band. Subtypes without a
// known field mapping are skipped with a diagnostic rather than failing the
// metric.
func BloodOxygen(items []json.RawMessage, logger *slog.Logger) ([]record.Record, error) {
	var records []record.Record
	for _, item := range items {
		var ev bloodEvent
		if err := json.Unmarshal(item, &ev); err != nil {
			return nil, fmt.Errorf("parse blood oxygen event: %w", err)
		}
		ts := time.UnixMilli(ev.Timestamp)

		switch ev.SubType {
		case "odi":
			records = append(records, record.Record{
				Time: ts,
				Tags: map[string]string{"blood_event": "odi"},
				Fields: map[string]any{
					"odi_read": ev.ODI,
					"score":    ev.Score,
				},
			})
		case "osa_event":
			extra, err := bloodExtra(ev.Extra)
			if err != nil {
				return nil, fmt.Errorf("parse osa event extra: %w", err)
			}
			records = append(records, record.Record{
				Time:   ts,
				Tags:   map[string]string{"blood_event": "osa"},
				Fields: map[string]any{"spo2_decrease": extra.Spo2Decrease},
			})
		case "click":
			extra, err := bloodExtra(ev.Extra)
			if err != nil {
				return nil, fmt.Errorf("parse manual read extra: %w", err)
			}
			records = append(records, record.Record{
				Time:   ts,
				Tags:   map[string]string{"blood_event": "manual_read"},
				Fields: map[string]any{"spo2_level": extra.Spo2},
			})
		default:
			logger.Info("skipped blood oxygen event", "sub_type", ev.SubType)
		}
	}
	return records, nil
}

// bloodExtraPayload is the nested JSON carried as a string in an event's
// extra field.
type bloodExtraPayload struct {
	Spo2         float64 `json:"spo2"`
	Spo2Decrease float64 `json:"spo2_decrease"`
}

func bloodExtra(raw string) (bloodExtraPayload, error) {
	var extra bloodExtraPayload
	if err := json.Unmarshal([]byte(raw), &extra); err != nil {
		return bloodExtraPayload{}, err
	}
	return extra, nil
}
