package extract

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/openwearables/zeppsync/internal/record"
)

type paiEvent struct {
	Timestamp int64 `json:"timestamp"`
	MaxHr     int   `json:"maxHr"`
	RestHr    int   `json:"restHr"`

	LowZoneMinutes    int     `json:"lowZoneMinutes"`
	LowZoneLowerLimit int     `json:"lowZoneLowerLimit"`
	LowZonePai        float64 `json:"lowZonePai"`

	MediumZoneMinutes    int     `json:"mediumZoneMinutes"`
	MediumZoneLowerLimit int     `json:"mediumZoneLowerLimit"`
	MediumZonePai        float64 `json:"mediumZonePai"`

	HighZoneMinutes    int     `json:"highZoneMinutes"`
	HighZoneLowerLimit int     `json:"highZoneLowerLimit"`
	HighZonePai        float64 `json:"highZonePai"`

	ActivityScores []json.RawMessage `json:"activityScores"`
	DailyPai       float64           `json:"dailyPai"`
	TotalPai       float64           `json:"totalPai"`
}

// Pai normalizes Personal Activity Intelligence entries. Every item is
// self-contained and expands to six records: max and resting heart rate,
// one per intensity zone, and the daily score summary.
func Pai(items []json.RawMessage) ([]record.Record, error) {
	var records []record.Record
	for _, item := range items {
		var ev paiEvent
		if err := json.Unmarshal(item, &ev); err != nil {
			return nil, fmt.Errorf("parse pai event: %w", err)
		}
		ts := time.UnixMilli(ev.Timestamp)

		records = append(records,
			record.Record{
				Time: ts,
				Tags: map[string]string{
					"PAI_measure": "daily",
					"hr_measure":  "PAI",
					"hr_state":    "max",
				},
				Fields: map[string]any{"heart_rate": ev.MaxHr},
			},
			record.Record{
				Time: ts,
				Tags: map[string]string{
					"PAI_measure": "daily",
					"hr_measure":  "PAI",
					"hr_state":    "resting",
				},
				Fields: map[string]any{"heart_rate": ev.RestHr},
			},
			paiZone(ts, "low", ev.LowZoneMinutes, ev.LowZoneLowerLimit, ev.LowZonePai),
			paiZone(ts, "medium", ev.MediumZoneMinutes, ev.MediumZoneLowerLimit, ev.MediumZonePai),
			paiZone(ts, "high", ev.HighZoneMinutes, ev.HighZoneLowerLimit, ev.HighZonePai),
			record.Record{
				Time: ts,
				Tags: map[string]string{
					"PAI_measure": "daily",
					"PAI_bound":   "daily",
				},
				Fields: map[string]any{
					"scorable_activities": len(ev.ActivityScores),
					"pai_score":           ev.DailyPai,
					"total_pai":           ev.TotalPai,
				},
			},
		)
	}
	return records, nil
}

func paiZone(ts time.Time, bound string, minutes, lowerLimit int, score float64) record.Record {
	return record.Record{
		Time: ts,
		Tags: map[string]string{
			"PAI_measure": "daily",
			"PAI_bound":   bound,
		},
		Fields: map[string]any{
			"activity_duration_m": minutes,
			"pai_score_bound":     lowerLimit,
			"pai_score":           score,
		},
	}
}
