package extract

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/openwearables/zeppsync/internal/record"
)

type stressEvent struct {
	Timestamp int64  `json:"timestamp"`
	Min       int    `json:"minStress"`
	Max       int    `json:"maxStress"`
	Avg       int    `json:"avgStress"`
	Relax     int    `json:"relaxProportion"`
	Normal    int    `json:"normalProportion"`
	Medium    int    `json:"mediumProportion"`
	High      int    `json:"highProportion"`
	Data      string `json:"data"`
}

type stressPoint struct {
	Time  int64 `json:"time"`
	Value int   `json:"value"`
}

// Stress normalizes all-day stress events: one daily summary record per
// event, plus one point-in-time record per entry of the embedded reading
// dump when the band reported regular reads.
func Stress(items []json.RawMessage) ([]record.Record, error) {
	var records []record.Record
	for _, item := range items {
		var ev stressEvent
		if err := json.Unmarshal(item, &ev); err != nil {
			return nil, fmt.Errorf("parse stress event: %w", err)
		}

		records = append(records, record.Record{
			Time: time.UnixMilli(ev.Timestamp),
			Tags: map[string]string{"stress": "daily"},
			Fields: map[string]any{
				"minimum_stress_level":    ev.Min,
				"max_stress_level":        ev.Max,
				"mean_stress_level":       ev.Avg,
				"relaxed_time_perc":       ev.Relax,
				"normal_stress_time_perc": ev.Normal,
				"medium_stress_time_perc": ev.Medium,
				"high_stress_time_perc":   ev.High,
			},
		})

		if ev.Data == "" {
			continue
		}
		// Regular reads arrive as a JSON dump nested inside a string field.
		var points []stressPoint
		if err := json.Unmarshal([]byte(ev.Data), &points); err != nil {
			return nil, fmt.Errorf("parse stress reading dump: %w", err)
		}
		for _, pt := range points {
			records = append(records, record.Record{
				Time:   time.UnixMilli(pt.Time),
				Tags:   map[string]string{"stress": "point_in_time"},
				Fields: map[string]any{"current_stress_level": pt.Value},
			})
		}
	}
	return records, nil
}
