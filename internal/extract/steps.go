package extract

import (
	"fmt"
	"time"

	"github.com/openwearables/zeppsync/internal/record"
)

// StepSummary is the decoded `stp` member of a day's envelope.
type StepSummary struct {
	Total    int             `json:"ttl"`
	Calories int             `json:"cal"`
	Distance int             `json:"dis"`
	Stage    []ActivityStage `json:"stage"`
}

// ActivityStage is one recorded activity interval, bounded by
// minute-of-day counters.
type ActivityStage struct {
	Mode     int `json:"mode"`
	Start    int `json:"start"`
	Stop     int `json:"stop"`
	Steps    int `json:"step"`
	Calories int `json:"cal"`
}

// ActivityLabel maps a raw activity mode code to its label. Unknown codes
// map to a labelled fallback rather than failing.
func ActivityLabel(mode int) string {
	switch mode {
	case 1:
		return "slow_walking"
	case 3:
		return "fast_walking"
	case 4:
		return "running"
	case 7:
		return "light_activity"
	default:
		return fmt.Sprintf("unknown_%d", mode)
	}
}

// Steps normalizes a day's step summary: one summary record at the anchor,
// an interval record plus per-minute tracker records per recorded activity,
// then a rollup of activity counts.
func Steps(stp StepSummary, anchor time.Time, day string) ([]record.Record, error) {
	records := []record.Record{{
		Time: anchor,
		Tags: map[string]string{"activity_type": "steps"},
		Fields: map[string]any{
			"total_steps": stp.Total,
			"calories":    stp.Calories,
			"distance_m":  stp.Distance,
		},
	}}

	counters := map[string]int{}
	for _, activity := range stp.Stage {
		label := ActivityLabel(activity.Mode)
		startTime, err := MinuteToTime(activity.Start, day)
		if err != nil {
			return nil, err
		}

		records = append(records, record.Record{
			Time: startTime,
			Tags: map[string]string{"activity_type": label},
			Fields: map[string]any{
				"total_steps":         activity.Steps,
				"calories":            activity.Calories,
				"distance_m":          stp.Distance,
				"activity_duration_m": durationMinutes(activity.Start, activity.Stop),
			},
		})
		counters[label]++

		for _, ts := range trackerSpan(startTime, activity.Start, activity.Stop) {
			records = append(records, record.Record{
				Time: ts,
				Tags: map[string]string{"activity_type": "activity_type_tracker"},
				Fields: map[string]any{
					"current_activity_type":     label,
					"current_activity_type_int": activity.Mode,
				},
			})
		}
	}

	rollup := record.Record{
		Time:   anchor,
		Tags:   map[string]string{},
		Fields: map[string]any{"recorded_activities": len(stp.Stage)},
	}
	for label, n := range counters {
		rollup.Fields["recorded_"+label+"_events"] = n
	}
	return append(records, rollup), nil
}

// durationMinutes treats an inverted interval as zero-length.
func durationMinutes(start, stop int) int {
	if stop < start {
		return 0
	}
	return stop - start
}
