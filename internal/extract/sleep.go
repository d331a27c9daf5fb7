package extract

import (
	"fmt"
	"time"

	"github.com/openwearables/zeppsync/internal/record"
)

// SleepSummary is the decoded `slp` member of a day's envelope. St and Ed
// are epoch seconds; Dp and Lt are minute totals.
type SleepSummary struct {
	Start int64        `json:"st"`
	End   int64        `json:"ed"`
	Deep  int          `json:"dp"`
	Light int          `json:"lt"`
	Stage []SleepStage `json:"stage"`
}

// SleepStage is one recorded sleep interval, bounded by minute-of-day
// counters.
type SleepStage struct {
	Mode  int `json:"mode"`
	Start int `json:"start"`
	Stop  int `json:"stop"`
}

// SleepLabel maps a raw sleep mode code to its label. Unknown codes map to
// a labelled fallback rather than failing.
func SleepLabel(mode int) string {
	switch mode {
	case 4:
		return "light_sleep"
	case 5:
		return "deep_sleep"
	case 7:
		return "awake"
	case 8:
		return "REM"
	default:
		return fmt.Sprintf("unknown_%d", mode)
	}
}

// Sleep normalizes a day's sleep summary: one summary record at the anchor,
// a stage record plus per-minute tracker records per recorded stage, then a
// rollup of stage counts.
func Sleep(slp SleepSummary, anchor time.Time, day string) ([]record.Record, error) {
	records := []record.Record{{
		Time: anchor,
		Tags: map[string]string{"activity_type": "sleep"},
		Fields: map[string]any{
			"total_sleep_min": slp.Light + slp.Deep,
			"deep_sleep_min":  slp.Deep,
			"rem_sleep_min":   slp.Light,
			"slept_from":      time.Unix(slp.Start, 0).Format("2006-01-02 15:04:05"),
			"slept_to":        time.Unix(slp.End, 0).Format("2006-01-02 15:04:05"),
		},
	}}

	counters := map[string]int{}
	for _, stage := range slp.Stage {
		label := SleepLabel(stage.Mode)
		startTime, err := MinuteToTime(stage.Start, day)
		if err != nil {
			return nil, err
		}

		records = append(records, record.Record{
			Time: startTime,
			Tags: map[string]string{
				"activity_type": "sleep_stage",
				"sleep_type":    label,
			},
			Fields: map[string]any{
				"total_sleep_min": durationMinutes(stage.Start, stage.Stop),
			},
		})
		counters[label]++

		for _, ts := range trackerSpan(startTime, stage.Start, stage.Stop) {
			records = append(records, record.Record{
				Time: ts,
				Tags: map[string]string{"activity_type": "sleep_stage_tracker"},
				Fields: map[string]any{
					"current_sleep_state":     label,
					"current_sleep_state_int": stage.Mode,
				},
			})
		}
	}

	rollup := record.Record{
		Time:   anchor,
		Tags:   map[string]string{},
		Fields: map[string]any{"recorded_sleep_stages": len(slp.Stage)},
	}
	for label, n := range counters {
		rollup.Fields["recorded_sleep_"+label+"_events"] = n
	}
	return append(records, rollup), nil
}
