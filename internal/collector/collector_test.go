package collector

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/openwearables/zeppsync/internal/record"
	"github.com/openwearables/zeppsync/internal/zepp"
)

type fakeAPI struct {
	days    []zepp.DayData
	bandErr error

	stress    []json.RawMessage
	stressErr error
	eventFrom time.Time
	eventTo   time.Time
	blood     []json.RawMessage
	bloodErr  error
	pai       []json.RawMessage
	paiErr    error
}

func (f *fakeAPI) BandData(ctx context.Context, fromDate, toDate string) ([]zepp.DayData, error) {
	return f.days, f.bandErr
}

func (f *fakeAPI) StressEvents(ctx context.Context, from, to time.Time) ([]json.RawMessage, error) {
	f.eventFrom, f.eventTo = from, to
	return f.stress, f.stressErr
}

func (f *fakeAPI) BloodOxygenEvents(ctx context.Context, from, to time.Time) ([]json.RawMessage, error) {
	return f.blood, f.bloodErr
}

func (f *fakeAPI) PaiEvents(ctx context.Context, from, to time.Time) ([]json.RawMessage, error) {
	return f.pai, f.paiErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func envelope(t *testing.T, contents map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(contents)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func testCollector(api API, now time.Time) *Collector {
	c := New(api, 2, discardLogger())
	c.now = func() time.Time { return now }
	return c
}

func recordsWithTag(records []record.Record, key, value string) []record.Record {
	var out []record.Record
	for _, rec := range records {
		if rec.Tags[key] == value {
			out = append(out, rec)
		}
	}
	return out
}

func TestRun_ClosedDayAnchor(t *testing.T) {
	day := "2023-05-01"
	api := &fakeAPI{days: []zepp.DayData{{
		Date:    day,
		Summary: envelope(t, map[string]any{"stp": map[string]any{"ttl": 500, "cal": 20, "dis": 300}}),
	}}}

	wantAnchor := time.Date(2023, 5, 1, 23, 59, 59, 0, time.Local)

	// The anchor for a closed day must not depend on when the run executes.
	for _, now := range []time.Time{
		time.Date(2023, 5, 3, 9, 0, 0, 0, time.Local),
		time.Date(2023, 5, 4, 22, 30, 0, 0, time.Local),
	} {
		result, err := testCollector(api, now).Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		summary := recordsWithTag(result.Records, "activity_type", "steps")
		if len(summary) != 1 {
			t.Fatalf("expected one steps summary, got %d", len(summary))
		}
		if !summary[0].Time.Equal(wantAnchor) {
			t.Errorf("run at %v: expected anchor %v, got %v", now, wantAnchor, summary[0].Time)
		}
	}
}

func TestEndOfDay_DSTTransitions(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}

	tests := []struct {
		name string
		day  time.Time
	}{
		// 23-hour day: a fixed 86399s offset would land at 00:59:59 the
		// following day.
		{name: "spring forward", day: time.Date(2023, 3, 12, 0, 0, 0, 0, loc)},
		// 25-hour day: a fixed offset would land at 22:59:59.
		{name: "fall back", day: time.Date(2023, 11, 5, 0, 0, 0, 0, loc)},
		{name: "ordinary day", day: time.Date(2023, 5, 1, 0, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := endOfDay(tt.day)
			want := time.Date(tt.day.Year(), tt.day.Month(), tt.day.Day(), 23, 59, 59, 0, loc)
			if !got.Equal(want) {
				t.Errorf("endOfDay(%v) = %v, want %v", tt.day, got, want)
			}
			if got.Day() != tt.day.Day() {
				t.Errorf("expected anchor to stay on day %d, got %v", tt.day.Day(), got)
			}
			if got.Hour() != 23 || got.Minute() != 59 || got.Second() != 59 {
				t.Errorf("expected 23:59:59 wall clock, got %v", got)
			}
		})
	}
}

func TestRun_OpenDayAnchorAdvances(t *testing.T) {
	day := "2023-05-03"
	api := &fakeAPI{days: []zepp.DayData{{
		Date:    day,
		Summary: envelope(t, map[string]any{"stp": map[string]any{"ttl": 100}}),
	}}}

	first := time.Date(2023, 5, 3, 9, 0, 0, 0, time.Local)
	second := time.Date(2023, 5, 3, 15, 30, 0, 0, time.Local)

	var anchors []time.Time
	for _, now := range []time.Time{first, second} {
		result, err := testCollector(api, now).Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		summary := recordsWithTag(result.Records, "activity_type", "steps")
		if len(summary) != 1 {
			t.Fatalf("expected one steps summary, got %d", len(summary))
		}
		anchors = append(anchors, summary[0].Time)
	}

	if !anchors[0].Equal(first) || !anchors[1].Equal(second) {
		t.Errorf("expected open-day anchors %v and %v, got %v", first, second, anchors)
	}
	if !anchors[1].After(anchors[0]) {
		t.Error("expected the open-day anchor to advance between runs")
	}
}

func TestRun_EventWindow(t *testing.T) {
	api := &fakeAPI{days: []zepp.DayData{
		{Date: "2023-05-03", Summary: envelope(t, map[string]any{})},
	}}
	now := time.Date(2023, 5, 3, 12, 0, 0, 0, time.Local)

	if _, err := testCollector(api, now).Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantFrom := time.Date(2023, 5, 1, 0, 0, 0, 0, time.Local)
	if !api.eventFrom.Equal(wantFrom) {
		t.Errorf("expected event window start %v, got %v", wantFrom, api.eventFrom)
	}
	wantTo := time.Date(2023, 5, 3, 23, 59, 59, int(999*time.Millisecond), time.Local)
	if !api.eventTo.Equal(wantTo) {
		t.Errorf("expected event window end %v, got %v", wantTo, api.eventTo)
	}
}

func TestRun_SerialResolution(t *testing.T) {
	api := &fakeAPI{days: []zepp.DayData{
		{Date: "2023-05-01", Summary: envelope(t, map[string]any{})},
		{Date: "2023-05-02", Summary: envelope(t, map[string]any{"sn": "ABC123"})},
		{Date: "2023-05-03", Summary: envelope(t, map[string]any{})},
	}}
	now := time.Date(2023, 5, 3, 12, 0, 0, 0, time.Local)

	result, err := testCollector(api, now).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Serial != "ABC123" {
		t.Errorf("expected serial ABC123, got %q", result.Serial)
	}
}

func TestRun_SerialDefaultsToUnknown(t *testing.T) {
	api := &fakeAPI{days: []zepp.DayData{
		{Date: "2023-05-01", Summary: envelope(t, map[string]any{})},
	}}
	now := time.Date(2023, 5, 3, 12, 0, 0, 0, time.Local)

	result, err := testCollector(api, now).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Serial != "unknown" {
		t.Errorf("expected serial unknown, got %q", result.Serial)
	}
}

func TestRun_BandDataFailureFatal(t *testing.T) {
	api := &fakeAPI{bandErr: fmt.Errorf("connection refused")}
	now := time.Date(2023, 5, 3, 12, 0, 0, 0, time.Local)

	if _, err := testCollector(api, now).Run(context.Background()); err == nil {
		t.Fatal("expected band data failure to fail the run")
	}
}

func TestRun_OptionalFetchFailureSkipped(t *testing.T) {
	api := &fakeAPI{
		days: []zepp.DayData{{
			Date:    "2023-05-01",
			Summary: envelope(t, map[string]any{"stp": map[string]any{"ttl": 500}}),
		}},
		stress: []json.RawMessage{json.RawMessage(`{"timestamp": 1682899200000,
			"minStress": 5, "maxStress": 50, "avgStress": 20,
			"relaxProportion": 50, "normalProportion": 50, "mediumProportion": 0, "highProportion": 0}`)},
		blood:  []json.RawMessage{json.RawMessage(`{"subType": "odi", "timestamp": 1682899200000, "odi": 1.5, "score": 95}`)},
		paiErr: errors.New("transport failure"),
	}
	now := time.Date(2023, 5, 3, 12, 0, 0, 0, time.Local)

	result, err := testCollector(api, now).Run(context.Background())
	if err != nil {
		t.Fatalf("expected run to survive optional fetch failure, got %v", err)
	}

	if got := recordsWithTag(result.Records, "stress", "daily"); len(got) != 1 {
		t.Errorf("expected the stress record to survive, got %d", len(got))
	}
	if got := recordsWithTag(result.Records, "blood_event", "odi"); len(got) != 1 {
		t.Errorf("expected the blood oxygen record to survive, got %d", len(got))
	}
	if got := recordsWithTag(result.Records, "PAI_measure", "daily"); len(got) != 0 {
		t.Errorf("expected zero pai records, got %d", len(got))
	}
	if got := recordsWithTag(result.Records, "activity_type", "steps"); len(got) != 1 {
		t.Errorf("expected the steps summary to survive, got %d", len(got))
	}
}

func TestRun_HeartRateBlob(t *testing.T) {
	blob := base64.StdEncoding.EncodeToString([]byte{0x00, 0x96, 0x00, 0xCD, 0x00, 0x2A})
	api := &fakeAPI{days: []zepp.DayData{{
		Date:      "2023-05-01",
		Summary:   envelope(t, map[string]any{}),
		HeartRate: blob,
	}}}
	now := time.Date(2023, 5, 3, 12, 0, 0, 0, time.Local)

	result, err := testCollector(api, now).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	readings := recordsWithTag(result.Records, "hr_measure", "periodic")
	if len(readings) != 2 {
		t.Fatalf("expected 2 heart rate readings, got %d", len(readings))
	}
	wantFirst := time.Date(2023, 5, 1, 0, 1, 0, 0, time.Local)
	if !readings[0].Time.Equal(wantFirst) {
		t.Errorf("expected first reading at %v, got %v", wantFirst, readings[0].Time)
	}
}

func TestRun_GoalSyncAndUnknownKeys(t *testing.T) {
	api := &fakeAPI{days: []zepp.DayData{{
		Date: "2023-05-01",
		Summary: envelope(t, map[string]any{
			"goal": "8000",
			"sync": 1682899200,
			"byt":  map[string]any{"something": 1},
		}),
	}}}
	now := time.Date(2023, 5, 3, 12, 0, 0, 0, time.Local)

	result, err := testCollector(api, now).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Records) != 2 {
		t.Fatalf("expected goal and sync records only, got %d", len(result.Records))
	}

	var sawGoal, sawSync bool
	for _, rec := range result.Records {
		if v, ok := rec.Fields["step_goal"]; ok {
			sawGoal = true
			if v != int64(8000) {
				t.Errorf("expected step_goal 8000, got %v", v)
			}
		}
		if v, ok := rec.Fields["last_sync"]; ok {
			sawSync = true
			if v != int64(1682899200) {
				t.Errorf("expected last_sync 1682899200, got %v", v)
			}
		}
	}
	if !sawGoal || !sawSync {
		t.Errorf("expected both goal and sync records, goal=%v sync=%v", sawGoal, sawSync)
	}
}

func TestRun_MalformedDayFatal(t *testing.T) {
	api := &fakeAPI{days: []zepp.DayData{{
		Date:    "May 1st 2023",
		Summary: envelope(t, map[string]any{}),
	}}}
	now := time.Date(2023, 5, 3, 12, 0, 0, 0, time.Local)

	if _, err := testCollector(api, now).Run(context.Background()); err == nil {
		t.Fatal("expected malformed band-summary date to fail the run")
	}
}

func TestRun_MalformedEnvelopeFatal(t *testing.T) {
	api := &fakeAPI{days: []zepp.DayData{{
		Date:    "2023-05-01",
		Summary: "!!not-base64!!",
	}}}
	now := time.Date(2023, 5, 3, 12, 0, 0, 0, time.Local)

	if _, err := testCollector(api, now).Run(context.Background()); err == nil {
		t.Fatal("expected malformed envelope to fail the run")
	}
}
