package extract

import "time"

// One calendar day's worth of per-minute tracker records is the most any
// interval may expand to; anything longer is a malformed interval.
const maxTrackerMinutes = 1440

// trackerSpan returns one instant per minute of the closed interval
// [start, stop], at 60-second spacing from the start instant. An inverted
// interval (stop < start) yields no instants.
func trackerSpan(startTime time.Time, start, stop int) []time.Time {
	if stop < start {
		return nil
	}
	minutes := stop - start + 1
	if minutes > maxTrackerMinutes {
		minutes = maxTrackerMinutes
	}
	span := make([]time.Time, 0, minutes)
	for i := 0; i < minutes; i++ {
		span = append(span, startTime.Add(time.Duration(i)*time.Minute))
	}
	return span
}
