package record

import "time"

// Record is the normalized output unit of the whole pipeline: one
// timestamped set of fields plus optional tags, ready to be mapped onto
// a time-series point. The measurement name is assigned by the sink.
type Record struct {
	Time   time.Time
	Tags   map[string]string
	Fields map[string]any
}

// New returns a record with allocated tag and field maps.
func New(ts time.Time) Record {
	return Record{
		Time:   ts,
		Tags:   map[string]string{},
		Fields: map[string]any{},
	}
}
