package extract

import (
	"encoding/binary"
	"time"

	"github.com/openwearables/zeppsync/internal/record"
)

// Raw values at or above this are the band's "no reading" sentinel.
const hrSentinel = 200

// HeartRate decodes a day's packed sample blob into per-minute records.
// Samples are big-endian uint16 pairs; the Nth pair is the reading at
// midnight + (N+1) minutes. Sentinel values are dropped rather than emitted,
// and a trailing odd byte is discarded.
func HeartRate(blob []byte, midnight time.Time) []record.Record {
	var records []record.Record
	for i := 0; i+1 < len(blob); i += 2 {
		v := binary.BigEndian.Uint16(blob[i : i+2])
		if v >= hrSentinel {
			continue
		}
		records = append(records, record.Record{
			Time:   midnight.Add(time.Duration(i/2+1) * time.Minute),
			Tags:   map[string]string{"hr_measure": "periodic"},
			Fields: map[string]any{"heart_rate": int(v)},
		})
	}
	return records
}
