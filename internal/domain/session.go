package domain

import "time"

// Profile is the locally remembered recording user.
type Profile struct {
	Name string
	// SessionCount is the number of sessions already saved for Name.
	SessionCount int
}

func (p Profile) NextSessionNumber() int {
	return p.SessionCount + 1
}

// TaggedRecord is a record captured while Label was on display.
type TaggedRecord struct {
	Elapsed time.Duration
	Label   string
	Values  map[string]any
}

// Session is one saved recording.
type Session struct {
	ID            string
	StartTime     time.Time
	User          string
	SessionNumber int
	Data          []TaggedRecord
}

// Tag labels a drained batch. Records with at most one key (signal-only
// placeholders, bare blink events) carry nothing worth keeping and are
// dropped.
func Tag(records []Record, label string, elapsed time.Duration) []TaggedRecord {
	if len(records) == 0 {
		return nil
	}

	tagged := make([]TaggedRecord, 0, len(records))
	for _, r := range records {
		if r.Len() <= 1 {
			continue
		}
		tagged = append(tagged, TaggedRecord{
			Elapsed: elapsed,
			Label:   label,
			Values:  r.Values(),
		})
	}

	return tagged
}
