package domain

import "encoding/json"

// Record is what the acquisition pipeline hands to consumers: either a
// flattened Reading or, for payloads of unknown shape, the raw Message.
type Record struct {
	Reading Reading
	Raw     Message
}

func (r Record) IsReading() bool {
	return r.Reading != nil
}

// SignalLevel returns the poorSignalLevel carried by the record, if any.
func (r Record) SignalLevel() (float64, bool) {
	if r.Reading != nil {
		v, ok := r.Reading[ChannelPoorSignalLevel]
		return v, ok
	}
	return number(r.Raw[string(ChannelPoorSignalLevel)])
}

// IsPlaceholder reports whether the record is the "no signal yet" sentinel.
// Records without a signal level never are.
func (r Record) IsPlaceholder(noSignalLevel float64) bool {
	level, ok := r.SignalLevel()
	return ok && level == noSignalLevel
}

// Len returns the number of top-level keys.
func (r Record) Len() int {
	if r.Reading != nil {
		return len(r.Reading)
	}
	return len(r.Raw)
}

// Values returns the record as a plain string-keyed map.
func (r Record) Values() map[string]any {
	if r.Reading != nil {
		out := make(map[string]any, len(r.Reading))
		for ch, v := range r.Reading {
			out[string(ch)] = v
		}
		return out
	}

	out := make(map[string]any, len(r.Raw))
	for k, v := range r.Raw {
		out[k] = v
	}
	return out
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Values())
}
