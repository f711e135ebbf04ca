package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Channel names one value of a flattened headset reading.
type Channel string

const (
	ChannelLowAlpha        Channel = "lowAlpha"
	ChannelHighAlpha       Channel = "highAlpha"
	ChannelLowBeta         Channel = "lowBeta"
	ChannelHighBeta        Channel = "highBeta"
	ChannelLowGamma        Channel = "lowGamma"
	ChannelHighGamma       Channel = "highGamma"
	ChannelDelta           Channel = "delta"
	ChannelTheta           Channel = "theta"
	ChannelPoorSignalLevel Channel = "poorSignalLevel"
	ChannelMeditation      Channel = "meditation"
	ChannelAttention       Channel = "attention"
)

// Nested categories of a ThinkGear JSON payload.
const (
	CategoryESense   = "eSense"
	CategoryEEGPower = "eegPower"
)

// DefaultNoSignalLevel is the poorSignalLevel the MindWave bridge reports
// while the headset has no skin contact.
const DefaultNoSignalLevel = 200

var ErrSchemaMismatch = errors.New("message does not match reading schema")

// Field locates one channel inside a categorized message. An empty Category
// means the value is a top-level key.
type Field struct {
	Channel  Channel
	Category string
}

var schema = [...]Field{
	{Channel: ChannelLowAlpha, Category: CategoryEEGPower},
	{Channel: ChannelHighAlpha, Category: CategoryEEGPower},
	{Channel: ChannelLowBeta, Category: CategoryEEGPower},
	{Channel: ChannelHighBeta, Category: CategoryEEGPower},
	{Channel: ChannelLowGamma, Category: CategoryEEGPower},
	{Channel: ChannelHighGamma, Category: CategoryEEGPower},
	{Channel: ChannelDelta, Category: CategoryEEGPower},
	{Channel: ChannelTheta, Category: CategoryEEGPower},
	{Channel: ChannelPoorSignalLevel},
	{Channel: ChannelMeditation, Category: CategoryESense},
	{Channel: ChannelAttention, Category: CategoryESense},
}

// Schema returns the ordered extraction table used to flatten categorized
// messages. The returned slice is a copy.
func Schema() []Field {
	out := make([]Field, len(schema))
	copy(out, schema[:])
	return out
}

// Channels returns the reading channel names in schema order.
func Channels() []Channel {
	out := make([]Channel, 0, len(schema))
	for _, f := range schema {
		out = append(out, f.Channel)
	}
	return out
}

// Message is one decoded ThinkGear JSON object.
type Message map[string]any

// Reading is a flattened categorized message keyed by channel.
type Reading map[Channel]float64

// IsCategorized reports whether msg carries both nested categories.
func IsCategorized(msg Message) bool {
	_, hasESense := msg[CategoryESense]
	_, hasPower := msg[CategoryEEGPower]
	return hasESense && hasPower
}

// Flatten extracts every schema channel from a categorized message.
func Flatten(msg Message) (Reading, error) {
	reading := make(Reading, len(schema))
	for _, f := range schema {
		container := map[string]any(msg)
		if f.Category != "" {
			nested, ok := msg[f.Category].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s is not an object", ErrSchemaMismatch, f.Category)
			}
			container = nested
		}

		raw, ok := container[string(f.Channel)]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrSchemaMismatch, f.Channel)
		}
		value, ok := number(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a number", ErrSchemaMismatch, f.Channel)
		}
		reading[f.Channel] = value
	}

	return reading, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
