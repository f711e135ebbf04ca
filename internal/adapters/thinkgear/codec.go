package thinkgear

import (
	"encoding/json"

	"github.com/bnema/mindstream-cli/internal/domain"
)

// Decode parses one frame. Anything that is not a non-empty JSON object
// fails.
func Decode(frame []byte) (domain.Message, bool) {
	var msg domain.Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, false
	}
	if len(msg) == 0 {
		return nil, false
	}
	return msg, true
}

// Classify flattens categorized messages and passes every other shape
// through untouched. It fails only for categorized messages that do not fit
// the reading schema.
func Classify(msg domain.Message) (domain.Record, bool) {
	if !domain.IsCategorized(msg) {
		return domain.Record{Raw: msg}, true
	}

	reading, err := domain.Flatten(msg)
	if err != nil {
		return domain.Record{}, false
	}
	return domain.Record{Reading: reading}, true
}
