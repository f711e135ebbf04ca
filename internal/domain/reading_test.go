package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func categorizedFixture() Message {
	return Message{
		CategoryESense: map[string]any{"attention": 40.0, "meditation": 60.0},
		CategoryEEGPower: map[string]any{
			"delta": 1.0, "theta": 2.0, "lowAlpha": 3.0, "highAlpha": 4.0,
			"lowBeta": 5.0, "highBeta": 6.0, "lowGamma": 7.0, "highGamma": 8.0,
		},
		"poorSignalLevel": 0.0,
	}
}

func TestFlattenCategorizedMessage(t *testing.T) {
	got, err := Flatten(categorizedFixture())
	require.NoError(t, err)

	assert.Equal(t, Reading{
		ChannelDelta: 1, ChannelTheta: 2, ChannelLowAlpha: 3, ChannelHighAlpha: 4,
		ChannelLowBeta: 5, ChannelHighBeta: 6, ChannelLowGamma: 7, ChannelHighGamma: 8,
		ChannelPoorSignalLevel: 0, ChannelMeditation: 60, ChannelAttention: 40,
	}, got)
}

func TestFlattenIsPure(t *testing.T) {
	msg := categorizedFixture()

	first, err := Flatten(msg)
	require.NoError(t, err)
	second, err := Flatten(msg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, categorizedFixture(), msg)
}

func TestFlattenRejectsSchemaMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(Message)
	}{
		{name: "missing band", mutate: func(m Message) { delete(m[CategoryEEGPower].(map[string]any), "theta") }},
		{name: "missing top-level signal", mutate: func(m Message) { delete(m, "poorSignalLevel") }},
		{name: "category is not an object", mutate: func(m Message) { m[CategoryESense] = 12.0 }},
		{name: "non numeric value", mutate: func(m Message) { m[CategoryESense].(map[string]any)["attention"] = "high" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := categorizedFixture()
			tt.mutate(msg)

			_, err := Flatten(msg)
			require.ErrorIs(t, err, ErrSchemaMismatch)
		})
	}
}

func TestFlattenAcceptsJSONNumbers(t *testing.T) {
	msg := categorizedFixture()
	msg["poorSignalLevel"] = json.Number("26")

	got, err := Flatten(msg)
	require.NoError(t, err)
	assert.Equal(t, 26.0, got[ChannelPoorSignalLevel])
}

func TestIsCategorized(t *testing.T) {
	assert.True(t, IsCategorized(categorizedFixture()))
	assert.False(t, IsCategorized(Message{"poorSignalLevel": 200.0}))
	assert.False(t, IsCategorized(Message{CategoryESense: map[string]any{}}))
}

func TestSchemaIsACopy(t *testing.T) {
	fields := Schema()
	require.Len(t, fields, 11)
	fields[0].Channel = "tampered"

	assert.Equal(t, ChannelLowAlpha, Schema()[0].Channel)
	assert.Equal(t, ChannelAttention, Channels()[10])
}

func TestRecordPlaceholderDetection(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   bool
	}{
		{name: "raw no-signal", record: Record{Raw: Message{"poorSignalLevel": 200.0}}, want: true},
		{name: "raw partial signal", record: Record{Raw: Message{"poorSignalLevel": 51.0}}, want: false},
		{name: "reading at no-signal", record: Record{Reading: Reading{ChannelPoorSignalLevel: 200}}, want: true},
		{name: "reading with contact", record: Record{Reading: Reading{ChannelPoorSignalLevel: 0}}, want: false},
		{name: "no signal key", record: Record{Raw: Message{"blinkStrength": 55.0}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.IsPlaceholder(DefaultNoSignalLevel))
		})
	}
}

func TestRecordMarshalJSON(t *testing.T) {
	data, err := json.Marshal(Record{Reading: Reading{ChannelAttention: 40, ChannelMeditation: 60}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"attention":40,"meditation":60}`, string(data))

	data, err = json.Marshal(Record{Raw: Message{"blinkStrength": 55.0}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"blinkStrength":55}`, string(data))
}
