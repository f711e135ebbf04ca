package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagDropsSingleKeyRecords(t *testing.T) {
	records := []Record{
		{Raw: Message{"poorSignalLevel": 200.0}},
		{Reading: Reading{ChannelAttention: 40, ChannelMeditation: 60}},
		{Raw: Message{"blinkStrength": 55.0, "poorSignalLevel": 0.0}},
	}

	tagged := Tag(records, "Red", 3*time.Second)
	require.Len(t, tagged, 2)

	assert.Equal(t, "Red", tagged[0].Label)
	assert.Equal(t, 3*time.Second, tagged[0].Elapsed)
	assert.Equal(t, map[string]any{"attention": 40.0, "meditation": 60.0}, tagged[0].Values)
	assert.Equal(t, map[string]any{"blinkStrength": 55.0, "poorSignalLevel": 0.0}, tagged[1].Values)
}

func TestTagEmptyBatch(t *testing.T) {
	assert.Nil(t, Tag(nil, "Red", time.Second))
}

func TestProfileNextSessionNumber(t *testing.T) {
	assert.Equal(t, 1, Profile{Name: "ada"}.NextSessionNumber())
	assert.Equal(t, 4, Profile{Name: "ada", SessionCount: 3}.NextSessionNumber())
}
