package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgePayload_WireKeys(t *testing.T) {
	p := NewBridgePayload(testTables())
	raw, err := p.Encode()
	require.NoError(t, err)

	var generic map[string][]string
	require.NoError(t, json.Unmarshal([]byte(raw), &generic))
	assert.Len(t, generic, 4)
	assert.Equal(t, []string{"18+", "casino"}, generic["channelTitle"])
	assert.Equal(t, []string{"Not For Kids", "S2FTcZlt2Hw", "Sprunki", "bKitktXKELo"}, generic["videoTitle"])
	assert.Equal(t, []string{"@1f-1f", "@adnanmalik0101"}, generic["channelNames"])
	assert.Equal(t, []string{"UCYHjrFQUdDzQXqim-FvD43Q"}, generic["channelIds"])
}

func TestBridgePayload_RoundTripIsExact(t *testing.T) {
	p := NewBridgePayload(testTables())
	raw, err := p.Encode()
	require.NoError(t, err)

	got, err := DecodeBridgePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	again, err := got.Encode()
	require.NoError(t, err)
	assert.Equal(t, raw, again)
}

func TestBridgePayload_EmptyEncodesArrays(t *testing.T) {
	raw, err := NewBridgePayload(EmptyTables()).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"channelTitle":[],"videoTitle":[],"channelNames":[],"channelIds":[]}`, raw)
}

func TestDecodeBridgePayload_Malformed(t *testing.T) {
	for _, raw := range []string{"", "not json", "[1,2]", `{"videoTitle": 5}`} {
		_, err := DecodeBridgePayload(raw)
		assert.True(t, errors.Is(err, ErrParse), "input %q: %v", raw, err)
	}
}

func TestDecodeBridgePayload_MissingKeysAreEmpty(t *testing.T) {
	p, err := DecodeBridgePayload(`{"channelIds":["UC1"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"UC1"}, p.ChannelIDs)
	assert.Empty(t, p.VideoTitle)
	assert.NotNil(t, p.VideoTitle)
}

func TestBridgePayload_TablesPreserveMatching(t *testing.T) {
	src := testTables()
	bridged := NewBridgePayload(src).Tables()

	assert.True(t, bridged.HasVideoID("bKitktXKELo"))
	assert.True(t, bridged.HasChannelID("UCYHjrFQUdDzQXqim-FvD43Q"))
	assert.True(t, bridged.HasHandle("@1F-1F"))
	_, ok := bridged.MatchVideoTitle("SPRUNKI")
	assert.True(t, ok)
	_, ok = bridged.MatchChannelTitle("big casino night")
	assert.True(t, ok)
}
