package domain

import (
	"encoding/json"
	"fmt"
)

// BridgeAttribute is the data attribute of the bridge node that holds the
// encoded payload.
const BridgeAttribute = "data-blocklists"

// BridgeNodePrefix prefixes the unique id of every bridge node.
const BridgeNodePrefix = "tubeguard-"

// BridgePayload is the snapshot of the tables handed from the page guard to
// the native interceptor through a transient DOM node. The JSON keys are a
// wire format and must not change.
type BridgePayload struct {
	ChannelTitle []string `json:"channelTitle"`
	VideoTitle   []string `json:"videoTitle"`
	ChannelNames []string `json:"channelNames"`
	ChannelIDs   []string `json:"channelIds"`
}

// NewBridgePayload snapshots t. VideoTitle carries every video entry, so the
// receiving side applies both id and keyword matching to each of them.
func NewBridgePayload(t *Tables) BridgePayload {
	return BridgePayload{
		ChannelTitle: t.ChannelTitleKeywords(),
		VideoTitle:   t.VideoKeys(),
		ChannelNames: t.ChannelHandles(),
		ChannelIDs:   t.ChannelIDs(),
	}.normalized()
}

// Encode serializes the payload. Empty tables encode as [] rather than null.
func (p BridgePayload) Encode() (string, error) {
	b, err := json.Marshal(p.normalized())
	if err != nil {
		return "", fmt.Errorf("encode bridge payload: %w", err)
	}
	return string(b), nil
}

// DecodeBridgePayload parses raw. Anything other than a JSON object is an
// ErrParse; absent keys decode as empty tables.
func DecodeBridgePayload(raw string) (BridgePayload, error) {
	var p BridgePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return BridgePayload{}, fmt.Errorf("%w: bridge payload: %v", ErrParse, err)
	}
	return p.normalized(), nil
}

// Tables compiles the payload back into matchable tables.
func (p BridgePayload) Tables() *Tables {
	return NewTables(TableSource{
		VideoKeys:            p.VideoTitle,
		ChannelIDs:           p.ChannelIDs,
		ChannelHandles:       p.ChannelNames,
		ChannelTitleKeywords: p.ChannelTitle,
	})
}

func (p BridgePayload) normalized() BridgePayload {
	if p.ChannelTitle == nil {
		p.ChannelTitle = []string{}
	}
	if p.VideoTitle == nil {
		p.VideoTitle = []string{}
	}
	if p.ChannelNames == nil {
		p.ChannelNames = []string{}
	}
	if p.ChannelIDs == nil {
		p.ChannelIDs = []string{}
	}
	return p
}
