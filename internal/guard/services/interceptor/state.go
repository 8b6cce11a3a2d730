package interceptor

import (
	"encoding/json"
	"fmt"

	"github.com/haukened/tubeguard/internal/guard/domain"
)

// Page globals read by the interceptor.
const (
	GlobalPlayerResponse = "ytInitialPlayerResponse"
	GlobalInitialData    = "ytInitialData"
)

// playerState is the video metadata shape. Absent fields decode as "".
type playerState struct {
	VideoDetails struct {
		VideoID   string `json:"videoId"`
		Title     string `json:"title"`
		ChannelID string `json:"channelId"`
		Author    string `json:"author"`
	} `json:"videoDetails"`
}

// browseState is the channel/browse page shape.
type browseState struct {
	Header struct {
		C4TabbedHeaderRenderer struct {
			Title     string `json:"title"`
			ChannelID string `json:"channelId"`
		} `json:"c4TabbedHeaderRenderer"`
	} `json:"header"`
	Metadata struct {
		ChannelMetadataRenderer struct {
			Title      string `json:"title"`
			ExternalID string `json:"externalId"`
		} `json:"channelMetadataRenderer"`
	} `json:"metadata"`
}

func (p playerState) identity() domain.Identity {
	v := p.VideoDetails
	return domain.Identity{
		VideoID:      v.VideoID,
		VideoTitle:   v.Title,
		ChannelID:    v.ChannelID,
		ChannelTitle: v.Author,
	}
}

func (b browseState) identities() []domain.Identity {
	h := b.Header.C4TabbedHeaderRenderer
	m := b.Metadata.ChannelMetadataRenderer
	return []domain.Identity{
		{ChannelID: h.ChannelID, ChannelTitle: h.Title},
		{ChannelID: m.ExternalID, ChannelTitle: m.Title},
	}
}

// identities extracts every identity a global can carry. The player
// response only has the video shape; initial data is tried against both.
func identities(name string, raw json.RawMessage) ([]domain.Identity, error) {
	var out []domain.Identity

	var player playerState
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrParse, name, err)
	}
	out = append(out, player.identity())

	if name == GlobalInitialData {
		var browse browseState
		if err := json.Unmarshal(raw, &browse); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrParse, name, err)
		}
		out = append(out, browse.identities()...)
	}

	populated := out[:0]
	for _, id := range out {
		if !id.IsEmpty() {
			populated = append(populated, id)
		}
	}
	if len(populated) == 0 {
		return nil, fmt.Errorf("%w: %s has no identity fields", domain.ErrMissingField, name)
	}
	return populated, nil
}

// present reports whether raw holds an actual value.
func present(raw json.RawMessage) bool {
	s := string(raw)
	return s != "" && s != "null" && s != "undefined"
}
