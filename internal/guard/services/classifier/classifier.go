// Package classifier decides whether a URL names blocked content using only
// the blocklist tables. It performs no I/O and never blocks on input it
// cannot parse.
package classifier

import (
	"net/url"
	"strings"

	"github.com/haukened/tubeguard/internal/guard/common/utils"
	"github.com/haukened/tubeguard/internal/guard/domain"
)

const (
	// VideoHost is the registrable domain of the video site.
	VideoHost = "youtube.com"
	// ShortLinkHost is the site's short-link domain.
	ShortLinkHost = "youtu.be"

	shortsPrefix  = "/shorts/"
	watchPath     = "/watch"
	channelPrefix = "/channel/"
	handlePrefix  = "/@"
)

// Classify returns Block when rawURL addresses a blocked video, short or
// channel. Every other input, including malformed URLs, yields Allow.
func Classify(t *domain.Tables, rawURL string) domain.Decision {
	id, ok := Extract(rawURL)
	if !ok {
		return domain.Allow()
	}
	return decide(t, id)
}

// Extract parses rawURL into the identity its path shape names. It reports
// false when the URL is not on the video host, cannot be parsed, or has no
// recognised shape.
func Extract(rawURL string) (domain.Identity, bool) {
	// Cheap pre-check: nearly all navigations are elsewhere.
	if !strings.Contains(rawURL, VideoHost+"/") && !strings.Contains(rawURL, ShortLinkHost+"/") {
		return domain.Identity{}, false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.Identity{}, false
	}
	host := utils.CanonicalHost(u.Hostname())
	apex := utils.RegistrableDomain(host)
	if apex != VideoHost && apex != ShortLinkHost {
		return domain.Identity{}, false
	}

	path := u.Path
	switch {
	case strings.HasPrefix(path, shortsPrefix):
		return identityIfSet(domain.Identity{VideoID: segment(path[len(shortsPrefix):])})
	case path == watchPath:
		return identityIfSet(domain.Identity{VideoID: u.Query().Get("v")})
	case host == ShortLinkHost:
		return identityIfSet(domain.Identity{VideoID: strings.TrimPrefix(path, "/")})
	case strings.HasPrefix(path, channelPrefix):
		return identityIfSet(domain.Identity{ChannelID: segment(path[len(channelPrefix):])})
	case strings.HasPrefix(path, handlePrefix):
		return identityIfSet(domain.Identity{ChannelHandle: strings.ToLower(segment(path[1:]))})
	}
	return domain.Identity{}, false
}

// decide applies the exact-match rule for whichever field Extract filled.
func decide(t *domain.Tables, id domain.Identity) domain.Decision {
	switch {
	case id.VideoID != "":
		if t.HasVideoID(id.VideoID) {
			return domain.Block(domain.LayerURL, "video id: "+id.VideoID, id)
		}
	case id.ChannelID != "":
		if t.HasChannelID(id.ChannelID) {
			return domain.Block(domain.LayerURL, "channel id: "+id.ChannelID, id)
		}
	case id.ChannelHandle != "":
		if t.HasHandle(id.ChannelHandle) {
			return domain.Block(domain.LayerURL, "channel handle: "+id.ChannelHandle, id)
		}
	}
	return domain.Allow()
}

// segment returns s up to the first path separator.
func segment(s string) string {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i]
	}
	return s
}

func identityIfSet(id domain.Identity) (domain.Identity, bool) {
	return id, !id.IsEmpty()
}
