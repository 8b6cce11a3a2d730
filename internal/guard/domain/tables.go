package domain

import (
	"sort"
	"strings"
)

// TableSource is the raw, unnormalized content of the blocklist tables as
// read from files or a snapshot.
//
// VideoKeys is the legacy mixed list: each entry is matched both as an exact
// video id and as a case-insensitive title substring. VideoIDs and
// VideoTitleKeywords carry one semantic each.
type TableSource struct {
	VideoKeys            []string
	VideoIDs             []string
	VideoTitleKeywords   []string
	ChannelIDs           []string
	ChannelHandles       []string
	ChannelTitleKeywords []string
}

// Merge appends every list of other to s.
func (s *TableSource) Merge(other TableSource) {
	s.VideoKeys = append(s.VideoKeys, other.VideoKeys...)
	s.VideoIDs = append(s.VideoIDs, other.VideoIDs...)
	s.VideoTitleKeywords = append(s.VideoTitleKeywords, other.VideoTitleKeywords...)
	s.ChannelIDs = append(s.ChannelIDs, other.ChannelIDs...)
	s.ChannelHandles = append(s.ChannelHandles, other.ChannelHandles...)
	s.ChannelTitleKeywords = append(s.ChannelTitleKeywords, other.ChannelTitleKeywords...)
}

// Tables is the compiled, read-only blocklist. It is built once and never
// mutated, so a single *Tables may be shared by every goroutine.
//
// Normalization happens exactly once, in NewTables: ids are kept verbatim,
// handles and keywords are lowercased.
type Tables struct {
	videoKeys       []string // verbatim, sorted; the bridged form of all video entries
	videoIDs        map[string]struct{}
	videoKeywords   []string
	channelIDs      map[string]struct{}
	channelHandles  map[string]struct{}
	channelKeywords []string
}

// NewTables compiles src. Blank entries are dropped: an empty keyword would
// otherwise match every title.
func NewTables(src TableSource) *Tables {
	t := &Tables{
		videoIDs:       make(map[string]struct{}),
		channelIDs:     make(map[string]struct{}),
		channelHandles: make(map[string]struct{}),
	}
	keys := make(map[string]struct{})
	keywords := make(map[string]struct{})

	addKey := func(s string) { keys[s] = struct{}{} }
	addKeyword := func(s string) { keywords[strings.ToLower(s)] = struct{}{} }

	for _, s := range src.VideoKeys {
		if s = strings.TrimSpace(s); s != "" {
			addKey(s)
			t.videoIDs[s] = struct{}{}
			addKeyword(s)
		}
	}
	for _, s := range src.VideoIDs {
		if s = strings.TrimSpace(s); s != "" {
			addKey(s)
			t.videoIDs[s] = struct{}{}
		}
	}
	for _, s := range src.VideoTitleKeywords {
		if s = strings.TrimSpace(s); s != "" {
			addKey(s)
			addKeyword(s)
		}
	}
	for _, s := range src.ChannelIDs {
		if s = strings.TrimSpace(s); s != "" {
			t.channelIDs[s] = struct{}{}
		}
	}
	for _, s := range src.ChannelHandles {
		if s = strings.TrimSpace(s); s != "" {
			t.channelHandles[strings.ToLower(s)] = struct{}{}
		}
	}
	channelKeywords := make(map[string]struct{})
	for _, s := range src.ChannelTitleKeywords {
		if s = strings.TrimSpace(s); s != "" {
			channelKeywords[strings.ToLower(s)] = struct{}{}
		}
	}

	t.videoKeys = sortedKeys(keys)
	t.videoKeywords = sortedKeys(keywords)
	t.channelKeywords = sortedKeys(channelKeywords)
	return t
}

// EmptyTables returns tables that block nothing.
func EmptyTables() *Tables { return NewTables(TableSource{}) }

// HasVideoID reports whether id is an exact video/short identifier entry.
func (t *Tables) HasVideoID(id string) bool {
	if id == "" {
		return false
	}
	_, ok := t.videoIDs[id]
	return ok
}

// MatchVideoTitle returns the first video keyword contained in text,
// ignoring case.
func (t *Tables) MatchVideoTitle(text string) (string, bool) {
	return containsAny(text, t.videoKeywords)
}

// HasChannelID reports whether id is a blocked channel id.
func (t *Tables) HasChannelID(id string) bool {
	if id == "" {
		return false
	}
	_, ok := t.channelIDs[id]
	return ok
}

// HasHandle reports whether name is a blocked handle, ignoring case. Names
// without the "@" sigil are also tried with it, so a display name equal to
// a handle matches.
func (t *Tables) HasHandle(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	if _, ok := t.channelHandles[name]; ok {
		return true
	}
	if !strings.HasPrefix(name, "@") {
		_, ok := t.channelHandles["@"+name]
		return ok
	}
	return false
}

// MatchChannelTitle returns the first channel keyword contained in text,
// ignoring case.
func (t *Tables) MatchChannelTitle(text string) (string, bool) {
	return containsAny(text, t.channelKeywords)
}

// Match evaluates every populated field of id. Any single matching field
// blocks; the returned reason names the first one found.
func (t *Tables) Match(id Identity) (string, bool) {
	if t.HasVideoID(id.VideoID) {
		return "video id: " + id.VideoID, true
	}
	if kw, ok := t.MatchVideoTitle(id.VideoTitle); ok {
		return "video title: " + id.VideoTitle + " (keyword " + kw + ")", true
	}
	if t.HasChannelID(id.ChannelID) {
		return "channel id: " + id.ChannelID, true
	}
	if t.HasHandle(id.ChannelHandle) {
		return "channel handle: " + id.ChannelHandle, true
	}
	if t.HasHandle(id.ChannelTitle) {
		return "channel name: " + id.ChannelTitle, true
	}
	if kw, ok := t.MatchChannelTitle(id.ChannelTitle); ok {
		return "channel name: " + id.ChannelTitle + " (keyword " + kw + ")", true
	}
	return "", false
}

// VideoKeys returns every video entry verbatim, sorted.
func (t *Tables) VideoKeys() []string { return append([]string(nil), t.videoKeys...) }

// VideoIDs returns the exact-match video ids, sorted.
func (t *Tables) VideoIDs() []string { return sortedKeys(t.videoIDs) }

// VideoTitleKeywords returns the lowercased title keywords, sorted.
func (t *Tables) VideoTitleKeywords() []string { return append([]string(nil), t.videoKeywords...) }

// ChannelIDs returns the blocked channel ids, sorted.
func (t *Tables) ChannelIDs() []string { return sortedKeys(t.channelIDs) }

// ChannelHandles returns the lowercased handles, sorted.
func (t *Tables) ChannelHandles() []string { return sortedKeys(t.channelHandles) }

// ChannelTitleKeywords returns the lowercased channel keywords, sorted.
func (t *Tables) ChannelTitleKeywords() []string {
	return append([]string(nil), t.channelKeywords...)
}

// Exact key prefixes used by ExactKeys. Keep in sync with VideoKey,
// ChannelKey and HandleKey.
const (
	videoKeyPrefix   = "v:"
	channelKeyPrefix = "c:"
	handleKeyPrefix  = "h:"
)

// VideoKey, ChannelKey and HandleKey build the namespaced keys returned by
// ExactKeys, so a prefilter built from them can be probed consistently.
func VideoKey(id string) []byte      { return []byte(videoKeyPrefix + id) }
func ChannelKey(id string) []byte    { return []byte(channelKeyPrefix + id) }
func HandleKey(handle string) []byte { return []byte(handleKeyPrefix + strings.ToLower(handle)) }

// ExactKeys returns one namespaced key per exact-match entry.
func (t *Tables) ExactKeys() [][]byte {
	out := make([][]byte, 0, len(t.videoIDs)+len(t.channelIDs)+len(t.channelHandles))
	for _, id := range t.VideoIDs() {
		out = append(out, VideoKey(id))
	}
	for _, id := range t.ChannelIDs() {
		out = append(out, ChannelKey(id))
	}
	for _, h := range t.ChannelHandles() {
		out = append(out, HandleKey(h))
	}
	return out
}

// Counts reports the size of each table.
type Counts struct {
	VideoIDs             int
	VideoTitleKeywords   int
	ChannelIDs           int
	ChannelHandles       int
	ChannelTitleKeywords int
}

// Counts returns the number of entries per table.
func (t *Tables) Counts() Counts {
	return Counts{
		VideoIDs:             len(t.videoIDs),
		VideoTitleKeywords:   len(t.videoKeywords),
		ChannelIDs:           len(t.channelIDs),
		ChannelHandles:       len(t.channelHandles),
		ChannelTitleKeywords: len(t.channelKeywords),
	}
}

func containsAny(text string, keywords []string) (string, bool) {
	if text == "" || len(keywords) == 0 {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
