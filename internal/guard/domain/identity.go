package domain

// Identity is the candidate extracted from one source (a URL, page-native
// state, or rendered text) for a single evaluation. Any field may be empty;
// an empty field never matches.
type Identity struct {
	VideoID       string
	VideoTitle    string
	ChannelID     string
	ChannelHandle string
	ChannelTitle  string
}

// IsEmpty reports whether no field was extracted.
func (i Identity) IsEmpty() bool {
	return i == Identity{}
}
