package domain

// NavigationEvent is a navigation observed before it commits.
// ID is an opaque, platform-assigned handle that the redirector uses to
// address this particular navigation.
type NavigationEvent struct {
	ID       string
	URL      string
	TopLevel bool
}
