package pageguard

import (
	"context"

	"github.com/haukened/tubeguard/internal/guard/domain"
)

// Blocklist supplies the URL decision and the tables behind it. The
// blocklist repository satisfies it.
type Blocklist interface {
	Decide(url string) domain.Decision
	Tables() *domain.Tables
}

// Hooks are invoked by a Document when the page changes. They may be called
// from any goroutine.
type Hooks struct {
	// Mutations fires once per batch of DOM mutations.
	Mutations func()
	// NavigateFinish fires when the site reports a client-side navigation.
	NavigateFinish func()
}

// Observation is a live subscription created by Document.Observe.
type Observation interface {
	Disconnect()
}

// Document is the page as seen from the isolated domain: DOM access without
// the page's own script globals.
type Document interface {
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// HeadingText returns the text of the primary video heading, or "" when
	// the layout has none.
	HeadingText(ctx context.Context) (string, error)
	// AppendHiddenNode attaches a hidden element with the given id carrying
	// value in attr.
	AppendHiddenNode(ctx context.Context, id, attr, value string) error
	// Observe subscribes hooks to subtree mutations and navigation signals.
	Observe(ctx context.Context, hooks Hooks) (Observation, error)
	// Stop halts any in-flight load.
	Stop(ctx context.Context) error
	// Replace navigates to url without adding a history entry.
	Replace(ctx context.Context, url string) error
}

// Injector loads the native interceptor into the page-native domain and
// points it at the bridge node.
type Injector interface {
	Inject(ctx context.Context, nodeID string) error
}

// Recorder counts corrective actions per layer.
type Recorder interface {
	Record(layer domain.Layer, blocked bool)
}
