package interceptor

import (
	"context"
	"encoding/json"

	"github.com/haukened/tubeguard/internal/guard/domain"
)

// Page is the page-native domain: the page's own globals plus the shared DOM.
type Page interface {
	// TakeBridge reads the payload attribute of the bridge node and removes
	// the node. It reports false when the node or attribute is missing.
	TakeBridge(ctx context.Context, nodeID string) (string, bool, error)
	// Global returns the JSON value of a page global. An undefined or null
	// global yields nil.
	Global(ctx context.Context, name string) (json.RawMessage, error)
	Stop(ctx context.Context) error
	Replace(ctx context.Context, url string) error
}

// Recorder counts decisions and bridge failures.
type Recorder interface {
	Record(layer domain.Layer, blocked bool)
	BridgeFailure()
}
