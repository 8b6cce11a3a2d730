package navguard

import (
	"context"

	"github.com/haukened/tubeguard/internal/guard/domain"
)

// Classifier decides a URL. The blocklist repository satisfies it.
type Classifier interface {
	Decide(url string) domain.Decision
}

// Redirector rewrites a pending navigation so it lands on target instead.
type Redirector interface {
	Redirect(ctx context.Context, ev domain.NavigationEvent, target string) error
}

// Recorder counts decisions per layer.
type Recorder interface {
	Record(layer domain.Layer, blocked bool)
}
