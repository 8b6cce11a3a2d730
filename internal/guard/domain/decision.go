package domain

import "fmt"

// Layer identifies which detector produced a decision.
type Layer uint8

const (
	// LayerNone is the zero value, used by Allow decisions.
	LayerNone Layer = iota
	// LayerPreNavigation intercepts top-level requests before any page loads.
	LayerPreNavigation
	// LayerURL is the page guard's check of the current location.
	LayerURL
	// LayerDOM is the mutation-driven scan of rendered title text.
	LayerDOM
	// LayerNative is the interceptor reading page-native state objects.
	LayerNative
)

// String returns a stable name, used as a log field and metric label.
func (l Layer) String() string {
	switch l {
	case LayerNone:
		return "none"
	case LayerPreNavigation:
		return "prenav"
	case LayerURL:
		return "url"
	case LayerDOM:
		return "dom"
	case LayerNative:
		return "native"
	default:
		return fmt.Sprintf("Layer(%d)", l)
	}
}

// Decision is the verdict of one evaluation. Reason is diagnostic only and
// never drives control flow.
type Decision struct {
	Blocked  bool
	Reason   string
	Layer    Layer
	Identity Identity
}

// IsBlocked is a convenience accessor.
func (d Decision) IsBlocked() bool { return d.Blocked }

// Allow returns a not-blocked decision.
func Allow() Decision { return Decision{} }

// Block returns a blocked decision attributed to layer.
func Block(layer Layer, reason string, id Identity) Decision {
	return Decision{Blocked: true, Reason: reason, Layer: layer, Identity: id}
}

// WithLayer returns a copy of d attributed to layer. Allow decisions are
// returned unchanged.
func (d Decision) WithLayer(layer Layer) Decision {
	if !d.Blocked {
		return d
	}
	d.Layer = layer
	return d
}
