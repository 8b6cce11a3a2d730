package chrome

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/go-json-experiment/json/jsontext"
)

// scope addresses the JavaScript world a function runs in: either an
// execution context (the isolated world) or an object (the main world's
// window).
type scope struct {
	contextID runtime.ExecutionContextID
	objectID  runtime.RemoteObjectID
}

// call invokes decl with values passed as protocol arguments, never as
// script text, and returns the JSON result.
func (s scope) call(ctx context.Context, decl string, values ...any) (jsontext.Value, error) {
	args, err := callArguments(values...)
	if err != nil {
		return nil, err
	}
	params := runtime.CallFunctionOn(decl).
		WithArguments(args).
		WithReturnByValue(true)
	if s.objectID != "" {
		params = params.WithObjectID(s.objectID)
	} else {
		params = params.WithExecutionContextID(s.contextID)
	}

	var out jsontext.Value
	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := params.Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if res != nil {
			out = res.Value
		}
		return nil
	}))
	return out, err
}

// callString runs decl and decodes a string result. null yields "".
func (s scope) callString(ctx context.Context, decl string, values ...any) (string, bool, error) {
	v, err := s.call(ctx, decl, values...)
	if err != nil {
		return "", false, err
	}
	if isNull(v) {
		return "", false, nil
	}
	var out string
	if err := json.Unmarshal(v, &out); err != nil {
		return "", false, fmt.Errorf("unexpected result %s: %w", v, err)
	}
	return out, true, nil
}

func callArguments(values ...any) ([]*runtime.CallArgument, error) {
	out := make([]*runtime.CallArgument, 0, len(values))
	for _, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode call argument: %w", err)
		}
		out = append(out, &runtime.CallArgument{Value: jsontext.Value(b)})
	}
	return out, nil
}

func isNull(v jsontext.Value) bool {
	return len(v) == 0 || string(v) == "null"
}

// Function declarations shared by both worlds.
const (
	jsLocation = `function() { return location.href; }`
	jsReplace  = `function(url) { location.replace(url); }`
)
