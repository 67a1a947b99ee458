package testserver

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/mahtabnejad90/calabash/pkg/core"
	"github.com/mahtabnejad90/calabash/pkg/gesture"
)

// gestureMargin pads the request timeout beyond the descriptor's own
// duration.
const gestureMargin = 10 * time.Second

// PerformAction sends an action request. On a truthy success discriminant the
// full decoded response is returned so callers can pick further keys; on a
// falsy one the response's message is raised verbatim.
func (c *Client) PerformAction(ctx context.Context, name string, args ...interface{}) (map[string]interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}
	data, err := c.call(ctx, routeAction, actionEnvelope{Command: name, Arguments: args},
		callOptions{timeout: defaultCallTimeout})
	if err != nil {
		return nil, err
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode action response: %w", err)
	}

	if success, _ := decoded["success"].(bool); !success {
		message, _ := decoded["message"].(string)
		if message == "" {
			message = fmt.Sprintf("action %s failed", name)
		}
		return nil, core.NewError(core.ErrCategoryProtocol, "action_failed", message).
			WithDetails(map[string]interface{}{"command": name, "response": decoded})
	}
	return decoded, nil
}

// MethodRef is one operation argument of a map request: either a bare method
// name or a method name with arguments.
type MethodRef struct {
	name string
	args []interface{}
}

// NamedCall references a zero-argument method.
func NamedCall(name string) MethodRef {
	return MethodRef{name: name, args: []interface{}{}}
}

// ParameterizedCall references a method invoked with the given arguments.
func ParameterizedCall(name string, args ...interface{}) MethodRef {
	if args == nil {
		args = []interface{}{}
	}
	return MethodRef{name: name, args: args}
}

// MarshalJSON serializes the reference in operation form.
func (m MethodRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(operationModel{MethodName: m.name, Arguments: m.args})
}

// methodRefFor converts a raw map-route argument into a MethodRef. A string
// is a zero-argument method reference; a single-key map invokes the key with
// its value (a sequence is used as-is, a scalar is wrapped); anything else is
// a format error naming the value and its type.
func methodRefFor(v interface{}) (MethodRef, error) {
	switch arg := v.(type) {
	case MethodRef:
		return arg, nil
	case string:
		return NamedCall(arg), nil
	case map[string]interface{}:
		if len(arg) == 0 {
			return MethodRef{}, core.NewError(core.ErrCategoryFormat, "empty_method_specifier",
				"method specifier must not be empty")
		}
		if len(arg) > 1 {
			return MethodRef{}, core.Errorf(core.ErrCategoryFormat, "ambiguous_method_specifier",
				"method specifier must have exactly one key, got %d", len(arg))
		}
		for name, value := range arg {
			return ParameterizedCall(name, sequenceOf(value)...), nil
		}
		panic("unreachable")
	default:
		return MethodRef{}, core.Errorf(core.ErrCategoryFormat, "invalid_method_argument",
			"invalid method argument %v (type %T)", v, v)
	}
}

// sequenceOf returns value as an argument sequence, wrapping scalars into a
// one-element sequence.
func sequenceOf(value interface{}) []interface{} {
	rv := reflect.ValueOf(value)
	if value != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		seq := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			seq[i] = rv.Index(i).Interface()
		}
		return seq
	}
	return []interface{}{value}
}

// MapRoute sends a map request against query, invoking methodName with the
// converted method arguments. Returns the decoded results on success.
func (c *Client) MapRoute(ctx context.Context, query, methodName string, methodArgs ...interface{}) ([]interface{}, error) {
	converted := make([]interface{}, len(methodArgs))
	for i, raw := range methodArgs {
		ref, err := methodRefFor(raw)
		if err != nil {
			return nil, err
		}
		converted[i] = ref
	}

	envelope := mapEnvelope{
		Query:     query,
		Operation: operationModel{MethodName: methodName, Arguments: converted},
	}
	data, err := c.call(ctx, routeMap, envelope, callOptions{timeout: defaultCallTimeout})
	if err != nil {
		return nil, err
	}

	var decoded mapResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode map response: %w", err)
	}

	if decoded.Outcome != outcomeSuccess {
		return nil, core.Errorf(core.ErrCategoryProtocol, "map_failed",
			"map %s failed: %s", methodName, decoded.Reason).
			WithDetails(map[string]interface{}{
				"query":   query,
				"reason":  decoded.Reason,
				"details": decoded.Details,
			})
	}
	return decoded.Results, nil
}

// PerformGesture dispatches a finalized gesture descriptor. The request
// timeout is the descriptor's own duration plus a fixed margin.
func (c *Client) PerformGesture(ctx context.Context, d gesture.Descriptor) error {
	data, err := c.call(ctx, routeGesture, gestureEnvelope{JSON: d},
		callOptions{timeout: d.Duration() + gestureMargin})
	if err != nil {
		return err
	}

	var decoded gestureResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decode gesture response: %w", err)
	}

	if decoded.Outcome != outcomeSuccess {
		return core.Errorf(core.ErrCategoryProtocol, "gesture_failed",
			"gesture %s failed: %s", d.Kind, decoded.Reason).
			WithDetails(map[string]interface{}{"reason": decoded.Reason})
	}
	return nil
}
