// Package testserver provides the HTTP client for the on-device
// instrumentation test server.
package testserver

// actionEnvelope is the request body for the action route.
type actionEnvelope struct {
	Command   string        `json:"command"`
	Arguments []interface{} `json:"arguments"`
}

// operationModel is the operation part of a map envelope.
type operationModel struct {
	MethodName string        `json:"method_name"`
	Arguments  []interface{} `json:"arguments"`
}

// mapEnvelope is the request body for the map route.
type mapEnvelope struct {
	Query     string         `json:"query"`
	Operation operationModel `json:"operation"`
}

// gestureEnvelope carries a serialized gesture descriptor.
type gestureEnvelope struct {
	JSON interface{} `json:"json"`
}

// mapResponse is the decoded map-route outcome.
type mapResponse struct {
	Outcome string        `json:"outcome"`
	Results []interface{} `json:"results"`
	Reason  string        `json:"reason"`
	Details interface{}   `json:"details"`
}

// gestureResponse is the decoded gesture-route outcome.
type gestureResponse struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason"`
}

// outcomeSuccess is the success discriminant shared by map and gesture routes.
const outcomeSuccess = "SUCCESS"
