package intuit

import "fmt"

// RequestError means the outbound call never left the process: marshaling
// or request construction failed.
type RequestError struct {
	Entity    string
	Operation string
	Err       error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("ledger %s %s: building request: %v", e.Entity, e.Operation, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// TransportError means the request was sent but no response arrived.
type TransportError struct {
	Entity    string
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ledger %s %s: no response: %v", e.Entity, e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError means the server answered with a status outside 2xx. Body is
// kept verbatim for the operator logs.
type APIError struct {
	Entity     string
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger %s %s: status %d: %s", e.Entity, e.Operation, e.StatusCode, e.Body)
}
