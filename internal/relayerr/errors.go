// Package relayerr defines the error taxonomy shared by the helpdesk and
// messaging gateways. Errors are classified so relays can pick a distinct
// user-facing notice per failure cause.
package relayerr

import (
	"errors"
	"fmt"
)

// Kind categorizes a relay failure.
type Kind string

const (
	// KindRemote covers network failures, timeouts and non-2xx responses.
	KindRemote Kind = "remote"
	// KindProtocol covers responses that are missing required fields or are malformed.
	KindProtocol Kind = "protocol"
	// KindConfiguration covers a capability used without its credential.
	KindConfiguration Kind = "configuration"
)

// Error is a classified relay error.
type Error struct {
	Kind Kind
	// Op names the failed operation, e.g. "create contact".
	Op string
	// StatusCode is the HTTP status for remote errors, 0 when no response was received.
	StatusCode int
	// Body holds a truncated response body for remote errors.
	Body string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Kind, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Remote wraps a transport failure.
func Remote(op string, err error) *Error {
	return &Error{Kind: KindRemote, Op: op, Err: err}
}

// RemoteStatus reports a non-2xx response.
func RemoteStatus(op string, status int, body string) *Error {
	return &Error{Kind: KindRemote, Op: op, StatusCode: status, Body: body, Err: errors.New("unexpected status")}
}

// Protocol reports a malformed or incomplete response.
func Protocol(op, detail string) *Error {
	return &Error{Kind: KindProtocol, Op: op, Err: errors.New(detail)}
}

// Configuration reports a missing credential for a capability.
func Configuration(op, detail string) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: errors.New(detail)}
}

// KindOf returns the kind of err, or "" when err is not a relay error.
func KindOf(err error) Kind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return ""
}

// IsProtocol reports whether err is a malformed-response error.
func IsProtocol(err error) bool { return KindOf(err) == KindProtocol }
