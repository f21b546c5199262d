package bootstrap

import (
	"errors"
	"fmt"

	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

// Rejection kinds.
var (
	// ErrNoSession is returned when a bootstrap request arrives while no
	// session is open.
	ErrNoSession = errors.New("no pending bootstrap session")

	// ErrUnauthorized is returned when a bootstrap request does not come
	// from the peer that opened the session.
	ErrUnauthorized = errors.New("not from a bootstrap server")

	// ErrInstanceDelete wraps a failure to delete one instance during the
	// Bootstrap-Delete cascade. It is logged, never returned.
	ErrInstanceDelete = errors.New("instance delete failed")
)

// Rejection is returned by Finish and Delete when a request is refused.
// It carries the response code the transport should send back.
type Rejection struct {
	Kind   error
	Code   wire.Code
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("bootstrap request rejected (%s): %s", r.Code, r.Reason)
}

func (r *Rejection) Unwrap() error {
	return r.Kind
}

// Response converts the rejection into a protocol response.
func (r *Rejection) Response() *wire.Response {
	return wire.ErrorResponse(r.Code, r.Reason)
}

func reject(kind error, code wire.Code) *Rejection {
	return &Rejection{Kind: kind, Code: code, Reason: kind.Error()}
}
