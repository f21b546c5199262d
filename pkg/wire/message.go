package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Well-known object identifiers.
const (
	// ObjectSecurity holds server credentials.
	ObjectSecurity uint16 = 0

	// ObjectServer holds server connection parameters.
	ObjectServer uint16 = 1
)

// Path errors.
var (
	ErrInvalidPath = errors.New("invalid path")
)

// Path addresses an object, an object instance or a resource.
// Missing levels are nil.
type Path struct {
	ObjectID   *uint16 `cbor:"1,keyasint,omitempty"`
	InstanceID *uint16 `cbor:"2,keyasint,omitempty"`
	ResourceID *uint16 `cbor:"3,keyasint,omitempty"`
}

// RootPath addresses every object.
func RootPath() Path {
	return Path{}
}

// ObjectPath addresses all instances of an object.
func ObjectPath(objectID uint16) Path {
	return Path{ObjectID: &objectID}
}

// InstancePath addresses one object instance.
func InstancePath(objectID, instanceID uint16) Path {
	return Path{ObjectID: &objectID, InstanceID: &instanceID}
}

// ResourcePath addresses one resource.
func ResourcePath(objectID, instanceID, resourceID uint16) Path {
	return Path{ObjectID: &objectID, InstanceID: &instanceID, ResourceID: &resourceID}
}

// ParsePath parses "/", "/0", "/0/1" or "/0/1/2".
func ParsePath(s string) (Path, error) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return RootPath(), nil
	}

	parts := strings.Split(s, "/")
	if len(parts) > 3 {
		return Path{}, fmt.Errorf("%w: %q", ErrInvalidPath, s)
	}

	ids := make([]uint16, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return Path{}, fmt.Errorf("%w: %q", ErrInvalidPath, s)
		}
		ids[i] = uint16(v)
	}

	switch len(ids) {
	case 1:
		return ObjectPath(ids[0]), nil
	case 2:
		return InstancePath(ids[0], ids[1]), nil
	default:
		return ResourcePath(ids[0], ids[1], ids[2]), nil
	}
}

// IsRoot returns true if the path addresses every object.
func (p Path) IsRoot() bool {
	return p.ObjectID == nil
}

// IsInstance returns true if the path stops at an object instance.
func (p Path) IsInstance() bool {
	return p.ObjectID != nil && p.InstanceID != nil && p.ResourceID == nil
}

// IsResource returns true if the path addresses a single resource.
func (p Path) IsResource() bool {
	return p.ObjectID != nil && p.InstanceID != nil && p.ResourceID != nil
}

// String returns the path in URI form.
func (p Path) String() string {
	if p.ObjectID == nil {
		return "/"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "/%d", *p.ObjectID)
	if p.InstanceID != nil {
		fmt.Fprintf(&b, "/%d", *p.InstanceID)
		if p.ResourceID != nil {
			fmt.Fprintf(&b, "/%d", *p.ResourceID)
		}
	}
	return b.String()
}

// Request is a decoded request handed over by the transport layer.
type Request struct {
	// ID correlates the request with its response and log events.
	ID string `cbor:"1,keyasint"`

	// Operation is the requested action.
	Operation Operation `cbor:"2,keyasint"`

	// Path is the target. Bootstrap requests may leave it at the root.
	Path Path `cbor:"3,keyasint"`

	// Value is the new resource value for Write.
	Value *Resource `cbor:"4,keyasint,omitempty"`

	// Params holds the arguments of an Execute.
	Params string `cbor:"5,keyasint,omitempty"`
}

// Validate checks that the request is structurally usable.
func (r *Request) Validate() error {
	if !r.Operation.IsValid() {
		return fmt.Errorf("invalid operation: %d", r.Operation)
	}
	switch r.Operation {
	case OpRead, OpExecute:
		if !r.Path.IsResource() {
			return fmt.Errorf("%s requires a resource path, got %s", r.Operation, r.Path)
		}
	case OpWrite:
		if !r.Path.IsResource() {
			return fmt.Errorf("%s requires a resource path, got %s", r.Operation, r.Path)
		}
		if r.Value == nil {
			return errors.New("write without value")
		}
	case OpDelete:
		if !r.Path.IsInstance() {
			return fmt.Errorf("%s requires an instance path, got %s", r.Operation, r.Path)
		}
	}
	return nil
}

// Response is the outcome of a request.
type Response struct {
	// Code is the CoAP response code.
	Code Code `cbor:"1,keyasint"`

	// Reason explains an error code. Empty on success.
	Reason string `cbor:"2,keyasint,omitempty"`

	// Value is the content of a successful read.
	Value *Resource `cbor:"3,keyasint,omitempty"`
}

// IsSuccess returns true if the response carries a 2.xx code.
func (r *Response) IsSuccess() bool {
	return r.Code.IsSuccess()
}

// Err returns nil for successful responses, or an error carrying the code
// and reason.
func (r *Response) Err() error {
	if r.IsSuccess() {
		return nil
	}
	if r.Reason == "" {
		return fmt.Errorf("%s", r.Code)
	}
	return fmt.Errorf("%s: %s", r.Code, r.Reason)
}

// Content returns a successful read response.
func Content(value Resource) *Response {
	return &Response{Code: CodeContent, Value: &value}
}

// Changed returns a successful write, execute or finish response.
func Changed() *Response {
	return &Response{Code: CodeChanged}
}

// Deleted returns a successful delete response.
func Deleted() *Response {
	return &Response{Code: CodeDeleted}
}

// BadRequest returns a 4.00 response.
func BadRequest(reason string) *Response {
	return &Response{Code: CodeBadRequest, Reason: reason}
}

// NotFound returns a 4.04 response.
func NotFound(reason string) *Response {
	return &Response{Code: CodeNotFound, Reason: reason}
}

// MethodNotAllowed returns a 4.05 response.
func MethodNotAllowed(reason string) *Response {
	return &Response{Code: CodeMethodNotAllowed, Reason: reason}
}

// InternalServerError returns a 5.00 response.
func InternalServerError(reason string) *Response {
	return &Response{Code: CodeInternalServerError, Reason: reason}
}

// ErrorResponse returns a response with the given error code and reason.
func ErrorResponse(code Code, reason string) *Response {
	return &Response{Code: code, Reason: reason}
}
