package wire

import "fmt"

// Code is a CoAP response code (class*32 + detail).
type Code uint8

const (
	// CodeCreated indicates an instance was created (2.01).
	CodeCreated Code = 2<<5 | 1

	// CodeDeleted indicates an instance was deleted (2.02).
	CodeDeleted Code = 2<<5 | 2

	// CodeChanged indicates a write or finish was applied (2.04).
	CodeChanged Code = 2<<5 | 4

	// CodeContent indicates a successful read (2.05).
	CodeContent Code = 2<<5 | 5

	// CodeBadRequest indicates a malformed or out-of-state request (4.00).
	CodeBadRequest Code = 4<<5 | 0

	// CodeUnauthorized indicates missing access rights (4.01).
	CodeUnauthorized Code = 4<<5 | 1

	// CodeNotFound indicates the target does not exist (4.04).
	CodeNotFound Code = 4<<5 | 4

	// CodeMethodNotAllowed indicates the operation is not allowed on the
	// target or by this caller (4.05).
	CodeMethodNotAllowed Code = 4<<5 | 5

	// CodeInternalServerError indicates a failure inside the client (5.00).
	CodeInternalServerError Code = 5<<5 | 0
)

// Class returns the code class (2, 4 or 5).
func (c Code) Class() uint8 {
	return uint8(c) >> 5
}

// Detail returns the code detail.
func (c Code) Detail() uint8 {
	return uint8(c) & 0x1f
}

// String returns the code in class.detail notation followed by its name.
func (c Code) String() string {
	name := "UNKNOWN"
	switch c {
	case CodeCreated:
		name = "CREATED"
	case CodeDeleted:
		name = "DELETED"
	case CodeChanged:
		name = "CHANGED"
	case CodeContent:
		name = "CONTENT"
	case CodeBadRequest:
		name = "BAD_REQUEST"
	case CodeUnauthorized:
		name = "UNAUTHORIZED"
	case CodeNotFound:
		name = "NOT_FOUND"
	case CodeMethodNotAllowed:
		name = "METHOD_NOT_ALLOWED"
	case CodeInternalServerError:
		name = "INTERNAL_SERVER_ERROR"
	}
	return fmt.Sprintf("%d.%02d %s", c.Class(), c.Detail(), name)
}

// IsSuccess returns true for 2.xx codes.
func (c Code) IsSuccess() bool {
	return c.Class() == 2
}

// IsError returns true for 4.xx and 5.xx codes.
func (c Code) IsError() bool {
	return c.Class() >= 4
}
