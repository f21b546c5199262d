package log

import (
	"time"

	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

// Event represents a protocol log event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the bootstrap session (UUID). Empty outside a session.
	SessionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Endpoint is the client endpoint name.
	Endpoint string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Message     *MessageEvent     `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
	// DirectionNone is used for local events (state changes, errors).
	DirectionNone Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionNone:
		return "-"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which part of the client captured the event.
type Layer uint8

const (
	// LayerMessage is the request dispatch layer (decoded requests/responses).
	LayerMessage Layer = 0
	// LayerSession is the bootstrap session coordinator.
	LayerSession Layer = 1
	// LayerEngine is the bootstrap engine driving sessions.
	LayerEngine Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerMessage:
		return "MESSAGE"
	case LayerSession:
		return "SESSION"
	case LayerEngine:
		return "ENGINE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a request or response.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures a decoded request or the response sent for it.
type MessageEvent struct {
	// Type distinguishes request from response.
	Type MessageType `cbor:"1,keyasint"`

	// RequestID correlates request/response pairs.
	RequestID string `cbor:"2,keyasint,omitempty"`

	// Operation requested.
	Operation wire.Operation `cbor:"3,keyasint"`

	// Path is the request target in URI form.
	Path string `cbor:"4,keyasint,omitempty"`

	// For responses: the response code.
	Code *wire.Code `cbor:"5,keyasint,omitempty"`

	// For error responses: the reason sent to the peer.
	Reason string `cbor:"6,keyasint,omitempty"`

	// ProcessingTime is the duration from request receipt to response (response only).
	// Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"7,keyasint,omitempty"`
}

// MessageType distinguishes request from response.
type MessageType uint8

const (
	// MessageTypeRequest indicates a request message.
	MessageTypeRequest MessageType = 0
	// MessageTypeResponse indicates a response message.
	MessageTypeResponse MessageType = 1
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures session and engine lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntitySession indicates a bootstrap session state change.
	StateEntitySession StateEntity = 0
	// StateEntityEngine indicates a bootstrap engine state change.
	StateEntityEngine StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntitySession:
		return "SESSION"
	case StateEntityEngine:
		return "ENGINE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors that were handled locally.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`

	// Path is the affected object or instance, if any.
	Path string `cbor:"4,keyasint,omitempty"`
}
