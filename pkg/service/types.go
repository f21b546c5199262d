package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lwm2m-go/lwm2m-client/pkg/connection"
	"github.com/lwm2m-go/lwm2m-client/pkg/identity"
	"github.com/lwm2m-go/lwm2m-client/pkg/log"
	"github.com/lwm2m-go/lwm2m-client/pkg/persistence"
	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

// Service errors.
var (
	ErrBootstrapInProgress = errors.New("bootstrap session already in progress")
	ErrBootstrapTimeout    = errors.New("bootstrap not finished in time")
	ErrInvalidConfig       = errors.New("invalid configuration")
)

// EngineState is the state of the BootstrapEngine.
type EngineState uint8

const (
	// EngineIdle - no bootstrap attempted yet.
	EngineIdle EngineState = iota

	// EngineBootstrapping - a bootstrap is running.
	EngineBootstrapping

	// EngineBootstrapped - the last bootstrap finished.
	EngineBootstrapped

	// EngineFailed - the last bootstrap gave up.
	EngineFailed
)

// String returns the state name.
func (s EngineState) String() string {
	switch s {
	case EngineIdle:
		return "IDLE"
	case EngineBootstrapping:
		return "BOOTSTRAPPING"
	case EngineBootstrapped:
		return "BOOTSTRAPPED"
	case EngineFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ClientConfig configures a BootstrapEngine.
type ClientConfig struct {
	// Endpoint is the client endpoint name sent with the bootstrap request.
	Endpoint string

	// BootstrapServer is the peer allowed to run the bootstrap session.
	BootstrapServer identity.Identity

	// BootstrapTimeout bounds the wait for Bootstrap-Finish per attempt.
	BootstrapTimeout time.Duration

	// MaxAttempts is the number of sessions tried before giving up.
	MaxAttempts int

	// Backoff paces the attempts.
	Backoff connection.BackoffConfig

	// StateStore persists the object store after a finished session.
	// If nil, nothing is persisted.
	StateStore *persistence.ClientStateStore

	// Logger is the optional operational logger. Nil disables it.
	Logger *slog.Logger

	// ProtocolLogger receives protocol events. Nil disables it.
	ProtocolLogger log.Logger
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BootstrapTimeout: 30 * time.Second,
		MaxAttempts:      5,
		Backoff:          connection.DefaultBackoffConfig(),
	}
}

// Validate checks the configuration.
func (c *ClientConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if !c.BootstrapServer.IsSet() {
		return fmt.Errorf("%w: bootstrap server is required", ErrInvalidConfig)
	}
	if c.BootstrapTimeout <= 0 {
		return fmt.Errorf("%w: bootstrap timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// BootstrapRequester sends the bootstrap request to the bootstrap server.
// It returns once the request was acknowledged; the session itself is driven
// by the server through RequestHandler.
type BootstrapRequester interface {
	RequestBootstrap(ctx context.Context, server identity.Identity, endpoint string) error
}

// BootstrapRequesterFunc adapts a function to BootstrapRequester.
type BootstrapRequesterFunc func(ctx context.Context, server identity.Identity, endpoint string) error

// RequestBootstrap calls f.
func (f BootstrapRequesterFunc) RequestBootstrap(ctx context.Context, server identity.Identity, endpoint string) error {
	return f(ctx, server, endpoint)
}

// ObjectModel is the object store as seen by RequestHandler.
type ObjectModel interface {
	Read(path wire.Path) *wire.Response
	Write(path wire.Path, value wire.Resource) *wire.Response
	Execute(path wire.Path, params string) *wire.Response
	DeleteInstance(objectID, instanceID uint16, origin identity.Identity) error
}

// Event types for service callbacks.
type EventType uint8

const (
	// EventBootstrapStarted - a session was opened and the request sent.
	EventBootstrapStarted EventType = iota

	// EventBootstrapFinished - the server finished the session.
	EventBootstrapFinished

	// EventBootstrapTimeout - one attempt was not finished in time.
	EventBootstrapTimeout

	// EventBootstrapFailed - the engine gave up.
	EventBootstrapFailed
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventBootstrapStarted:
		return "BOOTSTRAP_STARTED"
	case EventBootstrapFinished:
		return "BOOTSTRAP_FINISHED"
	case EventBootstrapTimeout:
		return "BOOTSTRAP_TIMEOUT"
	case EventBootstrapFailed:
		return "BOOTSTRAP_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Event represents a service event.
type Event struct {
	// Type is the event type.
	Type EventType

	// SessionID is the bootstrap session the event belongs to.
	SessionID string

	// Attempt is the 1-based attempt number.
	Attempt int

	// Error is set for timeout and failure events.
	Error error
}

// EventHandler handles service events.
type EventHandler func(Event)
