package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lwm2m-go/lwm2m-client/pkg/bootstrap"
	"github.com/lwm2m-go/lwm2m-client/pkg/connection"
	"github.com/lwm2m-go/lwm2m-client/pkg/log"
	"github.com/lwm2m-go/lwm2m-client/pkg/persistence"
)

// Snapshotter captures the provisioned objects for persistence.
type Snapshotter interface {
	Snapshot() *persistence.ClientState
}

// BootstrapEngine runs client-initiated bootstrap sessions.
type BootstrapEngine struct {
	mu sync.Mutex

	config    ClientConfig
	session   *bootstrap.Handler
	store     Snapshotter
	requester BootstrapRequester
	backoff   *connection.Backoff

	protocolLogger log.Logger

	state          EngineState
	running        bool
	bootstrappedAt time.Time

	handlers []EventHandler
}

// NewBootstrapEngine creates an engine. The session handler must be the one
// the RequestHandler routes bootstrap requests to.
func NewBootstrapEngine(config ClientConfig, session *bootstrap.Handler, store Snapshotter, requester BootstrapRequester) (*BootstrapEngine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &BootstrapEngine{
		config:         config,
		session:        session,
		store:          store,
		requester:      requester,
		backoff:        connection.NewBackoffWithConfig(config.Backoff),
		protocolLogger: log.OrNoop(config.ProtocolLogger),
		state:          EngineIdle,
	}, nil
}

// OnEvent registers a handler for engine events.
func (e *BootstrapEngine) OnEvent(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
}

// State returns the engine state.
func (e *BootstrapEngine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// BootstrappedAt returns when the last bootstrap finished. Zero if never.
func (e *BootstrapEngine) BootstrappedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bootstrappedAt
}

// Bootstrap runs bootstrap sessions until one is finished by the server, the
// attempt limit is reached or ctx ends.
//
// It returns ErrBootstrapInProgress if another bootstrap is running or a
// session is already open, and an error wrapping ErrBootstrapTimeout when
// every attempt failed.
func (e *BootstrapEngine) Bootstrap(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrBootstrapInProgress
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	if e.session.IsActive() {
		return ErrBootstrapInProgress
	}

	e.setState(EngineBootstrapping, "bootstrap requested")
	e.backoff.Reset()

	var lastErr error
	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			e.debugLog("bootstrap retry pending", "attempt", attempt, "delay", e.backoff.Current())
			if err := e.backoff.Wait(ctx); err != nil {
				return e.fail(attempt-1, err)
			}
		}

		err := e.attempt(ctx, attempt)
		if err == nil {
			return e.finish()
		}
		if errors.Is(err, ErrBootstrapInProgress) {
			e.setState(EngineIdle, "session opened elsewhere")
			return err
		}
		if ctx.Err() != nil {
			return e.fail(attempt, ctx.Err())
		}

		lastErr = err
		e.warnLog("bootstrap attempt failed", "attempt", attempt, "error", err)
	}

	if errors.Is(lastErr, ErrBootstrapTimeout) {
		lastErr = fmt.Errorf("%w after %d attempts", ErrBootstrapTimeout, e.config.MaxAttempts)
	} else {
		lastErr = fmt.Errorf("%w after %d attempts: %w", ErrBootstrapTimeout, e.config.MaxAttempts, lastErr)
	}
	return e.fail(e.config.MaxAttempts, lastErr)
}

// attempt runs one session. The session is always cancelled on return.
func (e *BootstrapEngine) attempt(ctx context.Context, attempt int) error {
	server := e.config.BootstrapServer
	if !e.session.Open(server) {
		return ErrBootstrapInProgress
	}
	defer e.session.Cancel()

	sessionID := e.session.SessionID()
	e.emit(Event{Type: EventBootstrapStarted, SessionID: sessionID, Attempt: attempt})
	e.debugLog("bootstrap session opened", "session", sessionID, "server", server, "attempt", attempt)

	if err := e.requester.RequestBootstrap(ctx, server, e.config.Endpoint); err != nil {
		return fmt.Errorf("bootstrap request: %w", err)
	}

	if !e.session.WaitForCompletion(ctx, e.config.BootstrapTimeout) {
		e.emit(Event{Type: EventBootstrapTimeout, SessionID: sessionID, Attempt: attempt, Error: ErrBootstrapTimeout})
		return ErrBootstrapTimeout
	}

	e.emit(Event{Type: EventBootstrapFinished, SessionID: sessionID, Attempt: attempt})
	return nil
}

func (e *BootstrapEngine) finish() error {
	now := time.Now()
	e.mu.Lock()
	e.bootstrappedAt = now
	e.mu.Unlock()
	e.backoff.Reset()
	e.setState(EngineBootstrapped, "bootstrap finished")

	if e.config.StateStore == nil || e.store == nil {
		return nil
	}

	state := e.store.Snapshot()
	state.BootstrappedAt = now
	state.SavedAt = now
	if err := e.config.StateStore.Save(state); err != nil {
		e.warnLog("failed to persist bootstrap state", "path", e.config.StateStore.Path(), "error", err)
		return fmt.Errorf("persist bootstrap state: %w", err)
	}
	e.debugLog("bootstrap state saved", "path", e.config.StateStore.Path())
	return nil
}

func (e *BootstrapEngine) fail(attempts int, err error) error {
	e.setState(EngineFailed, err.Error())
	e.emit(Event{Type: EventBootstrapFailed, Attempt: attempts, Error: err})
	return err
}

func (e *BootstrapEngine) setState(newState EngineState, reason string) {
	e.mu.Lock()
	oldState := e.state
	e.state = newState
	e.mu.Unlock()

	if oldState == newState {
		return
	}
	e.protocolLogger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionNone,
		Layer:     log.LayerEngine,
		Category:  log.CategoryState,
		Endpoint:  e.config.Endpoint,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityEngine,
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})
}

// emit calls the event handlers outside the lock.
func (e *BootstrapEngine) emit(event Event) {
	e.mu.Lock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

func (e *BootstrapEngine) debugLog(msg string, args ...any) {
	if e.config.Logger != nil {
		e.config.Logger.Debug(msg, args...)
	}
}

func (e *BootstrapEngine) warnLog(msg string, args ...any) {
	if e.config.Logger != nil {
		e.config.Logger.Warn(msg, args...)
	}
}
