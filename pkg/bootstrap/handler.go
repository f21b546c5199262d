package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lwm2m-go/lwm2m-client/pkg/identity"
	"github.com/lwm2m-go/lwm2m-client/pkg/log"
	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

// WaitUnbounded makes WaitForCompletion block until release or context end.
const WaitUnbounded time.Duration = -1

// ObjectStore is the part of the object model the handler needs to carry
// out Bootstrap-Delete.
type ObjectStore interface {
	// InstanceIDs lists the instances of an object.
	InstanceIDs(objectID uint16) []uint16

	// DeleteInstance removes one instance on behalf of origin.
	DeleteInstance(objectID, instanceID uint16, origin identity.Identity) error

	// BootstrapSecurityInstance returns the Security instance that describes
	// the bootstrap server, if there is one.
	BootstrapSecurityInstance() (uint16, bool)
}

// Config configures a Handler.
type Config struct {
	// Logger is the optional operational logger. Nil disables it.
	Logger *slog.Logger

	// ProtocolLogger receives session state and error events. Nil disables it.
	ProtocolLogger log.Logger

	// Endpoint is the client endpoint name attached to protocol events.
	Endpoint string
}

// Handler coordinates one bootstrap session at a time.
type Handler struct {
	mu sync.Mutex

	store ObjectStore

	state      SessionState
	authority  identity.Identity
	sessionID  string
	completion *signal

	logger         *slog.Logger
	protocolLogger log.Logger
	endpoint       string

	onStateChange func(oldState, newState SessionState)
}

// NewHandler creates an idle handler operating on store.
func NewHandler(store ObjectStore, cfg Config) *Handler {
	return &Handler{
		store:          store,
		state:          StateIdle,
		completion:     newSignal(),
		logger:         cfg.Logger,
		protocolLogger: log.OrNoop(cfg.ProtocolLogger),
		endpoint:       cfg.Endpoint,
	}
}

// OnStateChange sets a callback for session state changes.
// The callback runs outside the handler lock.
func (h *Handler) OnStateChange(fn func(oldState, newState SessionState)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStateChange = fn
}

// Open starts a session for authority. It returns false, leaving the current
// session untouched, if a session is already open.
func (h *Handler) Open(authority identity.Identity) bool {
	h.mu.Lock()
	if h.state != StateIdle {
		h.mu.Unlock()
		h.debugLog("open rejected, session in progress", "authority", authority)
		return false
	}

	h.authority = authority
	h.sessionID = uuid.New().String()
	h.completion = newSignal()
	notify := h.transitionLocked(StateActive, "opened")
	h.mu.Unlock()

	h.debugLog("session opened", "authority", authority)
	notify()
	return true
}

// Finish handles Bootstrap-Finish from origin. On success any goroutine
// parked in WaitForCompletion is released. The session stays open.
func (h *Handler) Finish(origin identity.Identity) error {
	h.mu.Lock()
	if rej := h.checkLocked(origin, wire.CodeBadRequest); rej != nil {
		h.mu.Unlock()
		h.debugLog("finish rejected", "origin", origin, "reason", rej.Reason)
		return rej
	}

	sig := h.completion
	notify := func() {}
	if h.state == StateActive {
		notify = h.transitionLocked(StateFinished, "bootstrap finish")
	}
	h.mu.Unlock()

	h.debugLog("session finished", "origin", origin)
	notify()
	// Waiters wake only after the FINISHED event is logged.
	sig.release()
	return nil
}

// Delete handles Bootstrap-Delete from origin. All Server instances are
// removed, then all Security instances except the bootstrap server's own.
// Failures on single instances are logged and skipped.
func (h *Handler) Delete(origin identity.Identity) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rej := h.checkLocked(origin, wire.CodeMethodNotAllowed); rej != nil {
		h.debugLog("delete rejected", "origin", origin, "reason", rej.Reason)
		return rej
	}

	var deleted, failed int

	for _, id := range h.store.InstanceIDs(wire.ObjectServer) {
		if h.deleteInstanceLocked(wire.ObjectServer, id, origin) {
			deleted++
		} else {
			failed++
		}
	}

	bsID, hasBS := h.store.BootstrapSecurityInstance()
	for _, id := range h.store.InstanceIDs(wire.ObjectSecurity) {
		if hasBS && id == bsID {
			continue
		}
		if h.deleteInstanceLocked(wire.ObjectSecurity, id, origin) {
			deleted++
		} else {
			failed++
		}
	}

	h.debugLog("bootstrap delete done", "origin", origin, "deleted", deleted, "failed", failed)
	return nil
}

func (h *Handler) deleteInstanceLocked(objectID, instanceID uint16, origin identity.Identity) bool {
	err := h.store.DeleteInstance(objectID, instanceID, origin)
	if err == nil {
		return true
	}

	path := wire.InstancePath(objectID, instanceID).String()
	err = fmt.Errorf("%w %s: %w", ErrInstanceDelete, path, err)
	if h.logger != nil {
		h.logger.Warn("bootstrap delete", "path", path, "error", err)
	}
	h.protocolLogger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  h.sessionID,
		Direction:  log.DirectionNone,
		Layer:      log.LayerSession,
		Category:   log.CategoryError,
		RemoteAddr: origin.PeerAddress.String(),
		Endpoint:   h.endpoint,
		Error: &log.ErrorEventData{
			Layer:   log.LayerSession,
			Message: err.Error(),
			Context: "bootstrap delete",
			Path:    path,
		},
	})
	return false
}

// WaitForCompletion blocks until the current session is finished, timeout
// elapses or ctx is done. It returns true only if the session was finished.
// A negative timeout (WaitUnbounded) waits without deadline.
//
// The handler lock is not held while blocked.
func (h *Handler) WaitForCompletion(ctx context.Context, timeout time.Duration) bool {
	h.mu.Lock()
	sig := h.completion
	h.mu.Unlock()

	if sig.released() {
		return true
	}

	var deadline <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-sig.done:
		return true
	case <-deadline:
		return false
	case <-ctx.Done():
		return false
	}
}

// Cancel closes the session, if any. It does not wake a goroutine parked in
// WaitForCompletion.
func (h *Handler) Cancel() {
	h.mu.Lock()
	notify := func() {}
	if h.state != StateIdle {
		notify = h.transitionLocked(StateIdle, "cancelled")
	}
	h.authority = identity.Identity{}
	h.mu.Unlock()

	notify()
}

// IsActive returns true while a session is open, including after Finish.
func (h *Handler) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state != StateIdle
}

// State returns the current session state.
func (h *Handler) State() SessionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// SessionID returns the id of the current or most recent session.
func (h *Handler) SessionID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessionID
}

// Authority returns the peer that opened the current session.
func (h *Handler) Authority() (identity.Identity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.authority, h.state != StateIdle
}

// checkLocked gates a bootstrap request. Must be called with h.mu held.
func (h *Handler) checkLocked(origin identity.Identity, code wire.Code) *Rejection {
	if h.state == StateIdle {
		return reject(ErrNoSession, code)
	}
	if !identity.Matches(h.authority, origin) {
		return reject(ErrUnauthorized, code)
	}
	return nil
}

// transitionLocked switches state and returns the work to run once the lock
// is released: the protocol event and the state change callback.
func (h *Handler) transitionLocked(newState SessionState, reason string) func() {
	oldState := h.state
	h.state = newState

	event := log.Event{
		Timestamp:  time.Now(),
		SessionID:  h.sessionID,
		Direction:  log.DirectionNone,
		Layer:      log.LayerSession,
		Category:   log.CategoryState,
		RemoteAddr: h.remoteAddrLocked(),
		Endpoint:   h.endpoint,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	}
	protocolLogger := h.protocolLogger
	fn := h.onStateChange
	return func() {
		protocolLogger.Log(event)
		if fn != nil {
			fn(oldState, newState)
		}
	}
}

func (h *Handler) remoteAddrLocked() string {
	if !h.authority.IsSet() {
		return ""
	}
	return h.authority.PeerAddress.String()
}

func (h *Handler) debugLog(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Debug(msg, args...)
	}
}
