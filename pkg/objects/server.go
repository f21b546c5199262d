package objects

import (
	"sync"

	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

// Server object resource identifiers.
const (
	ResServerShortID       uint16 = 0
	ResServerLifetime      uint16 = 1
	ResServerNotifyStoring uint16 = 6
	ResServerBinding       uint16 = 7
	ResServerUpdateTrigger uint16 = 8
)

// BindingMode is the transport binding a server connection uses.
type BindingMode string

// Binding modes.
const (
	BindingU   BindingMode = "U"
	BindingUQ  BindingMode = "UQ"
	BindingS   BindingMode = "S"
	BindingSQ  BindingMode = "SQ"
	BindingUS  BindingMode = "US"
	BindingUQS BindingMode = "UQS"
)

// IsValid returns true for a known binding mode.
func (b BindingMode) IsValid() bool {
	switch b {
	case BindingU, BindingUQ, BindingS, BindingSQ, BindingUS, BindingUQS:
		return true
	}
	return false
}

// ServerInstance holds the connection parameters for one management server.
type ServerInstance struct {
	baseInstance

	mu                sync.RWMutex
	shortServerID     uint16
	lifetime          int64
	binding           BindingMode
	notifyWhenDisable bool

	onUpdateTrigger func(shortServerID uint16)
}

// NewServerInstance creates a Server object instance.
func NewServerInstance(shortServerID uint16, lifetime int64, binding BindingMode, notifyWhenDisable bool) *ServerInstance {
	return &ServerInstance{
		shortServerID:     shortServerID,
		lifetime:          lifetime,
		binding:           binding,
		notifyWhenDisable: notifyWhenDisable,
	}
}

// OnUpdateTrigger sets the callback run when the registration update
// trigger resource is executed.
func (s *ServerInstance) OnUpdateTrigger(fn func(shortServerID uint16)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdateTrigger = fn
}

// ShortServerID returns the short server id.
func (s *ServerInstance) ShortServerID() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shortServerID
}

// Lifetime returns the registration lifetime in seconds.
func (s *ServerInstance) Lifetime() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lifetime
}

// Binding returns the binding mode.
func (s *ServerInstance) Binding() BindingMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.binding
}

// NotifyWhenDisable returns the notification storing flag.
func (s *ServerInstance) NotifyWhenDisable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifyWhenDisable
}

// Read returns a Server resource.
func (s *ServerInstance) Read(resourceID uint16) *wire.Response {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch resourceID {
	case ResServerShortID:
		return wire.Content(wire.NewInteger(resourceID, int64(s.shortServerID)))
	case ResServerLifetime:
		return wire.Content(wire.NewInteger(resourceID, s.lifetime))
	case ResServerNotifyStoring:
		return wire.Content(wire.NewBoolean(resourceID, s.notifyWhenDisable))
	case ResServerBinding:
		return wire.Content(wire.NewString(resourceID, string(s.binding)))
	default:
		return s.baseInstance.Read(resourceID)
	}
}

// Write updates a writable Server resource.
func (s *ServerInstance) Write(resourceID uint16, value wire.Resource) *wire.Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resourceID {
	case ResServerLifetime:
		v, ok := value.IntegerValue()
		if !ok {
			return wire.BadRequest("invalid type")
		}
		if v <= 0 {
			return wire.BadRequest("invalid value")
		}
		s.lifetime = v
		return wire.Changed()

	case ResServerNotifyStoring:
		v, ok := value.BooleanValue()
		if !ok {
			return wire.BadRequest("invalid type")
		}
		s.notifyWhenDisable = v
		return wire.Changed()

	case ResServerBinding:
		v, ok := value.StringValue()
		if !ok {
			return wire.BadRequest("invalid type")
		}
		if !BindingMode(v).IsValid() {
			return wire.BadRequest("invalid value")
		}
		s.binding = BindingMode(v)
		return wire.Changed()

	case ResServerShortID:
		return wire.MethodNotAllowed("read-only resource")

	default:
		return s.baseInstance.Write(resourceID, value)
	}
}

// Execute runs the registration update trigger.
func (s *ServerInstance) Execute(resourceID uint16, params string) *wire.Response {
	if resourceID != ResServerUpdateTrigger {
		return s.baseInstance.Execute(resourceID, params)
	}

	s.mu.RLock()
	fn := s.onUpdateTrigger
	id := s.shortServerID
	s.mu.RUnlock()

	if fn != nil {
		fn(id)
	}
	return wire.Changed()
}

// ResourceIDs lists the readable Server resources.
func (s *ServerInstance) ResourceIDs() []uint16 {
	return []uint16{ResServerShortID, ResServerLifetime, ResServerNotifyStoring, ResServerBinding}
}

var _ Instance = (*ServerInstance)(nil)
