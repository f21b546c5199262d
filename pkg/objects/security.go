package objects

import (
	"bytes"
	"sync"

	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

// Security object resource identifiers.
const (
	ResSecurityServerURI           uint16 = 0
	ResSecurityBootstrapServer     uint16 = 1
	ResSecurityMode                uint16 = 2
	ResSecurityPublicKeyOrIdentity uint16 = 3
	ResSecuritySecretKey           uint16 = 5
	ResSecurityShortServerID       uint16 = 10
)

// SecurityMode selects how the client authenticates to a server.
type SecurityMode int64

// Security modes.
const (
	SecurityModePSK   SecurityMode = 0
	SecurityModeRPK   SecurityMode = 1
	SecurityModeX509  SecurityMode = 2
	SecurityModeNoSec SecurityMode = 3
)

// String returns the mode name.
func (m SecurityMode) String() string {
	switch m {
	case SecurityModePSK:
		return "PSK"
	case SecurityModeRPK:
		return "RPK"
	case SecurityModeX509:
		return "X509"
	case SecurityModeNoSec:
		return "NO_SEC"
	default:
		return "UNKNOWN"
	}
}

// SecurityInstance holds the credentials for one server. The instance with
// the bootstrap flag set describes the bootstrap server.
type SecurityInstance struct {
	baseInstance

	mu                  sync.RWMutex
	serverURI           string
	bootstrapServer     bool
	mode                SecurityMode
	publicKeyOrIdentity []byte
	secretKey           []byte
	shortServerID       uint16
}

// SecurityConfig holds the initial values of a Security instance.
type SecurityConfig struct {
	ServerURI           string
	BootstrapServer     bool
	Mode                SecurityMode
	PublicKeyOrIdentity []byte
	SecretKey           []byte
	ShortServerID       uint16
}

// NewSecurityInstance creates a Security object instance.
func NewSecurityInstance(cfg SecurityConfig) *SecurityInstance {
	return &SecurityInstance{
		serverURI:           cfg.ServerURI,
		bootstrapServer:     cfg.BootstrapServer,
		mode:                cfg.Mode,
		publicKeyOrIdentity: bytes.Clone(cfg.PublicKeyOrIdentity),
		secretKey:           bytes.Clone(cfg.SecretKey),
		shortServerID:       cfg.ShortServerID,
	}
}

// NewBootstrapSecurityInstance creates the Security instance describing an
// unsecured bootstrap server.
func NewBootstrapSecurityInstance(serverURI string) *SecurityInstance {
	return NewSecurityInstance(SecurityConfig{
		ServerURI:       serverURI,
		BootstrapServer: true,
		Mode:            SecurityModeNoSec,
	})
}

// IsBootstrapServer returns true if this instance describes the bootstrap server.
func (s *SecurityInstance) IsBootstrapServer() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bootstrapServer
}

// ServerURI returns the server URI.
func (s *SecurityInstance) ServerURI() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverURI
}

// Config returns a copy of the current values.
func (s *SecurityInstance) Config() SecurityConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SecurityConfig{
		ServerURI:           s.serverURI,
		BootstrapServer:     s.bootstrapServer,
		Mode:                s.mode,
		PublicKeyOrIdentity: bytes.Clone(s.publicKeyOrIdentity),
		SecretKey:           bytes.Clone(s.secretKey),
		ShortServerID:       s.shortServerID,
	}
}

// Read returns a Security resource. The secret key cannot be read.
func (s *SecurityInstance) Read(resourceID uint16) *wire.Response {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch resourceID {
	case ResSecurityServerURI:
		return wire.Content(wire.NewString(resourceID, s.serverURI))
	case ResSecurityBootstrapServer:
		return wire.Content(wire.NewBoolean(resourceID, s.bootstrapServer))
	case ResSecurityMode:
		return wire.Content(wire.NewInteger(resourceID, int64(s.mode)))
	case ResSecurityPublicKeyOrIdentity:
		return wire.Content(wire.NewOpaque(resourceID, bytes.Clone(s.publicKeyOrIdentity)))
	case ResSecurityShortServerID:
		return wire.Content(wire.NewInteger(resourceID, int64(s.shortServerID)))
	case ResSecuritySecretKey:
		return wire.MethodNotAllowed("write-only resource")
	default:
		return s.baseInstance.Read(resourceID)
	}
}

// Write updates a Security resource.
func (s *SecurityInstance) Write(resourceID uint16, value wire.Resource) *wire.Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resourceID {
	case ResSecurityServerURI:
		v, ok := value.StringValue()
		if !ok {
			return wire.BadRequest("invalid type")
		}
		s.serverURI = v
	case ResSecurityBootstrapServer:
		v, ok := value.BooleanValue()
		if !ok {
			return wire.BadRequest("invalid type")
		}
		s.bootstrapServer = v
	case ResSecurityMode:
		v, ok := value.IntegerValue()
		if !ok {
			return wire.BadRequest("invalid type")
		}
		if v < int64(SecurityModePSK) || v > int64(SecurityModeNoSec) {
			return wire.BadRequest("invalid value")
		}
		s.mode = SecurityMode(v)
	case ResSecurityPublicKeyOrIdentity:
		v, ok := value.OpaqueValue()
		if !ok {
			return wire.BadRequest("invalid type")
		}
		s.publicKeyOrIdentity = bytes.Clone(v)
	case ResSecuritySecretKey:
		v, ok := value.OpaqueValue()
		if !ok {
			return wire.BadRequest("invalid type")
		}
		s.secretKey = bytes.Clone(v)
	case ResSecurityShortServerID:
		v, ok := value.IntegerValue()
		if !ok {
			return wire.BadRequest("invalid type")
		}
		if v < 1 || v > 65534 {
			return wire.BadRequest("invalid value")
		}
		s.shortServerID = uint16(v)
	default:
		return s.baseInstance.Write(resourceID, value)
	}
	return wire.Changed()
}

// ResourceIDs lists the readable Security resources.
func (s *SecurityInstance) ResourceIDs() []uint16 {
	return []uint16{
		ResSecurityServerURI,
		ResSecurityBootstrapServer,
		ResSecurityMode,
		ResSecurityPublicKeyOrIdentity,
		ResSecurityShortServerID,
	}
}

var _ Instance = (*SecurityInstance)(nil)
