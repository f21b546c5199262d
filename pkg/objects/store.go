package objects

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/lwm2m-go/lwm2m-client/pkg/identity"
	"github.com/lwm2m-go/lwm2m-client/pkg/persistence"
	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

// Store errors.
var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrInstanceNotFound = errors.New("instance not found")
	ErrInstanceExists   = errors.New("instance already exists")
	ErrWrongInstance    = errors.New("instance does not match object")
)

// Store holds the object instances of the client. It is safe for concurrent
// use.
type Store struct {
	mu      sync.RWMutex
	objects map[uint16]map[uint16]Instance

	onDelete func(objectID, instanceID uint16, origin identity.Identity)
}

// NewStore creates a store with empty Security and Server objects.
func NewStore() *Store {
	return &Store{
		objects: map[uint16]map[uint16]Instance{
			wire.ObjectSecurity: {},
			wire.ObjectServer:   {},
		},
	}
}

// OnDelete sets a callback run after an instance was deleted.
func (s *Store) OnDelete(fn func(objectID, instanceID uint16, origin identity.Identity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDelete = fn
}

// AddInstance registers an instance under objectID. Security instances must
// be *SecurityInstance and Server instances *ServerInstance.
func (s *Store) AddInstance(objectID, instanceID uint16, inst Instance) error {
	switch objectID {
	case wire.ObjectSecurity:
		if _, ok := inst.(*SecurityInstance); !ok {
			return fmt.Errorf("%w: /%d expects a Security instance", ErrWrongInstance, objectID)
		}
	case wire.ObjectServer:
		if _, ok := inst.(*ServerInstance); !ok {
			return fmt.Errorf("%w: /%d expects a Server instance", ErrWrongInstance, objectID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	instances, ok := s.objects[objectID]
	if !ok {
		instances = make(map[uint16]Instance)
		s.objects[objectID] = instances
	}
	if _, exists := instances[instanceID]; exists {
		return fmt.Errorf("%w: /%d/%d", ErrInstanceExists, objectID, instanceID)
	}
	instances[instanceID] = inst
	return nil
}

// Instance returns one instance.
func (s *Store) Instance(objectID, instanceID uint16) (Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instanceLocked(objectID, instanceID)
}

func (s *Store) instanceLocked(objectID, instanceID uint16) (Instance, error) {
	instances, ok := s.objects[objectID]
	if !ok {
		return nil, fmt.Errorf("%w: /%d", ErrObjectNotFound, objectID)
	}
	inst, ok := instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("%w: /%d/%d", ErrInstanceNotFound, objectID, instanceID)
	}
	return inst, nil
}

// ObjectIDs lists the registered objects in ascending order.
func (s *Store) ObjectIDs() []uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uint16, 0, len(s.objects))
	for id := range s.objects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// InstanceIDs lists the instances of an object in ascending order.
// Unknown objects have no instances.
func (s *Store) InstanceIDs(objectID uint16) []uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instances := s.objects[objectID]
	ids := make([]uint16, 0, len(instances))
	for id := range instances {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DeleteInstance removes an instance. origin is the peer that asked for it.
func (s *Store) DeleteInstance(objectID, instanceID uint16, origin identity.Identity) error {
	s.mu.Lock()
	if _, err := s.instanceLocked(objectID, instanceID); err != nil {
		s.mu.Unlock()
		return err
	}
	delete(s.objects[objectID], instanceID)
	fn := s.onDelete
	s.mu.Unlock()

	if fn != nil {
		fn(objectID, instanceID, origin)
	}
	return nil
}

// BootstrapSecurityInstance returns the id of the Security instance that
// describes the bootstrap server.
func (s *Store) BootstrapSecurityInstance() (uint16, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uint16, 0, len(s.objects[wire.ObjectSecurity]))
	for id := range s.objects[wire.ObjectSecurity] {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		if sec, ok := s.objects[wire.ObjectSecurity][id].(*SecurityInstance); ok && sec.IsBootstrapServer() {
			return id, true
		}
	}
	return 0, false
}

// Read dispatches a read to the addressed resource.
func (s *Store) Read(path wire.Path) *wire.Response {
	inst, resp := s.resolve(path)
	if resp != nil {
		return resp
	}
	return inst.Read(*path.ResourceID)
}

// Write dispatches a write to the addressed resource.
func (s *Store) Write(path wire.Path, value wire.Resource) *wire.Response {
	inst, resp := s.resolve(path)
	if resp != nil {
		return resp
	}
	return inst.Write(*path.ResourceID, value)
}

// Execute dispatches an execute to the addressed resource.
func (s *Store) Execute(path wire.Path, params string) *wire.Response {
	inst, resp := s.resolve(path)
	if resp != nil {
		return resp
	}
	return inst.Execute(*path.ResourceID, params)
}

func (s *Store) resolve(path wire.Path) (Instance, *wire.Response) {
	if !path.IsResource() {
		return nil, wire.BadRequest("resource path required")
	}
	inst, err := s.Instance(*path.ObjectID, *path.InstanceID)
	if err != nil {
		return nil, wire.NotFound(err.Error())
	}
	return inst, nil
}

// Snapshot captures the Security and Server instances for persistence.
func (s *Store) Snapshot() *persistence.ClientState {
	state := &persistence.ClientState{}

	for _, id := range s.InstanceIDs(wire.ObjectSecurity) {
		inst, err := s.Instance(wire.ObjectSecurity, id)
		if err != nil {
			continue
		}
		cfg := inst.(*SecurityInstance).Config()
		state.Security = append(state.Security, persistence.SecurityRecord{
			InstanceID:          id,
			ServerURI:           cfg.ServerURI,
			BootstrapServer:     cfg.BootstrapServer,
			SecurityMode:        int64(cfg.Mode),
			PublicKeyOrIdentity: cfg.PublicKeyOrIdentity,
			SecretKey:           cfg.SecretKey,
			ShortServerID:       cfg.ShortServerID,
		})
	}

	for _, id := range s.InstanceIDs(wire.ObjectServer) {
		inst, err := s.Instance(wire.ObjectServer, id)
		if err != nil {
			continue
		}
		srv := inst.(*ServerInstance)
		state.Servers = append(state.Servers, persistence.ServerRecord{
			InstanceID:        id,
			ShortServerID:     srv.ShortServerID(),
			Lifetime:          srv.Lifetime(),
			Binding:           string(srv.Binding()),
			NotifyWhenDisable: srv.NotifyWhenDisable(),
		})
	}

	return state
}

// Restore replaces the Security and Server instances with the persisted ones.
func (s *Store) Restore(state *persistence.ClientState) error {
	security := make(map[uint16]Instance, len(state.Security))
	for _, r := range state.Security {
		if _, dup := security[r.InstanceID]; dup {
			return fmt.Errorf("%w: /%d/%d", ErrInstanceExists, wire.ObjectSecurity, r.InstanceID)
		}
		security[r.InstanceID] = NewSecurityInstance(SecurityConfig{
			ServerURI:           r.ServerURI,
			BootstrapServer:     r.BootstrapServer,
			Mode:                SecurityMode(r.SecurityMode),
			PublicKeyOrIdentity: r.PublicKeyOrIdentity,
			SecretKey:           r.SecretKey,
			ShortServerID:       r.ShortServerID,
		})
	}

	servers := make(map[uint16]Instance, len(state.Servers))
	for _, r := range state.Servers {
		if _, dup := servers[r.InstanceID]; dup {
			return fmt.Errorf("%w: /%d/%d", ErrInstanceExists, wire.ObjectServer, r.InstanceID)
		}
		binding := BindingMode(r.Binding)
		if !binding.IsValid() {
			binding = BindingU
		}
		servers[r.InstanceID] = NewServerInstance(r.ShortServerID, r.Lifetime, binding, r.NotifyWhenDisable)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[wire.ObjectSecurity] = security
	s.objects[wire.ObjectServer] = servers
	return nil
}
