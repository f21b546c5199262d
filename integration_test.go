package lwm2m_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwm2m-go/lwm2m-client/pkg/bootstrap"
	"github.com/lwm2m-go/lwm2m-client/pkg/config"
	"github.com/lwm2m-go/lwm2m-client/pkg/identity"
	"github.com/lwm2m-go/lwm2m-client/pkg/log"
	"github.com/lwm2m-go/lwm2m-client/pkg/objects"
	"github.com/lwm2m-go/lwm2m-client/pkg/persistence"
	"github.com/lwm2m-go/lwm2m-client/pkg/service"
	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

const clientYAML = `
endpoint: urn:dev:os:e2e-0001
bootstrap:
  server: 192.0.2.10:5683
  timeout: 2s
  max_attempts: 2
backoff:
  initial: 10ms
  max: 20ms
security:
  - instance: 0
    uri: coap://192.0.2.10:5683
    bootstrap_server: true
  - instance: 1
    uri: coaps://dm.example:5684
    mode: psk
    identity: e2e-0001
    secret_key: "00112233"
    short_server_id: 101
servers:
  - instance: 0
    short_server_id: 101
    lifetime: 300
`

// e2eClient is a client assembled from configuration the way lwm2m-client
// does it.
type e2eClient struct {
	cfg      *config.Config
	store    *objects.Store
	session  *bootstrap.Handler
	requests *service.RequestHandler
	engine   *service.BootstrapEngine
	logPath  string
	logger   *log.FileLogger
}

func newE2EClient(t *testing.T, dir string, requester service.BootstrapRequester) *e2eClient {
	t.Helper()

	cfg, err := config.Parse([]byte(clientYAML))
	require.NoError(t, err)
	cfg.StatePath = filepath.Join(dir, "state.json")
	cfg.ProtocolLog = filepath.Join(dir, "client.llog")
	require.NoError(t, cfg.Validate())

	fl, err := log.NewFileLogger(cfg.ProtocolLog)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fl.Close() })

	stateStore := persistence.NewClientStateStore(cfg.StatePath)
	store := objects.NewStore()
	state, err := stateStore.Load()
	require.NoError(t, err)
	if state != nil {
		require.NoError(t, store.Restore(state))
	} else {
		require.NoError(t, cfg.Populate(store))
	}

	server, err := cfg.BootstrapIdentity()
	require.NoError(t, err)

	session := bootstrap.NewHandler(store, bootstrap.Config{ProtocolLogger: fl, Endpoint: cfg.Endpoint})

	svcConfig := service.DefaultClientConfig()
	svcConfig.Endpoint = cfg.Endpoint
	svcConfig.BootstrapServer = server
	svcConfig.BootstrapTimeout = cfg.Bootstrap.Timeout
	svcConfig.MaxAttempts = cfg.Bootstrap.MaxAttempts
	svcConfig.Backoff = cfg.Backoff
	svcConfig.StateStore = stateStore
	svcConfig.ProtocolLogger = fl

	engine, err := service.NewBootstrapEngine(svcConfig, session, store, requester)
	require.NoError(t, err)

	return &e2eClient{
		cfg:      cfg,
		store:    store,
		session:  session,
		requests: service.NewRequestHandler(session, store, cfg.Endpoint, nil, fl),
		engine:   engine,
		logPath:  cfg.ProtocolLog,
		logger:   fl,
	}
}

// bootstrapServer answers a bootstrap request: it wipes the client's
// configuration and finishes the session, reaching the client from a
// different source port than the one it was contacted on.
type bootstrapServer struct {
	client *e2eClient
	peer   identity.Identity

	mu        sync.Mutex
	responses []*wire.Response
}

func (s *bootstrapServer) RequestBootstrap(_ context.Context, server identity.Identity, endpoint string) error {
	go func() {
		time.Sleep(5 * time.Millisecond)
		for _, req := range []*wire.Request{
			{Operation: wire.OpBootstrapDelete},
			{Operation: wire.OpBootstrapFinish},
		} {
			resp := s.client.requests.HandleRequest(s.peer, req)
			s.mu.Lock()
			s.responses = append(s.responses, resp)
			s.mu.Unlock()
		}
	}()
	return nil
}

func (s *bootstrapServer) codes() []wire.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]wire.Code, len(s.responses))
	for i, r := range s.responses {
		codes[i] = r.Code
	}
	return codes
}

// TestE2E_BootstrapAndRestart runs a full client-initiated bootstrap,
// checks the persisted state and the protocol log, then restarts the
// client from the saved state.
func TestE2E_BootstrapAndRestart(t *testing.T) {
	dir := t.TempDir()

	bs := &bootstrapServer{peer: identity.MustParse("192.0.2.10:40001")}
	client := newE2EClient(t, dir, bs)
	bs.client = client

	require.Len(t, client.store.InstanceIDs(wire.ObjectSecurity), 2)
	require.Len(t, client.store.InstanceIDs(wire.ObjectServer), 1)

	require.NoError(t, client.engine.Bootstrap(context.Background()))
	require.Eventually(t, func() bool { return len(bs.codes()) == 2 }, time.Second, time.Millisecond)

	assert.Equal(t, []wire.Code{wire.CodeDeleted, wire.CodeChanged}, bs.codes())
	assert.Equal(t, []uint16{0}, client.store.InstanceIDs(wire.ObjectSecurity), "bootstrap server security survives")
	assert.Empty(t, client.store.InstanceIDs(wire.ObjectServer))
	assert.False(t, client.session.IsActive())
	require.NoError(t, client.logger.Close())

	// The log holds one session, opened and cancelled around the two
	// requests.
	sessionLayer := log.LayerSession
	r, err := log.NewFilteredReader(client.logPath, log.Filter{Layer: &sessionLayer})
	require.NoError(t, err)
	transitions, err := r.ReadAll()
	require.NoError(t, err)
	require.NoError(t, r.Close())

	var states []string
	for _, e := range transitions {
		require.NotNil(t, e.StateChange)
		states = append(states, e.StateChange.NewState)
	}
	assert.Equal(t, []string{"ACTIVE", "FINISHED", "IDLE"}, states)

	sessionID := transitions[0].SessionID
	require.NotEmpty(t, sessionID)

	r, err = log.NewFilteredReader(client.logPath, log.Filter{SessionID: sessionID})
	require.NoError(t, err)
	sessionEvents, err := r.ReadAll()
	require.NoError(t, err)
	require.NoError(t, r.Close())

	var ops []wire.Operation
	for _, e := range sessionEvents {
		if e.Message != nil && e.Message.Type == log.MessageTypeResponse {
			ops = append(ops, e.Message.Operation)
		}
	}
	assert.Equal(t, []wire.Operation{wire.OpBootstrapDelete, wire.OpBootstrapFinish}, ops)

	// Restart from the saved state.
	restarted := newE2EClient(t, dir, service.BootstrapRequesterFunc(func(context.Context, identity.Identity, string) error {
		return nil
	}))
	assert.Equal(t, []uint16{0}, restarted.store.InstanceIDs(wire.ObjectSecurity))
	assert.Empty(t, restarted.store.InstanceIDs(wire.ObjectServer))
	bsID, ok := restarted.store.BootstrapSecurityInstance()
	assert.True(t, ok)
	assert.Equal(t, uint16(0), bsID)

	state, err := persistence.NewClientStateStore(client.cfg.StatePath).Load()
	require.NoError(t, err)
	assert.False(t, state.BootstrappedAt.IsZero())
}

// TestE2E_StrangerCannotHijackSession floods the client with bootstrap
// requests from another host while a session is open.
func TestE2E_StrangerCannotHijackSession(t *testing.T) {
	dir := t.TempDir()
	stranger := identity.MustParse("198.51.100.7:5683")

	client := newE2EClient(t, dir, service.BootstrapRequesterFunc(func(context.Context, identity.Identity, string) error {
		return nil
	}))

	server, err := client.cfg.BootstrapIdentity()
	require.NoError(t, err)
	require.True(t, client.session.Open(server))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, op := range []wire.Operation{wire.OpBootstrapDelete, wire.OpBootstrapFinish} {
				resp := client.requests.HandleRequest(stranger, &wire.Request{Operation: op})
				assert.False(t, resp.IsSuccess())
			}
		}()
	}
	wg.Wait()

	assert.Len(t, client.store.InstanceIDs(wire.ObjectServer), 1)
	assert.False(t, client.session.WaitForCompletion(context.Background(), 10*time.Millisecond))
	assert.Equal(t, bootstrap.StateActive, client.session.State())

	client.session.Cancel()
}
