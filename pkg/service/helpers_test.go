package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lwm2m-go/lwm2m-client/pkg/bootstrap"
	"github.com/lwm2m-go/lwm2m-client/pkg/identity"
	"github.com/lwm2m-go/lwm2m-client/pkg/log"
	"github.com/lwm2m-go/lwm2m-client/pkg/objects"
	"github.com/lwm2m-go/lwm2m-client/pkg/service"
	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

const testEndpoint = "urn:dev:os:test-001"

var (
	bsServer = identity.MustParse("192.0.2.10:5683")
	stranger = identity.MustParse("198.51.100.7:5683")
)

type stubRequester struct{ mock.Mock }

func (r *stubRequester) RequestBootstrap(ctx context.Context, server identity.Identity, endpoint string) error {
	return r.Called(ctx, server, endpoint).Error(0)
}

// testClient bundles the pieces a client wires together.
type testClient struct {
	store    *objects.Store
	session  *bootstrap.Handler
	handler  *service.RequestHandler
	recorder *log.Recorder
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()

	store := objects.NewStore()
	require.NoError(t, store.AddInstance(wire.ObjectSecurity, 0, objects.NewBootstrapSecurityInstance("coap://192.0.2.10:5683")))
	require.NoError(t, store.AddInstance(wire.ObjectSecurity, 3, objects.NewSecurityInstance(objects.SecurityConfig{
		ServerURI:     "coaps://dm.example:5684",
		Mode:          objects.SecurityModePSK,
		SecretKey:     []byte{0x01},
		ShortServerID: 101,
	})))
	require.NoError(t, store.AddInstance(wire.ObjectServer, 10, objects.NewServerInstance(101, 300, objects.BindingU, false)))

	rec := log.NewRecorder(0)
	session := bootstrap.NewHandler(store, bootstrap.Config{ProtocolLogger: rec, Endpoint: testEndpoint})

	return &testClient{
		store:    store,
		session:  session,
		handler:  service.NewRequestHandler(session, store, testEndpoint, nil, rec),
		recorder: rec,
	}
}

func finishRequest() *wire.Request {
	return &wire.Request{Operation: wire.OpBootstrapFinish}
}
