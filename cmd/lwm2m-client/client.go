package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lwm2m-go/lwm2m-client/cmd/lwm2m-client/interactive"
	"github.com/lwm2m-go/lwm2m-client/pkg/bootstrap"
	"github.com/lwm2m-go/lwm2m-client/pkg/config"
	"github.com/lwm2m-go/lwm2m-client/pkg/identity"
	"github.com/lwm2m-go/lwm2m-client/pkg/log"
	"github.com/lwm2m-go/lwm2m-client/pkg/objects"
	"github.com/lwm2m-go/lwm2m-client/pkg/persistence"
	"github.com/lwm2m-go/lwm2m-client/pkg/service"
)

// recentEvents is how many protocol events the console can show.
const recentEvents = 200

// client is the assembled client plus the resources main must release.
type client struct {
	*interactive.Client

	// bootstrapped is true if the object store was restored from a
	// previous bootstrap.
	bootstrapped bool

	fileLogger *log.FileLogger
}

// newClient builds the object store, session coordinator, request handler
// and bootstrap engine from cfg.
func newClient(cfg *config.Config, logger *slog.Logger, reset bool) (*client, error) {
	c := &client{}

	recent := log.NewRecorder(recentEvents)
	loggers := []log.Logger{recent, log.NewSlogAdapter(logger)}
	if cfg.ProtocolLog != "" {
		fl, err := log.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return nil, fmt.Errorf("open protocol log: %w", err)
		}
		c.fileLogger = fl
		loggers = append(loggers, fl)
	}
	protocolLogger := log.NewMultiLogger(loggers...)

	var stateStore *persistence.ClientStateStore
	if cfg.StatePath != "" {
		stateStore = persistence.NewClientStateStore(cfg.StatePath)
		if reset {
			logger.Info("resetting persisted state", "path", cfg.StatePath)
			if err := stateStore.Clear(); err != nil {
				logger.Warn("failed to clear state", "error", err)
			}
		}
	}

	store, restored, err := loadStore(cfg, stateStore, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.bootstrapped = restored

	store.OnDelete(func(objectID, instanceID uint16, origin identity.Identity) {
		logger.Debug("instance deleted", "object", objectID, "instance", instanceID, "origin", origin)
	})

	server, err := cfg.BootstrapIdentity()
	if err != nil {
		c.Close()
		return nil, err
	}

	session := bootstrap.NewHandler(store, bootstrap.Config{
		Logger:         logger,
		ProtocolLogger: protocolLogger,
		Endpoint:       cfg.Endpoint,
	})

	svcConfig := service.DefaultClientConfig()
	svcConfig.Endpoint = cfg.Endpoint
	svcConfig.BootstrapServer = server
	svcConfig.BootstrapTimeout = cfg.Bootstrap.Timeout
	svcConfig.MaxAttempts = cfg.Bootstrap.MaxAttempts
	svcConfig.Backoff = cfg.Backoff
	svcConfig.StateStore = stateStore
	svcConfig.Logger = logger
	svcConfig.ProtocolLogger = protocolLogger

	engine, err := service.NewBootstrapEngine(svcConfig, session, store, logRequester(logger))
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Client = &interactive.Client{
		Session:         session,
		Requests:        service.NewRequestHandler(session, store, cfg.Endpoint, logger, protocolLogger),
		Engine:          engine,
		Store:           store,
		Recent:          recent,
		BootstrapServer: server,
	}
	return c, nil
}

// loadStore restores the object store from the state file, falling back to
// the configured instances. It reports whether state was restored.
func loadStore(cfg *config.Config, stateStore *persistence.ClientStateStore, logger *slog.Logger) (*objects.Store, bool, error) {
	store := objects.NewStore()

	if stateStore != nil {
		state, err := stateStore.Load()
		switch {
		case err != nil:
			logger.Warn("failed to load state, using configuration", "path", stateStore.Path(), "error", err)
		case state != nil:
			if err := store.Restore(state); err != nil {
				return nil, false, fmt.Errorf("restore state: %w", err)
			}
			logger.Info("restored bootstrap state",
				"path", stateStore.Path(),
				"bootstrapped_at", state.BootstrappedAt,
				"servers", len(state.Servers))
			return store, true, nil
		}
	}

	if err := cfg.Populate(store); err != nil {
		return nil, false, err
	}
	return store, false, nil
}

// logRequester stands in for the transport: it only logs the bootstrap
// request. The session is then driven by whoever feeds requests to the
// request handler.
func logRequester(logger *slog.Logger) service.BootstrapRequester {
	return service.BootstrapRequesterFunc(func(_ context.Context, server identity.Identity, endpoint string) error {
		logger.Info("bootstrap request", "server", server, "endpoint", endpoint)
		return nil
	})
}

// Close releases the protocol log.
func (c *client) Close() {
	if c.fileLogger != nil {
		_ = c.fileLogger.Close()
	}
}
