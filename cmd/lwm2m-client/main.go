// Command lwm2m-client is a reference LwM2M client that runs client-initiated
// bootstrap against a configured bootstrap server.
//
// Usage:
//
//	lwm2m-client [flags]
//
// Flags:
//
//	-c, --config string            Configuration file path (YAML)
//	    --endpoint string          Client endpoint name
//	    --bootstrap-server string  Bootstrap server address (host:port)
//	    --timeout duration         Wait for Bootstrap-Finish per attempt
//	    --state string             State file; empty disables persistence
//	    --protocol-log string      CBOR protocol log file
//	    --log-level string         Log level: debug, info, warn, error
//	    --reset                    Clear persisted state before starting
//	-i, --interactive              Enable the interactive console
//
// Examples:
//
//	# Bootstrap from a local server and keep the result
//	lwm2m-client --endpoint urn:dev:os:0001 --bootstrap-server 127.0.0.1:5683 --state state.json
//
//	# Play the bootstrap server by hand
//	lwm2m-client -c client.yaml -i
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/lwm2m-go/lwm2m-client/cmd/lwm2m-client/interactive"
	"github.com/lwm2m-go/lwm2m-client/pkg/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("lwm2m-client", pflag.ContinueOnError)
	opts := registerFlags(fs)

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg, err := loadConfig(fs, opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var console *interactive.Console
	var logOutput io.Writer = os.Stderr
	if opts.interactive {
		console, err = interactive.New()
		if err != nil {
			return err
		}
		// Route log output through readline to keep the prompt intact.
		logOutput = console.Stdout()
	}
	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	c, err := newClient(cfg, logger, opts.reset)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("lwm2m client ready",
		"endpoint", cfg.Endpoint,
		"bootstrap_server", cfg.Bootstrap.Server,
		"bootstrapped", c.bootstrapped)

	if console != nil {
		console.Attach(c.Client)
		go console.Run(ctx, cancel)
	} else if !c.bootstrapped {
		go func() {
			if err := c.Engine.Bootstrap(ctx); err != nil {
				logger.Error("bootstrap failed", "error", err)
				return
			}
			logger.Info("bootstrap complete")
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	cancel()
	c.Session.Cancel()
	return nil
}

type options struct {
	configFile  string
	endpoint    string
	server      string
	statePath   string
	protocolLog string
	logLevel    string
	interactive bool
	reset       bool
}

func registerFlags(fs *pflag.FlagSet) *options {
	opts := &options{}
	fs.StringVarP(&opts.configFile, "config", "c", "", "Configuration file path (YAML)")
	fs.StringVar(&opts.endpoint, "endpoint", "", "Client endpoint name")
	fs.StringVar(&opts.server, "bootstrap-server", "", "Bootstrap server address (host:port)")
	fs.Duration("timeout", config.DefaultBootstrapTimeout, "Wait for Bootstrap-Finish per attempt")
	fs.StringVar(&opts.statePath, "state", "", "State file; empty disables persistence")
	fs.StringVar(&opts.protocolLog, "protocol-log", "", "CBOR protocol log file")
	fs.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	fs.BoolVar(&opts.reset, "reset", false, "Clear persisted state before starting")
	fs.BoolVarP(&opts.interactive, "interactive", "i", false, "Enable the interactive console")
	return opts
}

// loadConfig reads the configuration file, if any, and applies the flags
// that were set explicitly on top of it.
func loadConfig(fs *pflag.FlagSet, opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configFile != "" {
		loaded, err := config.Load(opts.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if fs.Changed("endpoint") {
		cfg.Endpoint = opts.endpoint
	}
	if fs.Changed("bootstrap-server") {
		cfg.Bootstrap.Server = opts.server
	}
	if fs.Changed("timeout") {
		timeout, err := fs.GetDuration("timeout")
		if err != nil {
			return nil, err
		}
		cfg.Bootstrap.Timeout = timeout
	}
	if fs.Changed("state") {
		cfg.StatePath = opts.statePath
	}
	if fs.Changed("protocol-log") {
		cfg.ProtocolLog = opts.protocolLog
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
