// Package interactive provides the interactive console of lwm2m-client.
//
// The console lets a developer play the bootstrap server by hand: requests
// typed at the prompt are handed to the client exactly as the transport
// would hand them over.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/lwm2m-go/lwm2m-client/pkg/bootstrap"
	"github.com/lwm2m-go/lwm2m-client/pkg/identity"
	"github.com/lwm2m-go/lwm2m-client/pkg/log"
	"github.com/lwm2m-go/lwm2m-client/pkg/objects"
	"github.com/lwm2m-go/lwm2m-client/pkg/service"
	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

// localPeer is the origin of requests typed without a peer argument.
var localPeer = identity.MustParse("127.0.0.1")

// Client bundles the components the console drives.
type Client struct {
	Session  *bootstrap.Handler
	Requests *service.RequestHandler
	Engine   *service.BootstrapEngine
	Store    *objects.Store

	// Recent holds the latest protocol events. Optional.
	Recent *log.Recorder

	// BootstrapServer is the configured bootstrap server. Commands that take
	// a peer fall back to it when the argument is omitted.
	BootstrapServer identity.Identity
}

// Console handles interactive mode for lwm2m-client.
type Console struct {
	rl     *readline.Instance
	out    io.Writer
	client *Client

	// cancelBootstrap stops a bootstrap started with the bootstrap command.
	cancelBootstrap context.CancelFunc
}

// New creates a console reading from the terminal.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "lwm2m> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, out: rl.Stdout()}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Attach binds the console to client and subscribes to its events.
func (c *Console) Attach(client *Client) {
	c.client = client
	client.Engine.OnEvent(c.handleEvent)
	client.Session.OnStateChange(func(oldState, newState bootstrap.SessionState) {
		fmt.Fprintf(c.out, "[SESSION] %s -> %s\n", oldState, newState)
	})
}

// Run starts the interactive command loop. It calls cancel when the user
// quits or input ends.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			c.stopBootstrap()
			cancel()
			return
		}

		if !c.Execute(ctx, line) {
			c.stopBootstrap()
			cancel()
			return
		}
	}
}

// Execute runs one command line. It returns false when the user asked to
// quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "status", "s":
		c.cmdStatus()
	case "objects", "o":
		c.cmdObjects()
	case "read", "r":
		c.cmdRead(args)
	case "write", "w":
		c.cmdWrite(args)
	case "exec", "x":
		c.cmdExec(args)
	case "bootstrap", "bs":
		c.cmdBootstrap(ctx)
	case "open":
		c.cmdOpen(args)
	case "finish", "f":
		c.cmdFinish(args)
	case "delete", "d":
		c.cmdDelete(args)
	case "wait":
		c.cmdWait(ctx, args)
	case "cancel":
		c.cmdCancel()
	case "log", "l":
		c.cmdLog(args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
LwM2M Client Commands:
  Objects:
    objects                   - List Security and Server instances
    read <path>               - Read a resource, e.g. read /1/0/1
    write <path> <value>      - Write a resource (integer, true/false or string)
    exec <path> [params]      - Execute a resource

  Bootstrap (acting as the bootstrap server):
    bootstrap                 - Run a client-initiated bootstrap in the background
    open [peer]               - Open a session for peer
    delete [peer] [path]      - Send Bootstrap-Delete, or Delete of an instance path
    finish [peer]             - Send Bootstrap-Finish
    wait [timeout|unbounded]  - Wait for the session to finish (default 10s)
    cancel                    - Cancel the session

  General:
    status                    - Show session and engine state
    log [n]                   - Show the last n protocol events (default 20)
    help                      - Show this help
    quit                      - Exit

  Peers are host:port or a bare IP and default to the configured bootstrap
  server.`)
}

func (c *Console) cmdStatus() {
	s := c.client.Session
	fmt.Fprintf(c.out, "Session:   %s\n", s.State())
	if id := s.SessionID(); id != "" {
		fmt.Fprintf(c.out, "  ID:        %s\n", id)
	}
	if authority, ok := s.Authority(); ok {
		fmt.Fprintf(c.out, "  Authority: %s\n", authority)
	}

	e := c.client.Engine
	fmt.Fprintf(c.out, "Engine:    %s\n", e.State())
	if at := e.BootstrappedAt(); !at.IsZero() {
		fmt.Fprintf(c.out, "  Bootstrapped at: %s\n", at.Format(time.RFC3339))
	}
	fmt.Fprintf(c.out, "Bootstrap server: %s\n", c.client.BootstrapServer)
}

func (c *Console) cmdObjects() {
	store := c.client.Store
	bsID, hasBS := store.BootstrapSecurityInstance()

	fmt.Fprintln(c.out, "Security (/0):")
	ids := store.InstanceIDs(wire.ObjectSecurity)
	if len(ids) == 0 {
		fmt.Fprintln(c.out, "  (none)")
	}
	for _, id := range ids {
		inst, err := store.Instance(wire.ObjectSecurity, id)
		if err != nil {
			continue
		}
		sec := inst.(*objects.SecurityInstance)
		marker := ""
		if hasBS && id == bsID {
			marker = "  [bootstrap]"
		}
		fmt.Fprintf(c.out, "  /0/%d  %s  %s%s\n", id, sec.ServerURI(), sec.Config().Mode, marker)
	}

	fmt.Fprintln(c.out, "Server (/1):")
	ids = store.InstanceIDs(wire.ObjectServer)
	if len(ids) == 0 {
		fmt.Fprintln(c.out, "  (none)")
	}
	for _, id := range ids {
		inst, err := store.Instance(wire.ObjectServer, id)
		if err != nil {
			continue
		}
		srv := inst.(*objects.ServerInstance)
		fmt.Fprintf(c.out, "  /1/%d  ssid=%d lifetime=%ds binding=%s\n",
			id, srv.ShortServerID(), srv.Lifetime(), srv.Binding())
	}
}

func (c *Console) cmdRead(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: read <path>")
		return
	}
	path, err := wire.ParsePath(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid path: %v\n", err)
		return
	}
	c.send(localPeer, &wire.Request{Operation: wire.OpRead, Path: path})
}

func (c *Console) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: write <path> <value>")
		return
	}
	path, err := wire.ParsePath(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid path: %v\n", err)
		return
	}
	if !path.IsResource() {
		fmt.Fprintln(c.out, "Write needs a resource path, e.g. /1/0/1")
		return
	}
	value := parseValue(*path.ResourceID, strings.Join(args[1:], " "))
	c.send(localPeer, &wire.Request{Operation: wire.OpWrite, Path: path, Value: &value})
}

func (c *Console) cmdExec(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: exec <path> [params]")
		return
	}
	path, err := wire.ParsePath(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid path: %v\n", err)
		return
	}
	c.send(localPeer, &wire.Request{Operation: wire.OpExecute, Path: path, Params: strings.Join(args[1:], " ")})
}

func (c *Console) cmdBootstrap(ctx context.Context) {
	if c.client.Session.IsActive() {
		fmt.Fprintln(c.out, "A session is already open")
		return
	}

	bctx, cancel := context.WithCancel(ctx)
	c.stopBootstrap()
	c.cancelBootstrap = cancel

	go func() {
		defer cancel()
		if err := c.client.Engine.Bootstrap(bctx); err != nil {
			fmt.Fprintf(c.out, "Bootstrap failed: %v\n", err)
			return
		}
		fmt.Fprintln(c.out, "Bootstrap complete")
	}()
	fmt.Fprintf(c.out, "Bootstrap started, waiting for %s\n", c.client.BootstrapServer)
}

func (c *Console) cmdOpen(args []string) {
	peer, _, ok := c.peerArg(args)
	if !ok {
		return
	}
	if !c.client.Session.Open(peer) {
		fmt.Fprintln(c.out, "A session is already open")
		return
	}
	fmt.Fprintf(c.out, "Session %s opened for %s\n", c.client.Session.SessionID(), peer)
}

func (c *Console) cmdFinish(args []string) {
	peer, _, ok := c.peerArg(args)
	if !ok {
		return
	}
	c.send(peer, &wire.Request{Operation: wire.OpBootstrapFinish})
}

func (c *Console) cmdDelete(args []string) {
	peer, rest, ok := c.peerArg(args)
	if !ok {
		return
	}
	if len(rest) == 0 {
		c.send(peer, &wire.Request{Operation: wire.OpBootstrapDelete})
		return
	}
	path, err := wire.ParsePath(rest[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid path: %v\n", err)
		return
	}
	c.send(peer, &wire.Request{Operation: wire.OpDelete, Path: path})
}

func (c *Console) cmdWait(ctx context.Context, args []string) {
	timeout := 10 * time.Second
	if len(args) > 0 {
		if args[0] == "unbounded" {
			timeout = bootstrap.WaitUnbounded
		} else {
			d, err := time.ParseDuration(args[0])
			if err != nil {
				fmt.Fprintf(c.out, "Invalid timeout: %v\n", err)
				return
			}
			timeout = d
		}
	}

	if c.client.Session.WaitForCompletion(ctx, timeout) {
		fmt.Fprintln(c.out, "Session finished")
	} else {
		fmt.Fprintln(c.out, "Session not finished")
	}
}

func (c *Console) cmdCancel() {
	if !c.client.Session.IsActive() {
		fmt.Fprintln(c.out, "No session open")
		return
	}
	c.client.Session.Cancel()
	fmt.Fprintln(c.out, "Session cancelled")
}

func (c *Console) cmdLog(args []string) {
	if c.client.Recent == nil {
		fmt.Fprintln(c.out, "Protocol event recording is disabled")
		return
	}
	n := 20
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			fmt.Fprintf(c.out, "Invalid count: %s\n", args[0])
			return
		}
		n = v
	}

	events := c.client.Recent.Events()
	if len(events) > n {
		events = events[len(events)-n:]
	}
	for _, e := range events {
		fmt.Fprintln(c.out, formatEvent(e))
	}
}

// peerArg takes an optional leading peer from args. A first argument that
// starts with "/" is a path, not a peer.
func (c *Console) peerArg(args []string) (identity.Identity, []string, bool) {
	if len(args) == 0 || strings.HasPrefix(args[0], "/") {
		return c.client.BootstrapServer, args, true
	}
	peer, err := identity.ParseIdentity(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid peer: %v\n", err)
		return identity.Identity{}, nil, false
	}
	return peer, args[1:], true
}

func (c *Console) send(peer identity.Identity, req *wire.Request) {
	resp := c.client.Requests.HandleRequest(peer, req)
	if resp.Value != nil {
		fmt.Fprintf(c.out, "%s %s = %s\n", resp.Code, req.Path, formatValue(*resp.Value))
		return
	}
	if resp.Reason != "" {
		fmt.Fprintf(c.out, "%s (%s)\n", resp.Code, resp.Reason)
		return
	}
	fmt.Fprintln(c.out, resp.Code)
}

func (c *Console) stopBootstrap() {
	if c.cancelBootstrap != nil {
		c.cancelBootstrap()
		c.cancelBootstrap = nil
	}
}

func (c *Console) handleEvent(event service.Event) {
	switch event.Type {
	case service.EventBootstrapStarted:
		fmt.Fprintf(c.out, "[EVENT] Bootstrap attempt %d started (session %s)\n", event.Attempt, event.SessionID)
	case service.EventBootstrapFinished:
		fmt.Fprintf(c.out, "[EVENT] Bootstrap finished (session %s)\n", event.SessionID)
	case service.EventBootstrapTimeout:
		fmt.Fprintf(c.out, "[EVENT] Bootstrap attempt %d timed out\n", event.Attempt)
	case service.EventBootstrapFailed:
		fmt.Fprintf(c.out, "[EVENT] Bootstrap failed: %v\n", event.Error)
	}
}

// parseValue guesses the resource type from the typed text.
func parseValue(id uint16, s string) wire.Resource {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return wire.NewInteger(id, v)
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return wire.NewBoolean(id, v)
	}
	return wire.NewString(id, s)
}

func formatValue(r wire.Resource) string {
	switch v := r.Value.(type) {
	case []byte:
		return fmt.Sprintf("%x", v)
	case string:
		return strconv.Quote(v)
	default:
		return fmt.Sprint(v)
	}
}

// formatEvent renders a protocol event on one line.
func formatEvent(e log.Event) string {
	prefix := fmt.Sprintf("%s %-3s %-7s", e.Timestamp.Format("15:04:05.000"), e.Direction, e.Layer)
	switch {
	case e.Message != nil:
		m := e.Message
		line := fmt.Sprintf("%s %s %s %s", prefix, m.Type, m.Operation, m.Path)
		if m.Code != nil {
			line += " " + m.Code.String()
		}
		if e.RemoteAddr != "" {
			line += " peer=" + e.RemoteAddr
		}
		return line
	case e.StateChange != nil:
		return fmt.Sprintf("%s %s %s -> %s (%s)", prefix, e.StateChange.Entity, e.StateChange.OldState, e.StateChange.NewState, e.StateChange.Reason)
	case e.Error != nil:
		return fmt.Sprintf("%s ERROR %s: %s", prefix, e.Error.Path, e.Error.Message)
	default:
		return prefix
	}
}
