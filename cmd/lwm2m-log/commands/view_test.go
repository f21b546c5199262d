package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lwm2m-go/lwm2m-client/pkg/log"
	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.llog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

// bootstrapSession returns the events of one finished bootstrap session.
func bootstrapSession(sessionID string, ts time.Time) []log.Event {
	changed := wire.CodeChanged
	elapsed := 150 * time.Microsecond
	return []log.Event{
		{
			Timestamp: ts, SessionID: sessionID, Direction: log.DirectionNone,
			Layer: log.LayerSession, Category: log.CategoryState, RemoteAddr: "192.0.2.10:5683",
			StateChange: &log.StateChangeEvent{Entity: log.StateEntitySession, OldState: "IDLE", NewState: "ACTIVE", Reason: "opened"},
		},
		{
			Timestamp: ts.Add(time.Second), SessionID: sessionID, Direction: log.DirectionIn,
			Layer: log.LayerMessage, Category: log.CategoryMessage, RemoteAddr: "192.0.2.10:5683",
			Message: &log.MessageEvent{Type: log.MessageTypeRequest, RequestID: "req-1", Operation: wire.OpBootstrapFinish, Path: "/"},
		},
		{
			Timestamp: ts.Add(time.Second), SessionID: sessionID, Direction: log.DirectionOut,
			Layer: log.LayerMessage, Category: log.CategoryMessage, RemoteAddr: "192.0.2.10:5683",
			Message: &log.MessageEvent{
				Type: log.MessageTypeResponse, RequestID: "req-1", Operation: wire.OpBootstrapFinish, Path: "/",
				Code: &changed, ProcessingTime: &elapsed,
			},
		},
		{
			Timestamp: ts.Add(time.Second), SessionID: sessionID, Direction: log.DirectionNone,
			Layer: log.LayerSession, Category: log.CategoryState, RemoteAddr: "192.0.2.10:5683",
			StateChange: &log.StateChangeEvent{Entity: log.StateEntitySession, OldState: "ACTIVE", NewState: "FINISHED"},
		},
	}
}

func TestViewFormatsEvents(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	path := createTestLogFile(t, bootstrapSession("5f0c2b7e-1111-2222-3333-444455556666", ts))

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"2026-03-02T09:30:00.000000Z [session:5f0c2b7e] -   SESSION State",
		"IDLE -> ACTIVE",
		"Reason: opened",
		"IN  MESSAGE REQUEST",
		"Operation: BootstrapFinish /",
		"Code: 2.04",
		"Duration: 150.000us",
		"Peer: 192.0.2.10:5683",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestViewFilters(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	events := append(bootstrapSession("aaaaaaaa-1", ts), bootstrapSession("bbbbbbbb-2", ts.Add(time.Minute))...)
	path := createTestLogFile(t, events)

	out := func(f ViewFilter) string {
		var buf bytes.Buffer
		if err := RunView(path, f, &buf); err != nil {
			t.Fatalf("RunView failed: %v", err)
		}
		return buf.String()
	}

	dir := log.DirectionOut
	got := out(ViewFilter{Direction: &dir})
	if n := strings.Count(got, "OUT MESSAGE RESPONSE"); n != 2 {
		t.Errorf("direction filter: got %d responses, want 2\n%s", n, got)
	}
	if strings.Contains(got, "REQUEST") {
		t.Error("direction filter let requests through")
	}

	got = out(ViewFilter{SessionID: "bbbbbbbb-2"})
	if strings.Contains(got, "[session:aaaaaaaa]") {
		t.Error("session filter let other session through")
	}
	if n := strings.Count(got, "[session:bbbbbbbb]"); n != 4 {
		t.Errorf("session filter: got %d events, want 4", n)
	}

	cat := log.CategoryState
	got = out(ViewFilter{Category: &cat})
	if n := strings.Count(got, "State\n"); n != 4 {
		t.Errorf("category filter: got %d state events, want 4", n)
	}
}

func TestViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := RunView(filepath.Join(t.TempDir(), "nope.llog"), ViewFilter{}, &buf); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("Session"); err != nil || l != log.LayerSession {
		t.Errorf("ParseLayerFlag(Session) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("wire"); err == nil {
		t.Error("ParseLayerFlag(wire) should fail")
	}
	if d, err := ParseDirectionFlag("OUT"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag(OUT) = %v, %v", d, err)
	}
	if _, err := ParseDirectionFlag("sideways"); err == nil {
		t.Error("ParseDirectionFlag(sideways) should fail")
	}
	if c, err := ParseCategoryFlag("error"); err != nil || c != log.CategoryError {
		t.Errorf("ParseCategoryFlag(error) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("control"); err == nil {
		t.Error("ParseCategoryFlag(control) should fail")
	}
}
