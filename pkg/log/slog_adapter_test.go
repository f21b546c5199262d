package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

func captureSlog(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterMessageEvent(t *testing.T) {
	code := wire.CodeBadRequest
	entry := captureSlog(t, Event{
		Timestamp:  time.Now(),
		SessionID:  "s-1",
		Direction:  DirectionOut,
		Layer:      LayerMessage,
		Category:   CategoryMessage,
		RemoteAddr: "10.0.0.2:5683",
		Message: &MessageEvent{
			Type:      MessageTypeResponse,
			RequestID: "req-1",
			Operation: wire.OpBootstrapFinish,
			Code:      &code,
			Reason:    "not from a bootstrap server",
		},
	})

	want := map[string]any{
		"msg":        "protocol",
		"session_id": "s-1",
		"direction":  "OUT",
		"remote":     "10.0.0.2:5683",
		"msg_type":   "RESPONSE",
		"operation":  "BootstrapFinish",
		"code":       "4.00 BAD_REQUEST",
		"reason":     "not from a bootstrap server",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s: got %v, want %v", k, entry[k], v)
		}
	}
}

func TestSlogAdapterStateAndErrorEvents(t *testing.T) {
	entry := captureSlog(t, Event{
		Layer:       LayerSession,
		Category:    CategoryState,
		StateChange: &StateChangeEvent{Entity: StateEntitySession, OldState: "ACTIVE", NewState: "FINISHED"},
	})
	if entry["old_state"] != "ACTIVE" || entry["new_state"] != "FINISHED" {
		t.Errorf("state attrs = %v / %v", entry["old_state"], entry["new_state"])
	}
	if _, ok := entry["session_id"]; ok {
		t.Error("empty session_id should be omitted")
	}

	entry = captureSlog(t, Event{
		Layer:    LayerSession,
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerSession, Message: "boom", Context: "bootstrap delete", Path: "/0/3"},
	})
	if entry["error_msg"] != "boom" || entry["error_path"] != "/0/3" {
		t.Errorf("error attrs = %v / %v", entry["error_msg"], entry["error_path"])
	}
}
