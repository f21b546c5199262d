package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

func TestEncodeDecodeMessageEvent(t *testing.T) {
	code := wire.CodeMethodNotAllowed
	processing := 1500 * time.Microsecond
	ts := time.Date(2026, 3, 1, 10, 30, 0, 123456789, time.UTC)

	event := Event{
		Timestamp:  ts,
		SessionID:  "9d7c1f2e",
		Direction:  DirectionOut,
		Layer:      LayerMessage,
		Category:   CategoryMessage,
		RemoteAddr: "10.0.0.1:5683",
		Message: &MessageEvent{
			Type:           MessageTypeResponse,
			RequestID:      "req-7",
			Operation:      wire.OpBootstrapDelete,
			Path:           "/",
			Code:           &code,
			Reason:         "not from a bootstrap server",
			ProcessingTime: &processing,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}

	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}

	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v (nanosecond precision)", got.Timestamp, ts)
	}
	if got.SessionID != event.SessionID || got.RemoteAddr != event.RemoteAddr {
		t.Errorf("identifiers = (%q, %q)", got.SessionID, got.RemoteAddr)
	}
	if got.Message == nil {
		t.Fatal("Message is nil")
	}
	if got.Message.Operation != wire.OpBootstrapDelete {
		t.Errorf("Operation = %v", got.Message.Operation)
	}
	if got.Message.Code == nil || *got.Message.Code != code {
		t.Errorf("Code = %v, want %v", got.Message.Code, code)
	}
	if got.Message.ProcessingTime == nil || *got.Message.ProcessingTime != processing {
		t.Errorf("ProcessingTime = %v, want %v", got.Message.ProcessingTime, processing)
	}
	if got.StateChange != nil || got.Error != nil {
		t.Error("unexpected payloads decoded")
	}
}

func TestEncoderStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	states := []string{"IDLE", "ACTIVE", "FINISHED"}
	for i, s := range states {
		ev := Event{
			Timestamp:   time.Now(),
			Direction:   DirectionNone,
			Layer:       LayerSession,
			Category:    CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntitySession, NewState: s},
		}
		if i > 0 {
			ev.StateChange.OldState = states[i-1]
		}
		if err := enc.Encode(ev); err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
	}

	dec := NewDecoder(&buf)
	for _, want := range states {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if ev.StateChange == nil || ev.StateChange.NewState != want {
			t.Errorf("NewState = %v, want %s", ev.StateChange, want)
		}
	}
}

func TestDecodeEventInvalid(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00}); err == nil {
		t.Error("DecodeEvent() should fail on garbage")
	}
}

func TestEncodeEventKeyLayout(t *testing.T) {
	event := Event{
		Timestamp: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		SessionID: "9d7c1f2e",
		Layer:     LayerSession,
		Category:  CategoryError,
		Endpoint:  "urn:dev:os:0001",
		Error: &ErrorEventData{
			Layer:   LayerSession,
			Message: "instance delete failed /0/1",
			Context: "bootstrap delete",
			Path:    "/0/1",
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	again, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Error("encoding is not deterministic")
	}

	var raw map[uint64]cbor.RawMessage
	if err := cbor.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []uint64{1, 2, 4, 5, 7, 12} {
		if _, ok := raw[key]; !ok {
			t.Errorf("key %d missing", key)
		}
	}
	for _, key := range []uint64{10, 11} {
		if _, ok := raw[key]; ok {
			t.Errorf("unexpected payload key %d", key)
		}
	}
}
