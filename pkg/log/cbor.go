package log

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// A protocol log is a plain concatenation of CBOR maps, one per Event, with
// integer keys taken from the keyasint tags in event.go. Each map carries the
// common header (timestamp, session id, layer, endpoint, peer) and exactly
// one payload:
//
//	10  MessageEvent      a bootstrap or object request/response
//	11  StateChangeEvent  a session or engine transition
//	12  ErrorEventData    e.g. an instance the Bootstrap-Delete cascade kept
//
// Timestamps are RFC 3339 strings with nanoseconds. Encoding is canonical:
// equal events produce equal bytes.
var (
	eventEncMode = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	})

	// Unknown keys are ignored and duplicate keys tolerated.
	eventDecMode = mustDecMode(cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	mode, err := opts.EncMode()
	if err != nil {
		panic("log: protocol event encoder: " + err.Error())
	}
	return mode
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	mode, err := opts.DecMode()
	if err != nil {
		panic("log: protocol event decoder: " + err.Error())
	}
	return mode
}

// EncodeEvent encodes a single protocol event.
func EncodeEvent(event Event) ([]byte, error) {
	return eventEncMode.Marshal(event)
}

// DecodeEvent decodes a single protocol event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := eventDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder returns an encoder that appends events to a log stream.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return eventEncMode.NewEncoder(w)
}

// NewDecoder returns a decoder that reads events from a log stream one at a
// time.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return eventDecMode.NewDecoder(r)
}
