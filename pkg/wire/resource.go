package wire

import "fmt"

// ResourceType is the data type of a resource value.
type ResourceType uint8

const (
	// TypeString is a UTF-8 string.
	TypeString ResourceType = 1

	// TypeInteger is a signed 64-bit integer.
	TypeInteger ResourceType = 2

	// TypeBoolean is a boolean.
	TypeBoolean ResourceType = 3

	// TypeOpaque is a byte sequence.
	TypeOpaque ResourceType = 4
)

// String returns the type name.
func (t ResourceType) String() string {
	switch t {
	case TypeString:
		return "STRING"
	case TypeInteger:
		return "INTEGER"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeOpaque:
		return "OPAQUE"
	default:
		return "UNKNOWN"
	}
}

// Resource is a typed single-instance resource value.
type Resource struct {
	ID    uint16       `cbor:"1,keyasint"`
	Type  ResourceType `cbor:"2,keyasint"`
	Value any          `cbor:"3,keyasint"`
}

// NewString returns a string resource.
func NewString(id uint16, v string) Resource {
	return Resource{ID: id, Type: TypeString, Value: v}
}

// NewInteger returns an integer resource.
func NewInteger(id uint16, v int64) Resource {
	return Resource{ID: id, Type: TypeInteger, Value: v}
}

// NewBoolean returns a boolean resource.
func NewBoolean(id uint16, v bool) Resource {
	return Resource{ID: id, Type: TypeBoolean, Value: v}
}

// NewOpaque returns an opaque resource.
func NewOpaque(id uint16, v []byte) Resource {
	return Resource{ID: id, Type: TypeOpaque, Value: v}
}

// String returns the value in a human-readable form.
func (r Resource) String() string {
	switch v := r.Value.(type) {
	case []byte:
		return fmt.Sprintf("%d=%s(%d bytes)", r.ID, r.Type, len(v))
	default:
		return fmt.Sprintf("%d=%s(%v)", r.ID, r.Type, v)
	}
}

// StringValue returns the value if the resource is a string.
func (r Resource) StringValue() (string, bool) {
	if r.Type != TypeString {
		return "", false
	}
	v, ok := r.Value.(string)
	return v, ok
}

// IntegerValue returns the value if the resource is an integer.
func (r Resource) IntegerValue() (int64, bool) {
	if r.Type != TypeInteger {
		return 0, false
	}
	switch v := r.Value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint64:
		return int64(v), true
	default:
		return 0, false
	}
}

// BooleanValue returns the value if the resource is a boolean.
func (r Resource) BooleanValue() (bool, bool) {
	if r.Type != TypeBoolean {
		return false, false
	}
	v, ok := r.Value.(bool)
	return v, ok
}

// OpaqueValue returns the value if the resource is opaque.
func (r Resource) OpaqueValue() ([]byte, bool) {
	if r.Type != TypeOpaque {
		return nil, false
	}
	v, ok := r.Value.([]byte)
	return v, ok
}
