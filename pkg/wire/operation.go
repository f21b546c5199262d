package wire

// Operation identifies what a request asks the client to do.
type Operation uint8

const (
	// OpRead reads a resource value.
	OpRead Operation = 1

	// OpWrite replaces a resource value.
	OpWrite Operation = 2

	// OpExecute triggers an executable resource.
	OpExecute Operation = 3

	// OpDelete removes an object instance.
	OpDelete Operation = 4

	// OpBootstrapDelete removes provisioned configuration during bootstrap.
	OpBootstrapDelete Operation = 5

	// OpBootstrapFinish ends the bootstrap session.
	OpBootstrapFinish Operation = 6
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpRead:
		return "Read"
	case OpWrite:
		return "Write"
	case OpExecute:
		return "Execute"
	case OpDelete:
		return "Delete"
	case OpBootstrapDelete:
		return "BootstrapDelete"
	case OpBootstrapFinish:
		return "BootstrapFinish"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the operation is known.
func (o Operation) IsValid() bool {
	return o >= OpRead && o <= OpBootstrapFinish
}

// IsBootstrap returns true for operations that are only valid inside a
// bootstrap session.
func (o Operation) IsBootstrap() bool {
	return o == OpBootstrapDelete || o == OpBootstrapFinish
}
