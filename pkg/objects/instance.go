package objects

import (
	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

// Instance is one object instance. Implementations must be safe for
// concurrent use.
type Instance interface {
	// Read returns the value of a resource.
	Read(resourceID uint16) *wire.Response

	// Write replaces the value of a resource.
	Write(resourceID uint16, value wire.Resource) *wire.Response

	// Execute triggers an executable resource.
	Execute(resourceID uint16, params string) *wire.Response

	// ResourceIDs lists the readable resources, in ascending order.
	ResourceIDs() []uint16
}

// baseInstance answers every resource with "not found". Concrete instances
// embed it and override the resources they support.
type baseInstance struct{}

func (baseInstance) Read(uint16) *wire.Response {
	return wire.NotFound("resource not found")
}

func (baseInstance) Write(uint16, wire.Resource) *wire.Response {
	return wire.NotFound("resource not found")
}

func (baseInstance) Execute(uint16, string) *wire.Response {
	return wire.NotFound("resource not found")
}
