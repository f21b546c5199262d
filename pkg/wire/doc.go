// Package wire defines the decoded LWM2M message types exchanged between the
// transport layer and the client.
//
// The transport decodes incoming CoAP messages into Request values and encodes
// Response values back; how that happens is outside this package. What is
// fixed here is the vocabulary both sides agree on.
//
// # Operations
//
// Device management operations address a Path:
//   - Read, Write, Execute on a resource (/object/instance/resource)
//   - Delete on an object instance (/object/instance)
//
// Bootstrap-scoped operations are only valid inside a bootstrap session:
//   - BootstrapDelete removes the provisioned server configuration
//   - BootstrapFinish ends the bootstrap exchange
//
// # Response Codes
//
// Response codes use the CoAP class.detail notation (2.04, 4.05, ...).
// A Code is stored as class*32 + detail, the same value that appears in the
// CoAP header.
//
// # CBOR Integer Keys
//
// Types carry integer-keyed CBOR tags so they can be captured compactly in
// protocol log files.
package wire
