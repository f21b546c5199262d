// Package objects implements the client's in-memory object store.
//
// The store maps object identifiers to object instances. Each instance
// dispatches read, write and execute requests by resource identifier. Two
// object kinds are provided:
//
//   - Security (object 0): server URI, bootstrap flag, security mode, keys
//   - Server (object 1): short server id, lifetime, binding, storing flag
//
// During a bootstrap delete the session coordinator walks the instances of
// both objects through the store and removes them; the store itself does not
// know about bootstrap sessions beyond reporting which Security instance
// describes the bootstrap server.
package objects
