// Package bootstrap coordinates the client side of an LWM2M bootstrap session.
//
// A Handler admits at most one session at a time. The session is opened by
// the connection-management path for a specific bootstrap server (the
// authority); every bootstrap-scoped request that arrives afterwards is
// checked against that authority before it is acted on.
//
// Session lifecycle:
//
//	IDLE --Open--> ACTIVE --Finish--> FINISHED
//	  ^              |                   |
//	  +----Cancel----+-------------------+
//
// Finish releases a goroutine parked in WaitForCompletion but leaves the
// session open. Only Cancel returns the handler to IDLE, and Cancel never
// wakes a waiter.
//
// Delete removes every Server object instance and then every Security object
// instance except the one describing the bootstrap server itself.
package bootstrap
