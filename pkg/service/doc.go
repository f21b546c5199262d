// Package service wires the bootstrap session coordinator to the rest of the
// client.
//
// RequestHandler is what the transport calls for every decoded request. It
// routes Bootstrap-Finish and Bootstrap-Delete to the session coordinator and
// all other operations to the object store, and records each request and
// response in the protocol log.
//
// BootstrapEngine drives a bootstrap from the client side:
//
//  1. open a session for the configured bootstrap server
//  2. send the bootstrap request
//  3. wait for Bootstrap-Finish, bounded by the configured timeout
//  4. cancel the session, whatever the outcome
//  5. persist the object store if the session finished
//
// Unfinished sessions are retried with exponential backoff until the attempt
// limit is reached.
package service
