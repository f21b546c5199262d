// Package identity describes the remote peer that sent a request to the
// client and decides whether two peers are the same host.
//
// Bootstrap requests are authorized by comparing the origin of a request with
// the peer that opened the bootstrap session. Only the IP address takes part
// in the comparison: a bootstrap server may use different source ports for
// the requests of one session.
package identity
