// Package connection paces repeated bootstrap attempts.
//
// When a bootstrap session is not finished in time, the client waits before
// asking the bootstrap server again. The wait grows exponentially:
//
//  1. Initial delay: 2 seconds
//  2. Exponential increase: 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Reset to the initial delay after a finished session
//
// # Jitter
//
// Devices restarted together must not all hit the bootstrap server at once:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package connection
