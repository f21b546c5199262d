// Package persistence provides runtime state persistence for the LWM2M client.
//
// The Security and Server object instances written by a bootstrap server
// must survive a restart, otherwise the client would bootstrap again on every
// boot. This package serializes them to a JSON state file.
package persistence
