// Package config loads the client configuration from YAML.
//
// A minimal file names the endpoint and the bootstrap server:
//
//	endpoint: urn:dev:os:0023C7-000001
//	bootstrap:
//	  server: 192.0.2.10:5683
//	  timeout: 30s
//	  max_attempts: 5
//
// Security and Server instances listed in the file seed the object store on
// first start. Once a bootstrap session has finished, the persisted state
// takes precedence.
package config
