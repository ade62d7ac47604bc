// Package testutil contains helper builders used across tests to construct
// sessions, events and finished event streams with little boilerplate. It is
// not intended for production usage.
package testutil
