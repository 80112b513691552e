// Package connection implements the per-socket protocol state machine. A
// Connection turns inbound client frames into replies and adapter calls and
// hands broadcast payloads to its transport.
package connection
