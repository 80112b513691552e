// Package namespace implements the per-app state owner. Each Namespace runs
// one goroutine that owns the socket registry and channel membership index
// and processes commands strictly in arrival order.
package namespace
