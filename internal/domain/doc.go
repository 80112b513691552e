// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (app.go, protocol.go, publish.go, adapter.go, errors.go)
// with shared types and cross-cutting interfaces. No implementation code beyond encoding helpers - just contracts.
// Prevents circular imports between the namespace, adapter, connection and transport packages.
package domain
