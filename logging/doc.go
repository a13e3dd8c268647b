// Package logging provides a minimal logging interface and adapters for DeckMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the session store and bridge use for observability. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - DeckMeshLogger with contextual session/operation helpers
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	store := session.New(db, session.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
