// Package session implements the core.SessionStore contract on top of the
// abstract document store defined in the docstore package. The interface
// itself (and the Session / Event types) live in the core package to
// centralize domain contracts; keeping only the implementation here prevents
// higher level packages from depending on concrete storage.
//
// Layout inside the document store is a fixed contract, not configuration:
// one document per session in the "sessions" collection, one document per
// event in the "sessions/{id}/events" sub-collection. The codec in this
// package defines the persisted event shape, including the redaction rule
// that keeps large inline PDF payloads out of the history.
//
// Swap storage engines by passing a different docstore.Store to New – the
// in-memory engine for tests, the firestore adapter for production – without
// changing any calling code.
package session
