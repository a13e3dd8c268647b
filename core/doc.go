// Package core provides the foundational domain types and interfaces used by
// DeckMesh. It defines the core abstractions for:
//
//   - Sessions (durable conversational containers with keyed state and an
//     append-only event history)
//   - Events (immutable message / tool side-effect / error records)
//   - The SessionStore contract every storage backend implements
//   - The error taxonomy shared across backends
//
// The package intentionally keeps implementation concerns (document-store
// engines, worker pools, concrete backends) out of scope, exposing small
// interfaces to enable custom persistence layers and extensions.
package core
