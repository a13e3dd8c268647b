// Package docstore defines the minimal document-database capability set the
// session layer depends on: keyed documents in named collections and
// sub-collections, store-assigned ids, equality-filtered queries, field-path
// updates, server-assigned timestamps and atomic multi-write batches.
//
// The interfaces deliberately mirror no single product. The in-memory engine
// in this package serves tests and ephemeral deployments; the firestore
// sub-package maps the same capability set onto Cloud Firestore. Additional
// backends (Mongo, DynamoDB, a relational table with manual indexing) can be
// added in sub-packages without changing any calling code.
package docstore
