// Package bridge runs blocking session-store operations on a bounded worker
// pool and hands the caller a non-blocking Future, so an event-driven request
// layer serving many concurrent sessions never stalls on storage I/O.
//
// The bridge imposes no ordering across calls: two in-flight appends to the
// same session may commit in either order. Callers needing strict per-session
// ordering serialize their own calls (one logical writer per session).
// Worker failures surface through Future.Await as the exact error value the
// underlying synchronous call would have returned.
package bridge
