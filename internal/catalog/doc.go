// Package catalog defines the versioned building-block model: logical
// blocks (clauses and templates), their immutable versions, consistency
// rules declared on clause versions, and the read-only Reader boundary
// through which the rest of the engine observes the catalog.
//
// Versions are append-only. Content never changes after creation; edits
// produce a new version with a higher number. "Current published" is a
// lookup, never a mutable field on a version.
package catalog
