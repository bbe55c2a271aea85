// Package store provides SQLite-backed durable storage for the clause
// catalog and contract instances.
//
// Two surfaces share one database:
//   - Catalog: append-only clause/template version rows. Payloads are
//     immutable after insert; only the editorial status (and the
//     published_at stamp) moves, along the legal transition chain.
//   - Instances: one row per contract instance. Every write goes
//     through UPDATE ... WHERE id = ? AND revision = ?; zero rows
//     affected distinguishes a missing row from a lost race.
//
// Payloads are stored as JSON TEXT and round-trip through the catalog
// types' own marshalers, so tagged answer values survive storage
// intact.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
