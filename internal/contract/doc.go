// Package contract owns the contract instance aggregate: pinning the
// catalog versions an instance is built from, the draft → completed →
// archived state machine, and the migration path that moves a draft
// onto a newer template version.
//
// Every mutation is guarded by an optimistic revision counter on the
// instance row. A completed instance is frozen: its pins, answers, and
// slot selections never change again, regardless of later catalog
// publishes.
package contract
