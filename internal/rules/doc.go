// Package rules evaluates the consistency rules declared on clause
// versions against a candidate selection and produces a conflict
// report partitioned into blocking (hard) and advisory (soft) entries.
//
// Evaluation is pure and deterministic: the same selection always
// yields the same report, in the same order. Clauses are visited in
// sorted block order and each clause's rules in declaration order.
package rules
