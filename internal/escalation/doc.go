// Package escalation re-evaluates every open issue against the SLA policy
// and reports the issues whose stored SLA state is out of date.
//
// A cycle is a pure computation: the [Scheduler] reads issues through an
// [IssueSource] and returns [Mutation] values, leaving persistence, audit
// entries and notifications to the caller. Evaluating the same issue set at
// the same instant always yields the same mutations, so concurrent or
// repeated cycles converge.
package escalation
