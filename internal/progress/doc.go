// Package progress delivers counts-only notifications about a run.
//
// The engine emits an Event whenever the plan is known and after every
// traversal node. Reporters render those counts to a terminal, a logger or
// Prometheus metrics; none of them knows anything about the page.
package progress
