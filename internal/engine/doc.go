// Package engine collates one target page into a dataset.
//
// A run discovers the values of each axis, plans a route, makes the result
// table break down by the innermost axis and then walks the two outer axes:
// every outer value is selected once, the middle axis is rediscovered under
// it, and every middle value is visited through the node pipeline. Accepted
// tables are folded into the dataset; everything else is recorded as a
// failure against the most specific prefix that failed, and the walk goes on.
//
// Only a key collision stops a run early, since it means the traversal broke
// its own invariants. Cancellation also stops it, keeping what was folded.
package engine
