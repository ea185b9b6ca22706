// Package validate cross-checks extracted tables before they are folded
// into the dataset.
//
// Counts are integral, so every comparison is exact. A mismatch is
// reported, never corrected: the table's own total against its cells, the
// table total against the count the page advertised for the same selection,
// and a re-visit against the total an earlier visit accepted.
package validate
