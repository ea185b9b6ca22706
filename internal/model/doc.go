// Package model defines the core data structures used throughout tabcollate.
//
// This package contains the following main types:
//   - Selection: An immutable, ordered prefix of axis values chosen so far
//   - Option and RawRow: What the page reports for a control or a result table
//   - ScrapeResult: The extracted cells and reported total for one visit
//   - Dataset: The two-level-indexed, column-labeled result of a run
//   - RunReport: A complete run, including failed combinations
//
// Selections are values, never shared state. Every traversal step receives
// the selection it starts from and returns the selection it reached, so
// concurrent sessions cannot interfere with each other.
//
// The models are serializable to JSON for report output and database storage.
package model
