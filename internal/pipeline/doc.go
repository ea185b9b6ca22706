// Package pipeline runs one traversal node through its steps and runs
// independent targets through a bounded worker pool.
//
// A node visit moves through Select, Wait, Read, Extract and Validate.
// Each stage is a Step that advances the visit's state and records why it
// stopped when it fails, so the caller only has to look at the terminal
// state to decide whether the result may be folded.
//
// BatchProcessor runs whole targets concurrently. Every target gets its own
// browser session from a factory, released on every exit path, and the
// number of concurrent sessions is capped with errgroup.
package pipeline
