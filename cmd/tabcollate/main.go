// Package main provides the entry point for the tabcollate CLI.
//
// tabcollate drives a web page's cascading dropdowns through every legal
// combination of three axes, reads the result table at each one and
// assembles a validated cross-tabulation.
//
// Usage:
//
//	tabcollate collate --axes Year,State,Status <url>
//	tabcollate collate --only-failed <run-id>
//	tabcollate compare <url>
//
// See --help for all available options.
package main

// main is the entry point for tabcollate.
func main() {
	Execute()
}
