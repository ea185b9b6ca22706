// Package driver drives a cascading-dropdown page through selection states.
//
// The Page interface is the minimal capability the traversal needs from an
// interactive page: list the options of a control, choose one, pick the
// table breakdown, take a snapshot for stability checks, read the rendered
// table and reload. Implementations live elsewhere (see internal/browser);
// this package adds what every implementation needs on top:
//
//   - every interaction runs through one retry executor
//   - a choice is followed by a wait until the rendered result stops changing
//   - reads are refused unless the last stabilized selection is the one asked for
//   - the page is reloaded when its state can no longer be trusted
//
// A Driver owns one page and is not safe for concurrent use. The UI has a
// single visible state, so one session is traversed strictly sequentially.
package driver
