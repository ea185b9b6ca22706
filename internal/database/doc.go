// Package database provides SQLite-based run history for tabcollate.
//
// RunDB stores every collation run of a page: a summary row for listing
// and the complete report, dataset and failures included, as JSON. Stored
// runs are compared with later ones and their failures re-attempted.
//
// The driver is modernc.org/sqlite, which needs no cgo. The database is a
// single file in WAL mode.
package database
