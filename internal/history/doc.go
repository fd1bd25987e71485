// Package history records analyzer runs in a SQLite journal.
//
// Every lip-sync run is inserted when it starts and updated once it reaches a
// terminal state, so the CLI can list recent runs, show the details of one,
// and prune entries past the configured retention. Writes retry on
// SQLITE_BUSY because watch mode and one-off runs may share the database.
package history
