// Package journal persists terminal upload outcomes to a local SQLite
// database so that runs can be audited after the fact.
//
// # Overview
//
// The package defines a Repository interface for recording outcomes and
// querying recent history. A SQLite-backed implementation (SQLiteRepository)
// persists data via a dbx.DBTX (*sql.DB or *sql.Tx).
//
// Key Types
//
//   - type Repository        — contract used by the monitor
//   - type SQLiteRepository  — SQLite implementation over dbx.DBTX
//
// Typical Usage
//
//	db, _ := journal.Open("outcomes.db")
//	repo := journal.NewSQLiteRepository(db)
//	_ = repo.Record(ctx, entry)
//	recent, _ := repo.Recent(ctx, 50)
//
// The journal is an observability aid only: tasks are never read back from
// it, and a journal write failure does not fail the upload it describes.
package journal
