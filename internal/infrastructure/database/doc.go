// Package database owns playoutd's SQLite file: opening it, applying the
// embedded migrations and running transactions.
//
// The sqlite document store keeps every collection in one table of
// (collection, id, data) rows with the document as JSON, so new playout
// fields never need a migration. The job log is a conventional table.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//	err = db.Migrate(ctx)
package database
