// Package migration applies the versioned SQL schema migrations embedded in
// the binary.
//
// Files live under migrations/ and are named {version}_{description}.sql
// (e.g. "001_initial_schema.sql"). Applied versions are tracked in the
// schema_migrations table together with the file checksum, and a file that
// changes after being applied stops the run with ErrChecksumMismatch.
//
//	manager := NewMigrationManager(NewFileScanner(Files, Dir), NewSQLiteExecutor(db, logger), logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
