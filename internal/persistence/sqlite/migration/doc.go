// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (for example "001_initial_schema.sql") and are read from an fs.FS, which
// is usually an embed.FS compiled into the binary. Applied versions and their
// checksums are tracked in the schema_migrations table; a file whose content
// changed after it was applied is reported as ErrChecksumMismatch.
//
//	manager := migration.NewManager(db, migrations, logger)
//	if err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
