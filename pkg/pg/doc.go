// Package pg wires PostgreSQL into the service: a pgx pool opened with
// retry, a database/sql view of the same pool for squirrel queries, goose
// migrations from an embedded filesystem, a health probe and pgconn error
// predicates.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	db := pg.OpenDB(pool)
//	if err := pg.Migrate(ctx, db, migrations.FS, cfg, log); err != nil {
//		return err
//	}
package pg
