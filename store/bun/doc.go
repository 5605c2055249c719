// Package bunstore implements store.Store using the Bun ORM. It runs on
// both the SQLite and PostgreSQL dialects; on PostgreSQL the claim query
// locks rows with FOR UPDATE SKIP LOCKED so several processes can share a
// table.
//
// The caller owns the *bun.DB lifecycle; bunstore never closes it. Pass the
// db handle through the constructor:
//
//	import (
//	    "github.com/uptrace/bun"
//	    "github.com/uptrace/bun/dialect/sqlitedialect"
//	    "github.com/uptrace/bun/driver/sqliteshim"
//	    bunstore "github.com/xraph/jobqueue/store/bun"
//	)
//
//	sqldb, err := sql.Open(sqliteshim.ShimName, "file:jobs.db")
//	db := bun.NewDB(sqldb, sqlitedialect.New())
//	store := bunstore.New(db)
//	store.Migrate(ctx)
//
// For PostgreSQL use pgdriver.NewConnector with pgdialect.New().
package bunstore
