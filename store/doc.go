// Package store defines the aggregate persistence interface.
//
// The job package defines the record contract ([job.Store]); the composite
// [Store] adds lifecycle operations:
//
//	type Store interface {
//	    job.Store
//
//	    Migrate(ctx context.Context) error
//	    Ping(ctx context.Context) error
//	    Close() error
//	}
//
// # Available Backends
//
//   - store/memory: in-memory store for development and testing
//   - store/bun: Bun ORM backend for SQLite and PostgreSQL
//   - store/redis: Redis backend
//
// # Usage
//
//	import bunstore "github.com/xraph/jobqueue/store/bun"
//
//	db := bun.NewDB(sqldb, sqlitedialect.New())
//	s := bunstore.New(db)
//	if err := s.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	sched, err := scheduler.New(s)
//
// # Migrations
//
// Call Migrate once at startup to create or update the schema. It is
// idempotent and a no-op for the memory store.
package store
