package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/xraph/jobqueue/store"
	bunstore "github.com/xraph/jobqueue/store/bun"
	redisstore "github.com/xraph/jobqueue/store/redis"
)

// openStore connects to the store named by dsn:
//
//	postgres://... or postgresql://...   PostgreSQL via bun
//	redis://... or rediss://...          Redis
//	:memory:                             private in-memory SQLite
//	anything else                        SQLite file path or file: URI
//
// The returned closer releases the underlying connection.
func openStore(ctx context.Context, dsn string, logger *slog.Logger) (store.Store, func() error, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db := bun.NewDB(sqldb, pgdialect.New())
		return pingStore(ctx, bunstore.New(db, bunstore.WithLogger(logger)), db.Close)

	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		opts, err := goredis.ParseURL(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis dsn: %w", err)
		}
		client := goredis.NewClient(opts)
		return pingStore(ctx, redisstore.New(client, redisstore.WithLogger(logger)), client.Close)

	case dsn == "":
		return nil, nil, fmt.Errorf("no store configured")

	default:
		if dsn == ":memory:" {
			dsn = "file::memory:?cache=shared"
		}
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
		}
		sqldb.SetMaxOpenConns(1)
		db := bun.NewDB(sqldb, sqlitedialect.New())
		return pingStore(ctx, bunstore.New(db, bunstore.WithLogger(logger)), db.Close)
	}
}

func pingStore(ctx context.Context, s store.Store, closer func() error) (store.Store, func() error, error) {
	if err := s.Ping(ctx); err != nil {
		_ = closer()
		return nil, nil, fmt.Errorf("ping store: %w", err)
	}
	return s, closer, nil
}
