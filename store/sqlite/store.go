// Package sqlite opens the gorm-backed store on an embedded, CGO-free
// SQLite database.
package sqlite

import (
	"context"
	"strings"

	"github.com/glebarez/sqlite"

	"github.com/xraph/cocoa/store/sqlstore"
)

// MemoryDSN is a private in-memory database. It lives as long as the
// store's single connection.
const MemoryDSN = ":memory:"

// Open connects to the database file at path. Foreign keys and a busy
// timeout are enabled unless path already sets pragmas.
func Open(ctx context.Context, path string, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	s, err := sqlstore.Open(ctx, sqlite.Open(withPragmas(path)), opts...)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection keeps transactions
	// from tripping over SQLITE_BUSY.
	if sqlDB, err := s.DB().DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return s, nil
}

func withPragmas(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
