// Package backends bundles the concrete adapters, their database
// drivers, and runtime feature detection into a ready-to-use selection
// registry.
package backends

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	_ "github.com/mattn/go-sqlite3"    // sqlite driver

	"github.com/roach88/filtergate/internal/adapter"
	"github.com/roach88/filtergate/internal/adapter/elastic"
	"github.com/roach88/filtergate/internal/adapter/memory"
	"github.com/roach88/filtergate/internal/adapter/mysql"
	"github.com/roach88/filtergate/internal/adapter/postgres"
	"github.com/roach88/filtergate/internal/adapter/sqlite"
	"github.com/roach88/filtergate/internal/capability"
)

// Names the imported drivers register with database/sql.
const (
	PostgresDriver = "pgx"
	SQLiteDriver   = "sqlite3"
)

// Open opens the relational connection for a connector type using the
// bundled driver.
func Open(connectorType, dsn string) (*sql.DB, error) {
	switch connectorType {
	case "postgres":
		return sql.Open(PostgresDriver, dsn)
	case "sqlite":
		return sql.Open(SQLiteDriver, dsn)
	default:
		return nil, fmt.Errorf("no bundled driver for connector %q", connectorType)
	}
}

// NewRegistry returns a registry with every built-in adapter bound to
// its connector type and the in-memory adapter as the fallback for
// non-persisted data. Postgres and SQLite run their feature probes on
// first selection per connection.
func NewRegistry(limits capability.Limits) *adapter.Registry {
	return adapter.NewRegistry().
		Register(postgres.ID, "postgres", postgres.Factory(limits)).
		Register(sqlite.ID, "sqlite", sqlite.Factory(limits)).
		Register(mysql.ID, "mysql", mysql.Factory(limits)).
		Register(elastic.ID, "elasticsearch", elastic.Factory(limits)).
		Register(memory.ID, "", memory.Factory()).
		SetFallback(memory.ID)
}
