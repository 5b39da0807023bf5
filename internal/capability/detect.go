package capability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// DetectPostgresFeatures probes a Postgres connection for optional
// extensions. Postgres always has native arrays, EXPLAIN, full-text
// search and jsonpath; trigram and geo support depend on pg_trgm and
// postgis being installed in the target database.
//
// The probe is one catalog query; run it at connection setup, not per
// request.
func DetectPostgresFeatures(ctx context.Context, db *sql.DB) (Features, error) {
	f := Features{
		NativeArrays: true,
		FullText:     true,
		JSONPath:     true,
		Explain:      true,
	}
	rows, err := db.QueryContext(ctx, `SELECT extname FROM pg_extension`)
	if err != nil {
		return Features{}, fmt.Errorf("query pg_extension: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Features{}, fmt.Errorf("scan extension name: %w", err)
		}
		switch name {
		case "pg_trgm":
			f.Trigram = true
		case "postgis":
			f.Geo = true
		}
	}
	if err := rows.Err(); err != nil {
		return Features{}, fmt.Errorf("iterate extensions: %w", err)
	}
	return f, nil
}

// DetectSQLiteFeatures probes a SQLite connection for the JSON1
// extension, which the sqlite adapter needs for array membership
// operators. EXPLAIN QUERY PLAN is always available.
func DetectSQLiteFeatures(ctx context.Context, db *sql.DB) (Features, error) {
	f := Features{Explain: true}
	var one int
	err := db.QueryRowContext(ctx, `SELECT json_valid('[]')`).Scan(&one)
	if err != nil {
		// JSON1 missing is a degraded configuration, not a failure:
		// the adapter simply loses its array operators.
		slog.Warn("sqlite json1 probe failed, array operators disabled", "error", err)
		return f, nil
	}
	f.JSONPath = one == 1
	return f, nil
}
