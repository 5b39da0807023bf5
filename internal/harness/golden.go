package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/filtergate/internal/adapter"
	"github.com/roach88/filtergate/internal/adapter/elastic"
	"github.com/roach88/filtergate/internal/adapter/mysql"
	"github.com/roach88/filtergate/internal/adapter/postgres"
	"github.com/roach88/filtergate/internal/adapter/sqlfrag"
	"github.com/roach88/filtergate/internal/adapter/sqlite"
	"github.com/roach88/filtergate/internal/capability"
	"github.com/roach88/filtergate/internal/compile"
)

// SQLRender is one relational backend's output for a compiled filter.
type SQLRender struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

// Snapshot captures every rendering backend's output for one filter,
// serialized deterministically for golden comparison. Backends that
// cannot compile the filter (a capability gap, not a bug) record the
// refusal instead of a rendering.
type Snapshot struct {
	Scenario string     `json:"scenario"`
	Filter   string     `json:"filter"`
	Postgres *SQLRender `json:"postgres,omitempty"`
	SQLite   *SQLRender `json:"sqlite,omitempty"`
	MySQL    *SQLRender `json:"mysql,omitempty"`
	Elastic  any        `json:"elastic,omitempty"`

	Refused map[string]string `json:"refused,omitempty"`
}

// allFeatures enables every optional backend capability, so golden
// snapshots cover the full rendering surface.
var allFeatures = capability.Features{
	NativeArrays: true,
	FullText:     true,
	Trigram:      true,
	Geo:          true,
	JSONPath:     true,
	Explain:      true,
}

// BuildSnapshot compiles the scenario's filter against every rendering
// backend.
func BuildSnapshot(s *Scenario) (*Snapshot, error) {
	table, err := s.FieldTable()
	if err != nil {
		return nil, err
	}
	expr, err := s.Expr()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Scenario: s.Name, Filter: s.Filter}
	backends := []adapter.Adapter{
		postgres.New(allFeatures, capability.Limits{}),
		sqlite.New(allFeatures, capability.Limits{}),
		mysql.New(capability.Limits{}),
		elastic.New(capability.Limits{}),
	}
	for _, adp := range backends {
		q, err := compile.Compile(expr, table, s.AuthorizedSet(), adp)
		if err != nil {
			if compile.IsCapabilityError(err) {
				if snap.Refused == nil {
					snap.Refused = map[string]string{}
				}
				snap.Refused[adp.ID()] = err.Error()
				continue
			}
			return nil, fmt.Errorf("%s: %w", adp.ID(), err)
		}
		switch adp.ID() {
		case postgres.ID:
			f, err := sqlfrag.Cast(postgres.ID, q)
			if err != nil {
				return nil, err
			}
			snap.Postgres = &SQLRender{SQL: sqlfrag.Numbered(f.SQL), Args: f.Args}
		case sqlite.ID:
			f, err := sqlfrag.Cast(sqlite.ID, q)
			if err != nil {
				return nil, err
			}
			snap.SQLite = &SQLRender{SQL: f.SQL, Args: f.Args}
		case mysql.ID:
			f, err := sqlfrag.Cast(mysql.ID, q)
			if err != nil {
				return nil, err
			}
			snap.MySQL = &SQLRender{SQL: f.SQL, Args: f.Args}
		case elastic.ID:
			snap.Elastic = q
		}
	}
	return snap, nil
}

// AssertGolden compares the snapshot against
// testdata/golden/{scenario}.golden. Regenerate with go test -update.
func AssertGolden(t *testing.T, snap *Snapshot) {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
	g.Assert(t, snap.Scenario, buf.Bytes())
}
