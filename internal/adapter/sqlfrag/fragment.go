// Package sqlfrag holds the parameterized SQL fragment type shared by
// the relational adapters. Values are always carried as parameters and
// never interpolated into the SQL text.
package sqlfrag

import (
	"fmt"
	"strings"
)

// Fragment is a WHERE-clause fragment with its positional parameters.
// Placeholders are written as "?"; the postgres adapter rewrites them
// to $1..$n when rendering a full statement.
type Fragment struct {
	SQL  string
	Args []any
}

// New builds a fragment.
func New(sql string, args ...any) Fragment {
	return Fragment{SQL: sql, Args: args}
}

// MatchNothing is the fragment no row satisfies.
func MatchNothing() Fragment {
	return Fragment{SQL: "1 = 0"}
}

// MatchEverything is the fragment every row satisfies.
func MatchEverything() Fragment {
	return Fragment{SQL: "1 = 1"}
}

// Combine joins fragments with a boolean connective, parenthesizing
// each part so operator precedence of the parts cannot leak.
func Combine(connective string, parts []Fragment) Fragment {
	if len(parts) == 0 {
		// Empty conjunction is vacuously true; empty disjunction
		// matches nothing.
		if connective == "OR" {
			return MatchNothing()
		}
		return MatchEverything()
	}
	if len(parts) == 1 {
		return parts[0]
	}
	sqls := make([]string, len(parts))
	var args []any
	for i, p := range parts {
		sqls[i] = "(" + p.SQL + ")"
		args = append(args, p.Args...)
	}
	return Fragment{SQL: strings.Join(sqls, " "+connective+" "), Args: args}
}

// Negate wraps a fragment in NOT.
func Negate(f Fragment) Fragment {
	return Fragment{SQL: "NOT (" + f.SQL + ")", Args: f.Args}
}

// Placeholders renders n comma-separated "?" placeholders.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Numbered rewrites "?" placeholders to $1..$n for Postgres. Question
// marks inside quoted literals never occur because values are always
// parameterized.
func Numbered(sql string) string {
	var b strings.Builder
	n := 0
	for _, r := range sql {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeLike escapes LIKE metacharacters in a user-supplied string so
// it matches literally. Fragments using the result must carry
// ESCAPE '\'.
func EscapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// Cast asserts that an opaque compiled query is a Fragment, reporting
// the owning adapter on mismatch.
func Cast(adapterID string, q any) (Fragment, error) {
	f, ok := q.(Fragment)
	if !ok {
		return Fragment{}, fmt.Errorf("adapter %s: compiled query is %T, not a SQL fragment", adapterID, q)
	}
	return f, nil
}
