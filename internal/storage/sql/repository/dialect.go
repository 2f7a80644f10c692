package repository

import (
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	name              string
	numberedParams    bool
	caseInsensitiveOp string
	likeEscape        string // SQL literal naming the LIKE escape character
	onDuplicateKey    bool
}

var (
	// Postgres uses $n placeholders and ILIKE.
	Postgres = Dialect{name: "postgres", numberedParams: true, caseInsensitiveOp: "ILIKE", likeEscape: `'\'`}

	// SQLite uses ? placeholders; its LIKE is already case-insensitive for ASCII.
	SQLite = Dialect{name: "sqlite", caseInsensitiveOp: "LIKE", likeEscape: `'\'`}

	// MySQL compares with the column collation, which is case-insensitive by
	// default. Backslash is an escape inside its string literals.
	MySQL = Dialect{name: "mysql", caseInsensitiveOp: "LIKE", likeEscape: `'\\'`, onDuplicateKey: true}
)

// Name returns the dialect name.
func (d Dialect) Name() string {
	return d.name
}

// placeholder returns the bind marker for the n-th (1-based) argument.
func (d Dialect) placeholder(n int) string {
	if d.numberedParams {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// upsert renders the clause that overwrites cols when a row with the same key exists.
func (d Dialect) upsert(key string, cols ...string) string {
	sets := make([]string, len(cols))
	if d.onDuplicateKey {
		for i, c := range cols {
			sets[i] = c + " = VALUES(" + c + ")"
		}
		return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	for i, c := range cols {
		sets[i] = c + " = excluded." + c
	}
	return " ON CONFLICT (" + key + ") DO UPDATE SET " + strings.Join(sets, ", ")
}
