package dbutil

import (
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	identRegex     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)
	modelNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/\-]*$`)
)

// EscapeLiteral prepares text for interpolation between single quotes in a
// warehouse statement. Every single quote is doubled; backslashes are doubled
// too because snowflake treats them as escape characters inside literals.
func EscapeLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", "''")
}

// QuoteLiteral returns s escaped and wrapped in single quotes.
func QuoteLiteral(s string) string {
	return "'" + EscapeLiteral(s) + "'"
}

func ValidIdentifier(name string) bool {
	return identRegex.MatchString(name)
}

// ValidTablePath accepts table, schema.table or database.schema.table.
func ValidTablePath(path string) bool {
	parts := strings.Split(path, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return false
	}
	for _, part := range parts {
		if !ValidIdentifier(part) {
			return false
		}
	}
	return true
}

func ValidModelName(name string) bool {
	return modelNameRegex.MatchString(name)
}

// Finalize rebinds '?' placeholders for postgres.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

func IsUndefinedTable(err error) bool {
	if pgErr, ok := err.(*pq.Error); ok {
		return pgErr.Code == "42P01"
	}
	return false
}
