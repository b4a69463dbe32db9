package dbutil

import "github.com/jmoiron/sqlx"

// Finalize rewrites a gendry-built query ("?" placeholders) into the
// dollar form Postgres expects. The embedding cache queries never page,
// so no LIMIT clause rewriting is needed.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}
