// Package sqlxrepos implements the domain repositories on PostgreSQL via sqlx.
//
// Visibility scopes are rendered into WHERE fragments before any caller
// filter is ANDed in, so a filter can only narrow an already-scoped set.
// An empty scope short-circuits to an empty result without hitting the DB.
package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

// orderBy renders an ORDER BY clause from the requested orderings, dropping
// fields that are not known columns of the table. Falls back to a default
// ordering when nothing survives.
func orderBy(ordering []core.DBOrdering, cols map[string]struct{}, fallback string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if _, ok := cols[ord.Field]; ok {
			parts = append(parts, ord.String())
		}
	}
	if len(parts) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// deleteByID expands ids into a DELETE ... WHERE id IN (...) statement.
func deleteByID(ctx context.Context, db *sqlx.DB, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM `+table+` WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, db.Rebind(q), args...)
	return err
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (code 23505), meaning a concurrent writer won the natural key.
func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolationCode
}

const uniqueViolationCode = pq.ErrorCode("23505")

func cols(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}
