package store

import (
	"context"
	"database/sql"
	"strings"
)

// Rebind rewrites PostgreSQL $N placeholders into the driver's style.
// Queries must use each placeholder once, in ascending order.
func Rebind(driver, query string) string {
	if driver != DriverSQLite || !strings.Contains(query, "$") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '$' && i+1 < len(query) && isDigit(query[i+1]) {
			b.WriteByte('?')
			for i+1 < len(query) && isDigit(query[i+1]) {
				i++
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Bind wraps q so queries written with $N placeholders run on this
// database's driver.
func (db *Database) Bind(q Querier) Querier {
	if db.driver != DriverSQLite {
		return q
	}
	return rebinder{q: q, driver: db.driver}
}

// Q is Bind applied to the connection pool.
func (db *Database) Q() Querier {
	return db.Bind(db.conn)
}

type rebinder struct {
	q      Querier
	driver string
}

func (r rebinder) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return r.q.ExecContext(ctx, Rebind(r.driver, query), args...)
}

func (r rebinder) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, Rebind(r.driver, query), args...)
}

func (r rebinder) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return r.q.QueryRowContext(ctx, Rebind(r.driver, query), args...)
}
