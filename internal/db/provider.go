package db

import (
	"context"
	"strconv"
	"strings"
)

// Querier runs statements on a connection or an open transaction.
// Statements use '?' placeholders regardless of the backing driver.
type Querier interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Rows is a forward-only cursor over query results.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Conn is a connection checked out of a Provider. Release returns it.
type Conn interface {
	Querier
	Release()
}

// Tx is an open transaction. The connection backing it is released once
// Commit or Rollback returns; Rollback after Commit is a harmless no-op.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Provider hands out connections and transactions.
// Implemented by *DB (PostgreSQL) and *SQLite.
type Provider interface {
	Acquire(ctx context.Context) (Conn, error)
	Begin(ctx context.Context) (Tx, error)
}

// rebind rewrites '?' placeholders into PostgreSQL's positional '$n' form.
// Question marks inside single-quoted literals are left alone.
func rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// withQuerier runs fn on tx, or on a freshly acquired connection when tx is
// nil. The acquired connection is released before withQuerier returns.
func withQuerier(ctx context.Context, p Provider, tx Tx, fn func(q Querier) error) error {
	if tx != nil {
		return fn(tx)
	}
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(conn)
}
