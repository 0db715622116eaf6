package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/onnwee/chatbot/command"
	"github.com/onnwee/chatbot/db"
)

// SQL is a Store backed by database/sql. Queries use $N placeholders in
// ascending order, which both pgx and go-sqlite3 bind positionally.
type SQL struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewSQL wraps an open, migrated database.
func NewSQL(database *sql.DB, dialect db.Dialect) *SQL {
	return &SQL{db: database, dialect: dialect}
}

// Dialect reports the SQL flavor in use.
func (s *SQL) Dialect() db.Dialect { return s.dialect }

// Ping checks connectivity.
func (s *SQL) Ping(ctx context.Context) error {
	return command.Storage("ping", s.db.PingContext(ctx))
}

// CreateCommand inserts a new custom command. An existing pair or a reserved
// name yields ErrDuplicateCommand.
func (s *SQL) CreateCommand(ctx context.Context, source command.Source, name, content string) error {
	if err := checkCreate(name); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO custom_commands(source, name, content) VALUES($1, $2, $3)
		 ON CONFLICT(source, name) DO NOTHING`,
		string(source), name, content)
	if err != nil {
		return command.Storage("create command", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return command.Storage("create command", err)
	}
	if n == 0 {
		return command.ErrDuplicateCommand
	}
	return nil
}

// UpdateCommand replaces the content of an existing custom command.
func (s *SQL) UpdateCommand(ctx context.Context, source command.Source, name, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE custom_commands SET content=$1, updated_at=CURRENT_TIMESTAMP WHERE source=$2 AND name=$3`,
		content, string(source), name)
	return affectedOne(res, err, "update command")
}

// DeleteCommand removes a custom command. Its usage history is kept.
func (s *SQL) DeleteCommand(ctx context.Context, source command.Source, name string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM custom_commands WHERE source=$1 AND name=$2`, string(source), name)
	return affectedOne(res, err, "delete command")
}

// GetCommand returns the content of (source, name) or ErrNotFound.
func (s *SQL) GetCommand(ctx context.Context, source command.Source, name string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM custom_commands WHERE source=$1 AND name=$2`, string(source), name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", command.ErrNotFound
	}
	if err != nil {
		return "", command.Storage("get command", err)
	}
	return content, nil
}

// ListCommands streams the commands of source ordered by name. Each range
// runs a fresh query. With SQLite's single connection, callers must not issue
// other queries from inside the loop.
func (s *SQL) ListCommands(ctx context.Context, source command.Source) iter.Seq2[command.CustomCommand, error] {
	return func(yield func(command.CustomCommand, error) bool) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT name, content FROM custom_commands WHERE source=$1 ORDER BY name`, string(source))
		if err != nil {
			yield(command.CustomCommand{}, command.Storage("list commands", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			c := command.CustomCommand{Source: source}
			if err := rows.Scan(&c.Name, &c.Content); err != nil {
				yield(command.CustomCommand{}, command.Storage("list commands", err))
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(command.CustomCommand{}, command.Storage("list commands", err))
		}
	}
}

// AddAdmin grants admin rights. It reports false when the user already was one.
func (s *SQL) AddAdmin(ctx context.Context, source command.Source, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO admins(source, user_id) VALUES($1, $2) ON CONFLICT(source, user_id) DO NOTHING`,
		string(source), userID)
	if err != nil {
		return false, command.Storage("add admin", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, command.Storage("add admin", err)
	}
	return n > 0, nil
}

// RemoveAdmin revokes admin rights or returns ErrNotFound.
func (s *SQL) RemoveAdmin(ctx context.Context, source command.Source, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM admins WHERE source=$1 AND user_id=$2`, string(source), userID)
	return affectedOne(res, err, "remove admin")
}

// IsAdmin is a primary key lookup.
func (s *SQL) IsAdmin(ctx context.Context, source command.Source, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM admins WHERE source=$1 AND user_id=$2`, string(source), userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, command.Storage("is admin", err)
	}
	return true, nil
}

// ListAdmins returns the admin ids of source in ascending order.
func (s *SQL) ListAdmins(ctx context.Context, source command.Source) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM admins WHERE source=$1 ORDER BY user_id`, string(source))
	if err != nil {
		return nil, command.Storage("list admins", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, command.Storage("list admins", err)
		}
		ids = append(ids, id)
	}
	return ids, command.Storage("list admins", rows.Err())
}

// RecordUsage adds one to the (period, kind, name) counter.
func (s *SQL) RecordUsage(ctx context.Context, period command.Period, kind command.Kind, name string) error {
	return s.AddUsage(ctx, period, kind, name, 1)
}

// AddUsage adds delta in a single upsert, so concurrent increments of one key
// serialize inside the database.
func (s *SQL) AddUsage(ctx context.Context, period command.Period, kind command.Kind, name string, delta int64) error {
	if delta <= 0 {
		return fmt.Errorf("%w: usage delta must be positive, got %d", command.ErrUsage, delta)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO command_usage(year, month, kind, name, count) VALUES($1, $2, $3, $4, $5)
		 ON CONFLICT(year, month, kind, name) DO UPDATE SET count = command_usage.count + excluded.count`,
		period.Year, int(period.Month), string(kind), name, delta)
	return command.Storage("record usage", err)
}

// TopForMonth returns the counters of one month by count descending, ties by name.
func (s *SQL) TopForMonth(ctx context.Context, year int, month time.Month) ([]command.UsageRecord, error) {
	return s.queryUsage(ctx, "top for month",
		`SELECT kind, name, count FROM command_usage WHERE year=$1 AND month=$2
		 ORDER BY count DESC, name ASC, kind ASC`, year, int(month))
}

// TopAllTime sums every month per (kind, name).
func (s *SQL) TopAllTime(ctx context.Context) ([]command.UsageRecord, error) {
	return s.queryUsage(ctx, "top all time",
		`SELECT kind, name, CAST(SUM(count) AS BIGINT) AS total FROM command_usage
		 GROUP BY kind, name ORDER BY total DESC, name ASC, kind ASC`)
}

func (s *SQL) queryUsage(ctx context.Context, op, q string, args ...any) ([]command.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, command.Storage(op, err)
	}
	defer rows.Close()
	var out []command.UsageRecord
	for rows.Next() {
		var r command.UsageRecord
		var kind string
		if err := rows.Scan(&kind, &r.Name, &r.Count); err != nil {
			return nil, command.Storage(op, err)
		}
		r.Kind = command.Kind(kind)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, command.Storage(op, err)
	}
	// Same ordering regardless of the dialect's collation.
	sortUsage(out)
	return out, nil
}

func affectedOne(res sql.Result, err error, op string) error {
	if err != nil {
		return command.Storage(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return command.Storage(op, err)
	}
	if n == 0 {
		return command.ErrNotFound
	}
	return nil
}
