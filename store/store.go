// Package store persists admins, custom commands and usage counters.
//
// Two implementations share one contract: SQL (Postgres or SQLite through
// database/sql) and Memory. Every mutation is a single atomic statement or a
// single critical section, so concurrent dispatches from both chat platforms
// never lose or duplicate an update. Stores do no authorization.
package store

import (
	"context"
	"iter"
	"sort"
	"time"

	"github.com/onnwee/chatbot/command"
)

// Store is the full persistence surface used by the dispatcher, the HTTP
// admin API and the CLI.
type Store interface {
	// Custom commands.
	CreateCommand(ctx context.Context, source command.Source, name, content string) error
	UpdateCommand(ctx context.Context, source command.Source, name, content string) error
	DeleteCommand(ctx context.Context, source command.Source, name string) error
	GetCommand(ctx context.Context, source command.Source, name string) (string, error)
	ListCommands(ctx context.Context, source command.Source) iter.Seq2[command.CustomCommand, error]

	// Admins.
	AddAdmin(ctx context.Context, source command.Source, userID string) (bool, error)
	RemoveAdmin(ctx context.Context, source command.Source, userID string) error
	IsAdmin(ctx context.Context, source command.Source, userID string) (bool, error)
	ListAdmins(ctx context.Context, source command.Source) ([]string, error)

	// Usage counters.
	RecordUsage(ctx context.Context, period command.Period, kind command.Kind, name string) error
	AddUsage(ctx context.Context, period command.Period, kind command.Kind, name string, delta int64) error
	TopForMonth(ctx context.Context, year int, month time.Month) ([]command.UsageRecord, error)
	TopAllTime(ctx context.Context) ([]command.UsageRecord, error)

	Ping(ctx context.Context) error
}

var (
	_ Store = (*SQL)(nil)
	_ Store = (*Memory)(nil)
)

// CollectCommands drains seq into a slice, stopping at the first error.
func CollectCommands(seq iter.Seq2[command.CustomCommand, error]) ([]command.CustomCommand, error) {
	var out []command.CustomCommand
	for c, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

func checkCreate(name string) error {
	if err := command.ValidateName(name); err != nil {
		return err
	}
	if command.IsReserved(name) {
		return command.ErrDuplicateCommand
	}
	return nil
}

// sortUsage orders by count descending, then name, then kind.
func sortUsage(recs []command.UsageRecord) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Kind < b.Kind
	})
}
