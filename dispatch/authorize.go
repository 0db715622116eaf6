package dispatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/onnwee/chatbot/command"
)

// rejection is a user-facing refusal: the reply text is shown as-is and the
// invocation is not counted.
type rejection struct {
	msg string
	err error
}

func (r *rejection) Error() string { return r.msg }
func (r *rejection) Unwrap() error { return r.err }

func reject(err error, format string, args ...any) error {
	return &rejection{msg: fmt.Sprintf(format, args...), err: err}
}

func usageError(prefix string, b *command.Builtin) error {
	return reject(command.ErrUsage, "usage: %s%s", prefix, b.Usage)
}

// IsOwner reports whether userID is a configured owner on source.
func (d *Dispatcher) IsOwner(source command.Source, userID string) bool {
	_, ok := d.owners[source][userID]
	return ok
}

// Owners lists the configured owners of source.
func (d *Dispatcher) Owners(source command.Source) []string {
	out := make([]string, 0, len(d.owners[source]))
	for id := range d.owners[source] {
		out = append(out, id)
	}
	return out
}

// authorize checks userID against access on source. Owners hold every
// privilege; admins hold AccessAdmin. A registry failure is returned as a
// storage error, never as a denial.
func (d *Dispatcher) authorize(ctx context.Context, source command.Source, userID string, access command.Access) error {
	switch access {
	case command.AccessUser:
		return nil
	case command.AccessOwner:
		if d.IsOwner(source, userID) {
			return nil
		}
		return command.ErrUnauthorized
	default:
		if d.IsOwner(source, userID) {
			return nil
		}
		ok, err := d.store.IsAdmin(ctx, source, userID)
		if err != nil {
			return err
		}
		if !ok {
			return command.ErrUnauthorized
		}
		return nil
	}
}

// targetSource consumes an optional leading source word from args. Acting on
// another source requires the same access there, checked against the
// invoker's id on that source.
func (d *Dispatcher) targetSource(ctx context.Context, call *Call, args string, access command.Access) (command.Source, string, error) {
	word, rest := splitWord(args)
	target, err := command.ParseSource(word)
	if word == "" || err != nil {
		return call.Event.Source, args, nil
	}
	if err := d.authorizeTarget(ctx, call, target, access); err != nil {
		return "", "", err
	}
	return target, rest, nil
}

// targetSources is targetSource that also accepts "all", meaning every
// source. The invoker needs access on each of them.
func (d *Dispatcher) targetSources(ctx context.Context, call *Call, args string, access command.Access) ([]command.Source, string, error) {
	word, rest := splitWord(args)
	if !strings.EqualFold(word, "all") {
		target, rest, err := d.targetSource(ctx, call, args, access)
		if err != nil {
			return nil, "", err
		}
		return []command.Source{target}, rest, nil
	}
	for _, target := range command.Sources {
		if err := d.authorizeTarget(ctx, call, target, access); err != nil {
			return nil, "", err
		}
	}
	return slices.Clone(command.Sources), rest, nil
}

func (d *Dispatcher) authorizeTarget(ctx context.Context, call *Call, target command.Source, access command.Access) error {
	if target == call.Event.Source {
		return nil
	}
	if err := d.authorize(ctx, target, call.Event.UserID, access); err != nil {
		if errors.Is(err, command.ErrUnauthorized) {
			return reject(err, "you are not %s on %s", article(access), target)
		}
		return err
	}
	return nil
}

func article(a command.Access) string {
	if a == command.AccessOwner {
		return "an owner"
	}
	return "an admin"
}
