package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/onnwee/chatbot/command"
	"github.com/onnwee/chatbot/crates"
	"github.com/onnwee/chatbot/telemetry"
)

// maxDescription bounds the crate description quoted in a reply.
const maxDescription = 160

var errLookupsDisabled = errors.New("crate lookups disabled")

func (d *Dispatcher) crateCmd(ctx context.Context, call *Call) (*command.Reply, error) {
	name, _ := splitWord(call.Args)
	if name == "" {
		return nil, usageError(d.Prefix(call.Event.Source), call.Builtin)
	}
	if d.crates == nil {
		return nil, reject(errLookupsDisabled, "crate lookups are disabled")
	}
	cr, err := d.crates.Lookup(ctx, name)
	switch {
	case err == nil:
	case errors.Is(err, crates.ErrInvalidName):
		return nil, reject(command.ErrUsage, "%q is not a valid crate name", name)
	case errors.Is(err, crates.ErrNotFound):
		return &command.Reply{Text: fmt.Sprintf("crate %s doesn't exist", name)}, nil
	default:
		return nil, lookupFailed(ctx, err, "sorry, something went wrong looking up the crate")
	}

	text := fmt.Sprintf("%s %s", cr.Name, cr.NewestVersion)
	if desc := shorten(cr.Description, maxDescription); desc != "" {
		text += ": " + desc
	}
	return &command.Reply{Text: text + " " + cr.URL()}, nil
}

func (d *Dispatcher) doc(ctx context.Context, call *Call) (*command.Reply, error) {
	path, _ := splitWord(call.Args)
	if path == "" {
		return nil, usageError(d.Prefix(call.Event.Source), call.Builtin)
	}
	if d.crates == nil {
		return nil, reject(errLookupsDisabled, "documentation lookups are disabled")
	}
	link, err := d.crates.DocLink(ctx, path)
	switch {
	case err == nil:
		return &command.Reply{Text: link}, nil
	case errors.Is(err, crates.ErrInvalidPath):
		return nil, reject(command.ErrUsage, "the path %s is invalid", path)
	case errors.Is(err, crates.ErrNotFound):
		crate, _, _ := strings.Cut(path, "::")
		return &command.Reply{Text: fmt.Sprintf("crate %s doesn't exist", crate)}, nil
	default:
		return nil, lookupFailed(ctx, err, "sorry, something went wrong looking up the documentation")
	}
}

// lookupFailed logs an upstream failure and turns it into an uncounted reply.
func lookupFailed(ctx context.Context, err error, msg string) error {
	telemetry.LoggerWithCorr(ctx).Error("crates.io lookup failed", slog.Any("err", err),
		slog.String("component", "dispatch"))
	return reject(err, "%s", msg)
}

// shorten collapses whitespace and cuts s to at most n runes.
func shorten(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
