package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/onnwee/chatbot/command"
)

// statsLimit bounds the rows shown by the stats command.
const statsLimit = 10

func (d *Dispatcher) adminHelp(_ context.Context, call *Call) (*command.Reply, error) {
	return &command.Reply{Text: "Admin commands: " + usageList(d.Prefix(call.Event.Source), command.AccessAdmin)}, nil
}

func (d *Dispatcher) ownerHelp(_ context.Context, call *Call) (*command.Reply, error) {
	return &command.Reply{Text: "Owner commands: " + usageList(d.Prefix(call.Event.Source), command.AccessOwner)}, nil
}

func usageList(prefix string, access command.Access) string {
	var parts []string
	for _, b := range command.BuiltinsFor(access) {
		parts = append(parts, prefix+b.Usage+" ("+b.Help+")")
	}
	return strings.Join(parts, " || ")
}

func (d *Dispatcher) customCommands(ctx context.Context, call *Call) (*command.Reply, error) {
	p := d.Prefix(call.Event.Source)
	action, rest := splitWord(call.Args)
	switch strings.ToLower(action) {
	case "list", "ls":
		targets, _, err := d.targetSources(ctx, call, rest, command.AccessAdmin)
		if err != nil {
			return nil, err
		}
		return eachTarget(targets, func(target command.Source) (*command.Reply, error) {
			return d.listCustom(ctx, target, p)
		})

	case "add", "create", "edit", "update":
		targets, rest, err := d.targetSources(ctx, call, rest, command.AccessAdmin)
		if err != nil {
			return nil, err
		}
		word, content := splitWord(rest)
		if word == "" || content == "" {
			return nil, usageError(p, call.Builtin)
		}
		name := command.NormalizeName(word)
		if err := command.ValidateName(name); err != nil {
			return nil, reject(err, "%v", err)
		}
		create := strings.ToLower(action) == "add" || strings.ToLower(action) == "create"
		return eachTarget(targets, func(target command.Source) (*command.Reply, error) {
			if create {
				return d.addCustom(ctx, target, name, content, p)
			}
			return d.editCustom(ctx, target, name, content, p)
		})

	case "remove", "rm", "delete":
		targets, rest, err := d.targetSources(ctx, call, rest, command.AccessAdmin)
		if err != nil {
			return nil, err
		}
		word, _ := splitWord(rest)
		if word == "" {
			return nil, usageError(p, call.Builtin)
		}
		name := command.NormalizeName(strings.TrimPrefix(word, p))
		return eachTarget(targets, func(target command.Source) (*command.Reply, error) {
			if err := d.store.DeleteCommand(ctx, target, name); err != nil {
				if errors.Is(err, command.ErrNotFound) {
					return nil, d.notFound(ctx, target, name, p)
				}
				return nil, err
			}
			return &command.Reply{Text: fmt.Sprintf("removed %s%s from %s", p, name, target)}, nil
		})

	default:
		return nil, usageError(p, call.Builtin)
	}
}

// eachTarget runs fn per source and joins the replies. A rejection on one
// source is reported alongside the others; the invocation only fails when
// every source rejected it. Any other error stops at once.
func eachTarget(targets []command.Source, fn func(command.Source) (*command.Reply, error)) (*command.Reply, error) {
	if len(targets) == 1 {
		return fn(targets[0])
	}
	var (
		parts    []string
		rejected error
		ok       bool
	)
	for _, target := range targets {
		r, err := fn(target)
		var rj *rejection
		switch {
		case err == nil:
			ok = true
			parts = append(parts, r.Text)
		case errors.As(err, &rj):
			rejected = err
			parts = append(parts, rj.msg)
		default:
			return nil, err
		}
	}
	if !ok {
		return nil, reject(rejected, "%s", strings.Join(parts, "; "))
	}
	return &command.Reply{Text: strings.Join(parts, "; ")}, nil
}

func (d *Dispatcher) listCustom(ctx context.Context, target command.Source, p string) (*command.Reply, error) {
	names, err := d.customNames(ctx, target)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return &command.Reply{Text: fmt.Sprintf("no custom commands on %s", target)}, nil
	}
	for i, n := range names {
		names[i] = p + n
	}
	return &command.Reply{Text: fmt.Sprintf("%d custom commands on %s: %s", len(names), target, strings.Join(names, ", "))}, nil
}

func (d *Dispatcher) addCustom(ctx context.Context, target command.Source, name, content, p string) (*command.Reply, error) {
	err := d.store.CreateCommand(ctx, target, name, content)
	switch {
	case err == nil:
		return &command.Reply{Text: fmt.Sprintf("added %s%s on %s", p, name, target)}, nil
	case errors.Is(err, command.ErrDuplicateCommand) && command.IsReserved(name):
		return nil, reject(err, "%s%s is a built-in command", p, name)
	case errors.Is(err, command.ErrDuplicateCommand):
		return nil, reject(err, "%s%s already exists on %s; use edit to change it", p, name, target)
	case errors.Is(err, command.ErrInvalidName):
		return nil, reject(err, "%v", err)
	default:
		return nil, err
	}
}

func (d *Dispatcher) editCustom(ctx context.Context, target command.Source, name, content, p string) (*command.Reply, error) {
	err := d.store.UpdateCommand(ctx, target, name, content)
	switch {
	case err == nil:
		return &command.Reply{Text: fmt.Sprintf("updated %s%s on %s", p, name, target)}, nil
	case errors.Is(err, command.ErrNotFound):
		return nil, d.notFound(ctx, target, name, p)
	default:
		return nil, err
	}
}

// notFound builds the rejection for a missing custom command, with up to
// three close names as suggestions.
func (d *Dispatcher) notFound(ctx context.Context, target command.Source, name, p string) error {
	msg := fmt.Sprintf("no custom command %s%s on %s", p, name, target)
	names, err := d.customNames(ctx, target)
	if err != nil {
		return reject(command.ErrNotFound, "%s", msg)
	}
	if s := suggest(name, names, 3); len(s) > 0 {
		for i := range s {
			s[i] = p + s[i]
		}
		msg += "; did you mean " + strings.Join(s, ", ") + "?"
	}
	return reject(command.ErrNotFound, "%s", msg)
}

func suggest(name string, names []string, limit int) []string {
	matches := fuzzy.Find(name, names)
	var out []string
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

// customNames drains ListCommands before any further store call.
func (d *Dispatcher) customNames(ctx context.Context, source command.Source) ([]string, error) {
	var names []string
	for c, err := range d.store.ListCommands(ctx, source) {
		if err != nil {
			return nil, err
		}
		names = append(names, c.Name)
	}
	return names, nil
}

func (d *Dispatcher) stats(ctx context.Context, call *Call) (*command.Reply, error) {
	arg, _ := splitWord(call.Args)
	var (
		title string
		recs  []command.UsageRecord
		err   error
	)
	switch strings.ToLower(arg) {
	case "", "current", "month":
		period := command.PeriodOf(d.now())
		title = "Usage for " + period.String()
		recs, err = d.store.TopForMonth(ctx, period.Year, period.Month)
	case "total", "all":
		title = "Usage of all time"
		recs, err = d.store.TopAllTime(ctx)
	default:
		period, perr := command.ParsePeriod(arg)
		if perr != nil {
			return nil, usageError(d.Prefix(call.Event.Source), call.Builtin)
		}
		title = "Usage for " + period.String()
		recs, err = d.store.TopForMonth(ctx, period.Year, period.Month)
	}
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return &command.Reply{Text: title + ": nothing recorded"}, nil
	}
	return &command.Reply{Text: title + ": " + formatUsage(recs, d.Prefix(call.Event.Source))}, nil
}

func formatUsage(recs []command.UsageRecord, p string) string {
	var b strings.Builder
	for i, r := range recs {
		if i == statsLimit {
			fmt.Fprintf(&b, " (+%d more)", len(recs)-statsLimit)
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d. %s%s [%s] %d", i+1, p, r.Name, r.Kind, r.Count)
	}
	return b.String()
}
