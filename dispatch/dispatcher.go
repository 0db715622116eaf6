// Package dispatch runs one inbound chat event through
// Received -> Resolved -> Authorized -> Executed -> Accounted -> Responded.
//
// A NotACommand line ends at Resolved with no reply and no accounting.
// Privileged built-ins are authorized against configured owners and the
// admin registry of the event's source. Usage is recorded only after a
// handler succeeded, on a context detached from cancellation so a shutdown
// cannot interrupt a single increment. No error escapes Dispatch.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/chatbot/command"
	"github.com/onnwee/chatbot/config"
	"github.com/onnwee/chatbot/crates"
	"github.com/onnwee/chatbot/telemetry"
)

// Store is the persistence the dispatcher and its built-ins need.
type Store interface {
	command.CommandLookup
	CreateCommand(ctx context.Context, source command.Source, name, content string) error
	UpdateCommand(ctx context.Context, source command.Source, name, content string) error
	DeleteCommand(ctx context.Context, source command.Source, name string) error
	ListCommands(ctx context.Context, source command.Source) iter.Seq2[command.CustomCommand, error]

	AddAdmin(ctx context.Context, source command.Source, userID string) (bool, error)
	RemoveAdmin(ctx context.Context, source command.Source, userID string) error
	IsAdmin(ctx context.Context, source command.Source, userID string) (bool, error)
	ListAdmins(ctx context.Context, source command.Source) ([]string, error)

	TopForMonth(ctx context.Context, year int, month time.Month) ([]command.UsageRecord, error)
	TopAllTime(ctx context.Context) ([]command.UsageRecord, error)
}

// Recorder accounts one successful invocation.
type Recorder interface {
	Record(ctx context.Context, period command.Period, kind command.Kind, name string) error
}

// CrateLookup serves the crate and doc built-ins.
type CrateLookup interface {
	Lookup(ctx context.Context, name string) (*crates.Crate, error)
	DocLink(ctx context.Context, path string) (string, error)
}

// Handler executes a built-in.
type Handler func(ctx context.Context, call *Call) (*command.Reply, error)

// Call is the input of a built-in handler.
type Call struct {
	Event   command.Event
	Name    string
	Args    string
	Builtin *command.Builtin
}

// Options configures a Dispatcher.
type Options struct {
	Owners   map[command.Source][]string
	Prefixes map[command.Source]string
	Links    map[command.Source][]config.Link
	// Crates is nil when crate lookups are disabled.
	Crates CrateLookup
	// Now defaults to time.Now.
	Now func() time.Time
}

// Dispatcher is safe for concurrent use by every adapter.
type Dispatcher struct {
	store    Store
	recorder Recorder
	resolver *command.Resolver
	owners   map[command.Source]map[string]struct{}
	links    map[command.Source][]config.Link
	crates   CrateLookup
	now      func() time.Time
	handlers map[string]Handler
}

// Reply texts shared by several stages.
const (
	replyNotAllowed = "you are not allowed to use this command"
	replyFailed     = "sorry, something went wrong while running that command"
)

// Dispatch outcome labels.
const (
	outcomeIgnored      = "ignored"
	outcomeOK           = "ok"
	outcomeUnauthorized = "unauthorized"
	outcomeRejected     = "rejected"
	outcomeFailed       = "failed"
	outcomeStorage      = "storage_error"
)

// New wires a Dispatcher. The same store serves custom command lookup,
// admin checks and the mutating built-ins.
func New(st Store, rec Recorder, opts Options) *Dispatcher {
	d := &Dispatcher{
		store:    st,
		recorder: rec,
		resolver: command.NewResolver(st, opts.Prefixes),
		owners:   make(map[command.Source]map[string]struct{}),
		links:    opts.Links,
		crates:   opts.Crates,
		now:      opts.Now,
	}
	if d.now == nil {
		d.now = time.Now
	}
	for src, ids := range opts.Owners {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if id != "" {
				set[id] = struct{}{}
			}
		}
		d.owners[src] = set
	}
	d.handlers = map[string]Handler{
		"help":            d.help,
		"commands":        d.commands,
		"links":           d.linksCmd,
		"ban":             d.ban,
		"crate":           d.crateCmd,
		"doc":             d.doc,
		"today":           d.today,
		"ftoc":            d.ftoc,
		"ctof":            d.ctof,
		"admin_help":      d.adminHelp,
		"custom_commands": d.customCommands,
		"stats":           d.stats,
		"owner_help":      d.ownerHelp,
		"admins":          d.admins,
	}
	return d
}

// Prefix returns the trigger prefix of source.
func (d *Dispatcher) Prefix(source command.Source) string { return d.resolver.Prefix(source) }

// Dispatch processes ev and returns the reply to send, or nil for no reply.
func (d *Dispatcher) Dispatch(ctx context.Context, ev command.Event) *command.Reply {
	start := time.Now()
	reply, outcome := d.dispatch(ctx, ev)
	telemetry.ObserveDispatch(string(ev.Source), outcome, time.Since(start))
	return reply
}

func (d *Dispatcher) dispatch(ctx context.Context, ev command.Event) (*command.Reply, string) {
	if !ev.Source.Valid() || ev.UserID == "" {
		slog.Warn("dropping malformed event", slog.String("source", string(ev.Source)), slog.String("component", "dispatch"))
		return nil, outcomeIgnored
	}

	res, err := d.resolver.Resolve(ctx, ev.Source, ev.Text)
	if err != nil {
		slog.Error("command resolution failed", slog.String("source", string(ev.Source)),
			slog.Any("err", err), slog.String("component", "dispatch"))
		return nil, outcomeStorage
	}
	if res.Outcome == command.NotACommand {
		return nil, outcomeIgnored
	}

	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "dispatch", "command "+res.Name,
		append(telemetry.CommandAttr(res.Name, string(res.Kind)), telemetry.SourceAttr(string(ev.Source)))...)
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "dispatch"),
		slog.String("source", string(ev.Source)),
		slog.String("user", ev.UserID),
		slog.String("command", res.Name),
		slog.String("kind", string(res.Kind)))

	call := &Call{Event: ev, Name: res.Name, Args: res.Args, Builtin: res.Builtin}

	if res.Outcome == command.BuiltIn && res.Builtin.Access != command.AccessUser {
		if err := d.authorize(ctx, ev.Source, ev.UserID, res.Builtin.Access); err != nil {
			if errors.Is(err, command.ErrUnauthorized) {
				log.Info("unauthorized command attempt", slog.String("access", res.Builtin.Access.String()))
				return &command.Reply{Text: replyNotAllowed}, outcomeUnauthorized
			}
			telemetry.RecordError(span, err)
			log.Error("authorization check failed", slog.Any("err", err))
			return &command.Reply{Text: replyFailed}, outcomeStorage
		}
	}

	reply, err := d.execute(ctx, call, res)
	if err != nil {
		return d.failure(log, span, err)
	}

	d.account(ctx, log, ev.Source, res)
	telemetry.SetSpanSuccess(span)
	log.Debug("command executed")
	return reply, outcomeOK
}

// execute runs the built-in handler or returns the custom content verbatim.
// Panics become ExecutionErrors.
func (d *Dispatcher) execute(ctx context.Context, call *Call, res command.Resolved) (reply *command.Reply, err error) {
	if res.Outcome == command.Custom {
		return &command.Reply{Text: res.Content}, nil
	}
	defer func() {
		if r := recover(); r != nil {
			reply = nil
			err = &command.ExecutionError{Command: call.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	h, ok := d.handlers[res.Builtin.Name]
	if !ok {
		return nil, &command.ExecutionError{Command: call.Name, Err: errors.New("no handler registered")}
	}
	return h(ctx, call)
}

func (d *Dispatcher) failure(log *slog.Logger, span trace.Span, err error) (*command.Reply, string) {
	var rj *rejection
	if errors.As(err, &rj) {
		log.Info("command rejected", slog.String("class", command.Classify(err).String()), slog.String("reason", rj.msg))
		if errors.Is(err, command.ErrUnauthorized) {
			return &command.Reply{Text: rj.msg}, outcomeUnauthorized
		}
		return &command.Reply{Text: rj.msg}, outcomeRejected
	}
	telemetry.RecordError(span, err)
	class := command.Classify(err)
	log.Error("command failed", slog.String("class", class.String()), slog.Any("err", err))
	if class == command.ClassStorage {
		return &command.Reply{Text: replyFailed}, outcomeStorage
	}
	return &command.Reply{Text: replyFailed}, outcomeFailed
}

func (d *Dispatcher) account(ctx context.Context, log *slog.Logger, source command.Source, res command.Resolved) {
	actx := context.WithoutCancel(ctx)
	if err := d.recorder.Record(actx, command.PeriodOf(d.now()), res.Kind, res.Name); err != nil {
		log.Debug("usage not recorded", slog.Any("err", err))
	}
	telemetry.IncInvocation(string(source), string(res.Kind))
}
