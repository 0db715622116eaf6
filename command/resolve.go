package command

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultPrefix is the trigger used when a source has no configured prefix.
const DefaultPrefix = "!"

// Outcome is the result class of resolving a chat line.
type Outcome int

const (
	NotACommand Outcome = iota
	BuiltIn
	Custom
)

func (o Outcome) String() string {
	switch o {
	case BuiltIn:
		return "builtin"
	case Custom:
		return "custom"
	default:
		return "not_a_command"
	}
}

// Resolved is the transient result of Resolve.
type Resolved struct {
	Outcome Outcome
	Kind    Kind
	// Name is the canonical name: the built-in's primary name (never an
	// alias) or the custom command name.
	Name string
	// Args is the trimmed text after the command token.
	Args    string
	Builtin *Builtin
	Content string
}

// CommandLookup reads custom command content.
type CommandLookup interface {
	GetCommand(ctx context.Context, source Source, name string) (string, error)
}

// Resolver classifies raw chat lines.
type Resolver struct {
	lookup   CommandLookup
	prefixes map[Source]string
}

// NewResolver builds a Resolver. Sources missing from prefixes use DefaultPrefix.
func NewResolver(lookup CommandLookup, prefixes map[Source]string) *Resolver {
	p := make(map[Source]string, len(Sources))
	for _, s := range Sources {
		p[s] = DefaultPrefix
	}
	for s, v := range prefixes {
		if v != "" {
			p[s] = v
		}
	}
	return &Resolver{lookup: lookup, prefixes: p}
}

// Prefix returns the trigger prefix for source.
func (r *Resolver) Prefix(source Source) string {
	if p, ok := r.prefixes[source]; ok {
		return p
	}
	return DefaultPrefix
}

// Resolve parses raw and resolves it against the built-in table first and
// the custom commands of source second. A lookup miss is NotACommand; any
// other lookup failure is returned as a StorageError.
func (r *Resolver) Resolve(ctx context.Context, source Source, raw string) (Resolved, error) {
	token, args, ok := Split(raw, r.Prefix(source))
	if !ok {
		return Resolved{Outcome: NotACommand}, nil
	}
	name := NormalizeName(token)

	if b, ok := LookupBuiltin(name); ok {
		return Resolved{Outcome: BuiltIn, Kind: b.Kind, Name: b.Name, Args: args, Builtin: b}, nil
	}

	content, err := r.lookup.GetCommand(ctx, source, name)
	switch {
	case errors.Is(err, ErrNotFound):
		return Resolved{Outcome: NotACommand}, nil
	case err != nil:
		var se *StorageError
		if !errors.As(err, &se) {
			err = Storage("get command", err)
		}
		return Resolved{Outcome: NotACommand}, err
	}
	return Resolved{Outcome: Custom, Kind: KindCustom, Name: name, Args: args, Content: content}, nil
}

// Split strips prefix from raw and returns the first token and the trimmed
// remainder. ok is false when raw does not start with prefix or no token follows.
func Split(raw, prefix string) (token, args string, ok bool) {
	raw = strings.TrimSpace(raw)
	if prefix == "" || !strings.HasPrefix(raw, prefix) {
		return "", "", false
	}
	rest := raw[len(prefix):]
	if r, _ := utf8.DecodeRuneInString(rest); rest == "" || unicode.IsSpace(r) {
		return "", "", false
	}
	token, args = rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		token, args = rest[:i], strings.TrimSpace(rest[i:])
	}
	if token == "" {
		return "", "", false
	}
	return token, args, true
}
