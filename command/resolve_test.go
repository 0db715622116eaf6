package command

import (
	"context"
	"errors"
	"testing"
)

type fakeLookup struct {
	commands map[Source]map[string]string
	err      error
	calls    int
}

func (f *fakeLookup) GetCommand(_ context.Context, source Source, name string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if c, ok := f.commands[source][name]; ok {
		return c, nil
	}
	return "", ErrNotFound
}

func TestResolveNotACommandSkipsLookup(t *testing.T) {
	lookup := &fakeLookup{}
	r := NewResolver(lookup, nil)

	for _, raw := range []string{"", "hello there", "  ", "!", "! help", "?help", "!\u00a0help", "!\u3000x"} {
		res, err := r.Resolve(context.Background(), Discord, raw)
		if err != nil {
			t.Fatalf("Resolve(%q) error: %v", raw, err)
		}
		if res.Outcome != NotACommand {
			t.Errorf("Resolve(%q) outcome = %v, want NotACommand", raw, res.Outcome)
		}
	}
	if lookup.calls != 0 {
		t.Errorf("lookup called %d times, want 0", lookup.calls)
	}
}

func TestResolveBuiltinAndAlias(t *testing.T) {
	r := NewResolver(&fakeLookup{}, nil)

	tests := []struct {
		raw      string
		wantName string
		wantKind Kind
		wantArgs string
	}{
		{"!help", "help", KindBuiltin, ""},
		{"!BOT", "help", KindBuiltin, ""},
		{"  !ban   Gandalf the Grey ", "ban", KindBuiltin, "Gandalf the Grey"},
		{"!ahelp", "admin_help", KindAdmin, ""},
		{"!custom_command list", "custom_commands", KindAdmin, "list"},
		{"!ohelp", "owner_help", KindOwner, ""},
	}
	for _, tt := range tests {
		res, err := r.Resolve(context.Background(), Twitch, tt.raw)
		if err != nil {
			t.Fatalf("Resolve(%q) error: %v", tt.raw, err)
		}
		if res.Outcome != BuiltIn || res.Name != tt.wantName || res.Kind != tt.wantKind || res.Args != tt.wantArgs {
			t.Errorf("Resolve(%q) = %+v, want builtin %s/%s args %q", tt.raw, res, tt.wantName, tt.wantKind, tt.wantArgs)
		}
	}
}

func TestResolveBuiltinShadowsCustom(t *testing.T) {
	lookup := &fakeLookup{commands: map[Source]map[string]string{
		Discord: {"help": "custom help text"},
	}}
	r := NewResolver(lookup, nil)

	res, err := r.Resolve(context.Background(), Discord, "!help")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != BuiltIn {
		t.Fatalf("outcome = %v, want BuiltIn", res.Outcome)
	}
	if lookup.calls != 0 {
		t.Errorf("custom lookup consulted for built-in name")
	}
}

func TestResolveCustomPerSource(t *testing.T) {
	lookup := &fakeLookup{commands: map[Source]map[string]string{
		Discord: {"hello": "Hi!"},
	}}
	r := NewResolver(lookup, nil)

	res, err := r.Resolve(context.Background(), Discord, "!Hello world")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != Custom || res.Content != "Hi!" || res.Name != "hello" || res.Args != "world" {
		t.Fatalf("discord resolve = %+v", res)
	}

	res, err = r.Resolve(context.Background(), Twitch, "!hello")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != NotACommand {
		t.Fatalf("twitch resolve outcome = %v, want NotACommand", res.Outcome)
	}
}

func TestResolveStorageFailure(t *testing.T) {
	r := NewResolver(&fakeLookup{err: errors.New("connection refused")}, nil)

	res, err := r.Resolve(context.Background(), Discord, "!hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if Classify(err) != ClassStorage {
		t.Errorf("Classify = %v, want storage", Classify(err))
	}
	if res.Outcome != NotACommand {
		t.Errorf("outcome = %v, want NotACommand", res.Outcome)
	}
}

func TestResolveCustomPrefix(t *testing.T) {
	r := NewResolver(&fakeLookup{}, map[Source]string{Twitch: "?"})

	res, _ := r.Resolve(context.Background(), Twitch, "?help")
	if res.Outcome != BuiltIn {
		t.Errorf("twitch ?help outcome = %v, want BuiltIn", res.Outcome)
	}
	res, _ = r.Resolve(context.Background(), Twitch, "!help")
	if res.Outcome != NotACommand {
		t.Errorf("twitch !help outcome = %v, want NotACommand", res.Outcome)
	}
	if got := r.Prefix(Discord); got != DefaultPrefix {
		t.Errorf("discord prefix = %q, want default", got)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		raw, prefix, token, args string
		ok                       bool
	}{
		{"!help", "!", "help", "", true},
		{"!ban  Gandalf  the Grey", "!", "ban", "Gandalf  the Grey", true},
		{"!ban\u00a0Gandalf", "!", "ban", "Gandalf", true},
		{"?!x", "?!", "x", "", true},
		{"!", "!", "", "", false},
		{"! help", "!", "", "", false},
		{"!\u00a0help", "!", "", "", false},
		{"!\u2003", "!", "", "", false},
		{"help", "!", "", "", false},
		{"!help", "", "", "", false},
	}
	for _, tt := range tests {
		token, args, ok := Split(tt.raw, tt.prefix)
		if token != tt.token || args != tt.args || ok != tt.ok {
			t.Errorf("Split(%q, %q) = %q, %q, %v; want %q, %q, %v",
				tt.raw, tt.prefix, token, args, ok, tt.token, tt.args, tt.ok)
		}
	}
}
