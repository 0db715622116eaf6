package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/onnwee/chatbot/command"
)

func (d *Dispatcher) admins(ctx context.Context, call *Call) (*command.Reply, error) {
	p := d.Prefix(call.Event.Source)
	action, rest := splitWord(call.Args)
	switch strings.ToLower(action) {
	case "list", "ls":
		target, _, err := d.targetSource(ctx, call, rest, command.AccessOwner)
		if err != nil {
			return nil, err
		}
		ids, err := d.store.ListAdmins(ctx, target)
		if err != nil {
			return nil, err
		}
		owners := d.Owners(target)
		sort.Strings(owners)
		return &command.Reply{Text: fmt.Sprintf("%s owners: %s | admins: %s", target, orNone(owners), orNone(ids))}, nil

	case "add", "remove", "rm", "delete":
		target, rest, err := d.targetSource(ctx, call, rest, command.AccessOwner)
		if err != nil {
			return nil, err
		}
		id, err := userArg(call, target, rest)
		if err != nil {
			return nil, reject(command.ErrUsage, "%v; usage: %s%s", err, p, call.Builtin.Usage)
		}
		if strings.ToLower(action) == "add" {
			added, err := d.store.AddAdmin(ctx, target, id)
			if err != nil {
				return nil, err
			}
			if !added {
				return &command.Reply{Text: fmt.Sprintf("%s is already an admin on %s", id, target)}, nil
			}
			return &command.Reply{Text: fmt.Sprintf("%s is now an admin on %s", id, target)}, nil
		}
		if err := d.store.RemoveAdmin(ctx, target, id); err != nil {
			if errors.Is(err, command.ErrNotFound) {
				return nil, reject(err, "%s is not an admin on %s", id, target)
			}
			return nil, err
		}
		return &command.Reply{Text: fmt.Sprintf("%s is no longer an admin on %s", id, target)}, nil

	default:
		return nil, usageError(p, call.Builtin)
	}
}

// userArg reads the target user id from the first argument, accepting a
// Discord mention (<@id> or <@!id>). Without an argument the event's mention
// is used when it belongs to the same source.
func userArg(call *Call, target command.Source, args string) (string, error) {
	word, _ := splitWord(args)
	id := stripMention(word)
	if id == "" && target == call.Event.Source {
		id = call.Event.Mention
	}
	if id == "" {
		return "", errors.New("missing user id")
	}
	if err := command.ValidateUserID(target, id); err != nil {
		return "", err
	}
	return id, nil
}

func stripMention(word string) string {
	if strings.HasPrefix(word, "<@") && strings.HasSuffix(word, ">") {
		return strings.TrimPrefix(strings.TrimSuffix(word[2:], ">"), "!")
	}
	return word
}

func orNone(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}
