package dispatch

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/onnwee/chatbot/command"
)

// maxListed bounds how many custom command names one reply shows.
const maxListed = 50

func (d *Dispatcher) help(_ context.Context, call *Call) (*command.Reply, error) {
	p := d.Prefix(call.Event.Source)
	return &command.Reply{Text: fmt.Sprintf(
		"Hi %s! I answer commands on Discord and Twitch. Try %scommands to see what I can do.",
		displayName(call.Event), p)}, nil
}

func (d *Dispatcher) commands(ctx context.Context, call *Call) (*command.Reply, error) {
	p := d.Prefix(call.Event.Source)
	var b strings.Builder
	b.WriteString("Commands: ")
	for i, bi := range command.BuiltinsFor(command.AccessUser) {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p + bi.Name)
	}

	names, err := d.customNames(ctx, call.Event.Source)
	if err != nil {
		return nil, err
	}
	if len(names) > 0 {
		b.WriteString(" | Custom: ")
		shown := names
		if len(shown) > maxListed {
			shown = shown[:maxListed]
		}
		for i, n := range shown {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p + n)
		}
		if len(names) > maxListed {
			fmt.Fprintf(&b, " and %d more", len(names)-maxListed)
		}
	}
	return &command.Reply{Text: b.String()}, nil
}

func (d *Dispatcher) linksCmd(_ context.Context, call *Call) (*command.Reply, error) {
	links := d.links[call.Event.Source]
	if len(links) == 0 {
		return &command.Reply{Text: "no links configured"}, nil
	}
	parts := make([]string, 0, len(links))
	for _, l := range links {
		parts = append(parts, l.Name+": "+l.URL)
	}
	return &command.Reply{Text: strings.Join(parts, " | ")}, nil
}

func (d *Dispatcher) ban(_ context.Context, call *Call) (*command.Reply, error) {
	target := strings.TrimSpace(call.Args)
	if target == "" {
		return nil, usageError(d.Prefix(call.Event.Source), call.Builtin)
	}
	return &command.Reply{Text: target + ", YOU SHALL NOT PASS!!"}, nil
}

func (d *Dispatcher) today(_ context.Context, _ *Call) (*command.Reply, error) {
	now := d.now().UTC()
	_, week := now.ISOWeek()
	return &command.Reply{Text: fmt.Sprintf("Today is %s (day %d of %d, week %d)",
		now.Format("Monday, 2 January 2006"), now.YearDay(), now.Year(), week)}, nil
}

func (d *Dispatcher) ftoc(_ context.Context, call *Call) (*command.Reply, error) {
	f, err := parseDegrees(call.Args)
	if err != nil {
		return nil, usageError(d.Prefix(call.Event.Source), call.Builtin)
	}
	return &command.Reply{Text: fmt.Sprintf("%.1f°F => %.1f°C", f, (f-32)*5/9)}, nil
}

func (d *Dispatcher) ctof(_ context.Context, call *Call) (*command.Reply, error) {
	c, err := parseDegrees(call.Args)
	if err != nil {
		return nil, usageError(d.Prefix(call.Event.Source), call.Builtin)
	}
	return &command.Reply{Text: fmt.Sprintf("%.1f°C => %.1f°F", c, c*9/5+32)}, nil
}

// parseDegrees reads the first argument as a finite number. A trailing unit
// letter or degree sign is tolerated ("350F", "20°C").
func parseDegrees(args string) (float64, error) {
	word, _ := splitWord(args)
	word = strings.TrimRightFunc(word, func(r rune) bool { return unicode.IsLetter(r) || r == '°' })
	v, err := strconv.ParseFloat(word, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", word)
	}
	return v, nil
}

func displayName(ev command.Event) string {
	if ev.UserName != "" {
		return ev.UserName
	}
	return "there"
}

// splitWord returns the first whitespace-separated word of s and the trimmed rest.
func splitWord(s string) (word, rest string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return s[:i], strings.TrimSpace(s[i:])
	}
	return s, ""
}
