package command

import (
	"fmt"
	"strings"
)

// Source identifies the chat platform an event came from.
type Source string

const (
	Discord Source = "discord"
	Twitch  Source = "twitch"
)

// Sources lists every supported platform in display order.
var Sources = []Source{Discord, Twitch}

// Valid reports whether s is a known platform.
func (s Source) Valid() bool {
	return s == Discord || s == Twitch
}

func (s Source) String() string { return string(s) }

// ParseSource accepts a platform name in any letter case.
func ParseSource(v string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown source %q (want discord or twitch)", v)
	}
	return s, nil
}
