package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/onnwee/chatbot/command"
)

// Dispatcher handles one normalized chat event.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev command.Event) *command.Reply
	Prefix(source command.Source) string
}

// DefaultMaxInFlight bounds concurrent dispatches per adapter.
const DefaultMaxInFlight = 16

// workers runs dispatches on goroutines, at most cap(slots) at a time.
type workers struct {
	slots chan struct{}
	wg    sync.WaitGroup
}

func newWorkers(n int) *workers {
	if n <= 0 {
		n = DefaultMaxInFlight
	}
	return &workers{slots: make(chan struct{}, n)}
}

// spawn runs fn once a slot is free. It never blocks the caller.
func (w *workers) spawn(ctx context.Context, fn func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case w.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-w.slots }()
		fn()
	}()
}

// wait blocks until every spawned dispatch has finished.
func (w *workers) wait() { w.wg.Wait() }

// active returns the number of dispatches currently holding a slot.
func (w *workers) active() int { return len(w.slots) }

// looksLikeCommand is the cheap pre-filter applied before spawning.
func looksLikeCommand(text, prefix string) bool {
	return prefix != "" && strings.HasPrefix(strings.TrimSpace(text), prefix)
}

// splitMessage breaks text into chunks of at most limit runes, preferring to
// cut at whitespace in the second half of a chunk.
func splitMessage(text string, limit int) []string {
	runes := []rune(strings.TrimSpace(text))
	var out []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace))
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

func adapterLogger(source command.Source) *slog.Logger {
	return slog.Default().With(slog.String("component", "chat"), slog.String("source", string(source)))
}
