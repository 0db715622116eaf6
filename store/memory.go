package store

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onnwee/chatbot/command"
)

type commandKey struct {
	source command.Source
	name   string
}

type usageKey struct {
	period command.Period
	kind   command.Kind
	name   string
}

// Memory is an in-process Store. Commands and admins sit behind one RWMutex;
// each usage counter is its own atomic so increments of different keys never
// contend.
type Memory struct {
	mu       sync.RWMutex
	commands map[commandKey]string
	admins   map[command.Source]map[string]struct{}

	usageMu sync.RWMutex
	usage   map[usageKey]*atomic.Int64
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		commands: make(map[commandKey]string),
		admins:   make(map[command.Source]map[string]struct{}),
		usage:    make(map[usageKey]*atomic.Int64),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) CreateCommand(_ context.Context, source command.Source, name, content string) error {
	if err := checkCreate(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := commandKey{source, name}
	if _, ok := m.commands[k]; ok {
		return command.ErrDuplicateCommand
	}
	m.commands[k] = content
	return nil
}

func (m *Memory) UpdateCommand(_ context.Context, source command.Source, name, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := commandKey{source, name}
	if _, ok := m.commands[k]; !ok {
		return command.ErrNotFound
	}
	m.commands[k] = content
	return nil
}

func (m *Memory) DeleteCommand(_ context.Context, source command.Source, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := commandKey{source, name}
	if _, ok := m.commands[k]; !ok {
		return command.ErrNotFound
	}
	delete(m.commands, k)
	return nil
}

func (m *Memory) GetCommand(_ context.Context, source command.Source, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.commands[commandKey{source, name}]
	if !ok {
		return "", command.ErrNotFound
	}
	return c, nil
}

// ListCommands snapshots the commands of source when ranged, ordered by name.
func (m *Memory) ListCommands(_ context.Context, source command.Source) iter.Seq2[command.CustomCommand, error] {
	return func(yield func(command.CustomCommand, error) bool) {
		m.mu.RLock()
		var out []command.CustomCommand
		for k, content := range m.commands {
			if k.source == source {
				out = append(out, command.CustomCommand{Source: source, Name: k.name, Content: content})
			}
		}
		m.mu.RUnlock()
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		for _, c := range out {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func (m *Memory) AddAdmin(_ context.Context, source command.Source, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.admins[source]
	if !ok {
		set = make(map[string]struct{})
		m.admins[source] = set
	}
	if _, ok := set[userID]; ok {
		return false, nil
	}
	set[userID] = struct{}{}
	return true, nil
}

func (m *Memory) RemoveAdmin(_ context.Context, source command.Source, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.admins[source][userID]; !ok {
		return command.ErrNotFound
	}
	delete(m.admins[source], userID)
	return nil
}

func (m *Memory) IsAdmin(_ context.Context, source command.Source, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.admins[source][userID]
	return ok, nil
}

func (m *Memory) ListAdmins(_ context.Context, source command.Source) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.admins[source]))
	for id := range m.admins[source] {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) RecordUsage(ctx context.Context, period command.Period, kind command.Kind, name string) error {
	return m.AddUsage(ctx, period, kind, name, 1)
}

func (m *Memory) AddUsage(_ context.Context, period command.Period, kind command.Kind, name string, delta int64) error {
	if delta <= 0 {
		return fmt.Errorf("%w: usage delta must be positive, got %d", command.ErrUsage, delta)
	}
	m.counter(usageKey{period, kind, name}).Add(delta)
	return nil
}

func (m *Memory) counter(k usageKey) *atomic.Int64 {
	m.usageMu.RLock()
	c, ok := m.usage[k]
	m.usageMu.RUnlock()
	if ok {
		return c
	}
	m.usageMu.Lock()
	defer m.usageMu.Unlock()
	if c, ok := m.usage[k]; ok {
		return c
	}
	c = new(atomic.Int64)
	m.usage[k] = c
	return c
}

func (m *Memory) TopForMonth(_ context.Context, year int, month time.Month) ([]command.UsageRecord, error) {
	p := command.Period{Year: year, Month: month}
	var out []command.UsageRecord
	m.usageMu.RLock()
	for k, c := range m.usage {
		if k.period == p {
			out = append(out, command.UsageRecord{Kind: k.kind, Name: k.name, Count: c.Load()})
		}
	}
	m.usageMu.RUnlock()
	sortUsage(out)
	return out, nil
}

func (m *Memory) TopAllTime(context.Context) ([]command.UsageRecord, error) {
	type nameKey struct {
		kind command.Kind
		name string
	}
	totals := make(map[nameKey]int64)
	m.usageMu.RLock()
	for k, c := range m.usage {
		totals[nameKey{k.kind, k.name}] += c.Load()
	}
	m.usageMu.RUnlock()
	out := make([]command.UsageRecord, 0, len(totals))
	for k, n := range totals {
		out = append(out, command.UsageRecord{Kind: k.kind, Name: k.name, Count: n})
	}
	sortUsage(out)
	return out, nil
}
