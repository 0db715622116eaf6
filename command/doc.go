// Package command holds the chat command domain: sources, events and replies,
// the fixed built-in table, custom command name rules, usage periods, the
// error taxonomy, and the Resolver that turns a raw chat line into a
// resolved command.
//
// Resolution is a pure read. A line without the source's trigger prefix, or
// whose first token names neither a built-in nor a stored custom command, is
// NotACommand and never reaches storage writes or usage accounting.
package command
