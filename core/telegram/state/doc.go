// Package state keeps per-user conversation state for Telegram bots.
// It is domain-agnostic: callers choose the value type and decide when a value
// is idle enough to be dropped from memory.
package state
