// Package state keeps per-user conversation sessions in memory for Telegram bots.
// Sessions carry a state label used for routing plus bot specific data.
package state
