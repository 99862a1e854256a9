// Package store persists the mission core's save-game state in
// SQLite: the fired-event dedup set, the in-flight pending events of a
// registry checkpoint, and the generated offers on the mission board.
//
// The dedup set is append-only and merged on every checkpoint; pending
// events and pool entries are replaced wholesale. Authored mission
// definitions are never stored — they reload from their definition
// files — so only generated missions round-trip through JSON here.
package store
