// Package state defines the read-only game-state contract between the
// mission core and the surrounding game. The core never mutates game
// state; it reads snapshots through an injected accessor and the
// presentation layer reacts to emitted bus events.
package state

// Message is the inbox view the core needs for condition evaluation.
type Message struct {
	ID   string
	Read bool
}

// Snapshot is a point-in-time read-only view of the player's state.
type Snapshot struct {
	Messages   []Message
	Software   []string
	Reputation int
}

// MessageRead reports whether the identified message exists and has
// been read.
func (s Snapshot) MessageRead(id string) bool {
	for _, m := range s.Messages {
		if m.ID == id {
			return m.Read
		}
	}
	return false
}

// SoftwareInstalled reports whether the identified software is present.
func (s Snapshot) SoftwareInstalled(id string) bool {
	for _, sw := range s.Software {
		if sw == id {
			return true
		}
	}
	return false
}

// Accessor returns the current snapshot. Injected into the registry so
// tests can supply fixed state without a running game.
type Accessor func() Snapshot

// Empty is an Accessor returning a zero snapshot. Useful default for
// tests and tools that evaluate definitions without game state.
func Empty() Snapshot { return Snapshot{} }
