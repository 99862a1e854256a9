package engine

import (
	"log/slog"

	"github.com/darkwire-sim/darkwire/internal/def"
	"github.com/darkwire-sim/darkwire/internal/state"
)

// evalConditions reports whether every condition in the list holds
// against the firing event's payload and the current game state.
// Conditions are conjunctive; an empty list always holds.
func evalConditions(conds []def.Condition, p Payload, snap state.Snapshot) bool {
	for _, c := range conds {
		if !evalCondition(c, p, snap) {
			return false
		}
	}
	return true
}

// evalCondition evaluates a single condition. Unknown kinds are logged
// and treated as unmet: a trigger with an unrecognized condition never
// fires.
func evalCondition(c def.Condition, p Payload, snap state.Snapshot) bool {
	switch c := c.(type) {
	case def.MessageReadCondition:
		// Match by the firing event's message id; fall back to a state
		// lookup when the event carries none.
		if id := p.String("messageId"); id != "" {
			return id == c.MessageID
		}
		return snap.MessageRead(c.MessageID)

	case def.SoftwareInstalledCondition:
		// Satisfied by the firing event's id or by software already
		// installed per the snapshot.
		if p.String("softwareId") == c.SoftwareID {
			return true
		}
		return snap.SoftwareInstalled(c.SoftwareID)

	case def.EventDataCondition:
		return p.String(c.Key) == c.Value

	case def.UnknownCondition:
		slog.Warn("unknown trigger condition kind, treating as unmet", "kind", c.Kind)
		return false

	default:
		slog.Warn("unhandled trigger condition type, treating as unmet")
		return false
	}
}
