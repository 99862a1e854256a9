package def

import "time"

// Trigger is a condition set plus a game-time delay. Exactly one of the
// firing sources applies:
//
//   - AfterMission: fires when the named mission reports completion
//   - Event: fires on an explicit bus event
//   - neither: the event set is derived from the condition types
//
// Conditions are conjunctive; all must hold against the firing event's
// payload and the current game state.
type Trigger struct {
	Event        string
	AfterMission string
	Conditions   []Condition
	Delay        time.Duration
}

// Events returns the bus events this trigger subscribes to.
//
// An explicit Event wins; AfterMission triggers listen on
// mission-complete; otherwise the set is derived from the conditions.
func (t Trigger) Events() []string {
	if t.AfterMission != "" {
		return []string{EventMissionComplete}
	}
	if t.Event != "" {
		return []string{t.Event}
	}
	return DeriveEvents(t.Conditions)
}

// Condition is a single typed trigger condition.
//
// The set of kinds is closed: adding a condition kind means adding a
// struct here and handling it at every type switch. Definitions compiled
// from source files may still carry an unrecognized kind string; those
// become UnknownCondition, which never matches (fail-closed).
type Condition interface {
	isCondition()
}

// MessageReadCondition holds when the identified message has been read.
// Matched against the payload of a message-read event, falling back to a
// game-state lookup when the firing event carries no message id.
type MessageReadCondition struct {
	MessageID string
}

// SoftwareInstalledCondition holds when the identified software is
// installed, per the event payload or the game-state software list.
type SoftwareInstalledCondition struct {
	SoftwareID string
}

// EventDataCondition holds when the firing event's payload carries an
// exact key/value pair. It contributes no derived events; triggers using
// it must name an explicit Event.
type EventDataCondition struct {
	Key   string
	Value string
}

// UnknownCondition preserves an unrecognized condition kind from a
// compiled definition. It is logged at evaluation time and never holds.
type UnknownCondition struct {
	Kind string
}

func (MessageReadCondition) isCondition()       {}
func (SoftwareInstalledCondition) isCondition() {}
func (EventDataCondition) isCondition()         {}
func (UnknownCondition) isCondition()           {}

// DeriveEvents computes the set of bus events a condition list requires,
// in first-appearance order with duplicates removed. Pure; subscription
// side effects belong to the registry.
func DeriveEvents(conds []Condition) []string {
	var events []string
	seen := make(map[string]bool, len(conds))

	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			events = append(events, name)
		}
	}

	for _, c := range conds {
		switch c.(type) {
		case MessageReadCondition:
			add(EventMessageRead)
		case SoftwareInstalledCondition:
			add(EventSoftwareInstalled)
		case EventDataCondition, UnknownCondition:
			// No derivable event. EventData needs an explicit trigger
			// event; Unknown never fires at all.
		}
	}

	return events
}
