package engine

import "time"

// Pending-event type tags. The tag decides which bus event the firing
// callback emits and how the payload is interpreted on restore.
const (
	PendingActivateMission = "activate-mission"
	PendingIntroMessage    = "send-mission-intro-message"
	PendingStoryEvent      = "story-event-triggered"
	PendingScriptedEvent   = "scripted-event-start"
	PendingConsequence     = "consequence-message"
)

// PendingEvent is a scheduled-but-not-yet-fired occurrence owned by the
// registry. It exists from the moment a trigger fires (or a completion
// schedules a follow-up) until its timer fires or it is explicitly
// cleared.
type PendingEvent struct {
	ID      string
	Type    string
	Payload Payload
	handle  Handle
}

// PendingRecord is the serialized shape of a PendingEvent. Remaining
// game time is computed at save; on restore the event is rescheduled
// with RestoreDelay applied.
type PendingRecord struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Payload     map[string]any `json:"payload,omitempty"`
	RemainingMs int64          `json:"remainingDelayMs"`
}

// Remaining converts a record's persisted delay back to a duration.
func (r PendingRecord) Remaining() time.Duration {
	return time.Duration(r.RemainingMs) * time.Millisecond
}

// Checkpoint is the registry's persistable runtime state: the dedup
// keys already fired and the in-flight pending events. It serializes
// cleanly to JSON and round-trips through the save store.
type Checkpoint struct {
	FiredEvents   []string        `json:"firedEvents"`
	PendingEvents []PendingRecord `json:"pendingEvents"`
}
