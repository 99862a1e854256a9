package def

import "time"

// FileIndicator is a symbolic file target resolved against the owning
// mission's simulated topology at enrichment time.
type FileIndicator string

const (
	IndicatorNone         FileIndicator = ""
	IndicatorAllCorrupted FileIndicator = "all-corrupted"
	IndicatorAllRepaired  FileIndicator = "all-repaired"
)

// Action is one forced game-state step in a scripted event. Like
// Condition, the kind set is closed and matched exhaustively.
type Action interface {
	isAction()
}

// FileAction forces a file operation (delete, corrupt, repair) against
// either literal file names or a symbolic indicator.
type FileAction struct {
	Operation string
	Files     []string
	Indicator FileIndicator
}

// DisconnectAction forcibly drops the player's active connection.
type DisconnectAction struct{}

// StatusAction sets the owning mission's terminal status. A failed
// status is annotated with the mission's failure consequences during
// enrichment so the status-change handler can chain into consequence
// delivery.
type StatusAction struct {
	Status MissionStatus
}

func (FileAction) isAction()       {}
func (DisconnectAction) isAction() {}
func (StatusAction) isAction()     {}

// ScriptTrigger decides when a scripted event's actions fire.
type ScriptTrigger interface {
	isScriptTrigger()
}

// AfterObjective fires when the named objective of the owning mission
// completes (pre-completions do not count).
type AfterObjective struct {
	ObjectiveID string
}

// OnSecureDelete fires when a secure-delete completes for any of the
// listed file names.
type OnSecureDelete struct {
	Files []string
}

func (AfterObjective) isScriptTrigger() {}
func (OnSecureDelete) isScriptTrigger() {}

// Matches reports whether the trigger watches the given file name.
func (t OnSecureDelete) Matches(fileName string) bool {
	for _, f := range t.Files {
		if f == fileName {
			return true
		}
	}
	return false
}

// ScriptedEvent is a mission-authored forced action sequence.
type ScriptedEvent struct {
	ID      string
	Trigger ScriptTrigger
	Delay   time.Duration
	Actions []Action
}
