package def

import "time"

// ObjectiveType enumerates the supported objective kinds.
type ObjectiveType string

const (
	ObjectiveNetworkConnection      ObjectiveType = "network-connection"
	ObjectiveNetworkScan            ObjectiveType = "network-scan"
	ObjectiveFileSystemConnection   ObjectiveType = "file-system-connection"
	ObjectiveFileOperation          ObjectiveType = "file-operation"
	ObjectiveCredentialRegistration ObjectiveType = "credential-registration"
	ObjectiveInvestigation          ObjectiveType = "investigation"
	ObjectiveVerification           ObjectiveType = "verification"
)

// ObjectiveTypes lists every valid objective type, in a stable order.
// Used by validation and the definition compiler.
var ObjectiveTypes = []ObjectiveType{
	ObjectiveNetworkConnection,
	ObjectiveNetworkScan,
	ObjectiveFileSystemConnection,
	ObjectiveFileOperation,
	ObjectiveCredentialRegistration,
	ObjectiveInvestigation,
	ObjectiveVerification,
}

// ObjectiveStatus is the per-objective completion lifecycle.
//
// The only legal transitions are pending → pre-completed → complete and
// pending → complete. Status is runtime state owned by the objective
// tracker; definitions themselves are immutable.
type ObjectiveStatus string

const (
	StatusPending      ObjectiveStatus = "pending"
	StatusPreCompleted ObjectiveStatus = "pre-completed"
	StatusComplete     ObjectiveStatus = "complete"
)

// MissionStatus is the terminal outcome reported on mission-complete.
type MissionStatus string

const (
	MissionSuccess MissionStatus = "success"
	MissionFailed  MissionStatus = "failed"
)

// Objective is one sub-task within a mission.
//
// Target and the expectation fields are interpreted per Type:
//   - network-connection, credential-registration: Target is a network id
//   - network-scan: Target is a network id, ExpectedResult a machine that
//     must appear in the scan
//   - file-system-connection: Target is a file-system id or IP
//   - file-operation: Target is a file name, Operation the required op
//   - investigation: Target is a message id
//   - verification: no target; gated on every other objective
type Objective struct {
	ID             string
	Type           ObjectiveType
	Description    string
	Target         string
	Operation      string
	ExpectedResult string
	Optional       bool
}

// Required reports whether the objective counts toward submittability.
// Verification objectives are never "required" in the submittable sense;
// they gate automatic completion instead.
func (o Objective) Required() bool {
	return !o.Optional && o.Type != ObjectiveVerification
}

// Message is a mail delivered to the player's inbox by the core.
// Delay staggers delivery relative to the event that caused it.
type Message struct {
	Subject string
	Body    string
	From    string
	Delay   time.Duration
}

// Consequences holds the message sets delivered after a mission resolves.
type Consequences struct {
	Success []Message
	Failure []Message
}

// Select returns the message set for the given terminal status.
func (c *Consequences) Select(status MissionStatus) []Message {
	if c == nil {
		return nil
	}
	if status == MissionFailed {
		return c.Failure
	}
	return c.Success
}

// StoryEvent is a definition-embedded narrative beat: when its trigger
// fires, a message is delivered (once, dedup-keyed by subject).
type StoryEvent struct {
	ID      string
	Trigger Trigger
	Message Message
}

// File is an entry in a simulated file system.
type File struct {
	Name      string
	Corrupted bool
}

// FileSystem is a simulated file store reachable at an address.
type FileSystem struct {
	ID    string
	IP    string
	Files []File
}

// Network is a simulated network topology stub. Credentials on the
// network become briefing attachments during normalization when the
// mission does not author its own.
type Network struct {
	ID          string
	Name        string
	IP          string
	Username    string
	Password    string
	FileSystems []FileSystem
}

// Attachment is a credential bundle included with a mission briefing.
type Attachment struct {
	NetworkID string
	Username  string
	Password  string
}

// Mission is a complete mission definition. Immutable once registered;
// the registry owns the catalogue and all runtime state lives elsewhere.
type Mission struct {
	ID             string
	Title          string
	Client         string
	Objectives     []Objective
	StoryEvents    []StoryEvent
	ScriptedEvents []ScriptedEvent
	Start          *Trigger
	IntroMessage   *Message
	Consequences   *Consequences
	Networks       []Network
	Attachments    []Attachment
	TimeLimit      time.Duration
	Payout         int
	ArcID          string
	ArcPart        int
}

// Objective returns the objective with the given id, or nil.
func (m *Mission) Objective(id string) *Objective {
	for i := range m.Objectives {
		if m.Objectives[i].ID == id {
			return &m.Objectives[i]
		}
	}
	return nil
}

// HasVerification reports whether any objective is verification-typed.
func (m *Mission) HasVerification() bool {
	for _, o := range m.Objectives {
		if o.Type == ObjectiveVerification {
			return true
		}
	}
	return false
}

// CorruptedFiles returns the names of all corrupted files across the
// mission's simulated networks, in source order.
func (m *Mission) CorruptedFiles() []string {
	return m.filesWhere(true)
}

// CleanFiles returns the names of all non-corrupted files across the
// mission's simulated networks, in source order.
func (m *Mission) CleanFiles() []string {
	return m.filesWhere(false)
}

func (m *Mission) filesWhere(corrupted bool) []string {
	names := []string{}
	for _, n := range m.Networks {
		for _, fs := range n.FileSystems {
			for _, f := range fs.Files {
				if f.Corrupted == corrupted {
					names = append(names, f.Name)
				}
			}
		}
	}
	return names
}
