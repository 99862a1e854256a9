package engine

import (
	"github.com/darkwire-sim/darkwire/internal/def"
	"github.com/darkwire-sim/darkwire/internal/state"
)

// Transition records one objective status change produced by the
// tracker. PreCompleted marks an out-of-order satisfaction that is
// recorded but not yet counted.
type Transition struct {
	ObjectiveID  string
	Status       def.ObjectiveStatus
	PreCompleted bool
}

// Tracker is the objective state machine for one active mission.
//
// Objectives move pending → complete when satisfied in mission order,
// or pending → pre-completed when a later objective's satisfying event
// arrives before an earlier required objective is done. Once the
// earlier objectives complete, pre-completed ones convert to complete
// in a single catch-up pass with no further external event.
//
// The tracker mutates only its own status slice. Emitting the resulting
// objective-complete events is the registry's job.
type Tracker struct {
	mission *def.Mission
	status  []def.ObjectiveStatus
}

// NewTracker creates a tracker with every objective pending.
func NewTracker(m *def.Mission) *Tracker {
	t := &Tracker{
		mission: m,
		status:  make([]def.ObjectiveStatus, len(m.Objectives)),
	}
	for i := range t.status {
		t.status[i] = def.StatusPending
	}
	return t
}

// Mission returns the tracked definition.
func (t *Tracker) Mission() *def.Mission { return t.mission }

// Status returns the current status of the identified objective, or ""
// when the objective does not exist.
func (t *Tracker) Status(objectiveID string) def.ObjectiveStatus {
	for i, o := range t.mission.Objectives {
		if o.ID == objectiveID {
			return t.status[i]
		}
	}
	return ""
}

// Submittable reports whether every required objective is complete,
// independent of optional objectives and the verification objective.
func (t *Tracker) Submittable() bool {
	for i, o := range t.mission.Objectives {
		if o.Required() && t.status[i] != def.StatusComplete {
			return false
		}
	}
	return true
}

// othersComplete reports whether every non-verification objective,
// optional ones included, is complete.
func (t *Tracker) othersComplete() bool {
	for i, o := range t.mission.Objectives {
		if o.Type != def.ObjectiveVerification && t.status[i] != def.StatusComplete {
			return false
		}
	}
	return true
}

// Observe applies a satisfying bus event to the tracker and returns the
// resulting transitions in order. Verification objectives never observe
// events; they complete only through Submit.
func (t *Tracker) Observe(event string, p Payload) []Transition {
	var trans []Transition

	for i, o := range t.mission.Objectives {
		if t.status[i] != def.StatusPending || o.Type == def.ObjectiveVerification {
			continue
		}
		if !satisfies(o, event, p) {
			continue
		}
		if t.reachable(i) {
			t.status[i] = def.StatusComplete
			trans = append(trans, Transition{ObjectiveID: o.ID, Status: def.StatusComplete})
		} else {
			t.status[i] = def.StatusPreCompleted
			trans = append(trans, Transition{ObjectiveID: o.ID, Status: def.StatusPreCompleted, PreCompleted: true})
		}
	}

	return append(trans, t.cascade()...)
}

// CatchUp honors state already true at acceptance time: objectives
// satisfiable from the snapshot alone (investigation reads, installed
// software requirements expressed as objectives) are applied as if
// their events had fired. Runs once at mission activation.
func (t *Tracker) CatchUp(snap state.Snapshot) []Transition {
	var trans []Transition

	for _, m := range snap.Messages {
		if m.Read {
			trans = append(trans, t.Observe(def.EventMessageRead, Payload{"messageId": m.ID})...)
		}
	}

	return trans
}

// Submit completes the verification objective and reports whether the
// mission resolved. A mission is submittable once all required
// objectives are complete; verification itself completes only when
// every other objective, optional ones included, is also complete.
func (t *Tracker) Submit() (trans []Transition, ok bool) {
	if !t.Submittable() {
		return nil, false
	}

	if t.othersComplete() {
		for i, o := range t.mission.Objectives {
			if o.Type == def.ObjectiveVerification && t.status[i] != def.StatusComplete {
				t.status[i] = def.StatusComplete
				trans = append(trans, Transition{ObjectiveID: o.ID, Status: def.StatusComplete})
			}
		}
	}
	return trans, true
}

// Extend inserts additional objectives immediately before the
// verification objective (or at the end when there is none), all
// pending. This is the one sanctioned mutation of a tracked mission,
// used by pool extensions.
func (t *Tracker) Extend(objs []def.Objective) {
	idx := len(t.mission.Objectives)
	for i, o := range t.mission.Objectives {
		if o.Type == def.ObjectiveVerification {
			idx = i
			break
		}
	}

	merged := make([]def.Objective, 0, len(t.mission.Objectives)+len(objs))
	merged = append(merged, t.mission.Objectives[:idx]...)
	merged = append(merged, objs...)
	merged = append(merged, t.mission.Objectives[idx:]...)
	t.mission.Objectives = merged

	status := make([]def.ObjectiveStatus, 0, len(merged))
	status = append(status, t.status[:idx]...)
	for range objs {
		status = append(status, def.StatusPending)
	}
	status = append(status, t.status[idx:]...)
	t.status = status
}

// reachable reports whether every required objective ordered before
// index i is complete.
func (t *Tracker) reachable(i int) bool {
	for j := 0; j < i; j++ {
		if t.mission.Objectives[j].Required() && t.status[j] != def.StatusComplete {
			return false
		}
	}
	return true
}

// cascade converts every pre-completed objective that has become
// reachable, repeating until a fixpoint so one completion can unlock a
// chain.
func (t *Tracker) cascade() []Transition {
	var trans []Transition
	for changed := true; changed; {
		changed = false
		for i, o := range t.mission.Objectives {
			if t.status[i] == def.StatusPreCompleted && t.reachable(i) {
				t.status[i] = def.StatusComplete
				trans = append(trans, Transition{ObjectiveID: o.ID, Status: def.StatusComplete})
				changed = true
			}
		}
	}
	return trans
}

// satisfies reports whether the event satisfies the objective's
// type-specific completion condition.
func satisfies(o def.Objective, event string, p Payload) bool {
	switch o.Type {
	case def.ObjectiveNetworkConnection:
		return event == def.EventNetworkConnected && p.String("networkId") == o.Target

	case def.ObjectiveNetworkScan:
		if event != def.EventNetworkScanComplete {
			return false
		}
		if o.Target != "" && p.String("networkId") != "" && p.String("networkId") != o.Target {
			return false
		}
		return o.ExpectedResult == "" || p.Contains("machines", o.ExpectedResult)

	case def.ObjectiveFileSystemConnection:
		return event == def.EventFileSystemConnected &&
			(p.String("fileSystemId") == o.Target || p.String("ip") == o.Target)

	case def.ObjectiveFileOperation:
		return event == def.EventFileOperationComplete &&
			p.String("operation") == o.Operation &&
			(o.Target == "" || p.Contains("fileNames", o.Target))

	case def.ObjectiveCredentialRegistration:
		return event == def.EventCredentialRegistered && p.String("networkId") == o.Target

	case def.ObjectiveInvestigation:
		return event == def.EventMessageRead && p.String("messageId") == o.Target
	}
	return false
}

// ObservedEvents lists the bus events objective trackers consume. The
// registry installs one subscription per name and fans events out to
// every active tracker.
var ObservedEvents = []string{
	def.EventNetworkConnected,
	def.EventNetworkScanComplete,
	def.EventFileSystemConnected,
	def.EventFileOperationComplete,
	def.EventCredentialRegistered,
	def.EventMessageRead,
}
