package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/darkwire-sim/darkwire/internal/def"
	"github.com/darkwire-sim/darkwire/internal/state"
)

// Default restore timing. The buffer absorbs load-time jitter so a
// restored timer never fires while the game is still coming up; the
// exact values are playability heuristics, not a contract.
const (
	DefaultRestoreBuffer = 3 * time.Second
	DefaultRestoreFloor  = time.Second
)

// Registry owns the catalogue of mission definitions and wires each to
// the bus: start triggers, story-event triggers, scripted-event
// triggers, objective tracking for accepted missions, and consequence
// delivery on mission completion.
//
// The registry is an explicit, constructor-injected object. Tests
// create as many isolated instances as they like; nothing here is
// process-global.
type Registry struct {
	bus   *Bus
	sched *Scheduler
	state state.Accessor

	restoreBuffer time.Duration
	restoreFloor  time.Duration

	mu       sync.Mutex
	defs     map[string]*def.Mission
	unsubs   map[string][]func() // per registered definition
	pending  map[string]*PendingEvent
	fired    map[string]bool // dedup keys, permanent per save
	trackers map[string]*Tracker
	active   []string // accepted mission ids, acceptance order
}

// RegistryOption configures a Registry at construction.
type RegistryOption func(*Registry)

// WithRestoreBuffer overrides the game-time buffer added to restored
// pending events.
func WithRestoreBuffer(d time.Duration) RegistryOption {
	return func(r *Registry) { r.restoreBuffer = d }
}

// WithRestoreFloor overrides the minimum delay for restored pending
// events.
func WithRestoreFloor(d time.Duration) RegistryOption {
	return func(r *Registry) { r.restoreFloor = d }
}

// NewRegistry creates a registry bound to a bus, a scheduler, and a
// game-state accessor. The accessor may be nil, in which case
// conditions evaluate against an empty snapshot.
func NewRegistry(bus *Bus, sched *Scheduler, accessor state.Accessor, opts ...RegistryOption) *Registry {
	r := &Registry{
		bus:           bus,
		sched:         sched,
		state:         accessor,
		restoreBuffer: DefaultRestoreBuffer,
		restoreFloor:  DefaultRestoreFloor,
		defs:          make(map[string]*def.Mission),
		unsubs:        make(map[string][]func()),
		pending:       make(map[string]*PendingEvent),
		fired:         make(map[string]bool),
		trackers:      make(map[string]*Tracker),
	}
	for _, opt := range opts {
		opt(r)
	}

	// Objective satisfaction events fan out to every accepted mission's
	// tracker through one subscription per event name.
	for _, name := range ObservedEvents {
		name := name
		bus.On(name, func(p Payload) { r.routeObjectiveEvent(name, p) })
	}
	bus.On(def.EventMissionComplete, r.handleMissionComplete)

	return r
}

// Register normalizes, validates, stores, and wires a definition.
// The definition must not be mutated after registration.
func (r *Registry) Register(m *def.Mission) error {
	def.Normalize(m)
	if err := def.Validate(m); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.defs[m.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, m.ID)
	}
	r.defs[m.ID] = m
	r.mu.Unlock()

	var unsubs []func()

	if m.Start != nil {
		start := *m.Start
		unsubs = append(unsubs, r.wireTrigger(start, func() {
			r.schedulePending(PendingActivateMission, Payload{"missionId": m.ID}, start.Delay)
		})...)
	}

	for i := range m.StoryEvents {
		se := m.StoryEvents[i]
		unsubs = append(unsubs, r.wireTrigger(se.Trigger, func() {
			r.schedulePending(PendingStoryEvent, Payload{
				"missionId":    m.ID,
				"storyEventId": se.ID,
				"subject":      se.Message.Subject,
				"body":         se.Message.Body,
				"from":         se.Message.From,
			}, se.Trigger.Delay)
		})...)
	}

	for i := range m.ScriptedEvents {
		sc := m.ScriptedEvents[i]
		if unsub := r.wireScripted(m, sc); unsub != nil {
			unsubs = append(unsubs, unsub)
		}
	}

	r.mu.Lock()
	r.unsubs[m.ID] = unsubs
	r.mu.Unlock()

	slog.Debug("mission registered", "mission", m.ID, "objectives", len(m.Objectives))
	return nil
}

// Unregister removes a definition and every handler installed for it.
// Pending events already scheduled resolve to logged no-ops.
func (r *Registry) Unregister(missionID string) {
	r.mu.Lock()
	unsubs := r.unsubs[missionID]
	delete(r.unsubs, missionID)
	delete(r.defs, missionID)
	delete(r.trackers, missionID)
	r.removeActive(missionID)
	r.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

// Clear unsubscribes every registered definition and drops all runtime
// state: definitions, trackers, pending events, and the fired-event
// set. The registry's own routing subscriptions survive, so it remains
// usable. Full reset path and test isolation.
func (r *Registry) Clear() {
	r.mu.Lock()
	unsubs := r.unsubs
	pending := r.pending
	r.defs = make(map[string]*def.Mission)
	r.unsubs = make(map[string][]func())
	r.pending = make(map[string]*PendingEvent)
	r.fired = make(map[string]bool)
	r.trackers = make(map[string]*Tracker)
	r.active = nil
	r.mu.Unlock()

	for _, list := range unsubs {
		for _, u := range list {
			u()
		}
	}
	for _, pe := range pending {
		r.sched.Cancel(pe.handle)
	}
}

// Definition returns a registered definition.
func (r *Registry) Definition(missionID string) (*def.Mission, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.defs[missionID]
	return m, ok
}

// Tracker returns the objective tracker of an accepted mission.
func (r *Registry) Tracker(missionID string) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[missionID]
	return t, ok
}

// ActivateMission emits mission-available carrying the full definition
// and schedules the delayed intro message when the definition has one.
// This is the sole way a mission becomes selectable by the external
// mission board. Unknown ids are logged no-ops.
func (r *Registry) ActivateMission(missionID string) {
	m, ok := r.Definition(missionID)
	if !ok {
		slog.Warn("activation of unknown mission skipped", "mission", missionID)
		return
	}

	if m.IntroMessage != nil {
		intro := *m.IntroMessage
		r.schedulePending(PendingIntroMessage, Payload{
			"missionId": m.ID,
			"subject":   intro.Subject,
			"body":      intro.Body,
			"from":      intro.From,
		}, intro.Delay)
	}

	r.bus.Emit(def.EventMissionAvailable, Payload{"missionId": m.ID, "mission": m})
}

// AcceptMission starts objective tracking for a mission the player has
// taken on, running the one-time catch-up pass so state already true at
// acceptance counts immediately.
func (r *Registry) AcceptMission(missionID string) error {
	m, ok := r.Definition(missionID)
	if !ok {
		return &NotFoundError{Kind: "mission", ID: missionID}
	}

	r.mu.Lock()
	if _, exists := r.trackers[missionID]; exists {
		r.mu.Unlock()
		return nil
	}
	tracker := NewTracker(m)
	r.trackers[missionID] = tracker
	r.active = append(r.active, missionID)
	snap := r.snapshot()
	trans := tracker.CatchUp(snap)
	r.mu.Unlock()

	r.emitTransitions(missionID, trans)
	return nil
}

// SubmitMission is the explicit submit action: once every required
// objective is complete the verification objective resolves (when the
// optional ones are also done) and the mission completes successfully.
func (r *Registry) SubmitMission(missionID string) error {
	r.mu.Lock()
	tracker, ok := r.trackers[missionID]
	if !ok {
		r.mu.Unlock()
		return &NotFoundError{Kind: "active mission", ID: missionID}
	}
	trans, submittable := tracker.Submit()
	r.mu.Unlock()

	if !submittable {
		return fmt.Errorf("%w: %s", ErrNotSubmittable, missionID)
	}

	r.emitTransitions(missionID, trans)
	r.bus.Emit(def.EventMissionComplete, Payload{
		"missionId": missionID,
		"status":    string(def.MissionSuccess),
	})
	return nil
}

// ExtendMission inserts extra objectives into an accepted mission,
// ahead of its verification objective. The mission must be actively
// tracked; offers that have not been accepted are replaced wholesale
// instead of extended.
func (r *Registry) ExtendMission(missionID string, objs []def.Objective) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tracker, ok := r.trackers[missionID]
	if !ok {
		return &NotFoundError{Kind: "active mission", ID: missionID}
	}
	tracker.Extend(objs)
	slog.Debug("mission extended", "mission", missionID, "objectives", len(objs))
	return nil
}

// SetSpeed updates the global game-speed multiplier, rescheduling every
// live timer. Call whenever the player changes game speed.
func (r *Registry) SetSpeed(multiplier float64) {
	r.sched.SetSpeed(multiplier)
}

// ClearPendingEvents cancels every in-flight pending event. Used
// wholesale on sleep or logout so stale timers never fire against a
// state about to be replaced. Fired-event dedup keys are kept.
func (r *Registry) ClearPendingEvents() {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[string]*PendingEvent)
	r.mu.Unlock()

	for _, pe := range pending {
		r.sched.Cancel(pe.handle)
	}
}

// FiredEvents returns the dedup keys fired so far, sorted. Persisted
// with the save.
func (r *Registry) FiredEvents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.fired))
	for k := range r.fired {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetFiredEvents replaces the dedup set from a loaded save.
func (r *Registry) SetFiredEvents(keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fired = make(map[string]bool, len(keys))
	for _, k := range keys {
		r.fired[k] = true
	}
}

// PendingEvents snapshots the in-flight pending events with their
// remaining game time. Persisted with the save.
func (r *Registry) PendingEvents() []PendingRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]PendingRecord, 0, len(r.pending))
	for _, pe := range r.pending {
		remaining, ok := r.sched.RemainingGame(pe.handle)
		if !ok {
			continue // fired between snapshot and lock
		}
		records = append(records, PendingRecord{
			ID:          pe.ID,
			Type:        pe.Type,
			Payload:     pe.Payload,
			RemainingMs: remaining.Milliseconds(),
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// Checkpoint snapshots the registry's persistable runtime state.
func (r *Registry) Checkpoint() Checkpoint {
	return Checkpoint{
		FiredEvents:   r.FiredEvents(),
		PendingEvents: r.PendingEvents(),
	}
}

// Restore loads a checkpoint: the dedup set is replaced and every
// saved pending event is rescheduled with the restore buffer applied.
func (r *Registry) Restore(cp Checkpoint) {
	r.SetFiredEvents(cp.FiredEvents)
	r.RestorePendingEvents(cp.PendingEvents)
}

// RestorePendingEvents reschedules saved pending events, each with the
// configured safety buffer and floor applied to its remaining delay.
func (r *Registry) RestorePendingEvents(records []PendingRecord) {
	for _, rec := range records {
		delay := RestoreDelay(rec.Remaining(), r.restoreBuffer, r.restoreFloor)
		r.schedulePendingWithID(rec.ID, rec.Type, Payload(rec.Payload), delay)
	}
}

// wireTrigger subscribes to every event the trigger requires and calls
// fire once per matching emission. Conditions are conjunctive and
// evaluated against the firing payload plus the current state snapshot.
func (r *Registry) wireTrigger(t def.Trigger, fire func()) []func() {
	handler := func(p Payload) {
		if t.AfterMission != "" && p.String("missionId") != t.AfterMission {
			return
		}
		if !evalConditions(t.Conditions, p, r.snapshot()) {
			return
		}
		fire()
	}

	events := t.Events()
	unsubs := make([]func(), 0, len(events))
	for _, ev := range events {
		unsubs = append(unsubs, r.bus.On(ev, handler))
	}
	return unsubs
}

// wireScripted installs the bus handler for a scripted event's trigger.
func (r *Registry) wireScripted(m *def.Mission, sc def.ScriptedEvent) func() {
	schedule := func() {
		r.schedulePending(PendingScriptedEvent, Payload{
			"missionId": m.ID,
			"eventId":   sc.ID,
		}, sc.Delay)
	}

	switch tr := sc.Trigger.(type) {
	case def.AfterObjective:
		return r.bus.On(def.EventObjectiveComplete, func(p Payload) {
			if p.String("missionId") != m.ID || p.String("objectiveId") != tr.ObjectiveID {
				return
			}
			if p.Bool("isPreCompleted") {
				return // fires on real completion only
			}
			schedule()
		})

	case def.OnSecureDelete:
		return r.bus.On(def.EventSecureDeleteComplete, func(p Payload) {
			if !tr.Matches(p.String("fileName")) {
				return
			}
			schedule()
		})

	default:
		slog.Warn("unknown scripted trigger kind, event will never fire",
			"mission", m.ID, "event", sc.ID)
		return nil
	}
}

// routeObjectiveEvent fans a satisfying event out to every accepted
// mission's tracker, in acceptance order, then emits the resulting
// objective-complete events.
func (r *Registry) routeObjectiveEvent(event string, p Payload) {
	type result struct {
		missionID string
		trans     []Transition
	}

	r.mu.Lock()
	var results []result
	for _, id := range r.active {
		if tracker, ok := r.trackers[id]; ok {
			if trans := tracker.Observe(event, p); len(trans) > 0 {
				results = append(results, result{missionID: id, trans: trans})
			}
		}
	}
	r.mu.Unlock()

	for _, res := range results {
		r.emitTransitions(res.missionID, res.trans)
	}
}

// handleMissionComplete delivers the definition's success or failure
// consequence messages, each scheduled independently with its own
// delay, and retires the mission's tracker. Failures here are logged,
// never propagated, so other mission-complete subscribers still run.
func (r *Registry) handleMissionComplete(p Payload) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("consequence delivery failed", "panic", rec)
		}
	}()

	missionID := p.String("missionId")
	status := def.MissionStatus(p.String("status"))

	r.mu.Lock()
	m, ok := r.defs[missionID]
	delete(r.trackers, missionID)
	r.removeActive(missionID)
	r.mu.Unlock()

	if !ok {
		slog.Warn("consequence lookup for unknown mission skipped", "mission", missionID)
		return
	}

	for _, msg := range m.Consequences.Select(status) {
		r.schedulePending(PendingConsequence, Payload{
			"missionId": missionID,
			"subject":   msg.Subject,
			"body":      msg.Body,
			"from":      msg.From,
		}, msg.Delay)
	}
}

func (r *Registry) schedulePending(typ string, payload Payload, delay time.Duration) {
	r.schedulePendingWithID(uuid.NewString(), typ, payload, delay)
}

// schedulePendingWithID arms the timer for a pending event and records
// it until it fires or is cleared. Restore reuses saved ids so a
// crash-loop cannot mint unbounded fresh identities.
func (r *Registry) schedulePendingWithID(id, typ string, payload Payload, delay time.Duration) {
	pe := &PendingEvent{ID: id, Type: typ, Payload: payload}

	r.mu.Lock()
	r.pending[id] = pe
	r.mu.Unlock()

	// Armed outside the registry lock; a zero delay still defers to the
	// timer path, so scheduling during an emit never re-enters dispatch.
	h := r.sched.Schedule(delay, func() { r.firePending(id) })

	r.mu.Lock()
	if _, still := r.pending[id]; still {
		pe.handle = h
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	// Fired or cleared while arming; nothing to track. Cancel is a
	// no-op for an already-fired timer.
	r.sched.Cancel(h)
}

// firePending resolves a due pending event into its outbound bus
// emission. Story and consequence messages and scripted events consult
// the dedup set, marking the key fired immediately before emission.
func (r *Registry) firePending(id string) {
	r.mu.Lock()
	pe, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()
	if !ok {
		return
	}

	switch pe.Type {
	case PendingActivateMission:
		r.ActivateMission(pe.Payload.String("missionId"))

	case PendingIntroMessage:
		r.bus.Emit(def.EventSendMissionIntro, Payload{
			"missionId": pe.Payload.String("missionId"),
			"introMessage": map[string]any{
				"subject": pe.Payload.String("subject"),
				"body":    pe.Payload.String("body"),
				"from":    pe.Payload.String("from"),
			},
		})

	case PendingStoryEvent, PendingConsequence:
		subject := pe.Payload.String("subject")
		if !r.markFired(def.DedupKey(subject)) {
			slog.Debug("duplicate message delivery skipped", "subject", subject)
			return
		}
		r.bus.Emit(def.EventStoryEventTriggered, Payload{
			"storyEventId": pe.Payload.String("storyEventId"),
			"missionId":    pe.Payload.String("missionId"),
			"eventId":      pe.ID,
			"message": map[string]any{
				"subject": subject,
				"body":    pe.Payload.String("body"),
				"from":    pe.Payload.String("from"),
			},
		})

	case PendingScriptedEvent:
		missionID := pe.Payload.String("missionId")
		eventID := pe.Payload.String("eventId")
		m, ok := r.Definition(missionID)
		if !ok {
			slog.Warn("scripted event for unknown mission skipped", "mission", missionID, "event", eventID)
			return
		}
		var sc *def.ScriptedEvent
		for i := range m.ScriptedEvents {
			if m.ScriptedEvents[i].ID == eventID {
				sc = &m.ScriptedEvents[i]
				break
			}
		}
		if sc == nil {
			slog.Warn("unknown scripted event skipped", "mission", missionID, "event", eventID)
			return
		}
		if !r.markFired(def.DedupKey("scripted:" + missionID + ":" + eventID)) {
			slog.Debug("duplicate scripted event skipped", "mission", missionID, "event", eventID)
			return
		}
		r.bus.Emit(def.EventScriptedEventStart, Payload{
			"missionId": missionID,
			"eventId":   eventID,
			"actions":   EnrichActions(m, sc.Actions),
		})

	default:
		slog.Warn("pending event with unknown type dropped", "type", pe.Type, "id", pe.ID)
	}
}

// markFired records a dedup key, reporting false when it already fired.
func (r *Registry) markFired(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fired[key] {
		return false
	}
	r.fired[key] = true
	return true
}

func (r *Registry) emitTransitions(missionID string, trans []Transition) {
	for _, tr := range trans {
		r.bus.Emit(def.EventObjectiveComplete, Payload{
			"objectiveId":    tr.ObjectiveID,
			"missionId":      missionID,
			"isPreCompleted": tr.PreCompleted,
		})
	}
}

// removeActive drops a mission id from the acceptance-order slice.
// Caller holds r.mu.
func (r *Registry) removeActive(missionID string) {
	for i, id := range r.active {
		if id == missionID {
			r.active = append(r.active[:i:i], r.active[i+1:]...)
			return
		}
	}
}

func (r *Registry) snapshot() state.Snapshot {
	if r.state == nil {
		return state.Snapshot{}
	}
	return r.state()
}
