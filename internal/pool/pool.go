package pool

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/darkwire-sim/darkwire/internal/def"
	"github.com/darkwire-sim/darkwire/internal/engine"
	"github.com/darkwire-sim/darkwire/internal/state"
)

// Config holds the pool invariants and extension tuning.
type Config struct {
	// MinSize and MaxSize bound the number of simultaneous offers.
	MinSize int
	MaxSize int
	// MinAccessible is the minimum number of offers the player can
	// accept at their current reputation tier.
	MinAccessible int
	// MinLifetime is the game time an untouched offer stays on the
	// board before expiring.
	MinLifetime time.Duration
	// RegenDelay is the game-time delay before a dismissed or expired
	// slot regenerates.
	RegenDelay time.Duration
	// ArcChance is the probability a generated offer opens a new arc.
	ArcChance float64
	// ExtensionChance gates mid-mission extensions per qualifying
	// objective completion.
	ExtensionChance float64
	// ExtensionPayoutMin and ExtensionPayoutMax bound the payout
	// multiplier applied when a mission is extended.
	ExtensionPayoutMin float64
	ExtensionPayoutMax float64
}

// DefaultConfig returns the live pool tuning.
func DefaultConfig() Config {
	return Config{
		MinSize:            4,
		MaxSize:            8,
		MinAccessible:      2,
		MinLifetime:        2 * time.Hour,
		RegenDelay:         30 * time.Minute,
		ArcChance:          0.2,
		ExtensionChance:    0.35,
		ExtensionPayoutMin: 1.2,
		ExtensionPayoutMax: 1.5,
	}
}

// Entry is one visible offer on the mission board.
type Entry struct {
	Mission *def.Mission
	Client  string
	// TierLevel is the reputation tier required to accept the offer.
	TierLevel int

	expiry engine.Handle
}

// Manager maintains the externally visible mission offer list.
//
// Invariants after any accept, dismiss, or expire: pool size stays
// within [MinSize, MaxSize] and at least MinAccessible offers are
// acceptable at the player's current reputation tier. Size is restored
// immediately when a removal would undershoot the minimum; a delayed
// regeneration additionally refills toward the previous size, subject
// to the maximum.
//
// Arc missions surface one part at a time: the head is offered, the
// successor parts stay pending until the previous part succeeds, and
// a failure discards every pending successor.
type Manager struct {
	bus   *engine.Bus
	sched *engine.Scheduler
	reg   *engine.Registry
	gen   *Generator
	state state.Accessor
	cfg   Config
	rng   *rand.Rand

	mu       sync.Mutex
	entries  map[string]*Entry
	order    []string             // offer order, oldest first
	arcs     map[string]*arcState // pending successor parts by arc id
	arcOf    map[string]string    // accepted mission id → arc id
	held     []string             // arcs whose next part waits for a free slot
	clients  map[string]bool      // client names in use
	clientOf map[string]string    // accepted mission id → client name
	extended map[string]bool      // missions already extended
	unsubs   []func()
}

// arcState holds the not-yet-visible successor parts of an arc whose
// head has been offered or accepted.
type arcState struct {
	parts     []*def.Mission
	client    string
	tierLevel int
}

// NewManager creates a pool manager and installs its bus handlers. Call
// Fill to populate the initial offers. A nil rng gets a time-seeded one.
func NewManager(bus *engine.Bus, sched *engine.Scheduler, reg *engine.Registry, gen *Generator, accessor state.Accessor, cfg Config, rng *rand.Rand) *Manager {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m := &Manager{
		bus:      bus,
		sched:    sched,
		reg:      reg,
		gen:      gen,
		state:    accessor,
		cfg:      cfg,
		rng:      rng,
		entries:  make(map[string]*Entry),
		arcs:     make(map[string]*arcState),
		arcOf:    make(map[string]string),
		clients:  make(map[string]bool),
		clientOf: make(map[string]string),
		extended: make(map[string]bool),
	}
	m.unsubs = append(m.unsubs,
		bus.On(def.EventObjectiveComplete, m.onObjectiveComplete),
		bus.On(def.EventMissionComplete, m.onMissionComplete),
	)
	return m
}

// Close removes the manager's bus handlers and cancels offer timers.
func (m *Manager) Close() {
	for _, u := range m.unsubs {
		u()
	}
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*Entry)
	m.order = nil
	m.mu.Unlock()
	for _, e := range entries {
		m.sched.Cancel(e.expiry)
	}
}

// Fill tops the pool up to MinSize and restores the accessibility
// minimum. Idempotent; called at startup and by regeneration timers.
func (m *Manager) Fill() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fillLocked()
}

// Offers returns the visible entries in offer order.
func (m *Manager) Offers() []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	offers := make([]*Entry, 0, len(m.order))
	for _, id := range m.order {
		offers = append(offers, m.entries[id])
	}
	return offers
}

// Accessible returns the offers acceptable at the current reputation.
func (m *Manager) Accessible() []*Entry {
	tier := m.currentTier()

	m.mu.Lock()
	defer m.mu.Unlock()

	var offers []*Entry
	for _, id := range m.order {
		if e := m.entries[id]; e.TierLevel <= tier.Level {
			offers = append(offers, e)
		}
	}
	return offers
}

// Accept removes the offer and starts objective tracking for it. The
// offer must be accessible at the current tier. If it heads an arc the
// successor parts stay pending until the mission resolves.
func (m *Manager) Accept(missionID string) error {
	tier := m.currentTier()

	m.mu.Lock()
	e, ok := m.entries[missionID]
	if !ok {
		m.mu.Unlock()
		return &engine.NotFoundError{Kind: "offer", ID: missionID}
	}
	if e.TierLevel > tier.Level {
		m.mu.Unlock()
		return ErrTierLocked
	}
	m.removeLocked(missionID)
	if arcID := e.Mission.ArcID; arcID != "" {
		m.arcOf[missionID] = arcID
	}
	m.clientOf[missionID] = e.Client
	m.fillLocked()
	m.mu.Unlock()

	m.sched.Cancel(e.expiry)
	return m.reg.AcceptMission(missionID)
}

// Dismiss removes an offer at the player's request, frees its client,
// and schedules a delayed replacement.
func (m *Manager) Dismiss(missionID string) error {
	m.mu.Lock()
	e, ok := m.entries[missionID]
	if !ok {
		m.mu.Unlock()
		return &engine.NotFoundError{Kind: "offer", ID: missionID}
	}
	m.discardLocked(e)
	m.mu.Unlock()

	m.sched.Cancel(e.expiry)
	return nil
}

// Len reports the current number of offers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// expire fires when an offer's minimum lifetime elapses untouched.
func (m *Manager) expire(missionID string) {
	m.mu.Lock()
	e, ok := m.entries[missionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	slog.Debug("offer expired", "mission", missionID, "client", e.Client)
	m.discardLocked(e)
	m.mu.Unlock()
}

// discardLocked removes an entry, unregisters its definition, frees
// the client, restores the minimums, and schedules delayed regrowth.
// Caller holds m.mu; Unregister and Schedule take no registry locks.
func (m *Manager) discardLocked(e *Entry) {
	id := e.Mission.ID
	m.removeLocked(id)
	delete(m.clients, e.Client)
	if e.Mission.ArcID != "" {
		delete(m.arcs, e.Mission.ArcID)
	}
	m.reg.Unregister(id)
	m.fillLocked()
	m.sched.Schedule(m.cfg.RegenDelay, m.regen)
}

// regen is the delayed-replacement timer: grow one slot back toward
// the previous size if the board has room. Held arc parts take the
// slot before a fresh offer does.
func (m *Manager) regen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.order) >= m.cfg.MaxSize {
		return
	}
	if m.releaseHeldLocked() {
		return
	}
	m.offerLocked(m.pickTier(false))
}

// fillLocked restores the size and accessibility minimums, preferring
// held arc parts over fresh offers. Caller holds m.mu.
func (m *Manager) fillLocked() {
	for len(m.order) < m.cfg.MinSize {
		if m.releaseHeldLocked() {
			continue
		}
		m.offerLocked(m.pickTier(m.accessibleCountLocked() < m.cfg.MinAccessible))
	}
	for m.accessibleCountLocked() < m.cfg.MinAccessible {
		if len(m.order) >= m.cfg.MaxSize {
			if !m.evictInaccessibleLocked() {
				return
			}
		}
		m.offerLocked(m.currentTier())
	}
}

// offerLocked generates and registers one offer at the given tier.
// Arc rolls offer the head part and hold the successors. Caller holds
// m.mu.
func (m *Manager) offerLocked(tier Tier) {
	client := m.assignClientLocked()

	if m.rng.Float64() < m.cfg.ArcChance {
		parts := m.gen.GenerateArc(client, tier, 2+m.rng.Intn(2))
		m.arcs[parts[0].ArcID] = &arcState{parts: parts[1:], client: client, tierLevel: tier.Level}
		m.addEntryLocked(parts[0], client, tier)
		return
	}
	m.addEntryLocked(m.gen.Generate(client, tier, "", 0), client, tier)
}

func (m *Manager) addEntryLocked(mission *def.Mission, client string, tier Tier) {
	if err := m.reg.Register(mission); err != nil {
		slog.Warn("generated offer rejected", "mission", mission.ID, "error", err)
		return
	}
	e := &Entry{Mission: mission, Client: client, TierLevel: tier.Level}
	e.expiry = m.sched.Schedule(m.cfg.MinLifetime, func() { m.expire(mission.ID) })
	m.entries[mission.ID] = e
	m.order = append(m.order, mission.ID)
	slog.Debug("offer added", "mission", mission.ID, "client", client, "tier", tier.Name)
}

// evictInaccessibleLocked drops the newest offer above the current
// tier to make room for an accessible one. Caller holds m.mu.
func (m *Manager) evictInaccessibleLocked() bool {
	tier := m.currentTier()
	for i := len(m.order) - 1; i >= 0; i-- {
		e := m.entries[m.order[i]]
		if e.TierLevel > tier.Level {
			m.removeLocked(e.Mission.ID)
			delete(m.clients, e.Client)
			m.reg.Unregister(e.Mission.ID)
			m.sched.Cancel(e.expiry)
			return true
		}
	}
	return false
}

func (m *Manager) removeLocked(missionID string) {
	delete(m.entries, missionID)
	for i, id := range m.order {
		if id == missionID {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			return
		}
	}
}

func (m *Manager) accessibleCountLocked() int {
	tier := m.currentTier()
	n := 0
	for _, e := range m.entries {
		if e.TierLevel <= tier.Level {
			n++
		}
	}
	return n
}

// pickTier chooses an offer tier at or around the player's current
// tier: mostly current, sometimes one above as a stretch goal. When
// the accessibility minimum is short the pick is always current.
func (m *Manager) pickTier(needAccessible bool) Tier {
	tier := m.currentTier()
	if needAccessible {
		return tier
	}
	if tier.Level < len(Tiers) && m.rng.Float64() < 0.25 {
		return TierByLevel(tier.Level + 1)
	}
	return tier
}

var clientRoster = []string{
	"veyra-biotech", "halcyon-credit", "kessler-freight", "mirza-holdings",
	"bluefin-analytics", "teraphim-labs", "ossuary-media", "quill-exchange",
}

// assignClientLocked picks an unused roster client, minting a fresh id
// when the roster is exhausted. Caller holds m.mu.
func (m *Manager) assignClientLocked() string {
	start := m.rng.Intn(len(clientRoster))
	for i := range clientRoster {
		c := clientRoster[(start+i)%len(clientRoster)]
		if !m.clients[c] {
			m.clients[c] = true
			return c
		}
	}
	c := "client-" + uuid.NewString()[:8]
	m.clients[c] = true
	return c
}

func (m *Manager) currentTier() Tier {
	if m.state == nil {
		return Tiers[0]
	}
	return TierFor(m.state().Reputation)
}

// onMissionComplete frees the mission's client and advances or
// abandons its arc. A successor that would push the board past MaxSize
// is held until a slot frees.
func (m *Manager) onMissionComplete(p engine.Payload) {
	missionID := p.String("missionId")
	success := p.String("status") == string(def.MissionSuccess)

	m.mu.Lock()
	arcID, inArc := m.arcOf[missionID]
	delete(m.arcOf, missionID)
	delete(m.extended, missionID)
	if client, ok := m.clientOf[missionID]; ok {
		delete(m.clientOf, missionID)
		delete(m.clients, client)
	}

	if !inArc {
		m.mu.Unlock()
		return
	}

	arc := m.arcs[arcID]
	if !success || arc == nil || len(arc.parts) == 0 {
		// Failure discards every pending successor part.
		delete(m.arcs, arcID)
		dropped := 0
		if arc != nil {
			dropped = len(arc.parts)
		}
		m.mu.Unlock()
		if !success && dropped > 0 {
			slog.Debug("arc abandoned", "arc", arcID, "dropped", dropped)
		}
		return
	}

	// The storyline keeps its employer while a part is in flight or held.
	m.clients[arc.client] = true
	if len(m.order) >= m.cfg.MaxSize {
		m.held = append(m.held, arcID)
		m.mu.Unlock()
		slog.Debug("arc successor held, board full", "arc", arcID)
		return
	}
	next := arc.parts[0]
	arc.parts = arc.parts[1:]
	m.addEntryLocked(next, arc.client, TierByLevel(arc.tierLevel))
	m.mu.Unlock()
}

// releaseHeldLocked surfaces the next part of the oldest held arc,
// reporting whether one was released. Caller holds m.mu.
func (m *Manager) releaseHeldLocked() bool {
	for len(m.held) > 0 {
		arcID := m.held[0]
		m.held = m.held[1:]
		arc := m.arcs[arcID]
		if arc == nil || len(arc.parts) == 0 {
			continue
		}
		next := arc.parts[0]
		arc.parts = arc.parts[1:]
		m.clients[arc.client] = true
		m.addEntryLocked(next, arc.client, TierByLevel(arc.tierLevel))
		return true
	}
	return false
}

// onObjectiveComplete applies mid-mission extensions: once at least
// half of a mission's real objectives are complete (pre-completions do
// not count), a probabilistic gate injects extra objectives ahead of
// verification and raises the payout.
func (m *Manager) onObjectiveComplete(p engine.Payload) {
	if p.Bool("isPreCompleted") {
		return
	}
	missionID := p.String("missionId")

	m.mu.Lock()
	if m.extended[missionID] {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	tracker, ok := m.reg.Tracker(missionID)
	if !ok {
		return
	}
	mission := tracker.Mission()

	total, done := 0, 0
	for _, o := range mission.Objectives {
		if o.Type == def.ObjectiveVerification {
			continue
		}
		total++
		if tracker.Status(o.ID) == def.StatusComplete {
			done++
		}
	}
	if total == 0 || done*2 < total {
		return
	}
	if m.rng.Float64() >= m.cfg.ExtensionChance {
		return
	}

	objs := m.gen.ExtensionObjectives(mission)
	if len(objs) == 0 {
		return
	}

	m.mu.Lock()
	if m.extended[missionID] {
		m.mu.Unlock()
		return
	}
	m.extended[missionID] = true
	m.mu.Unlock()

	if err := m.reg.ExtendMission(missionID, objs); err != nil {
		slog.Warn("extension skipped", "mission", missionID, "error", err)
		return
	}

	span := m.cfg.ExtensionPayoutMax - m.cfg.ExtensionPayoutMin
	factor := m.cfg.ExtensionPayoutMin + m.rng.Float64()*span
	mission.Payout = int(float64(mission.Payout) * factor)

	// Fresh credentials accompany the extra work when the briefing
	// had none.
	if len(mission.Attachments) == 0 && len(mission.Networks) > 0 {
		n := mission.Networks[0]
		if n.Username != "" {
			mission.Attachments = append(mission.Attachments, def.Attachment{
				NetworkID: n.ID, Username: n.Username, Password: n.Password,
			})
		}
	}
	slog.Debug("mission extended", "mission", missionID,
		"objectives", len(objs), "payout", mission.Payout)
}
