package pool

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkwire-sim/darkwire/internal/def"
	"github.com/darkwire-sim/darkwire/internal/engine"
	"github.com/darkwire-sim/darkwire/internal/state"
	"github.com/darkwire-sim/darkwire/internal/testutil"
)

type poolFixture struct {
	clock *testutil.FakeClock
	bus   *engine.Bus
	sched *engine.Scheduler
	reg   *engine.Registry
	mgr   *Manager

	reputation int
}

func newPoolFixture(t *testing.T, cfg Config, seed int64) *poolFixture {
	t.Helper()

	f := &poolFixture{
		clock: testutil.NewFakeClock(),
		bus:   engine.NewBus(),
	}
	f.sched = engine.NewScheduler(f.clock, 1)
	accessor := func() state.Snapshot { return state.Snapshot{Reputation: f.reputation} }
	f.reg = engine.NewRegistry(f.bus, f.sched, accessor)
	rng := rand.New(rand.NewSource(seed))
	gen := NewGenerator(DefaultGeneratorConfig(), rng)
	f.mgr = NewManager(f.bus, f.sched, f.reg, gen, accessor, cfg, rng)
	t.Cleanup(f.mgr.Close)
	return f
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinSize = 3
	cfg.MaxSize = 5
	cfg.MinAccessible = 2
	cfg.ArcChance = 0
	cfg.ExtensionChance = 0
	return cfg
}

// assertInvariants checks the pool bounds and the accessibility floor.
func assertInvariants(t *testing.T, f *poolFixture, cfg Config) {
	t.Helper()
	n := f.mgr.Len()
	assert.GreaterOrEqual(t, n, cfg.MinSize)
	assert.LessOrEqual(t, n, cfg.MaxSize)
	assert.GreaterOrEqual(t, len(f.mgr.Accessible()), cfg.MinAccessible)
}

// completeObjectives emits the satisfying event for every non-
// verification objective of the mission, in order.
func completeObjectives(f *poolFixture, m *def.Mission) {
	for _, o := range m.Objectives {
		switch o.Type {
		case def.ObjectiveNetworkConnection:
			f.bus.Emit(def.EventNetworkConnected, engine.Payload{"networkId": o.Target})
		case def.ObjectiveNetworkScan:
			f.bus.Emit(def.EventNetworkScanComplete, engine.Payload{
				"networkId": o.Target,
				"machines":  []string{o.ExpectedResult},
			})
		case def.ObjectiveFileSystemConnection:
			f.bus.Emit(def.EventFileSystemConnected, engine.Payload{"fileSystemId": o.Target})
		case def.ObjectiveFileOperation:
			f.bus.Emit(def.EventFileOperationComplete, engine.Payload{
				"operation": o.Operation,
				"fileNames": []string{o.Target},
			})
		case def.ObjectiveCredentialRegistration:
			f.bus.Emit(def.EventCredentialRegistered, engine.Payload{"networkId": o.Target})
		}
	}
}

func TestManager_FillEstablishesInvariants(t *testing.T) {
	cfg := testConfig()
	f := newPoolFixture(t, cfg, 1)

	f.mgr.Fill()
	assertInvariants(t, f, cfg)

	// Every offer is registered and has a distinct client.
	clients := map[string]bool{}
	for _, e := range f.mgr.Offers() {
		_, ok := f.reg.Definition(e.Mission.ID)
		assert.True(t, ok, "offer %s not registered", e.Mission.ID)
		assert.False(t, clients[e.Client], "client %s assigned twice", e.Client)
		clients[e.Client] = true
	}
}

func TestManager_AcceptKeepsInvariantsAndTracks(t *testing.T) {
	cfg := testConfig()
	f := newPoolFixture(t, cfg, 2)
	f.mgr.Fill()

	offer := f.mgr.Accessible()[0]
	require.NoError(t, f.mgr.Accept(offer.Mission.ID))
	assertInvariants(t, f, cfg)

	_, tracked := f.reg.Tracker(offer.Mission.ID)
	assert.True(t, tracked, "accepted mission is tracked")

	for _, e := range f.mgr.Offers() {
		assert.NotEqual(t, offer.Mission.ID, e.Mission.ID, "accepted offer removed from the board")
	}

	assert.Error(t, f.mgr.Accept(offer.Mission.ID), "double accept rejected")
}

func TestManager_AcceptRespectsTierLock(t *testing.T) {
	cfg := testConfig()
	f := newPoolFixture(t, cfg, 3)
	f.mgr.Fill()

	var locked *Entry
	for _, e := range f.mgr.Offers() {
		if e.TierLevel > 1 {
			locked = e
			break
		}
	}
	if locked == nil {
		t.Skip("seed produced no stretch offer")
	}
	assert.ErrorIs(t, f.mgr.Accept(locked.Mission.ID), ErrTierLocked)

	// Reputation catches up; the same offer becomes acceptable.
	f.reputation = 1000
	assert.NoError(t, f.mgr.Accept(locked.Mission.ID))
}

func TestManager_DismissFreesClientAndRegenerates(t *testing.T) {
	cfg := testConfig()
	f := newPoolFixture(t, cfg, 4)
	f.mgr.Fill()

	offer := f.mgr.Offers()[0]
	require.NoError(t, f.mgr.Dismiss(offer.Mission.ID))
	assertInvariants(t, f, cfg)

	_, still := f.reg.Definition(offer.Mission.ID)
	assert.False(t, still, "dismissed offer unregistered")

	// The delayed replacement grows the board back toward the max.
	before := f.mgr.Len()
	f.clock.Advance(cfg.RegenDelay)
	assert.Equal(t, before+1, f.mgr.Len())
	assertInvariants(t, f, cfg)
}

func TestManager_ExpiryRotatesOffers(t *testing.T) {
	cfg := testConfig()
	f := newPoolFixture(t, cfg, 5)
	f.mgr.Fill()

	stale := make(map[string]bool)
	for _, e := range f.mgr.Offers() {
		stale[e.Mission.ID] = true
	}

	f.clock.Advance(cfg.MinLifetime)
	assertInvariants(t, f, cfg)

	for _, e := range f.mgr.Offers() {
		assert.False(t, stale[e.Mission.ID], "expired offer %s still on the board", e.Mission.ID)
	}
}

func TestManager_ArcAdvancesOnSuccess(t *testing.T) {
	cfg := testConfig()
	cfg.ArcChance = 1 // every offer heads an arc
	f := newPoolFixture(t, cfg, 6)
	f.mgr.Fill()

	head := f.mgr.Accessible()[0]
	arcID := head.Mission.ArcID
	require.NotEmpty(t, arcID)
	require.Equal(t, 1, head.Mission.ArcPart)

	require.NoError(t, f.mgr.Accept(head.Mission.ID))
	completeObjectives(f, head.Mission)
	require.NoError(t, f.reg.SubmitMission(head.Mission.ID))

	var next *Entry
	for _, e := range f.mgr.Offers() {
		if e.Mission.ArcID == arcID {
			next = e
		}
	}
	require.NotNil(t, next, "successor part surfaced after success")
	assert.Equal(t, 2, next.Mission.ArcPart)
	assert.Equal(t, head.Client, next.Client)
}

func TestManager_ArcDroppedOnFailure(t *testing.T) {
	cfg := testConfig()
	cfg.ArcChance = 1
	f := newPoolFixture(t, cfg, 7)
	f.mgr.Fill()

	head := f.mgr.Accessible()[0]
	arcID := head.Mission.ArcID
	require.NoError(t, f.mgr.Accept(head.Mission.ID))

	f.bus.Emit(def.EventMissionComplete, engine.Payload{
		"missionId": head.Mission.ID,
		"status":    string(def.MissionFailed),
	})
	f.clock.Advance(time.Hour)

	for _, e := range f.mgr.Offers() {
		assert.NotEqual(t, arcID, e.Mission.ArcID, "failed arc's successors discarded")
	}
}

func TestManager_ArcSuccessorHeldAtCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.MinSize = 2
	cfg.MaxSize = 2
	cfg.MinAccessible = 1
	cfg.ArcChance = 1
	f := newPoolFixture(t, cfg, 11)
	f.mgr.Fill()
	require.Equal(t, cfg.MaxSize, f.mgr.Len())

	head := f.mgr.Accessible()[0]
	arcID := head.Mission.ArcID
	require.NoError(t, f.mgr.Accept(head.Mission.ID))
	require.Equal(t, cfg.MaxSize, f.mgr.Len(), "board refilled after accept")

	completeObjectives(f, head.Mission)
	require.NoError(t, f.reg.SubmitMission(head.Mission.ID))

	// The board is full, so the successor waits instead of breaching
	// the upper bound.
	assert.LessOrEqual(t, f.mgr.Len(), cfg.MaxSize)
	for _, e := range f.mgr.Offers() {
		assert.NotEqual(t, arcID, e.Mission.ArcID, "successor held while the board is full")
	}

	// Accepting another offer frees a slot; the held part takes it
	// before any fresh offer.
	require.NoError(t, f.mgr.Accept(f.mgr.Accessible()[0].Mission.ID))
	assertInvariants(t, f, cfg)

	var next *Entry
	for _, e := range f.mgr.Offers() {
		if e.Mission.ArcID == arcID {
			next = e
		}
	}
	require.NotNil(t, next, "held successor surfaced once a slot freed")
	assert.Equal(t, 2, next.Mission.ArcPart)
	assert.Equal(t, head.Client, next.Client)
}

func TestManager_ClientFreedOnMissionComplete(t *testing.T) {
	cfg := testConfig()
	f := newPoolFixture(t, cfg, 12)
	f.mgr.Fill()

	offer := f.mgr.Accessible()[0]
	require.NoError(t, f.mgr.Accept(offer.Mission.ID))
	assert.True(t, f.mgr.clients[offer.Client], "client stays reserved while the mission runs")

	f.bus.Emit(def.EventMissionComplete, engine.Payload{
		"missionId": offer.Mission.ID,
		"status":    string(def.MissionSuccess),
	})
	assert.False(t, f.mgr.clients[offer.Client], "client returns to the roster on completion")
}

func TestManager_ExtensionInjectsBeforeVerification(t *testing.T) {
	cfg := testConfig()
	cfg.ExtensionChance = 1 // gate always passes
	f := newPoolFixture(t, cfg, 8)

	m := &def.Mission{
		ID:    "sidejob",
		Title: "Extendable",
		Objectives: []def.Objective{
			{ID: "a", Type: def.ObjectiveNetworkConnection, Target: "n"},
			{ID: "b", Type: def.ObjectiveNetworkScan, Target: "n"},
		},
		Networks: []def.Network{{
			ID: "n", Username: "svc", Password: "pw",
			FileSystems: []def.FileSystem{{
				ID:    "fs",
				Files: []def.File{{Name: "bonus.dat", Corrupted: false}},
			}},
		}},
		Payout: 1000,
	}
	require.NoError(t, f.reg.Register(m))
	require.NoError(t, f.reg.AcceptMission("sidejob"))

	// One of two real objectives done: the 50% gate opens.
	f.bus.Emit(def.EventNetworkConnected, engine.Payload{"networkId": "n"})

	tracker, _ := f.reg.Tracker("sidejob")
	extended := tracker.Mission()

	var extIDs []string
	verifyIdx := -1
	for i, o := range extended.Objectives {
		if o.Type == def.ObjectiveVerification {
			verifyIdx = i
			continue
		}
		if len(o.ID) > 3 && o.ID[:4] == "ext-" {
			extIDs = append(extIDs, o.ID)
			assert.Less(t, i, len(extended.Objectives)-1, "extension sits before verification")
		}
	}
	require.NotEmpty(t, extIDs, "extension objectives injected")
	require.NotEqual(t, -1, verifyIdx)
	assert.Equal(t, def.StatusPending, tracker.Status(extIDs[0]))

	assert.GreaterOrEqual(t, extended.Payout, 1200, "payout raised by at least the minimum multiplier")
	assert.LessOrEqual(t, extended.Payout, 1500, "payout raised by at most the maximum multiplier")
	assert.NotEmpty(t, extended.Attachments, "fresh credentials issued with the extra work")

	// Submission now requires the injected objective too.
	f.bus.Emit(def.EventNetworkScanComplete, engine.Payload{"networkId": "n"})
	assert.ErrorIs(t, f.reg.SubmitMission("sidejob"), engine.ErrNotSubmittable)

	f.bus.Emit(def.EventFileOperationComplete, engine.Payload{
		"operation": "copy", "fileNames": []string{"bonus.dat"},
	})
	assert.NoError(t, f.reg.SubmitMission("sidejob"))
}

func TestManager_ExtensionFiresAtMostOnce(t *testing.T) {
	cfg := testConfig()
	cfg.ExtensionChance = 1
	f := newPoolFixture(t, cfg, 9)

	m := &def.Mission{
		ID:    "once",
		Title: "Once",
		Objectives: []def.Objective{
			{ID: "a", Type: def.ObjectiveNetworkConnection, Target: "n"},
			{ID: "b", Type: def.ObjectiveNetworkScan, Target: "n"},
		},
		Networks: []def.Network{{
			ID: "n",
			FileSystems: []def.FileSystem{{
				ID: "fs",
				Files: []def.File{
					{Name: "x.dat", Corrupted: false},
					{Name: "y.dat", Corrupted: false},
					{Name: "z.dat", Corrupted: false},
				},
			}},
		}},
		Payout: 1000,
	}
	require.NoError(t, f.reg.Register(m))
	require.NoError(t, f.reg.AcceptMission("once"))

	f.bus.Emit(def.EventNetworkConnected, engine.Payload{"networkId": "n"})
	tracker, _ := f.reg.Tracker("once")
	afterFirst := len(tracker.Mission().Objectives)

	f.bus.Emit(def.EventNetworkScanComplete, engine.Payload{"networkId": "n"})
	assert.Equal(t, afterFirst, len(tracker.Mission().Objectives),
		"a mission is extended at most once")
}

func TestManager_PreCompletionDoesNotQualifyExtension(t *testing.T) {
	cfg := testConfig()
	cfg.ExtensionChance = 1
	f := newPoolFixture(t, cfg, 10)

	m := &def.Mission{
		ID:    "pre",
		Title: "Pre",
		Objectives: []def.Objective{
			{ID: "a", Type: def.ObjectiveNetworkConnection, Target: "n"},
			{ID: "b", Type: def.ObjectiveNetworkScan, Target: "n"},
		},
		Networks: []def.Network{{
			ID:          "n",
			FileSystems: []def.FileSystem{{ID: "fs", Files: []def.File{{Name: "x.dat"}}}},
		}},
		Payout: 500,
	}
	require.NoError(t, f.reg.Register(m))
	require.NoError(t, f.reg.AcceptMission("pre"))

	// b pre-completes out of order: no extension.
	f.bus.Emit(def.EventNetworkScanComplete, engine.Payload{"networkId": "n"})
	tracker, _ := f.reg.Tracker("pre")
	assert.Equal(t, 500, tracker.Mission().Payout)
	assert.Len(t, tracker.Mission().Objectives, 3)
}
