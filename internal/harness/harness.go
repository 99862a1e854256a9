// Package harness runs YAML conformance scenarios against an isolated
// mission core. Each scenario gets a fresh bus, scheduler, and
// registry driven by a deterministic fake clock, so the outbound
// event trace is reproducible and comparable against golden files.
package harness

import (
	"fmt"
	"sort"
	"time"

	"github.com/darkwire-sim/darkwire/internal/compiler"
	"github.com/darkwire-sim/darkwire/internal/def"
	"github.com/darkwire-sim/darkwire/internal/engine"
	"github.com/darkwire-sim/darkwire/internal/state"
	"github.com/darkwire-sim/darkwire/internal/testutil"
)

// tracedEvents lists the outbound emissions recorded in the trace.
var tracedEvents = []string{
	def.EventMissionAvailable,
	def.EventSendMissionIntro,
	def.EventStoryEventTriggered,
	def.EventScriptedEventStart,
	def.EventObjectiveComplete,
	def.EventMissionComplete,
}

// Run executes a scenario and returns its result. Each run builds an
// isolated core; nothing is shared between scenarios.
func Run(scenario *Scenario) (*Result, error) {
	missions, err := loadMissions(scenario)
	if err != nil {
		return nil, err
	}

	clock := testutil.NewFakeClock()
	bus := engine.NewBus()
	speed := scenario.Speed
	if speed == 0 {
		speed = 1
	}
	sched := engine.NewScheduler(clock, speed)

	var snapshot state.Snapshot
	reg := engine.NewRegistry(bus, sched, func() state.Snapshot { return snapshot })

	result := NewResult(scenario.Name)
	for _, name := range tracedEvents {
		name := name
		bus.On(name, func(p engine.Payload) {
			result.record(name, sanitizePayload(p))
		})
	}

	for _, m := range missions {
		if err := reg.Register(m); err != nil {
			return nil, fmt.Errorf("registering mission %s: %w", m.ID, err)
		}
	}

	for i, step := range scenario.Steps {
		if err := runStep(step, bus, clock, reg, &snapshot); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	evalAssertions(scenario.Assertions, result)
	return result, nil
}

func loadMissions(scenario *Scenario) ([]*def.Mission, error) {
	var missions []*def.Mission

	if scenario.CUE != "" {
		loaded, errs := compiler.LoadString(scenario.CUE)
		if len(errs) > 0 {
			return nil, fmt.Errorf("compiling inline missions: %w", errs[0])
		}
		missions = append(missions, loaded.Missions...)
	}
	for _, dir := range scenario.Definitions {
		loaded, errs := compiler.LoadDir(dir)
		if len(errs) > 0 {
			return nil, fmt.Errorf("loading %s: %w", dir, errs[0])
		}
		missions = append(missions, loaded.Missions...)
	}
	return missions, nil
}

func runStep(step Step, bus *engine.Bus, clock *testutil.FakeClock, reg *engine.Registry, snapshot *state.Snapshot) error {
	switch {
	case step.Emit != "":
		bus.Emit(step.Emit, engine.Payload(step.Payload))
		trackState(step, snapshot)
		return nil

	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("invalid advance duration %q: %w", step.Advance, err)
		}
		clock.Advance(d)
		return nil

	case step.Activate != "":
		reg.ActivateMission(step.Activate)
		return nil

	case step.Accept != "":
		return reg.AcceptMission(step.Accept)

	case step.Submit != "":
		return reg.SubmitMission(step.Submit)

	case step.SetSpeed != 0:
		reg.SetSpeed(step.SetSpeed)
		return nil

	case step.ClearPending:
		reg.ClearPendingEvents()
		return nil
	}
	return fmt.Errorf("empty step")
}

// trackState mirrors emitted message-read and software-installed
// events into the snapshot, so condition fallbacks and catch-up checks
// see them the way a real presentation layer would record them.
func trackState(step Step, snapshot *state.Snapshot) {
	p := engine.Payload(step.Payload)
	switch step.Emit {
	case def.EventMessageRead:
		id := p.String("messageId")
		for i := range snapshot.Messages {
			if snapshot.Messages[i].ID == id {
				snapshot.Messages[i].Read = true
				return
			}
		}
		snapshot.Messages = append(snapshot.Messages, state.Message{ID: id, Read: true})
	case def.EventSoftwareInstalled:
		snapshot.Software = append(snapshot.Software, p.String("softwareId"))
	}
}

// sanitizePayload keeps the trace serializable and deterministic:
// scalars, string lists, and plain maps survive; definition pointers
// and other rich values are dropped (their ids are already present as
// scalar fields).
func sanitizePayload(p engine.Payload) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		switch val := v.(type) {
		case string, bool, int, int64, float64:
			out[k] = val
		case []string:
			out[k] = val
		case []any:
			strs := make([]string, 0, len(val))
			for _, item := range val {
				if s, ok := item.(string); ok {
					strs = append(strs, s)
				}
			}
			out[k] = strs
		case map[string]any:
			out[k] = val
		case []engine.EnrichedAction:
			// Scripted actions serialize through their JSON shape.
			out[k] = val
		}
	}
	return out
}

// evalAssertions checks every assertion against the trace, collecting
// all failures rather than stopping at the first.
func evalAssertions(assertions []Assertion, result *Result) {
	for i, a := range assertions {
		switch a.Type {
		case AssertTraceContains:
			if !result.containsEvent(a.Event, a.Payload) {
				result.fail("assertions[%d]: no %s event matching %v", i, a.Event, a.Payload)
			}
		case AssertTraceOrder:
			if !result.inOrder(a.Events) {
				result.fail("assertions[%d]: events %v not in order", i, a.Events)
			}
		case AssertTraceCount:
			if got := result.countEvent(a.Event); got != a.Count {
				result.fail("assertions[%d]: %s occurred %d times, want %d", i, a.Event, got, a.Count)
			}
		}
	}
	sort.Strings(result.Failures)
}
