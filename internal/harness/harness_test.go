package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repairCUE = `
mission: "repair-01": {
	title: "Restore the archive"
	objectives: [
		{id: "A", type: "file-operation", operation: "repair", target: "ledger.db"},
		{id: "B", type: "network-scan", target: "corp-net"},
	]
}
`

func TestRun_PreCompletionCascade(t *testing.T) {
	scenario := &Scenario{
		Name:        "cascade",
		Description: "out-of-order satisfaction converts on catch-up",
		CUE:         repairCUE,
		Steps: []Step{
			{Accept: "repair-01"},
			{Emit: "network-scan-complete", Payload: map[string]any{"networkId": "corp-net"}},
			{Emit: "file-operation-complete", Payload: map[string]any{
				"operation": "repair", "fileNames": []any{"ledger.db"},
			}},
			{Submit: "repair-01"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Event: "objective-complete",
				Payload: map[string]any{"objectiveId": "B", "isPreCompleted": true}},
			{Type: AssertTraceContains, Event: "objective-complete",
				Payload: map[string]any{"objectiveId": "B", "isPreCompleted": false}},
			{Type: AssertTraceContains, Event: "mission-complete",
				Payload: map[string]any{"missionId": "repair-01", "status": "success"}},
			{Type: AssertTraceOrder, Events: []string{"objective-complete", "mission-complete"}},
			{Type: AssertTraceCount, Event: "mission-complete", Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)
	assert.Len(t, result.Trace, 5)
}

func TestRun_StoryEventDedup(t *testing.T) {
	scenario := &Scenario{
		Name:        "dedup",
		Description: "duplicate trigger matches deliver one story event",
		CUE: `
mission: "haunted": {
	title: "Haunted"
	storyEvents: [{
		id: "warning"
		trigger: {event: "network-connected", delay: "1s"}
		message: {subject: "They know", from: "anon"}
	}]
}
`,
		Steps: []Step{
			{Emit: "network-connected", Payload: map[string]any{"networkId": "n1"}},
			{Emit: "network-connected", Payload: map[string]any{"networkId": "n1"}},
			{Advance: "1s"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Event: "story-event-triggered", Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)
}

func TestRun_SpeedScalesDelays(t *testing.T) {
	scenario := &Scenario{
		Name:        "speed",
		Description: "game delays divide by the speed multiplier",
		Speed:       2,
		CUE: `
mission: "delayed": {
	title: "Delayed"
	start: {event: "network-connected", delay: "10s"}
	objectives: [{id: "o", type: "network-scan", target: "n"}]
}
`,
		Steps: []Step{
			{Emit: "network-connected", Payload: map[string]any{"networkId": "n1"}},
			{Advance: "5s"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Event: "mission-available", Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)
}

func TestRun_StateFallbackThroughSnapshot(t *testing.T) {
	scenario := &Scenario{
		Name:        "snapshot",
		Description: "message-read emissions are mirrored into the state snapshot for catch-up",
		CUE: `
mission: "inv": {
	title: "Paper trail"
	objectives: [{id: "read", type: "investigation", target: "leak-mail"}]
}
`,
		Steps: []Step{
			{Emit: "message-read", Payload: map[string]any{"messageId": "leak-mail"}},
			{Accept: "inv"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Event: "objective-complete",
				Payload: map[string]any{"objectiveId": "read"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)
}

func TestRun_FailedAssertionReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "missing event fails the assertion",
		CUE:         repairCUE,
		Steps: []Step{
			{Accept: "repair-01"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Event: "mission-complete", Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "mission-complete")
}

func TestRun_StepErrorsSurface(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad-step",
		Description: "accepting an unknown mission aborts the run",
		CUE:         repairCUE,
		Steps: []Step{
			{Accept: "nobody"},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps[0]")
}
