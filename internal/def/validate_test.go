package def

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMission() *Mission {
	return &Mission{
		ID:    "m-1",
		Title: "Test Mission",
		Objectives: []Objective{
			{ID: "a", Type: ObjectiveNetworkConnection, Target: "net-1"},
			{ID: "v", Type: ObjectiveVerification},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(validMission()))
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Mission)
		wantMsg string
	}{
		{
			name:    "missing id",
			mutate:  func(m *Mission) { m.ID = "" },
			wantMsg: "mission id is required",
		},
		{
			name:    "missing title",
			mutate:  func(m *Mission) { m.Title = "" },
			wantMsg: "title is required",
		},
		{
			name:    "duplicate objective id",
			mutate:  func(m *Mission) { m.Objectives[1].ID = "a" },
			wantMsg: "duplicate objective id",
		},
		{
			name:    "unknown objective type",
			mutate:  func(m *Mission) { m.Objectives[0].Type = "teleport" },
			wantMsg: "unknown objective type",
		},
		{
			name: "file operation without operation",
			mutate: func(m *Mission) {
				m.Objectives[0] = Objective{ID: "a", Type: ObjectiveFileOperation, Target: "x.dat"}
			},
			wantMsg: "requires an operation",
		},
		{
			name: "event-data condition without explicit event",
			mutate: func(m *Mission) {
				m.Start = &Trigger{Conditions: []Condition{EventDataCondition{Key: "k", Value: "v"}}}
			},
			wantMsg: "requires an explicit trigger event",
		},
		{
			name: "scripted event references unknown objective",
			mutate: func(m *Mission) {
				m.ScriptedEvents = []ScriptedEvent{{
					ID:      "s1",
					Trigger: AfterObjective{ObjectiveID: "nope"},
					Actions: []Action{DisconnectAction{}},
				}}
			},
			wantMsg: "unknown objective",
		},
		{
			name: "scripted event with no actions",
			mutate: func(m *Mission) {
				m.ScriptedEvents = []ScriptedEvent{{
					ID:      "s1",
					Trigger: AfterObjective{ObjectiveID: "a"},
				}}
			},
			wantMsg: "no actions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMission()
			tt.mutate(m)
			err := Validate(m)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestDedupKey_Normalizes(t *testing.T) {
	assert.Equal(t, "re: the job", DedupKey("  Re: The Job  "))
	assert.Equal(t, DedupKey("Caf\u00e9"), DedupKey("Cafe\u0301"), "NFC-equivalent subjects share a key")
}

func TestConsequences_Select(t *testing.T) {
	c := &Consequences{
		Success: []Message{{Subject: "well done"}},
		Failure: []Message{{Subject: "you blew it"}},
	}
	assert.Equal(t, c.Success, c.Select(MissionSuccess))
	assert.Equal(t, c.Failure, c.Select(MissionFailed))

	var nilC *Consequences
	assert.Nil(t, nilC.Select(MissionSuccess))
}
