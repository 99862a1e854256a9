package def

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveEvents_Empty(t *testing.T) {
	assert.Empty(t, DeriveEvents(nil))
	assert.Empty(t, DeriveEvents([]Condition{}))
}

func TestDeriveEvents_ByConditionType(t *testing.T) {
	tests := []struct {
		name  string
		conds []Condition
		want  []string
	}{
		{
			name:  "message read",
			conds: []Condition{MessageReadCondition{MessageID: "m1"}},
			want:  []string{EventMessageRead},
		},
		{
			name:  "software installed",
			conds: []Condition{SoftwareInstalledCondition{SoftwareID: "tracer"}},
			want:  []string{EventSoftwareInstalled},
		},
		{
			name: "mixed preserves first-appearance order",
			conds: []Condition{
				SoftwareInstalledCondition{SoftwareID: "tracer"},
				MessageReadCondition{MessageID: "m1"},
				MessageReadCondition{MessageID: "m2"},
			},
			want: []string{EventSoftwareInstalled, EventMessageRead},
		},
		{
			name: "event-data and unknown derive nothing",
			conds: []Condition{
				EventDataCondition{Key: "networkId", Value: "corp-net"},
				UnknownCondition{Kind: "moon-phase"},
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveEvents(tt.conds))
		})
	}
}

func TestTrigger_Events(t *testing.T) {
	t.Run("explicit event wins over conditions", func(t *testing.T) {
		tr := Trigger{
			Event:      EventNetworkConnected,
			Conditions: []Condition{MessageReadCondition{MessageID: "m1"}},
		}
		assert.Equal(t, []string{EventNetworkConnected}, tr.Events())
	})

	t.Run("after-mission listens on mission-complete", func(t *testing.T) {
		tr := Trigger{AfterMission: "intro-01"}
		assert.Equal(t, []string{EventMissionComplete}, tr.Events())
	})

	t.Run("derived from conditions", func(t *testing.T) {
		tr := Trigger{Conditions: []Condition{SoftwareInstalledCondition{SoftwareID: "x"}}}
		assert.Equal(t, []string{EventSoftwareInstalled}, tr.Events())
	})
}
