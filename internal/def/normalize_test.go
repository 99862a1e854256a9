package def

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_AppendsVerificationObjective(t *testing.T) {
	m := &Mission{
		ID:    "repair-01",
		Title: "Repair",
		Objectives: []Objective{
			{ID: "connect", Type: ObjectiveNetworkConnection, Target: "net-1"},
			{ID: "fix", Type: ObjectiveFileOperation, Operation: "repair", Target: "core.sys"},
		},
	}

	Normalize(m)

	require.Len(t, m.Objectives, 3)
	last := m.Objectives[len(m.Objectives)-1]
	assert.Equal(t, ObjectiveVerification, last.Type)
	assert.Equal(t, "repair-01-verify", last.ID)
}

func TestNormalize_Idempotent(t *testing.T) {
	m := &Mission{
		ID:         "m",
		Objectives: []Objective{{ID: "a", Type: ObjectiveNetworkScan, Target: "net-1"}},
	}

	Normalize(m)
	Normalize(m)

	count := 0
	for _, o := range m.Objectives {
		if o.Type == ObjectiveVerification {
			count++
		}
	}
	assert.Equal(t, 1, count, "verification objective appended exactly once")
}

func TestNormalize_NoObjectivesNoVerification(t *testing.T) {
	m := &Mission{ID: "story-only"}
	Normalize(m)
	assert.Empty(t, m.Objectives)
}

func TestNormalize_DerivesCredentialAttachments(t *testing.T) {
	m := &Mission{
		ID: "m",
		Networks: []Network{
			{ID: "net-1", Username: "root", Password: "hunter2"},
			{ID: "net-2"}, // no credentials: no attachment
		},
	}

	Normalize(m)

	require.Len(t, m.Attachments, 1)
	assert.Equal(t, Attachment{NetworkID: "net-1", Username: "root", Password: "hunter2"}, m.Attachments[0])
}

func TestNormalize_KeepsAuthoredAttachments(t *testing.T) {
	authored := Attachment{NetworkID: "net-x", Username: "guest", Password: "guest"}
	m := &Mission{
		ID:          "m",
		Networks:    []Network{{ID: "net-1", Username: "root", Password: "pw"}},
		Attachments: []Attachment{authored},
	}

	Normalize(m)

	assert.Equal(t, []Attachment{authored}, m.Attachments)
}
