package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenarioYAML = `
name: smoke
description: registers a mission and accepts it
cue: |
  mission: "m1": {
    title: "Smoke"
    objectives: [{id: "o", type: "network-scan", target: "n"}]
  }
steps:
  - accept: m1
assertions:
  - type: trace_count
    event: mission-complete
    count: 0
`

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(validScenarioYAML))
	require.NoError(t, err)
	assert.Equal(t, "smoke", s.Name)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "m1", s.Steps[0].Accept)
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: d
cue: "mission: {}"
stepz:
  - accept: m1
`))
	require.Error(t, err, "typos like stepz must not silently pass")
}

func TestParseScenario_RequiredFields(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\ncue: x\nsteps:\n  - accept: m\n",
			want: "name is required",
		},
		{
			name: "missing definitions",
			yaml: "name: n\ndescription: d\nsteps:\n  - accept: m\n",
			want: "definitions or inline cue",
		},
		{
			name: "empty steps",
			yaml: "name: n\ndescription: d\ncue: x\n",
			want: "steps list is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseScenario_OneActionPerStep(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: n
description: d
cue: x
steps:
  - accept: m1
    submit: m1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one action per step")
}

func TestParseScenario_UnknownAssertionType(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: n
description: d
cue: x
steps:
  - accept: m1
assertions:
  - type: trace_magic
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestLoadScenario_ResolvesDefinitionPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: rel
description: d
definitions:
  - missions
steps:
  - accept: m1
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "missions"), s.Definitions[0])
}
