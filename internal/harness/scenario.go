package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: mission definitions, a
// sequence of inbound events and clock advances, and assertions over
// the outbound event trace.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are stored
	// under testdata/<name>.golden.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Definitions lists CUE mission files, relative to the scenario
	// file location.
	Definitions []string `yaml:"definitions,omitempty"`

	// CUE holds inline CUE mission source, an alternative to
	// Definitions for self-contained scenarios.
	CUE string `yaml:"cue,omitempty"`

	// Speed is the initial game-speed multiplier. Zero means 1.
	Speed float64 `yaml:"speed,omitempty"`

	// Steps is the scenario's driving sequence.
	Steps []Step `yaml:"steps"`

	// Assertions validate the resulting trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scenario action. Exactly one field is set per step.
type Step struct {
	// Emit injects an inbound event with Payload.
	Emit    string         `yaml:"emit,omitempty"`
	Payload map[string]any `yaml:"payload,omitempty"`

	// Advance moves the fake clock forward ("5s", "2h").
	Advance string `yaml:"advance,omitempty"`

	// Activate makes a mission available by id.
	Activate string `yaml:"activate,omitempty"`

	// Accept starts objective tracking for a mission.
	Accept string `yaml:"accept,omitempty"`

	// Submit performs the explicit mission submit.
	Submit string `yaml:"submit,omitempty"`

	// SetSpeed changes the game-speed multiplier mid-scenario.
	SetSpeed float64 `yaml:"setSpeed,omitempty"`

	// ClearPending cancels all in-flight pending events.
	ClearPending bool `yaml:"clearPending,omitempty"`
}

// Assertion validates the outbound trace.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count.
	Type string `yaml:"type"`

	// Event is the outbound event name (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Payload is a subset match on the event payload (trace_contains).
	Payload map[string]any `yaml:"payload,omitempty"`

	// Events is the expected order (trace_order). Other events may
	// interleave; the named ones must appear in this relative order.
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// (typos) are rejected; definition paths resolve relative to the
// scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, def := range scenario.Definitions {
		if !filepath.IsAbs(def) {
			scenario.Definitions[i] = filepath.Join(base, def)
		}
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Definitions) == 0 && s.CUE == "" {
		return fmt.Errorf("definitions or inline cue is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		set := 0
		if step.Emit != "" {
			set++
		}
		if step.Advance != "" {
			set++
		}
		if step.Activate != "" {
			set++
		}
		if step.Accept != "" {
			set++
		}
		if step.Submit != "" {
			set++
		}
		if step.SetSpeed != 0 {
			set++
		}
		if step.ClearPending {
			set++
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one action per step, got %d", i, set)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertTraceContains:
			if a.Event == "" {
				return fmt.Errorf("assertions[%d]: trace_contains requires event", i)
			}
		case AssertTraceOrder:
			if len(a.Events) < 2 {
				return fmt.Errorf("assertions[%d]: trace_order requires at least two events", i)
			}
		case AssertTraceCount:
			if a.Event == "" {
				return fmt.Errorf("assertions[%d]: trace_count requires event", i)
			}
		default:
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
	}
	return nil
}
