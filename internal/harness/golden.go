package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares its trace against the
// golden file testdata/<scenario.Name>.golden. Assertion failures in
// the scenario fail the test before the golden comparison runs.
//
// To regenerate golden files:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s: %v", scenario.Name, err)
	}
	for _, failure := range result.Failures {
		t.Errorf("scenario %s: %s", scenario.Name, failure)
	}

	data, err := json.MarshalIndent(snapshot(result), "", "  ")
	if err != nil {
		t.Fatalf("marshaling trace: %v", err)
	}

	g := goldie.New(t)
	g.Assert(t, scenario.Name, append(data, '\n'))
}

// snapshot strips the assertion outcome so golden files capture only
// the trace itself.
func snapshot(r *Result) map[string]any {
	trace := make([]any, len(r.Trace))
	for i, te := range r.Trace {
		entry := map[string]any{
			"seq":   te.Seq,
			"event": te.Event,
		}
		if len(te.Payload) > 0 {
			entry["payload"] = te.Payload
		}
		trace[i] = entry
	}
	return map[string]any{
		"scenario_name": r.ScenarioName,
		"trace":         trace,
	}
}

// Describe renders a one-line summary for CLI output.
func Describe(r *Result) string {
	status := "PASS"
	if !r.Passed() {
		status = "FAIL"
	}
	return fmt.Sprintf("%s %s (%d events, %d failures)",
		status, r.ScenarioName, len(r.Trace), len(r.Failures))
}
