package harness

import (
	"fmt"
	"reflect"
)

// TraceEvent is one recorded outbound emission.
type TraceEvent struct {
	Seq     int            `json:"seq"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Result carries a scenario's trace and assertion outcome.
type Result struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Failures     []string     `json:"failures,omitempty"`
}

// NewResult creates an empty result for the named scenario.
func NewResult(name string) *Result {
	return &Result{ScenarioName: name}
}

// Passed reports whether every assertion held.
func (r *Result) Passed() bool { return len(r.Failures) == 0 }

func (r *Result) record(event string, payload map[string]any) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     len(r.Trace),
		Event:   event,
		Payload: payload,
	})
}

func (r *Result) fail(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// containsEvent reports whether any trace event has the given name and
// a payload containing expected as a subset. Values compare loosely by
// string form, so YAML-sourced expectations match typed payloads.
func (r *Result) containsEvent(event string, expected map[string]any) bool {
	for _, te := range r.Trace {
		if te.Event != event {
			continue
		}
		if payloadMatches(te.Payload, expected) {
			return true
		}
	}
	return false
}

func (r *Result) countEvent(event string) int {
	n := 0
	for _, te := range r.Trace {
		if te.Event == event {
			n++
		}
	}
	return n
}

// inOrder reports whether the named events appear in the trace in the
// given relative order. Other events may interleave freely.
func (r *Result) inOrder(events []string) bool {
	i := 0
	for _, te := range r.Trace {
		if i < len(events) && te.Event == events[i] {
			i++
		}
	}
	return i == len(events)
}

// payloadMatches checks expected as a subset of got, comparing values
// by string form to bridge YAML and Go typing.
func payloadMatches(got, expected map[string]any) bool {
	for k, want := range expected {
		have, ok := got[k]
		if !ok {
			return false
		}
		if reflect.DeepEqual(have, want) {
			continue
		}
		if fmt.Sprintf("%v", have) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}
