package def

import "fmt"

// ValidationError reports a definition problem with the field that
// caused it, so the CLI can point authors at the offending spot.
type ValidationError struct {
	MissionID string
	Field     string
	Message   string
}

func (e *ValidationError) Error() string {
	if e.MissionID != "" {
		return fmt.Sprintf("mission %s: %s: %s", e.MissionID, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a mission definition for structural problems.
// Run after Normalize; normalization fixups are not validation errors.
func Validate(m *Mission) error {
	if m.ID == "" {
		return &ValidationError{Field: "id", Message: "mission id is required"}
	}
	if m.Title == "" {
		return &ValidationError{MissionID: m.ID, Field: "title", Message: "title is required"}
	}

	seen := make(map[string]bool, len(m.Objectives))
	for i, o := range m.Objectives {
		field := fmt.Sprintf("objectives[%d]", i)
		if o.ID == "" {
			return &ValidationError{MissionID: m.ID, Field: field, Message: "objective id is required"}
		}
		if seen[o.ID] {
			return &ValidationError{MissionID: m.ID, Field: field, Message: "duplicate objective id " + o.ID}
		}
		seen[o.ID] = true
		if !validObjectiveType(o.Type) {
			return &ValidationError{MissionID: m.ID, Field: field, Message: fmt.Sprintf("unknown objective type %q", o.Type)}
		}
		if o.Type == ObjectiveFileOperation && o.Operation == "" {
			return &ValidationError{MissionID: m.ID, Field: field, Message: "file-operation objective requires an operation"}
		}
	}

	if m.Start != nil {
		if err := validateTrigger(m.ID, "start", *m.Start); err != nil {
			return err
		}
	}
	for i, se := range m.StoryEvents {
		if err := validateTrigger(m.ID, fmt.Sprintf("storyEvents[%d].trigger", i), se.Trigger); err != nil {
			return err
		}
	}
	for i, sc := range m.ScriptedEvents {
		field := fmt.Sprintf("scriptedEvents[%d]", i)
		if sc.ID == "" {
			return &ValidationError{MissionID: m.ID, Field: field, Message: "scripted event id is required"}
		}
		if sc.Trigger == nil {
			return &ValidationError{MissionID: m.ID, Field: field, Message: "scripted event requires a trigger"}
		}
		if ao, ok := sc.Trigger.(AfterObjective); ok && m.Objective(ao.ObjectiveID) == nil {
			return &ValidationError{MissionID: m.ID, Field: field,
				Message: fmt.Sprintf("trigger references unknown objective %q", ao.ObjectiveID)}
		}
		if len(sc.Actions) == 0 {
			return &ValidationError{MissionID: m.ID, Field: field, Message: "scripted event has no actions"}
		}
	}

	return nil
}

func validateTrigger(missionID, field string, t Trigger) error {
	// An event-data condition can only be checked against a concrete
	// firing payload; it derives no event of its own.
	for _, c := range t.Conditions {
		if _, ok := c.(EventDataCondition); ok && t.Event == "" && t.AfterMission == "" {
			return &ValidationError{MissionID: missionID, Field: field,
				Message: "event-data condition requires an explicit trigger event"}
		}
	}
	if len(t.Events()) == 0 {
		return &ValidationError{MissionID: missionID, Field: field,
			Message: "trigger has no event to fire on"}
	}
	return nil
}

func validObjectiveType(t ObjectiveType) bool {
	for _, v := range ObjectiveTypes {
		if t == v {
			return true
		}
	}
	return false
}
