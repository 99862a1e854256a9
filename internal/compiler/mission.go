package compiler

import (
	"fmt"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/darkwire-sim/darkwire/internal/def"
)

// CompileMission parses a CUE value into a mission definition.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
//
// The CUE value should be the mission struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`mission: "intro-01": { ... }`)
//	m, err := CompileMission(v.LookupPath(cue.ParsePath(`mission."intro-01"`)))
//
// The result is not normalized or validated; callers register it with
// the registry, which does both.
func CompileMission(v cue.Value) (*def.Mission, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &def.Mission{}

	// Mission id comes from the struct label.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		m.ID = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	var err error
	if m.Title, err = requiredString(v, "title"); err != nil {
		return nil, err
	}
	if m.Client, err = optionalString(v, "client"); err != nil {
		return nil, err
	}

	if m.Objectives, err = parseObjectives(v.LookupPath(cue.ParsePath("objectives"))); err != nil {
		return nil, err
	}

	if startVal := v.LookupPath(cue.ParsePath("start")); startVal.Exists() {
		start, err := parseTrigger(startVal)
		if err != nil {
			return nil, err
		}
		m.Start = &start
	}

	if introVal := v.LookupPath(cue.ParsePath("intro")); introVal.Exists() {
		intro, err := parseMessage(introVal)
		if err != nil {
			return nil, err
		}
		m.IntroMessage = &intro
	}

	if m.StoryEvents, err = parseStoryEvents(v.LookupPath(cue.ParsePath("storyEvents"))); err != nil {
		return nil, err
	}
	if m.ScriptedEvents, err = parseScriptedEvents(v.LookupPath(cue.ParsePath("scriptedEvents"))); err != nil {
		return nil, err
	}
	if m.Networks, err = parseNetworks(v.LookupPath(cue.ParsePath("networks"))); err != nil {
		return nil, err
	}
	if m.Attachments, err = parseAttachments(v.LookupPath(cue.ParsePath("attachments"))); err != nil {
		return nil, err
	}

	if consVal := v.LookupPath(cue.ParsePath("consequences")); consVal.Exists() {
		cons, err := parseConsequences(consVal)
		if err != nil {
			return nil, err
		}
		m.Consequences = cons
	}

	if m.TimeLimit, err = optionalDuration(v, "timeLimit"); err != nil {
		return nil, err
	}
	if payoutVal := v.LookupPath(cue.ParsePath("payout")); payoutVal.Exists() {
		payout, err := payoutVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.Payout = int(payout)
	}

	if arcVal := v.LookupPath(cue.ParsePath("arc")); arcVal.Exists() {
		if m.ArcID, err = requiredString(arcVal, "id"); err != nil {
			return nil, err
		}
		part, err := arcVal.LookupPath(cue.ParsePath("part")).Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.ArcPart = int(part)
	}

	return m, nil
}

func parseObjectives(v cue.Value) ([]def.Objective, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var objectives []def.Objective
	for iter.Next() {
		ov := iter.Value()
		var o def.Objective
		if o.ID, err = requiredString(ov, "id"); err != nil {
			return nil, err
		}
		typ, err := requiredString(ov, "type")
		if err != nil {
			return nil, err
		}
		o.Type = def.ObjectiveType(typ)
		if o.Description, err = optionalString(ov, "description"); err != nil {
			return nil, err
		}
		if o.Target, err = optionalString(ov, "target"); err != nil {
			return nil, err
		}
		if o.Operation, err = optionalString(ov, "operation"); err != nil {
			return nil, err
		}
		if o.ExpectedResult, err = optionalString(ov, "expectedResult"); err != nil {
			return nil, err
		}
		if optVal := ov.LookupPath(cue.ParsePath("optional")); optVal.Exists() {
			if o.Optional, err = optVal.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		objectives = append(objectives, o)
	}
	return objectives, nil
}

// parseTrigger parses a trigger struct: an optional explicit event or
// afterMission reference, a condition list, and a delay.
func parseTrigger(v cue.Value) (def.Trigger, error) {
	var t def.Trigger
	var err error

	if t.Event, err = optionalString(v, "event"); err != nil {
		return t, err
	}
	if t.AfterMission, err = optionalString(v, "afterMission"); err != nil {
		return t, err
	}
	if t.Delay, err = optionalDuration(v, "delay"); err != nil {
		return t, err
	}

	condsVal := v.LookupPath(cue.ParsePath("conditions"))
	if !condsVal.Exists() {
		return t, nil
	}
	iter, err := condsVal.List()
	if err != nil {
		return t, formatCUEError(err)
	}
	for iter.Next() {
		cond, err := parseCondition(iter.Value())
		if err != nil {
			return t, err
		}
		t.Conditions = append(t.Conditions, cond)
	}
	return t, nil
}

// parseCondition maps a single-key condition struct onto the condition
// sum type. Unrecognized keys compile to UnknownCondition so they
// fail closed at evaluation rather than load time.
func parseCondition(v cue.Value) (def.Condition, error) {
	if mrVal := v.LookupPath(cue.ParsePath("messageRead")); mrVal.Exists() {
		id, err := mrVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return def.MessageReadCondition{MessageID: id}, nil
	}
	if siVal := v.LookupPath(cue.ParsePath("softwareInstalled")); siVal.Exists() {
		id, err := siVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return def.SoftwareInstalledCondition{SoftwareID: id}, nil
	}
	if keyVal := v.LookupPath(cue.ParsePath("key")); keyVal.Exists() {
		key, err := keyVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		value, err := requiredString(v, "value")
		if err != nil {
			return nil, err
		}
		return def.EventDataCondition{Key: key, Value: value}, nil
	}

	// Preserve the first label so logs can name the unknown kind.
	kind := "unknown"
	if fields, err := v.Fields(); err == nil && fields.Next() {
		kind = fields.Label()
	}
	return def.UnknownCondition{Kind: kind}, nil
}

func parseMessage(v cue.Value) (def.Message, error) {
	var msg def.Message
	var err error

	if msg.Subject, err = requiredString(v, "subject"); err != nil {
		return msg, err
	}
	if msg.Body, err = optionalString(v, "body"); err != nil {
		return msg, err
	}
	if msg.From, err = optionalString(v, "from"); err != nil {
		return msg, err
	}
	if msg.Delay, err = optionalDuration(v, "delay"); err != nil {
		return msg, err
	}
	return msg, nil
}

func parseStoryEvents(v cue.Value) ([]def.StoryEvent, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var events []def.StoryEvent
	for iter.Next() {
		sv := iter.Value()
		var se def.StoryEvent
		if se.ID, err = requiredString(sv, "id"); err != nil {
			return nil, err
		}
		triggerVal := sv.LookupPath(cue.ParsePath("trigger"))
		if !triggerVal.Exists() {
			return nil, &CompileError{Field: "trigger", Message: "story event requires a trigger", Pos: sv.Pos()}
		}
		if se.Trigger, err = parseTrigger(triggerVal); err != nil {
			return nil, err
		}
		messageVal := sv.LookupPath(cue.ParsePath("message"))
		if !messageVal.Exists() {
			return nil, &CompileError{Field: "message", Message: "story event requires a message", Pos: sv.Pos()}
		}
		if se.Message, err = parseMessage(messageVal); err != nil {
			return nil, err
		}
		events = append(events, se)
	}
	return events, nil
}

func parseScriptedEvents(v cue.Value) ([]def.ScriptedEvent, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var events []def.ScriptedEvent
	for iter.Next() {
		sv := iter.Value()
		var se def.ScriptedEvent
		if se.ID, err = requiredString(sv, "id"); err != nil {
			return nil, err
		}
		if se.Delay, err = optionalDuration(sv, "delay"); err != nil {
			return nil, err
		}
		if se.Trigger, err = parseScriptTrigger(sv); err != nil {
			return nil, err
		}
		if se.Actions, err = parseActions(sv.LookupPath(cue.ParsePath("actions"))); err != nil {
			return nil, err
		}
		events = append(events, se)
	}
	return events, nil
}

// parseScriptTrigger reads exactly one of afterObjective or
// onSecureDelete from a scripted-event struct.
func parseScriptTrigger(v cue.Value) (def.ScriptTrigger, error) {
	aoVal := v.LookupPath(cue.ParsePath("afterObjective"))
	sdVal := v.LookupPath(cue.ParsePath("onSecureDelete"))

	switch {
	case aoVal.Exists() && sdVal.Exists():
		return nil, &CompileError{
			Field:   "trigger",
			Message: "scripted event cannot have both afterObjective and onSecureDelete",
			Pos:     v.Pos(),
		}
	case aoVal.Exists():
		id, err := aoVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return def.AfterObjective{ObjectiveID: id}, nil
	case sdVal.Exists():
		files, err := stringList(sdVal)
		if err != nil {
			return nil, err
		}
		return def.OnSecureDelete{Files: files}, nil
	default:
		return nil, &CompileError{
			Field:   "trigger",
			Message: "scripted event requires afterObjective or onSecureDelete",
			Pos:     v.Pos(),
		}
	}
}

// parseActions maps single-key action structs onto the action sum
// type: {fileOperation: {...}}, {disconnect: true}, {setStatus: "..."}.
func parseActions(v cue.Value) ([]def.Action, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var actions []def.Action
	for iter.Next() {
		av := iter.Value()

		if foVal := av.LookupPath(cue.ParsePath("fileOperation")); foVal.Exists() {
			var fa def.FileAction
			if fa.Operation, err = requiredString(foVal, "operation"); err != nil {
				return nil, err
			}
			if filesVal := foVal.LookupPath(cue.ParsePath("files")); filesVal.Exists() {
				if fa.Files, err = stringList(filesVal); err != nil {
					return nil, err
				}
			}
			if indVal := foVal.LookupPath(cue.ParsePath("indicator")); indVal.Exists() {
				ind, err := indVal.String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				fa.Indicator = def.FileIndicator(ind)
			}
			actions = append(actions, fa)
			continue
		}

		if dcVal := av.LookupPath(cue.ParsePath("disconnect")); dcVal.Exists() {
			actions = append(actions, def.DisconnectAction{})
			continue
		}

		if stVal := av.LookupPath(cue.ParsePath("setStatus")); stVal.Exists() {
			status, err := stVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			actions = append(actions, def.StatusAction{Status: def.MissionStatus(status)})
			continue
		}

		return nil, &CompileError{
			Field:   "actions",
			Message: "action must be one of fileOperation, disconnect, setStatus",
			Pos:     av.Pos(),
		}
	}
	return actions, nil
}

func parseNetworks(v cue.Value) ([]def.Network, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var networks []def.Network
	for iter.Next() {
		nv := iter.Value()
		var n def.Network
		if n.ID, err = requiredString(nv, "id"); err != nil {
			return nil, err
		}
		if n.Name, err = optionalString(nv, "name"); err != nil {
			return nil, err
		}
		if n.IP, err = optionalString(nv, "ip"); err != nil {
			return nil, err
		}
		if n.Username, err = optionalString(nv, "username"); err != nil {
			return nil, err
		}
		if n.Password, err = optionalString(nv, "password"); err != nil {
			return nil, err
		}
		if n.FileSystems, err = parseFileSystems(nv.LookupPath(cue.ParsePath("fileSystems"))); err != nil {
			return nil, err
		}
		networks = append(networks, n)
	}
	return networks, nil
}

func parseFileSystems(v cue.Value) ([]def.FileSystem, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var systems []def.FileSystem
	for iter.Next() {
		fv := iter.Value()
		var fs def.FileSystem
		if fs.ID, err = requiredString(fv, "id"); err != nil {
			return nil, err
		}
		if fs.IP, err = optionalString(fv, "ip"); err != nil {
			return nil, err
		}

		filesVal := fv.LookupPath(cue.ParsePath("files"))
		if filesVal.Exists() {
			fileIter, err := filesVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for fileIter.Next() {
				var f def.File
				if f.Name, err = requiredString(fileIter.Value(), "name"); err != nil {
					return nil, err
				}
				if cVal := fileIter.Value().LookupPath(cue.ParsePath("corrupted")); cVal.Exists() {
					if f.Corrupted, err = cVal.Bool(); err != nil {
						return nil, formatCUEError(err)
					}
				}
				fs.Files = append(fs.Files, f)
			}
		}
		systems = append(systems, fs)
	}
	return systems, nil
}

func parseAttachments(v cue.Value) ([]def.Attachment, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var attachments []def.Attachment
	for iter.Next() {
		av := iter.Value()
		var a def.Attachment
		if a.NetworkID, err = requiredString(av, "networkId"); err != nil {
			return nil, err
		}
		if a.Username, err = optionalString(av, "username"); err != nil {
			return nil, err
		}
		if a.Password, err = optionalString(av, "password"); err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, nil
}

func parseConsequences(v cue.Value) (*def.Consequences, error) {
	cons := &def.Consequences{}

	for _, branch := range []struct {
		field string
		dst   *[]def.Message
	}{
		{"success", &cons.Success},
		{"failure", &cons.Failure},
	} {
		bv := v.LookupPath(cue.ParsePath(branch.field))
		if !bv.Exists() {
			continue
		}
		iter, err := bv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			msg, err := parseMessage(iter.Value())
			if err != nil {
				return nil, err
			}
			*branch.dst = append(*branch.dst, msg)
		}
	}
	return cons, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// optionalDuration parses a duration string field ("90s", "2h30m").
func optionalDuration(v cue.Value, field string) (time.Duration, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	s, err := fv.String()
	if err != nil {
		return 0, formatCUEError(err)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration %q: %v", s, err),
			Pos:     fv.Pos(),
		}
	}
	return d, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
