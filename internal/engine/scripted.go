package engine

import (
	"log/slog"

	"github.com/darkwire-sim/darkwire/internal/def"
)

// Enriched action kinds, as consumed by the external action executor.
const (
	ActionFileOperation    = "file-operation"
	ActionDisconnect       = "disconnect"
	ActionSetMissionStatus = "set-mission-status"
)

// EnrichedAction is the externally executable form of a scripted
// action: symbolic file targets resolved to concrete names, failure
// statuses annotated with the consequence message set. The core never
// executes these itself; it emits them on scripted-event-start.
type EnrichedAction struct {
	Kind         string            `json:"kind"`
	Operation    string            `json:"operation,omitempty"`
	Files        []string          `json:"files,omitempty"`
	Status       def.MissionStatus `json:"status,omitempty"`
	Consequences []def.Message     `json:"consequences,omitempty"`
}

// EnrichActions produces the enriched action list for a scripted event
// owned by mission m.
//
// A file action targeting all-corrupted or all-repaired is resolved by
// scanning the mission's simulated topology; no matching files yields
// an empty list, not an error, and downstream executors must cope with
// "nothing to affect". A set-status action reporting failure carries
// the failure consequence set so the status-change handler can chain
// into consequence delivery.
func EnrichActions(m *def.Mission, actions []def.Action) []EnrichedAction {
	enriched := make([]EnrichedAction, 0, len(actions))

	for _, a := range actions {
		switch a := a.(type) {
		case def.FileAction:
			files := a.Files
			switch a.Indicator {
			case def.IndicatorAllCorrupted:
				files = m.CorruptedFiles()
			case def.IndicatorAllRepaired:
				files = m.CleanFiles()
			}
			enriched = append(enriched, EnrichedAction{
				Kind:      ActionFileOperation,
				Operation: a.Operation,
				Files:     files,
			})

		case def.DisconnectAction:
			enriched = append(enriched, EnrichedAction{Kind: ActionDisconnect})

		case def.StatusAction:
			ea := EnrichedAction{Kind: ActionSetMissionStatus, Status: a.Status}
			if a.Status == def.MissionFailed {
				ea.Consequences = m.Consequences.Select(def.MissionFailed)
			}
			enriched = append(enriched, ea)

		default:
			slog.Warn("unhandled scripted action type, skipping", "mission", m.ID)
		}
	}

	return enriched
}
