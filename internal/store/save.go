package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/darkwire-sim/darkwire/internal/def"
	"github.com/darkwire-sim/darkwire/internal/engine"
)

// PoolEntryRecord is the serialized shape of one mission-board offer.
// Generated definitions round-trip through JSON; authored definitions
// are reloaded from their source files instead and never stored here.
type PoolEntryRecord struct {
	MissionID string       `json:"missionId"`
	Client    string       `json:"client"`
	TierLevel int          `json:"tierLevel"`
	Position  int          `json:"position"`
	Mission   *def.Mission `json:"mission"`
}

// MarkFired records a dedup key. Re-marking an already fired key is a
// no-op, so replayed deliveries after a crash do not error.
func (s *Store) MarkFired(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fired_events (key) VALUES (?) ON CONFLICT (key) DO NOTHING`, key)
	if err != nil {
		return fmt.Errorf("mark fired event: %w", err)
	}
	return nil
}

// FiredEvents returns every recorded dedup key, sorted.
func (s *Store) FiredEvents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM fired_events ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("read fired events: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan fired event: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// SaveCheckpoint persists a registry checkpoint in one transaction:
// fired keys are merged in, pending events are replaced wholesale.
func (s *Store) SaveCheckpoint(ctx context.Context, cp engine.Checkpoint) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, key := range cp.FiredEvents {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO fired_events (key) VALUES (?) ON CONFLICT (key) DO NOTHING`, key); err != nil {
				return fmt.Errorf("save fired event: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_events`); err != nil {
			return fmt.Errorf("clear pending events: %w", err)
		}
		for _, rec := range cp.PendingEvents {
			payload, err := json.Marshal(rec.Payload)
			if err != nil {
				return fmt.Errorf("marshal pending payload %s: %w", rec.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO pending_events (id, type, payload, remaining_delay_ms) VALUES (?, ?, ?, ?)`,
				rec.ID, rec.Type, string(payload), rec.RemainingMs); err != nil {
				return fmt.Errorf("save pending event %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// LoadCheckpoint reads back the persisted registry state.
func (s *Store) LoadCheckpoint(ctx context.Context) (engine.Checkpoint, error) {
	var cp engine.Checkpoint

	keys, err := s.FiredEvents(ctx)
	if err != nil {
		return cp, err
	}
	cp.FiredEvents = keys

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, payload, remaining_delay_ms FROM pending_events ORDER BY id`)
	if err != nil {
		return cp, fmt.Errorf("read pending events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec engine.PendingRecord
		var payload string
		if err := rows.Scan(&rec.ID, &rec.Type, &payload, &rec.RemainingMs); err != nil {
			return cp, fmt.Errorf("scan pending event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return cp, fmt.Errorf("unmarshal pending payload %s: %w", rec.ID, err)
		}
		cp.PendingEvents = append(cp.PendingEvents, rec)
	}
	return cp, rows.Err()
}

// SavePoolEntries replaces the persisted offer board.
func (s *Store) SavePoolEntries(ctx context.Context, entries []PoolEntryRecord) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pool_entries`); err != nil {
			return fmt.Errorf("clear pool entries: %w", err)
		}
		for _, e := range entries {
			mission, err := json.Marshal(e.Mission)
			if err != nil {
				return fmt.Errorf("marshal pool mission %s: %w", e.MissionID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO pool_entries (mission_id, client, tier_level, position, definition)
				 VALUES (?, ?, ?, ?, ?)`,
				e.MissionID, e.Client, e.TierLevel, e.Position, string(mission)); err != nil {
				return fmt.Errorf("save pool entry %s: %w", e.MissionID, err)
			}
		}
		return nil
	})
}

// LoadPoolEntries reads the persisted offer board in position order.
func (s *Store) LoadPoolEntries(ctx context.Context) ([]PoolEntryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT mission_id, client, tier_level, position, definition
		 FROM pool_entries ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("read pool entries: %w", err)
	}
	defer rows.Close()

	var entries []PoolEntryRecord
	for rows.Next() {
		var e PoolEntryRecord
		var mission string
		if err := rows.Scan(&e.MissionID, &e.Client, &e.TierLevel, &e.Position, &mission); err != nil {
			return nil, fmt.Errorf("scan pool entry: %w", err)
		}
		if err := json.Unmarshal([]byte(mission), &e.Mission); err != nil {
			return nil, fmt.Errorf("unmarshal pool mission %s: %w", e.MissionID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
