package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"hearth.world/internal/persistence/eventlog"
	"hearth.world/internal/sim/domain"
)

// Commit applies a tick's overlay, then appends the event frames. The
// database commits first so the log can lag the database but never lead
// it: a crash between the two loses audit frames for a committed tick,
// never the reverse, and Open reconciles anything left over. A failed
// transaction leaves both sides untouched; a failed append is truncated
// back to the last complete frame. Storage failures here are fatal to the
// tick.
func (s *Store) Commit(t *Tick, events []domain.Event, log *eventlog.Log) error {
	var lastSeq int64
	if err := s.db.QueryRow(`SELECT last_seq FROM world_state WHERE id = 1`).Scan(&lastSeq); err != nil {
		return fmt.Errorf("store: read last_seq: %w", err)
	}

	if err := s.commitTx(t, lastSeq+int64(len(events))); err != nil {
		return err
	}

	if log != nil && len(events) > 0 {
		mark, err := log.Mark()
		if err != nil {
			return fmt.Errorf("store: event log mark: %w", err)
		}
		if err := log.Append(events, lastSeq+1); err != nil {
			_ = log.AbortTo(mark)
			return fmt.Errorf("store: event log append: %w", err)
		}
	}
	return nil
}

func (s *Store) commitTx(t *Tick, lastSeq int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := writeWorld(tx, t, lastSeq); err != nil {
		return err
	}
	if err := writeCells(tx, t); err != nil {
		return err
	}
	if err := writeObjects(tx, t); err != nil {
		return err
	}
	if err := writeAgents(tx, t); err != nil {
		return err
	}
	if err := writePlaces(tx, t); err != nil {
		return err
	}
	if err := writeStructures(tx, t); err != nil {
		return err
	}
	if err := writeConversations(tx, t); err != nil {
		return err
	}
	if err := writeInvitations(tx, t); err != nil {
		return err
	}
	return tx.Commit()
}

func writeWorld(tx *sql.Tx, t *Tick, lastSeq int64) error {
	if t.world != nil {
		_, err := tx.Exec(
			`UPDATE world_state SET tick = ?, weather = ?, last_seq = ? WHERE id = 1`,
			t.world.Tick, t.world.Weather, lastSeq)
		return err
	}
	_, err := tx.Exec(`UPDATE world_state SET last_seq = ? WHERE id = 1`, lastSeq)
	return err
}

func writeCells(tx *sql.Tx, t *Tick) error {
	for p, c := range t.cells {
		if c.IsDefault() {
			if _, err := tx.Exec(`DELETE FROM cells WHERE x = ? AND y = ?`, p.X, p.Y); err != nil {
				return err
			}
			continue
		}
		if !c.Valid() {
			return fmt.Errorf("store: cell %v has door without wall", p)
		}
		walls, err := json.Marshal(c.Walls)
		if err != nil {
			return err
		}
		doors, err := json.Marshal(c.Doors)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO cells (x, y, terrain, walls, doors, place_name, structure_id)
			 VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''))
			 ON CONFLICT (x, y) DO UPDATE SET
			   terrain = excluded.terrain, walls = excluded.walls, doors = excluded.doors,
			   place_name = excluded.place_name, structure_id = excluded.structure_id`,
			p.X, p.Y, string(c.Terrain), walls, doors, c.PlaceName, c.StructureID,
		); err != nil {
			return err
		}
	}
	return nil
}

func writeObjects(tx *sql.Tx, t *Tick) error {
	for id := range t.objDeleted {
		if _, err := tx.Exec(`DELETE FROM objects WHERE id = ?`, id); err != nil {
			return err
		}
	}
	for _, o := range t.objects {
		data, err := objectExtrasJSON(o)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO objects (id, kind, x, y, created_by, created_tick, data)
			 VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   kind = excluded.kind, x = excluded.x, y = excluded.y, data = excluded.data`,
			o.ID, string(o.Kind), o.Position.X, o.Position.Y, o.CreatedBy, o.CreatedTick, data,
		); err != nil {
			return err
		}
	}
	return nil
}

func writeAgents(tx *sql.Tx, t *Tick) error {
	names := make([]string, 0, len(t.agents))
	for n := range t.agents {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		a := t.agents[name]
		known, err := json.Marshal(a.KnownAgents)
		if err != nil {
			return err
		}
		var journey any
		if a.Journey != nil {
			j, err := json.Marshal(a.Journey)
			if err != nil {
				return err
			}
			journey = string(j)
		}
		if _, err := tx.Exec(
			`INSERT INTO agents (name, model_id, personality, x, y, sleeping, session_id, last_turn_tick, known_agents, journey)
			 VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?)
			 ON CONFLICT (name) DO UPDATE SET
			   model_id = excluded.model_id, personality = excluded.personality,
			   x = excluded.x, y = excluded.y, sleeping = excluded.sleeping,
			   session_id = excluded.session_id, last_turn_tick = excluded.last_turn_tick,
			   known_agents = excluded.known_agents, journey = excluded.journey`,
			a.Name, a.ModelID, a.Personality, a.Position.X, a.Position.Y,
			boolInt(a.Sleeping), a.SessionID, a.LastTurnTick, known, journey,
		); err != nil {
			return err
		}
		if err := writeInventory(tx, a); err != nil {
			return err
		}
	}
	return nil
}

func writeInventory(tx *sql.Tx, a domain.Agent) error {
	if _, err := tx.Exec(`DELETE FROM inventory_stacks WHERE agent = ?`, a.Name); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM inventory_items WHERE agent = ?`, a.Name); err != nil {
		return err
	}
	kinds := make([]string, 0, len(a.Inventory.Stacks))
	for k := range a.Inventory.Stacks {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		q := a.Inventory.Stacks[k]
		if q < 0 {
			return fmt.Errorf("store: negative stack %s for %s", k, a.Name)
		}
		if q == 0 {
			continue
		}
		if _, err := tx.Exec(
			`INSERT INTO inventory_stacks (agent, kind, quantity) VALUES (?, ?, ?)`,
			a.Name, k, q,
		); err != nil {
			return err
		}
	}
	for _, it := range a.Inventory.Items {
		props, err := json.Marshal(it.Properties)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO inventory_items (id, agent, kind, properties) VALUES (?, ?, ?, ?)`,
			it.ID, a.Name, it.Kind, props,
		); err != nil {
			return err
		}
	}
	return nil
}

func writePlaces(tx *sql.Tx, t *Tick) error {
	for name, p := range t.places {
		if _, err := tx.Exec(
			`INSERT INTO named_places (name, x, y) VALUES (?, ?, ?)
			 ON CONFLICT (name) DO UPDATE SET x = excluded.x, y = excluded.y`,
			name, p.X, p.Y,
		); err != nil {
			return err
		}
	}
	return nil
}

func writeStructures(tx *sql.Tx, t *Tick) error {
	for id := range t.structGone {
		if _, err := tx.Exec(`DELETE FROM structures WHERE id = ?`, id); err != nil {
			return err
		}
	}
	for _, st := range t.structures {
		interior, err := json.Marshal(st.Interior)
		if err != nil {
			return err
		}
		creators, err := json.Marshal(st.Creators)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO structures (id, name, interior, creators, is_private)
			 VALUES (?, NULLIF(?, ''), ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   name = excluded.name, interior = excluded.interior,
			   creators = excluded.creators, is_private = excluded.is_private`,
			st.ID, st.Name, interior, creators, boolInt(st.Private),
		); err != nil {
			return err
		}
	}
	return nil
}

func writeConversations(tx *sql.Tx, t *Tick) error {
	for _, c := range t.convos {
		var ended any
		if c.EndedTick != nil {
			ended = *c.EndedTick
		}
		if _, err := tx.Exec(
			`INSERT INTO conversations (id, privacy, started_tick, created_by, ended_tick)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET privacy = excluded.privacy, ended_tick = excluded.ended_tick`,
			c.ID, string(c.Privacy), c.StartedTick, c.CreatedBy, ended,
		); err != nil {
			return err
		}
		// The aggregate is rewritten wholesale; turns only ever grow and
		// participant rows are few.
		if _, err := tx.Exec(`DELETE FROM conversation_participants WHERE conversation_id = ?`, c.ID); err != nil {
			return err
		}
		for _, p := range c.Participants {
			var left any
			if p.LeftTick != nil {
				left = *p.LeftTick
			}
			if _, err := tx.Exec(
				`INSERT INTO conversation_participants (conversation_id, agent, joined_tick, left_tick, last_turn_tick)
				 VALUES (?, ?, ?, ?, ?)`,
				c.ID, p.Agent, p.JoinedTick, left, p.LastTurnTick,
			); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(`DELETE FROM conversation_turns WHERE conversation_id = ?`, c.ID); err != nil {
			return err
		}
		for _, turn := range c.Turns {
			if _, err := tx.Exec(
				`INSERT INTO conversation_turns (conversation_id, speaker, message, tick) VALUES (?, ?, ?, ?)`,
				c.ID, turn.Speaker, turn.Text, turn.Tick,
			); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeInvitations(tx *sql.Tx, t *Tick) error {
	for _, inv := range t.invitations {
		if _, err := tx.Exec(
			`INSERT INTO conversation_invitations (id, inviter, invitee, privacy, created_tick, status)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET status = excluded.status`,
			inv.ID, inv.Inviter, inv.Invitee, string(inv.Privacy), inv.CreatedTick, string(inv.Status),
		); err != nil {
			return err
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
