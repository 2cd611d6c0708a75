// Package store is the authoritative state store: a single sqlite database
// holding world, cells, objects, agents, inventories, conversations and
// structures. All writes for one tick commit as one transaction; readers
// (observer queries) see only committed state. The handle holds a single
// connection, so a read waits while a commit transaction is open and a
// commit waits for an in-progress read to finish.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"hearth.world/internal/sim/domain"
)

// ErrSchemaMismatch is returned by Open when the database was written by a
// different schema version. Fatal to the process per the storage contract.
var ErrSchemaMismatch = errors.New("store: schema version mismatch")

// Store owns the sqlite handle. The writer is single-threaded per world;
// the handle is limited to one connection so sqlite serialises everything.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) world.db at path and brings the schema current.
// An existing database with a newer schema than this binary fails with
// ErrSchemaMismatch.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL so observer reads see a consistent point-in-time view. FULL sync: the database is the single
	// source of truth and a torn commit is unrecoverable by design.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("store: %s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	var current int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current)
	if err != nil {
		// schema_version does not exist yet: fresh database.
		current = 0
	}
	if current > SchemaVersion {
		return fmt.Errorf("%w: db has v%d, binary supports v%d", ErrSchemaMismatch, current, SchemaVersion)
	}
	if current == SchemaVersion {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for v := current + 1; v <= SchemaVersion; v++ {
		ddl, ok := migrations[v]
		if !ok {
			return fmt.Errorf("store: missing migration v%d", v)
		}
		if _, err := tx.Exec(ddl); err != nil {
			return fmt.Errorf("store: migration v%d: %w", v, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
			v, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// DB exposes the handle for the snapshot package.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// InitWorld writes the singleton world row for a fresh database.
func (s *Store) InitWorld(width, height int) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO world_state (id, tick, weather, width, height) VALUES (1, 0, 'clear', ?, ?)`,
		width, height,
	)
	return err
}

// --- committed reads ---

// LastSeq returns the last committed event sequence number. The event log
// is reconciled against it on open.
func (s *Store) LastSeq() (int64, error) {
	var seq int64
	err := s.db.QueryRow(`SELECT last_seq FROM world_state WHERE id = 1`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("store: read last_seq: %w", err)
	}
	return seq, nil
}

func (s *Store) WorldState() (domain.WorldState, error) {
	var w domain.WorldState
	err := s.db.QueryRow(`SELECT tick, weather, width, height FROM world_state WHERE id = 1`).
		Scan(&w.Tick, &w.Weather, &w.Width, &w.Height)
	if err != nil {
		return w, fmt.Errorf("store: world state: %w", err)
	}
	return w, nil
}

func scanCell(terrain string, walls, doors []byte, placeName, structureID sql.NullString) (domain.Cell, error) {
	c := domain.Cell{Terrain: domain.Terrain(terrain)}
	if err := json.Unmarshal(walls, &c.Walls); err != nil {
		return c, err
	}
	if err := json.Unmarshal(doors, &c.Doors); err != nil {
		return c, err
	}
	c.PlaceName = placeName.String
	c.StructureID = structureID.String
	return c, nil
}

// Cell returns the cell at p, materialising the default for unstored rows.
func (s *Store) Cell(p domain.Position) (domain.Cell, error) {
	var (
		terrain      string
		walls, doors []byte
		place, sid   sql.NullString
	)
	err := s.db.QueryRow(
		`SELECT terrain, walls, doors, place_name, structure_id FROM cells WHERE x = ? AND y = ?`,
		p.X, p.Y,
	).Scan(&terrain, &walls, &doors, &place, &sid)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultCell(), nil
	}
	if err != nil {
		return domain.Cell{}, fmt.Errorf("store: cell %v: %w", p, err)
	}
	return scanCell(terrain, walls, doors, place, sid)
}

// StoredCellsInRect returns only the persisted (non-default) cells in the
// rect. Callers materialise defaults for the rest.
func (s *Store) StoredCellsInRect(r domain.Rect) ([]domain.PlacedCell, error) {
	rows, err := s.db.Query(
		`SELECT x, y, terrain, walls, doors, place_name, structure_id
		 FROM cells WHERE x BETWEEN ? AND ? AND y BETWEEN ? AND ? ORDER BY y, x`,
		r.MinX, r.MaxX, r.MinY, r.MaxY,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PlacedCell
	for rows.Next() {
		var (
			p            domain.Position
			terrain      string
			walls, doors []byte
			place, sid   sql.NullString
		)
		if err := rows.Scan(&p.X, &p.Y, &terrain, &walls, &doors, &place, &sid); err != nil {
			return nil, err
		}
		c, err := scanCell(terrain, walls, doors, place, sid)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.PlacedCell{Pos: p, Cell: c})
	}
	return out, rows.Err()
}

type objectExtras struct {
	Text       string   `json:"text,omitempty"`
	ItemKind   string   `json:"item_kind,omitempty"`
	Properties []string `json:"properties,omitempty"`
	Quantity   int      `json:"quantity,omitempty"`
}

func objectFromRow(id, kind string, x, y int, createdBy sql.NullString, createdTick int, data []byte) (domain.WorldObject, error) {
	var ex objectExtras
	if err := json.Unmarshal(data, &ex); err != nil {
		return domain.WorldObject{}, err
	}
	return domain.WorldObject{
		ID:          id,
		Kind:        domain.ObjectKind(kind),
		Position:    domain.Position{X: x, Y: y},
		CreatedBy:   createdBy.String,
		CreatedTick: createdTick,
		Text:        ex.Text,
		ItemKind:    ex.ItemKind,
		Properties:  ex.Properties,
		Quantity:    ex.Quantity,
	}, nil
}

func objectExtrasJSON(o domain.WorldObject) ([]byte, error) {
	return json.Marshal(objectExtras{
		Text:       o.Text,
		ItemKind:   o.ItemKind,
		Properties: o.Properties,
		Quantity:   o.Quantity,
	})
}

func (s *Store) Object(id string) (domain.WorldObject, bool, error) {
	var (
		kind        string
		x, y        int
		createdBy   sql.NullString
		createdTick int
		data        []byte
	)
	err := s.db.QueryRow(
		`SELECT kind, x, y, created_by, created_tick, data FROM objects WHERE id = ?`, id,
	).Scan(&kind, &x, &y, &createdBy, &createdTick, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WorldObject{}, false, nil
	}
	if err != nil {
		return domain.WorldObject{}, false, err
	}
	o, err := objectFromRow(id, kind, x, y, createdBy, createdTick, data)
	return o, err == nil, err
}

func (s *Store) objectsWhere(where string, args ...any) ([]domain.WorldObject, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, x, y, created_by, created_tick, data FROM objects `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WorldObject
	for rows.Next() {
		var (
			id, kind    string
			x, y        int
			createdBy   sql.NullString
			createdTick int
			data        []byte
		)
		if err := rows.Scan(&id, &kind, &x, &y, &createdBy, &createdTick, &data); err != nil {
			return nil, err
		}
		o, err := objectFromRow(id, kind, x, y, createdBy, createdTick, data)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) ObjectsAt(p domain.Position) ([]domain.WorldObject, error) {
	return s.objectsWhere(`WHERE x = ? AND y = ? ORDER BY id`, p.X, p.Y)
}

func (s *Store) ObjectsInRect(r domain.Rect) ([]domain.WorldObject, error) {
	return s.objectsWhere(
		`WHERE x BETWEEN ? AND ? AND y BETWEEN ? AND ? ORDER BY y, x, id`,
		r.MinX, r.MaxX, r.MinY, r.MaxY,
	)
}

func (s *Store) scanAgent(name, modelID, personality string, x, y int, sleeping int, sessionID sql.NullString, lastTurn int, known, journey []byte) (domain.Agent, error) {
	a := domain.Agent{
		Name:         name,
		ModelID:      modelID,
		Personality:  personality,
		Position:     domain.Position{X: x, Y: y},
		Sleeping:     sleeping != 0,
		SessionID:    sessionID.String,
		LastTurnTick: lastTurn,
		Inventory:    domain.NewInventory(),
	}
	if err := json.Unmarshal(known, &a.KnownAgents); err != nil {
		return a, err
	}
	if len(journey) > 0 {
		var j domain.Journey
		if err := json.Unmarshal(journey, &j); err != nil {
			return a, err
		}
		a.Journey = &j
	}
	if err := s.loadInventory(&a); err != nil {
		return a, err
	}
	return a, nil
}

func (s *Store) loadInventory(a *domain.Agent) error {
	rows, err := s.db.Query(`SELECT kind, quantity FROM inventory_stacks WHERE agent = ?`, a.Name)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var q int
		if err := rows.Scan(&kind, &q); err != nil {
			return err
		}
		a.Inventory.Stacks[kind] = q
	}
	if err := rows.Err(); err != nil {
		return err
	}

	irows, err := s.db.Query(`SELECT id, kind, properties FROM inventory_items WHERE agent = ? ORDER BY id`, a.Name)
	if err != nil {
		return err
	}
	defer irows.Close()
	for irows.Next() {
		var it domain.Item
		var props []byte
		if err := irows.Scan(&it.ID, &it.Kind, &props); err != nil {
			return err
		}
		if err := json.Unmarshal(props, &it.Properties); err != nil {
			return err
		}
		a.Inventory.Items = append(a.Inventory.Items, it)
	}
	return irows.Err()
}

func (s *Store) Agent(name string) (domain.Agent, bool, error) {
	var (
		modelID, personality string
		x, y, sleeping, last int
		sessionID            sql.NullString
		known, journey       []byte
	)
	err := s.db.QueryRow(
		`SELECT model_id, personality, x, y, sleeping, session_id, last_turn_tick, known_agents, journey
		 FROM agents WHERE name = ?`, name,
	).Scan(&modelID, &personality, &x, &y, &sleeping, &sessionID, &last, &known, &journey)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Agent{}, false, nil
	}
	if err != nil {
		return domain.Agent{}, false, err
	}
	a, err := s.scanAgent(name, modelID, personality, x, y, sleeping, sessionID, last, known, journey)
	return a, err == nil, err
}

// Agents returns the full roster sorted by name.
func (s *Store) Agents() ([]domain.Agent, error) {
	rows, err := s.db.Query(`SELECT name FROM agents ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Agent, 0, len(names))
	for _, n := range names {
		a, ok, err := s.Agent(n)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) NamedPlaces() (map[string]domain.Position, error) {
	rows, err := s.db.Query(`SELECT name, x, y FROM named_places`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]domain.Position{}
	for rows.Next() {
		var name string
		var p domain.Position
		if err := rows.Scan(&name, &p.X, &p.Y); err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, rows.Err()
}

func (s *Store) PlacePosition(name string) (domain.Position, bool, error) {
	var p domain.Position
	err := s.db.QueryRow(`SELECT x, y FROM named_places WHERE name = ?`, name).Scan(&p.X, &p.Y)
	if errors.Is(err, sql.ErrNoRows) {
		return p, false, nil
	}
	return p, err == nil, err
}

func (s *Store) Structure(id string) (domain.Structure, bool, error) {
	var st domain.Structure
	var name sql.NullString
	var interior, creators []byte
	var private int
	err := s.db.QueryRow(
		`SELECT name, interior, creators, is_private FROM structures WHERE id = ?`, id,
	).Scan(&name, &interior, &creators, &private)
	if errors.Is(err, sql.ErrNoRows) {
		return st, false, nil
	}
	if err != nil {
		return st, false, err
	}
	st.ID = id
	st.Name = name.String
	st.Private = private != 0
	if err := json.Unmarshal(interior, &st.Interior); err != nil {
		return st, false, err
	}
	if err := json.Unmarshal(creators, &st.Creators); err != nil {
		return st, false, err
	}
	return st, true, nil
}

// StructureAt resolves the structure covering a position via the cell link.
func (s *Store) StructureAt(p domain.Position) (domain.Structure, bool, error) {
	c, err := s.Cell(p)
	if err != nil || c.StructureID == "" {
		return domain.Structure{}, false, err
	}
	return s.Structure(c.StructureID)
}

func scanConversationRow(row interface{ Scan(...any) error }) (domain.Conversation, error) {
	var c domain.Conversation
	var ended sql.NullInt64
	if err := row.Scan(&c.ID, &c.Privacy, &c.StartedTick, &c.CreatedBy, &ended); err != nil {
		return c, err
	}
	if ended.Valid {
		v := int(ended.Int64)
		c.EndedTick = &v
	}
	return c, nil
}

func (s *Store) Conversation(id string) (domain.Conversation, bool, error) {
	row := s.db.QueryRow(
		`SELECT id, privacy, started_tick, created_by, ended_tick FROM conversations WHERE id = ?`, id)
	c, err := scanConversationRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return c, false, nil
	}
	if err != nil {
		return c, false, err
	}
	if err := s.loadConversationDetail(&c); err != nil {
		return c, false, err
	}
	return c, true, nil
}

func (s *Store) loadConversationDetail(c *domain.Conversation) error {
	rows, err := s.db.Query(
		`SELECT agent, joined_tick, left_tick, last_turn_tick
		 FROM conversation_participants WHERE conversation_id = ? ORDER BY joined_tick, agent`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Participant
		var left sql.NullInt64
		if err := rows.Scan(&p.Agent, &p.JoinedTick, &left, &p.LastTurnTick); err != nil {
			return err
		}
		if left.Valid {
			v := int(left.Int64)
			p.LeftTick = &v
		}
		c.Participants = append(c.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	trows, err := s.db.Query(
		`SELECT speaker, message, tick FROM conversation_turns WHERE conversation_id = ? ORDER BY id`, c.ID)
	if err != nil {
		return err
	}
	defer trows.Close()
	for trows.Next() {
		var t domain.Turn
		if err := trows.Scan(&t.Speaker, &t.Text, &t.Tick); err != nil {
			return err
		}
		c.Turns = append(c.Turns, t)
	}
	return trows.Err()
}

// Conversations returns every conversation, active first, newest first.
func (s *Store) Conversations() ([]domain.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT id FROM conversations ORDER BY ended_tick IS NOT NULL, started_tick DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.Conversation, 0, len(ids))
	for _, id := range ids {
		c, ok, err := s.Conversation(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// ActiveConversationFor returns the conversation the agent currently
// participates in, if any. An agent is in at most one.
func (s *Store) ActiveConversationFor(agent string) (domain.Conversation, bool, error) {
	var id string
	err := s.db.QueryRow(
		`SELECT c.id FROM conversations c
		 JOIN conversation_participants p ON p.conversation_id = c.id
		 WHERE p.agent = ? AND p.left_tick IS NULL AND c.ended_tick IS NULL`, agent,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Conversation{}, false, nil
	}
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return s.Conversation(id)
}

func scanInvitation(row interface{ Scan(...any) error }) (domain.Invitation, error) {
	var inv domain.Invitation
	err := row.Scan(&inv.ID, &inv.Inviter, &inv.Invitee, &inv.Privacy, &inv.CreatedTick, &inv.Status)
	return inv, err
}

// PendingInvitations returns all pending invitations, oldest first.
func (s *Store) PendingInvitations() ([]domain.Invitation, error) {
	rows, err := s.db.Query(
		`SELECT id, inviter, invitee, privacy, created_tick, status
		 FROM conversation_invitations WHERE status = 'pending' ORDER BY created_tick, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// PendingInvitationsFor returns pending invitations addressed to the agent,
// oldest first.
func (s *Store) PendingInvitationsFor(invitee string) ([]domain.Invitation, error) {
	all, err := s.PendingInvitations()
	if err != nil {
		return nil, err
	}
	var out []domain.Invitation
	for _, inv := range all {
		if inv.Invitee == invitee {
			out = append(out, inv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedTick < out[j].CreatedTick })
	return out, nil
}
