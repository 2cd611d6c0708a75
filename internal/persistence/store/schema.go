package store

// SchemaVersion is the current schema. Opening a database with a newer
// committed version is fatal to the process; older versions are migrated.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);

-- Single-row world state.
CREATE TABLE IF NOT EXISTS world_state (
    id      INTEGER PRIMARY KEY CHECK (id = 1),
    tick    INTEGER NOT NULL DEFAULT 0,
    last_seq INTEGER NOT NULL DEFAULT 0,
    weather TEXT NOT NULL DEFAULT 'clear',
    width   INTEGER NOT NULL,
    height  INTEGER NOT NULL
);

-- Sparse cells: rows exist only for non-default cells.
CREATE TABLE IF NOT EXISTS cells (
    x            INTEGER NOT NULL,
    y            INTEGER NOT NULL,
    terrain      TEXT NOT NULL DEFAULT 'grass',
    walls        TEXT NOT NULL DEFAULT '[]',
    doors        TEXT NOT NULL DEFAULT '[]',
    place_name   TEXT,
    structure_id TEXT,
    PRIMARY KEY (x, y)
);
CREATE INDEX IF NOT EXISTS idx_cells_structure ON cells(structure_id);

-- Polymorphic world objects: discriminator + JSON extras.
CREATE TABLE IF NOT EXISTS objects (
    id           TEXT PRIMARY KEY,
    kind         TEXT NOT NULL,
    x            INTEGER NOT NULL,
    y            INTEGER NOT NULL,
    created_by   TEXT,
    created_tick INTEGER NOT NULL DEFAULT 0,
    data         TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_objects_pos ON objects(x, y);
CREATE INDEX IF NOT EXISTS idx_objects_kind ON objects(kind);

CREATE TABLE IF NOT EXISTS agents (
    name           TEXT PRIMARY KEY,
    model_id       TEXT NOT NULL,
    personality    TEXT NOT NULL DEFAULT '',
    x              INTEGER NOT NULL,
    y              INTEGER NOT NULL,
    sleeping       INTEGER NOT NULL DEFAULT 0,
    session_id     TEXT,
    last_turn_tick INTEGER NOT NULL DEFAULT 0,
    known_agents   TEXT NOT NULL DEFAULT '[]',
    journey        TEXT
);

CREATE TABLE IF NOT EXISTS inventory_stacks (
    agent    TEXT NOT NULL,
    kind     TEXT NOT NULL,
    quantity INTEGER NOT NULL CHECK (quantity >= 0),
    PRIMARY KEY (agent, kind),
    FOREIGN KEY (agent) REFERENCES agents(name)
);

CREATE TABLE IF NOT EXISTS inventory_items (
    id         TEXT PRIMARY KEY,
    agent      TEXT NOT NULL,
    kind       TEXT NOT NULL,
    properties TEXT NOT NULL DEFAULT '[]',
    FOREIGN KEY (agent) REFERENCES agents(name)
);
CREATE INDEX IF NOT EXISTS idx_inventory_items_agent ON inventory_items(agent);

CREATE TABLE IF NOT EXISTS named_places (
    name TEXT PRIMARY KEY,
    x    INTEGER NOT NULL,
    y    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS structures (
    id         TEXT PRIMARY KEY,
    name       TEXT,
    interior   TEXT NOT NULL,
    creators   TEXT NOT NULL DEFAULT '[]',
    is_private INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS conversations (
    id           TEXT PRIMARY KEY,
    privacy      TEXT NOT NULL DEFAULT 'public',
    started_tick INTEGER NOT NULL,
    created_by   TEXT NOT NULL,
    ended_tick   INTEGER,
    FOREIGN KEY (created_by) REFERENCES agents(name)
);

CREATE TABLE IF NOT EXISTS conversation_participants (
    conversation_id TEXT NOT NULL,
    agent           TEXT NOT NULL,
    joined_tick     INTEGER NOT NULL,
    left_tick       INTEGER,
    last_turn_tick  INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (conversation_id, agent),
    FOREIGN KEY (conversation_id) REFERENCES conversations(id),
    FOREIGN KEY (agent) REFERENCES agents(name)
);
CREATE INDEX IF NOT EXISTS idx_participants_agent ON conversation_participants(agent);

CREATE TABLE IF NOT EXISTS conversation_turns (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL,
    speaker         TEXT NOT NULL,
    message         TEXT NOT NULL,
    tick            INTEGER NOT NULL,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id)
);
CREATE INDEX IF NOT EXISTS idx_turns_conv ON conversation_turns(conversation_id);

CREATE TABLE IF NOT EXISTS conversation_invitations (
    id           TEXT PRIMARY KEY,
    inviter      TEXT NOT NULL,
    invitee      TEXT NOT NULL,
    privacy      TEXT NOT NULL DEFAULT 'public',
    created_tick INTEGER NOT NULL,
    status       TEXT NOT NULL DEFAULT 'pending',
    FOREIGN KEY (inviter) REFERENCES agents(name),
    FOREIGN KEY (invitee) REFERENCES agents(name)
);
CREATE INDEX IF NOT EXISTS idx_invitations_invitee ON conversation_invitations(invitee);
`

// migrations maps version -> DDL. Pending versions are applied in order
// inside one transaction at open time.
var migrations = map[int]string{
	1: schemaV1,
}
