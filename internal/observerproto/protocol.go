// Package observerproto defines the observer wire protocol: JSON messages
// over a websocket. Observers query committed state and may issue the
// whitelisted commands; they never touch the tick in flight.
package observerproto

import (
	"encoding/json"

	"hearth.world/internal/sim/domain"
	"hearth.world/internal/sim/engine"
)

// Version is the observer protocol version.
const Version = "1.0"

// Query names (side-effect free).
const (
	QueryWorldState         = "get_world_state"
	QueryAgent              = "get_agent"
	QueryAllAgents          = "get_all_agents"
	QueryCell               = "get_cell"
	QueryCellsInRect        = "get_cells_in_rect"
	QueryObjectsAt          = "get_objects_at"
	QueryConversations      = "get_conversations"
	QueryPendingInvitations = "get_pending_invitations"
)

// Client -> server.
type RequestMsg struct {
	Type string `json:"type"` // "query" | "command"
	ID   int64  `json:"id"`

	// Query fields.
	Query string           `json:"query,omitempty"`
	Agent string           `json:"agent,omitempty"`
	Pos   *domain.Position `json:"pos,omitempty"`
	Rect  *RectParam       `json:"rect,omitempty"`

	// Command payload (whitelist enforced server-side).
	Command *engine.ObserverCommand `json:"command,omitempty"`
}

// RectParam is an inclusive rectangle parameter.
type RectParam struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

// Server -> client.
type ResponseMsg struct {
	Type  string          `json:"type"` // "result" | "error"
	ID    int64           `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// TickMsg is pushed to every observer after each committed tick.
type TickMsg struct {
	Type            string           `json:"type"` // "tick"
	ProtocolVersion string           `json:"protocol_version"`
	Tick            int              `json:"tick"`
	TimeOfDay       domain.TimeOfDay `json:"time_of_day"`
	Weather         domain.Weather   `json:"weather"`
	Agents          []AgentSummary   `json:"agents"`
}

// AgentSummary is the per-tick agent line in TickMsg.
type AgentSummary struct {
	Name     string          `json:"name"`
	Position domain.Position `json:"position"`
	Sleeping bool            `json:"sleeping"`
	Journey  bool            `json:"journey"`
}
