// Package engine orchestrates the tick pipeline: six ordered phases over a
// TickContext, cluster-parallel agent turns, and the atomic commit.
package engine

import (
	"context"
	"errors"

	"hearth.world/internal/sim/actions"
	"hearth.world/internal/sim/agents"
	"hearth.world/internal/sim/domain"
)

// ErrReasonerTerminal wraps reasoner failures that should stop the run
// (auth failure, closed endpoint). Timeouts and per-turn errors are not
// terminal: the agent just skips its turn.
var ErrReasonerTerminal = errors.New("engine: reasoner terminally failed")

// Reasoner is the external oracle that decides what each agent does. The
// engine persists the session id per agent so a restart resumes the same
// session.
type Reasoner interface {
	BeginSession(ctx context.Context, agentName, modelID, personality string) (string, error)
	// StartTurn opens one agent turn. The engine feeds tool results back
	// through Turn.Next until the reasoner signals completion.
	StartTurn(ctx context.Context, sessionID string, p Perception, tools []actions.ToolDef) (Turn, error)
}

// Turn is one in-progress reasoner turn.
type Turn interface {
	// Next passes the narrated result of the previous tool call ("" on the
	// first call) and returns the next call, or nil when the turn is over.
	Next(ctx context.Context, prevResult string) (*domain.ToolCall, error)
	Close() error
}

// Narrator converts structured action results into prose for the reasoner.
// The engine falls back to the raw result message when narration fails.
type Narrator interface {
	Narrate(ctx context.Context, res domain.ActionResult, nc NarrationContext) (string, error)
}

// NarrationContext is what the narrator may condition on.
type NarrationContext struct {
	Agent     string           `json:"agent"`
	Tool      string           `json:"tool"`
	Tick      int              `json:"tick"`
	TimeOfDay domain.TimeOfDay `json:"time_of_day"`
	Weather   domain.Weather   `json:"weather"`
}

// VisibleAgent is one agent in the seer's vision.
type VisibleAgent struct {
	Name     string          `json:"name"`
	Position domain.Position `json:"position"`
	Sleeping bool            `json:"sleeping"`
}

// ConversationView is the unseen slice of the agent's active conversation.
type ConversationView struct {
	ID           string         `json:"id"`
	Privacy      domain.Privacy `json:"privacy"`
	Participants []string       `json:"participants"`
	UnseenTurns  []domain.Turn  `json:"unseen_turns,omitempty"`
}

// InvitationView is a pending invitation as shown to the invitee.
type InvitationView struct {
	Inviter string         `json:"inviter"`
	Privacy domain.Privacy `json:"privacy"`
}

// Perception is the structured record handed to the reasoner each turn.
type Perception struct {
	Tick      int              `json:"tick"`
	TimeOfDay domain.TimeOfDay `json:"time_of_day"`
	Weather   domain.Weather   `json:"weather"`

	Position domain.Position `json:"position"`
	// Grid is the visible square rendered row by row; GridOrigin is the
	// world position of its top-left symbol. Vision is clamped to world
	// bounds, so edges shrink the grid rather than pad it.
	Grid       []string        `json:"grid"`
	GridOrigin domain.Position `json:"grid_origin"`

	VisibleAgents []VisibleAgent `json:"visible_agents,omitempty"`

	Inventory domain.Inventory `json:"inventory"`
	Journey   *domain.Journey  `json:"journey,omitempty"`

	Conversation *ConversationView `json:"conversation,omitempty"`
	Invitations  []InvitationView  `json:"invitations,omitempty"`

	// Dreams are observer-sent messages delivered on wake or next turn.
	Dreams []string `json:"dreams,omitempty"`
}

// TurnResult captures the outcome of one agent's turn.
type TurnResult struct {
	Agent     string
	SessionID string
	Calls     []domain.ToolCall
	Results   []domain.ActionResult
	Skipped   bool
	Err       error
	// Fatal marks an infrastructure failure (storage, not reasoner) that
	// must abort the whole tick.
	Fatal bool
}

// TickContext carries one tick through the phases. Phases append to it and
// hand it on; no phase mutates shared engine state.
type TickContext struct {
	Tick      int
	TimeOfDay domain.TimeOfDay
	Weather   domain.Weather

	// Agents is the roster snapshot at phase time; phases that change agent
	// state refresh it from the overlay.
	Agents map[string]domain.Agent

	ToWake   []string
	Acting   map[string]bool
	Clusters [][]string

	Events      []domain.Event
	TurnResults map[string]TurnResult
}

func (tc TickContext) appendEvents(evs ...domain.Event) TickContext {
	tc.Events = append(tc.Events, evs...)
	return tc
}

// refreshAgents reloads the roster snapshot from the overlay services.
func (tc TickContext) refreshAgents(svc *agents.Service) (TickContext, error) {
	all, err := svc.All()
	if err != nil {
		return tc, err
	}
	m := make(map[string]domain.Agent, len(all))
	for _, a := range all {
		m[a.Name] = a
	}
	tc.Agents = m
	return tc, nil
}
