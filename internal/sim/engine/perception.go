package engine

import (
	"strings"

	"hearth.world/internal/sim/actions"
	"hearth.world/internal/sim/domain"
)

const (
	symbolSelf  = "@"
	symbolAgent = "&"
	symbolSign  = "!"
	symbolItem  = "*"
)

// buildPerception assembles the structured view for one agent's turn and
// records meetings for every agent it can currently see. Returned events
// are the first-meeting events.
func (e *Engine) buildPerception(env *actions.Env, a domain.Agent, dreams []string) (Perception, []domain.Event, error) {
	radius := env.Vision()
	rect := domain.RectAround(a.Position, radius).Clamp(env.World.Width(), env.World.Height())

	visible, err := env.Agents.Within(a.Position, radius, a.Name)
	if err != nil {
		return Perception{}, nil, err
	}

	var events []domain.Event
	var va []VisibleAgent
	for _, other := range visible {
		va = append(va, VisibleAgent{Name: other.Name, Position: other.Position, Sleeping: other.Sleeping})
		newPair, err := env.Agents.RecordMeeting(a.Name, other.Name)
		if err != nil {
			return Perception{}, nil, err
		}
		if newPair {
			events = append(events, domain.AgentsMet{
				EventBase: domain.EventBase{Tick: env.Tick},
				A:         a.Name,
				B:         other.Name,
			})
		}
	}

	grid, err := e.renderGrid(env, a, rect, visible)
	if err != nil {
		return Perception{}, nil, err
	}

	// Refresh the actor: the meeting ledger may have grown.
	a, err = env.Agents.Get(a.Name)
	if err != nil {
		return Perception{}, nil, err
	}

	p := Perception{
		Tick:          env.Tick,
		TimeOfDay:     env.TimeOfDay,
		Weather:       env.Weather,
		Position:      a.Position,
		Grid:          grid,
		GridOrigin:    domain.Position{X: rect.MinX, Y: rect.MinY},
		VisibleAgents: va,
		Inventory:     a.Inventory,
		Journey:       a.Journey,
		Dreams:        dreams,
	}

	if c, ok, err := env.Convo.Active(a.Name); err != nil {
		return Perception{}, nil, err
	} else if ok {
		p.Conversation = &ConversationView{
			ID:           c.ID,
			Privacy:      c.Privacy,
			Participants: c.ActiveParticipants(),
			UnseenTurns:  c.UnseenTurns(a.Name),
		}
		// Handing over the context marks these turns as seen.
		if err := env.Convo.MarkSeen(a.Name, env.Tick); err != nil {
			return Perception{}, nil, err
		}
	}

	pending, err := env.Convo.PendingFor(a.Name)
	if err != nil {
		return Perception{}, nil, err
	}
	for _, inv := range pending {
		p.Invitations = append(p.Invitations, InvitationView{Inviter: inv.Inviter, Privacy: inv.Privacy})
	}

	return p, events, nil
}

// renderGrid draws the visible rect row by row: terrain symbols with
// agents and objects overlaid.
func (e *Engine) renderGrid(env *actions.Env, self domain.Agent, rect domain.Rect, visible []domain.Agent) ([]string, error) {
	overlay := map[domain.Position]string{}
	for _, p := range rect.Positions() {
		objs, err := env.World.ObjectsAt(p)
		if err != nil {
			return nil, err
		}
		for _, o := range objs {
			switch o.Kind {
			case domain.ObjectSign:
				overlay[p] = symbolSign
			case domain.ObjectPlacedItem:
				if overlay[p] == "" {
					overlay[p] = symbolItem
				}
			}
		}
	}
	for _, other := range visible {
		overlay[other.Position] = symbolAgent
	}
	overlay[self.Position] = symbolSelf

	var rows []string
	var b strings.Builder
	for y := rect.MinY; y <= rect.MaxY; y++ {
		b.Reset()
		for x := rect.MinX; x <= rect.MaxX; x++ {
			p := domain.Position{X: x, Y: y}
			if sym, ok := overlay[p]; ok {
				b.WriteString(sym)
				continue
			}
			cell, err := env.World.Cell(p)
			if err != nil {
				return nil, err
			}
			b.WriteString(cell.Terrain.Props().Symbol)
		}
		rows = append(rows, b.String())
	}
	return rows, nil
}
