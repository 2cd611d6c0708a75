// Package adapters holds the in-process stand-ins for the engine's two
// external collaborators: the reasoner oracle and the narrator. Real
// deployments wire their own implementations of the engine ports; these
// keep the world runnable (and testable) without them.
package adapters

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"hearth.world/internal/sim/actions"
	"hearth.world/internal/sim/domain"
	"hearth.world/internal/sim/engine"
)

// IdleReasoner is the default oracle when no external reasoner is wired:
// every agent ends its turn without acting. The world still ticks, expires
// invitations, advances journeys and commits.
type IdleReasoner struct{}

func (IdleReasoner) BeginSession(_ context.Context, agentName, _, _ string) (string, error) {
	return fmt.Sprintf("idle-%s-%s", agentName, uuid.NewString()[:8]), nil
}

func (IdleReasoner) StartTurn(context.Context, string, engine.Perception, []actions.ToolDef) (engine.Turn, error) {
	return emptyTurn{}, nil
}

type emptyTurn struct{}

func (emptyTurn) Next(context.Context, string) (*domain.ToolCall, error) { return nil, nil }
func (emptyTurn) Close() error                                           { return nil }

// TemplateNarrator renders results with local templates. It stands in for
// the external small-model narrator; the engine already falls back to raw
// messages when it declines.
type TemplateNarrator struct{}

func (TemplateNarrator) Narrate(_ context.Context, res domain.ActionResult, _ engine.NarrationContext) (string, error) {
	if len(res.Data) == 0 {
		return res.Message, nil
	}
	if hints, ok := res.Data["hints"].([]string); ok && len(hints) > 0 {
		out := res.Message
		for _, h := range hints {
			out += " " + h + "."
		}
		return out, nil
	}
	if text, ok := res.Data["text"].(string); ok {
		return fmt.Sprintf("%s: %q", res.Message, text), nil
	}
	return res.Message, nil
}
