// Package actions validates and executes the closed action vocabulary.
// Each handler checks preconditions, computes the deterministic result,
// and emits events through the returned ActionResult. Failed actions emit
// no events and consume nothing.
package actions

import (
	"encoding/json"
	"fmt"
	"sort"

	"hearth.world/internal/sim/agents"
	"hearth.world/internal/sim/convo"
	"hearth.world/internal/sim/domain"
	"hearth.world/internal/sim/recipes"
	"hearth.world/internal/sim/tuning"
	"hearth.world/internal/sim/world"
)

// Env is everything a handler may touch during one tick. The services are
// façades over the tick's storage overlay; nothing here outlives the tick.
type Env struct {
	Tick      int
	TimeOfDay domain.TimeOfDay
	Weather   domain.Weather

	World   *world.Service
	Agents  *agents.Service
	Convo   *convo.Service
	Recipes *recipes.Table
	Tun     tuning.Tuning
}

// Vision is the effective vision radius right now. The night multiplier is
// applied here and nowhere else, so every visibility check agrees.
func (e *Env) Vision() int {
	return e.Tun.EffectiveVision(e.TimeOfDay == domain.Night)
}

// handler executes one action for an actor. A non-nil error is an
// infrastructure failure and aborts the tick; agent-level failures are
// failed ActionResults.
type handler func(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error)

var dispatch = map[string]handler{
	domain.ActWalk:     handleWalk,
	domain.ActApproach: handleApproach,
	domain.ActJourney:  handleJourney,

	domain.ActExamine:     handleExamine,
	domain.ActSenseOthers: handleSenseOthers,

	domain.ActTake:   handleTake,
	domain.ActDrop:   handleDrop,
	domain.ActGive:   handleGive,
	domain.ActGather: handleGather,

	domain.ActCombine: handleCombine,
	domain.ActWork:    handleWork,
	domain.ActApply:   handleApply,

	domain.ActBuildShelter: handleBuildShelter,
	domain.ActPlaceWall:    handlePlaceWall,
	domain.ActPlaceDoor:    handlePlaceDoor,
	domain.ActPlaceItem:    handlePlaceItem,
	domain.ActRemoveWall:   handleRemoveWall,

	domain.ActWriteSign: handleWriteSign,
	domain.ActReadSign:  handleReadSign,
	domain.ActNamePlace: handleNamePlace,

	domain.ActSpeak:             handleSpeak,
	domain.ActInvite:            handleInvite,
	domain.ActAcceptInvite:      handleAcceptInvite,
	domain.ActDeclineInvite:     handleDeclineInvite,
	domain.ActJoinConversation:  handleJoinConversation,
	domain.ActLeaveConversation: handleLeaveConversation,

	domain.ActSleep: handleSleep,
}

// ValidateDispatch checks the handler map against the declared vocabulary.
// Called once at engine construction; a mismatch is a programming error.
func ValidateDispatch() error {
	if len(dispatch) != len(domain.ActionNames) {
		return fmt.Errorf("actions: dispatch has %d handlers, vocabulary has %d", len(dispatch), len(domain.ActionNames))
	}
	for _, name := range domain.ActionNames {
		if dispatch[name] == nil {
			return fmt.Errorf("actions: no handler for %q", name)
		}
	}
	var extra []string
	known := map[string]bool{}
	for _, n := range domain.ActionNames {
		known[n] = true
	}
	for n := range dispatch {
		if !known[n] {
			extra = append(extra, n)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("actions: handlers outside the vocabulary: %v", extra)
	}
	return nil
}

// Execute runs one tool call for an actor: schema validation, then
// dispatch. Malformed arguments become failed results, not errors.
func Execute(e *Env, actor string, call domain.ToolCall) (domain.ActionResult, error) {
	h := dispatch[call.Tool]
	if h == nil {
		return domain.FailResult(fmt.Sprintf("there is no %q action", call.Tool)), nil
	}
	if err := ValidateArgs(call.Tool, call.Args); err != nil {
		return domain.FailResult(fmt.Sprintf("malformed %s arguments: %v", call.Tool, err)), nil
	}
	return h(e, actor, call.Args)
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}

// stamp returns the event base for the current tick.
func (e *Env) stamp() domain.EventBase { return domain.EventBase{Tick: e.Tick} }
