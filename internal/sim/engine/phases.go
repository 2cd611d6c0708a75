package engine

import (
	"context"
	"errors"
	"sort"
	"sync"

	"hearth.world/internal/persistence/store"
	"hearth.world/internal/persistence/trace"
	"hearth.world/internal/sim/actions"
	"hearth.world/internal/sim/agents"
	"hearth.world/internal/sim/domain"
)

// phaseExpiry retires pending invitations older than the expiry window.
// It runs after the agent turns so an invitee can still answer on the
// invite's final tick; anything left pending at that point expires.
func (e *Engine) phaseExpiry(env *actions.Env, tc TickContext) (TickContext, error) {
	expired, err := env.Convo.Expire(tc.Tick, e.tun.InviteExpiryTicks)
	if err != nil {
		return tc, err
	}
	for _, inv := range expired {
		tc = tc.appendEvents(domain.InvitationExpired{
			EventBase:    domain.EventBase{Tick: tc.Tick},
			InvitationID: inv.ID,
			Inviter:      inv.Inviter,
			Invitee:      inv.Invitee,
		})
	}
	return tc, nil
}

// phaseWake wakes sleeping agents at the morning transition or when another
// agent stands in their cell.
func (e *Engine) phaseWake(env *actions.Env, tc TickContext) (TickContext, error) {
	morning := tc.TimeOfDay == domain.Morning && domain.TimeOfDayAt(tc.Tick-1) != domain.Morning

	names := sortedNames(tc.Agents)
	for _, name := range names {
		a := tc.Agents[name]
		if !a.Sleeping {
			continue
		}
		reason := ""
		if morning {
			reason = "morning"
		} else {
			others, err := env.Agents.At(a.Position)
			if err != nil {
				return tc, err
			}
			for _, o := range others {
				if o.Name != name {
					reason = "visitor"
					break
				}
			}
		}
		if reason == "" {
			continue
		}
		a.Sleeping = false
		env.Agents.Save(a)
		tc.ToWake = append(tc.ToWake, name)
		tc = tc.appendEvents(domain.AgentWoke{
			EventBase: domain.EventBase{Tick: tc.Tick},
			Agent:     name,
			Reason:    reason,
		})
	}
	if len(tc.ToWake) > 0 {
		return tc.refreshAgents(env.Agents)
	}
	return tc, nil
}

// phaseSchedule computes the acting set and its clusters. Awake agents act;
// journeying agents are in trance and skip (unless force-turned); observer
// skip credits suppress turns without penalty.
func (e *Engine) phaseSchedule(env *actions.Env, tc TickContext, forced string) (TickContext, error) {
	tc.Acting = map[string]bool{}
	var acting []domain.Agent
	for _, name := range sortedNames(tc.Agents) {
		a := tc.Agents[name]
		if a.Sleeping {
			continue
		}
		if a.InJourney() && name != forced {
			continue
		}
		if e.sched.shouldSkip(name) {
			continue
		}
		tc.Acting[name] = true
		acting = append(acting, a)
	}
	tc.Clusters = e.sched.Clusters(acting, forced)
	return tc, nil
}

// phaseMovement advances journeys one step, then checks the interrupt
// conditions: an agent in vision, a blocked path, arrival, or an observer
// force-turn.
func (e *Engine) phaseMovement(env *actions.Env, tc TickContext) (TickContext, error) {
	forcedInterrupt := e.forcedInterrupt
	e.forcedInterrupt = ""

	for _, name := range sortedNames(tc.Agents) {
		a := tc.Agents[name]
		if !a.InJourney() {
			continue
		}

		if name == forcedInterrupt {
			if _, err := env.Agents.ClearJourney(name); err != nil {
				return tc, err
			}
			tc = tc.appendEvents(domain.JourneyInterrupted{
				EventBase: domain.EventBase{Tick: tc.Tick},
				Agent:     name,
				Reason:    "observer",
				At:        a.Position,
			})
			continue
		}

		dest := a.Journey.Destination
		moved, arrived, err := env.Agents.AdvanceJourney(name, env.World)
		if errors.Is(err, agents.ErrNoPath) {
			// A wall raised since planning invalidated the path.
			if _, err := env.Agents.ClearJourney(name); err != nil {
				return tc, err
			}
			tc = tc.appendEvents(domain.JourneyInterrupted{
				EventBase: domain.EventBase{Tick: tc.Tick},
				Agent:     name,
				Reason:    "path_blocked",
				At:        a.Position,
			})
			continue
		}
		if err != nil {
			return tc, err
		}

		from := a.Position
		if moved.Position != from {
			tc = tc.appendEvents(domain.AgentMoved{
				EventBase: domain.EventBase{Tick: tc.Tick},
				Agent:     name,
				From:      from,
				To:        moved.Position,
			})
		}
		if arrived {
			tc = tc.appendEvents(domain.JourneyArrived{
				EventBase:   domain.EventBase{Tick: tc.Tick},
				Agent:       name,
				Destination: dest,
			})
			continue
		}

		// After the step, an agent in vision ends the trance.
		radius := e.tun.EffectiveVision(tc.TimeOfDay == domain.Night)
		nearby, err := env.Agents.Within(moved.Position, radius, name)
		if err != nil {
			return tc, err
		}
		if len(nearby) > 0 {
			if _, err := env.Agents.ClearJourney(name); err != nil {
				return tc, err
			}
			tc = tc.appendEvents(domain.JourneyInterrupted{
				EventBase: domain.EventBase{Tick: tc.Tick},
				Agent:     name,
				Reason:    "encountered_agent",
				At:        moved.Position,
			})
		}
	}
	return tc.refreshAgents(env.Agents)
}

// clusterOutcome is one cluster's contribution, merged after the barrier.
type clusterOutcome struct {
	index   int
	events  []domain.Event
	results []TurnResult
}

// phaseAgentTurns runs the reasoner turns: clusters in parallel, agents
// within a cluster in order. The cluster-radius invariant keeps parallel
// clusters out of each other's vision, so the shared overlay sees only
// disjoint writes.
func (e *Engine) phaseAgentTurns(ctx context.Context, env *actions.Env, tc TickContext) (TickContext, error) {
	if len(tc.Clusters) == 0 {
		return tc, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.deadline())
	defer cancel()

	outcomes := make([]clusterOutcome, len(tc.Clusters))
	var wg sync.WaitGroup
	for i, cluster := range tc.Clusters {
		wg.Add(1)
		go func(i int, cluster []string) {
			defer wg.Done()
			outcomes[i] = e.runCluster(ctx, env, tc, i, cluster)
		}(i, cluster)
	}
	wg.Wait()

	var abort error
	for _, out := range outcomes {
		tc.Events = append(tc.Events, out.events...)
		for _, r := range out.results {
			tc.TurnResults[r.Agent] = r
			if r.Err != nil && (r.Fatal || errors.Is(r.Err, ErrReasonerTerminal)) {
				abort = r.Err
			}
		}
	}
	if abort != nil {
		return tc, abort
	}
	return tc.refreshAgents(env.Agents)
}

// runCluster executes one cluster sequentially so each agent sees the
// previous actor's effects.
func (e *Engine) runCluster(ctx context.Context, env *actions.Env, tc TickContext, idx int, cluster []string) clusterOutcome {
	out := clusterOutcome{index: idx}
	for _, name := range cluster {
		res := e.runTurn(ctx, env, name, &out)
		out.results = append(out.results, res)
		if res.Err != nil && (res.Fatal || errors.Is(res.Err, ErrReasonerTerminal)) {
			break
		}
	}
	return out
}

// runTurn drives one agent through one reasoner turn. Timeouts and
// per-turn reasoner failures skip the turn without penalty; the agent's
// pending state (journey, conversation) is untouched.
func (e *Engine) runTurn(ctx context.Context, env *actions.Env, name string, out *clusterOutcome) TurnResult {
	result := TurnResult{Agent: name}

	a, err := env.Agents.Get(name)
	if err != nil {
		result.Err = err
		return result
	}

	dreams := e.takeDreams(name)
	perception, metEvents, err := e.buildPerception(env, a, dreams)
	if err != nil {
		result.Err = err
		return result
	}
	out.events = append(out.events, metEvents...)

	sessionID := a.SessionID
	if sessionID == "" {
		sessionID, err = e.reasoner.BeginSession(ctx, a.Name, a.ModelID, a.Personality)
		if err != nil {
			result.Err = err
			result.Skipped = true
			e.logger.Printf("[engine] %s: begin session: %v", name, err)
			return result
		}
	}
	result.SessionID = sessionID

	turn, err := e.reasoner.StartTurn(ctx, sessionID, perception, actions.Tools())
	if err != nil {
		result.Err = err
		result.Skipped = true
		e.logger.Printf("[engine] %s: start turn: %v", name, err)
		return result
	}
	defer turn.Close()

	tr := trace.TurnTrace{Tick: env.Tick, Agent: name, SessionID: sessionID, Perception: perception}

	prev := ""
	for {
		call, err := turn.Next(ctx, prev)
		if err != nil {
			if ctx.Err() != nil {
				// Deadline: the agent simply loses the rest of its turn.
				result.Skipped = true
				e.logger.Printf("[engine] %s: turn cancelled: %v", name, ctx.Err())
			} else {
				result.Err = err
				result.Skipped = true
				e.logger.Printf("[engine] %s: turn: %v", name, err)
			}
			break
		}
		if call == nil {
			break
		}

		res, err := actions.Execute(env, name, *call)
		if err != nil {
			// A handler error is a storage failure, fatal to the tick.
			result.Err = err
			result.Fatal = true
			break
		}
		// Events and data land in the context immediately so the next
		// actor in the cluster sees them.
		out.events = append(out.events, res.Events...)
		result.Calls = append(result.Calls, *call)
		result.Results = append(result.Results, res)
		tr.Actions = append(tr.Actions, trace.ActionTrace{
			Tool:    call.Tool,
			Args:    call.Args,
			OK:      res.OK,
			Message: res.Message,
		})

		prev = e.narrate(ctx, res, NarrationContext{
			Agent:     name,
			Tool:      call.Tool,
			Tick:      env.Tick,
			TimeOfDay: env.TimeOfDay,
			Weather:   env.Weather,
		})
	}

	// Stamp the turn and persist the session for restart continuity.
	if a, err := env.Agents.Get(name); err == nil {
		a.LastTurnTick = env.Tick
		a.SessionID = sessionID
		env.Agents.Save(a)
	}

	if e.tracer != nil {
		if result.Err != nil {
			tr.Err = result.Err.Error()
		}
		if err := e.tracer.WriteTurn(tr); err != nil {
			e.logger.Printf("[engine] %s: trace: %v", name, err)
		}
	}
	return result
}

// phaseCommit assigns sequence numbers, persists the tick atomically, and
// refreshes status files and snapshots.
func (e *Engine) phaseCommit(t *store.Tick, env *actions.Env, tc TickContext, prev domain.WorldState) error {
	// Roll the clock; note a period change for the audit log.
	if domain.TimeOfDayAt(tc.Tick) != domain.TimeOfDayAt(tc.Tick-1) {
		tc = tc.appendEvents(domain.TimeAdvanced{
			EventBase: domain.EventBase{Tick: tc.Tick},
			TimeOfDay: tc.TimeOfDay,
		})
	}
	t.SetWorld(domain.WorldState{
		Tick:    tc.Tick,
		Width:   prev.Width,
		Height:  prev.Height,
		Weather: tc.Weather,
	})

	if err := e.store.Commit(t, tc.Events, e.log); err != nil {
		return err
	}

	// Post-commit housekeeping; failures here are logged, not fatal, since
	// the authoritative state is already safe.
	if e.agentsRoot != "" {
		ws := domain.WorldState{Tick: tc.Tick, Width: prev.Width, Height: prev.Height, Weather: tc.Weather}
		all, err := e.store.Agents()
		if err == nil {
			for _, a := range all {
				if err := agents.WriteStatus(e.agentsRoot, a, ws); err != nil {
					e.logger.Printf("[engine] status file %s: %v", a.Name, err)
				}
			}
		}
	}
	if e.snaps != nil && e.tun.SnapshotEveryTicks > 0 && tc.Tick%e.tun.SnapshotEveryTicks == 0 {
		if _, err := e.snaps.Create(e.store.DB(), tc.Tick); err != nil {
			e.logger.Printf("[engine] snapshot at tick %d: %v", tc.Tick, err)
		}
	}
	return nil
}

func sortedNames(m map[string]domain.Agent) []string {
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
