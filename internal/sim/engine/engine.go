package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"hearth.world/internal/persistence/eventlog"
	"hearth.world/internal/persistence/snapshot"
	"hearth.world/internal/persistence/store"
	"hearth.world/internal/persistence/trace"
	"hearth.world/internal/sim/actions"
	"hearth.world/internal/sim/agents"
	"hearth.world/internal/sim/convo"
	"hearth.world/internal/sim/domain"
	"hearth.world/internal/sim/recipes"
	"hearth.world/internal/sim/tuning"
	"hearth.world/internal/sim/world"
)

// ObserverCommand is one whitelisted observer effect. Commands enqueue and
// are applied at the start of the next tick, before any phase runs.
type ObserverCommand struct {
	Kind           string         `json:"kind"`
	Text           string         `json:"text,omitempty"`
	Agent          string         `json:"agent,omitempty"`
	Weather        domain.Weather `json:"weather,omitempty"`
	N              int            `json:"n,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
}

// Observer command kinds.
const (
	CmdTriggerEvent    = "trigger_event"
	CmdSetWeather      = "set_weather"
	CmdSendDream       = "send_dream"
	CmdForceTurn       = "force_turn"
	CmdSkipTurns       = "skip_turns"
	CmdEndConversation = "end_conversation"
)

// Config wires an Engine.
type Config struct {
	Store    *store.Store
	Log      *eventlog.Log
	Snaps    *snapshot.Manager
	Tracer   *trace.TurnTracer // optional
	Tun      tuning.Tuning
	Recipes  *recipes.Table
	Reasoner Reasoner
	Narrator Narrator // optional; raw messages otherwise
	Logger   *log.Logger
	// AgentsRoot is the agents/ directory for home dirs and status files.
	AgentsRoot string
}

// Engine owns the tick pipeline. One Engine per world; TickOnce is not
// reentrant.
type Engine struct {
	store      *store.Store
	log        *eventlog.Log
	snaps      *snapshot.Manager
	tracer     *trace.TurnTracer
	tun        tuning.Tuning
	recipes    *recipes.Table
	reasoner   Reasoner
	narrator   Narrator
	logger     *log.Logger
	agentsRoot string

	sched *Scheduler

	mu      sync.Mutex
	pending []ObserverCommand
	dreams  map[string][]string
	// forcedInterrupt names an agent whose trance a force_turn ended this
	// tick; movement emits the interruption event.
	forcedInterrupt string
}

// New validates the action dispatch table and builds the engine.
func New(cfg Config) (*Engine, error) {
	if err := actions.ValidateDispatch(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Engine{
		store:      cfg.Store,
		log:        cfg.Log,
		snaps:      cfg.Snaps,
		tracer:     cfg.Tracer,
		tun:        cfg.Tun,
		recipes:    cfg.Recipes,
		reasoner:   cfg.Reasoner,
		narrator:   cfg.Narrator,
		logger:     cfg.Logger,
		agentsRoot: cfg.AgentsRoot,
		sched:      NewScheduler(cfg.Tun.ClusterRadius()),
		dreams:     map[string][]string{},
	}, nil
}

// Enqueue registers an observer command for the next tick.
func (e *Engine) Enqueue(cmd ObserverCommand) {
	e.mu.Lock()
	e.pending = append(e.pending, cmd)
	e.mu.Unlock()
}

// Store exposes the committed read surface for observer queries.
func (e *Engine) Store() *store.Store { return e.store }

// Tuning exposes the world knobs for observers.
func (e *Engine) Tuning() tuning.Tuning { return e.tun }

// TickOnce runs one complete tick: observer effects, the six phases, and
// the atomic commit. A storage error aborts the tick with no effects.
func (e *Engine) TickOnce(ctx context.Context) error {
	ws, err := e.store.WorldState()
	if err != nil {
		return err
	}
	tick := ws.Tick + 1

	t, err := e.store.Begin(tick)
	if err != nil {
		return err
	}
	env := &actions.Env{
		Tick:      tick,
		TimeOfDay: domain.TimeOfDayAt(tick),
		Weather:   ws.Weather,
		World:     world.New(t, ws.Width, ws.Height),
		Agents:    agents.New(t),
		Convo:     convo.New(t),
		Recipes:   e.recipes,
		Tun:       e.tun,
	}

	tc := TickContext{
		Tick:        tick,
		TimeOfDay:   env.TimeOfDay,
		Weather:     ws.Weather,
		TurnResults: map[string]TurnResult{},
	}
	if tc, err = tc.refreshAgents(env.Agents); err != nil {
		return err
	}

	newWeather, tc, err := e.applyObserverCommands(env, tc, ws.Weather)
	if err != nil {
		return err
	}
	env.Weather = newWeather
	tc.Weather = newWeather

	if tc, err = e.phaseWake(env, tc); err != nil {
		return err
	}
	forced := e.sched.takeForced()
	if tc, err = e.phaseSchedule(env, tc, forced); err != nil {
		return err
	}
	if tc, err = e.phaseMovement(env, tc); err != nil {
		return err
	}
	if tc, err = e.phaseAgentTurns(ctx, env, tc); err != nil {
		return err
	}
	if tc, err = e.phaseExpiry(env, tc); err != nil {
		return err
	}
	return e.phaseCommit(t, env, tc, ws)
}

// applyObserverCommands drains the command queue into events and effects.
// Each command produces at most one event; none may overwrite prior events.
func (e *Engine) applyObserverCommands(env *actions.Env, tc TickContext, weather domain.Weather) (domain.Weather, TickContext, error) {
	e.mu.Lock()
	cmds := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, cmd := range cmds {
		switch cmd.Kind {
		case CmdTriggerEvent:
			tc = tc.appendEvents(domain.ObserverTriggered{
				EventBase: domain.EventBase{Tick: tc.Tick},
				Command:   cmd.Kind,
				Text:      cmd.Text,
			})
		case CmdSetWeather:
			if !domain.KnownWeather(cmd.Weather) {
				e.logger.Printf("observer: ignoring unknown weather %q", cmd.Weather)
				continue
			}
			if cmd.Weather != weather {
				tc = tc.appendEvents(domain.WeatherChanged{
					EventBase: domain.EventBase{Tick: tc.Tick},
					From:      weather,
					To:        cmd.Weather,
				})
				weather = cmd.Weather
			}
		case CmdSendDream:
			if _, ok := tc.Agents[cmd.Agent]; !ok {
				e.logger.Printf("observer: dream for unknown agent %q", cmd.Agent)
				continue
			}
			e.mu.Lock()
			e.dreams[cmd.Agent] = append(e.dreams[cmd.Agent], cmd.Text)
			e.mu.Unlock()
			tc = tc.appendEvents(domain.DreamSent{
				EventBase: domain.EventBase{Tick: tc.Tick},
				Agent:     cmd.Agent,
				Text:      cmd.Text,
			})
		case CmdForceTurn:
			if a, ok := tc.Agents[cmd.Agent]; ok {
				e.sched.ForceNext(cmd.Agent)
				if a.InJourney() {
					e.forcedInterrupt = cmd.Agent
				}
				tc = tc.appendEvents(domain.ObserverTriggered{
					EventBase: domain.EventBase{Tick: tc.Tick},
					Command:   cmd.Kind,
					Agent:     cmd.Agent,
				})
			}
		case CmdSkipTurns:
			if _, ok := tc.Agents[cmd.Agent]; ok {
				e.sched.Skip(cmd.Agent, cmd.N)
				tc = tc.appendEvents(domain.ObserverTriggered{
					EventBase: domain.EventBase{Tick: tc.Tick},
					Command:   cmd.Kind,
					Agent:     cmd.Agent,
				})
			}
		case CmdEndConversation:
			c, err := env.Convo.End(cmd.ConversationID, tc.Tick)
			if err != nil {
				e.logger.Printf("observer: end_conversation: %v", err)
				continue
			}
			tc = tc.appendEvents(domain.ConversationEnded{
				EventBase:      domain.EventBase{Tick: tc.Tick},
				ConversationID: c.ID,
			})
		default:
			e.logger.Printf("observer: unknown command %q", cmd.Kind)
		}
	}
	return weather, tc, nil
}

// takeDreams drains the pending dreams for an agent.
func (e *Engine) takeDreams(agent string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.dreams[agent]
	delete(e.dreams, agent)
	return d
}

// narrate converts a result into the string handed back to the reasoner.
// Successes without structured data keep their local message; failures and
// results carrying data (crafting, perception, gathering, reading a sign) go
// through the external narrator when one is wired.
func (e *Engine) narrate(ctx context.Context, res domain.ActionResult, nc NarrationContext) string {
	needsNarrator := !res.OK || len(res.Data) > 0
	if e.narrator == nil || !needsNarrator {
		return res.Message
	}
	text, err := e.narrator.Narrate(ctx, res, nc)
	if err != nil || text == "" {
		// Narrator failure falls back to the raw message.
		return res.Message
	}
	return text
}

func (e *Engine) deadline() time.Duration {
	return time.Duration(e.tun.TickDeadlineSeconds) * time.Second
}

// String implements fmt.Stringer for debug logs.
func (e *Engine) String() string {
	return fmt.Sprintf("engine(cluster_radius=%d)", e.tun.ClusterRadius())
}
