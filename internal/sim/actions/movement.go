package actions

import (
	"encoding/json"
	"errors"
	"fmt"

	"hearth.world/internal/sim/agents"
	"hearth.world/internal/sim/domain"
)

func handleWalk(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.WalkArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable walk arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	can, err := e.World.CanStep(a.Position, args.Direction)
	if err != nil {
		return domain.ActionResult{}, err
	}
	if !can {
		return domain.FailResult(fmt.Sprintf("you cannot walk %s from here", args.Direction)), nil
	}
	from := a.Position
	a.Position = a.Position.Add(args.Direction)
	e.Agents.Save(a)
	return domain.OKResult(
		fmt.Sprintf("you walk %s", args.Direction),
		domain.AgentMoved{EventBase: e.stamp(), Agent: actor, From: from, To: a.Position},
	), nil
}

func handleApproach(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.ApproachArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable approach arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}

	target, ok, err := e.resolveVisibleTarget(a, args.Target)
	if err != nil {
		return domain.ActionResult{}, err
	}
	if !ok {
		return domain.FailResult(fmt.Sprintf("you cannot see %q from here", args.Target)), nil
	}
	if target == a.Position {
		return domain.FailResult(fmt.Sprintf("%s is right here", args.Target)), nil
	}

	path, err := agents.FindPath(a.Position, target, e.World)
	if errors.Is(err, agents.ErrNoPath) {
		// The target cell itself may be occupied terrain-wise (an agent
		// standing on it is fine, water is not); try the neighbouring cells.
		path = nil
	} else if err != nil {
		return domain.ActionResult{}, err
	}
	if len(path) < 2 {
		best, found, err := e.stepToward(a.Position, target)
		if err != nil {
			return domain.ActionResult{}, err
		}
		if !found {
			return domain.FailResult(fmt.Sprintf("there is no way toward %s", args.Target)), nil
		}
		path = []domain.Position{a.Position, best}
	}

	from := a.Position
	a.Position = path[1]
	e.Agents.Save(a)
	return domain.OKResult(
		fmt.Sprintf("you move toward %s", args.Target),
		domain.AgentMoved{EventBase: e.stamp(), Agent: actor, From: from, To: a.Position},
	), nil
}

// stepToward picks the legal step that most reduces the Chebyshev distance,
// ties broken by direction order.
func (e *Env) stepToward(from, to domain.Position) (domain.Position, bool, error) {
	best := from
	bestDist := from.Chebyshev(to)
	found := false
	for _, d := range domain.Directions {
		can, err := e.World.CanStep(from, d)
		if err != nil {
			return from, false, err
		}
		if !can {
			continue
		}
		next := from.Add(d)
		if dist := next.Chebyshev(to); dist < bestDist {
			best, bestDist, found = next, dist, true
		}
	}
	return best, found, nil
}

// resolveVisibleTarget finds the position of a named agent or object kind
// within the actor's effective vision.
func (e *Env) resolveVisibleTarget(a domain.Agent, target string) (domain.Position, bool, error) {
	visible, err := e.Agents.Within(a.Position, e.Vision(), a.Name)
	if err != nil {
		return domain.Position{}, false, err
	}
	for _, other := range visible {
		if other.Name == target {
			return other.Position, true, nil
		}
	}
	// Objects by kind within vision: the first match scanning the visible
	// rect in (y, x) row order.
	rect := domain.RectAround(a.Position, e.Vision()).Clamp(e.World.Width(), e.World.Height())
	for _, p := range rect.Positions() {
		objs, err := e.World.ObjectsAt(p)
		if err != nil {
			return domain.Position{}, false, err
		}
		for _, o := range objs {
			if string(o.Kind) == target || o.ItemKind == target {
				return p, true, nil
			}
		}
	}
	return domain.Position{}, false, nil
}

func handleJourney(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.JourneyArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable journey arguments"), nil
	}

	var dest domain.Position
	landmark := ""
	switch {
	case args.Place != "":
		p, ok, err := e.World.PlacePosition(args.Place)
		if err != nil {
			return domain.ActionResult{}, err
		}
		if !ok {
			return domain.FailResult(fmt.Sprintf("you know of no place called %q", args.Place)), nil
		}
		dest, landmark = p, args.Place
	case args.X != nil && args.Y != nil:
		dest = domain.Position{X: *args.X, Y: *args.Y}
	default:
		return domain.FailResult("a journey needs a destination: x and y, or a place name"), nil
	}

	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	if dest == a.Position {
		return domain.FailResult("you are already there"), nil
	}

	a, err = e.Agents.PlanJourney(actor, dest, landmark, e.World)
	if errors.Is(err, agents.ErrNoPath) {
		return domain.FailResult("no path leads there"), nil
	}
	if err != nil {
		return domain.ActionResult{}, err
	}
	return domain.OKResult(
		fmt.Sprintf("you set out toward (%d, %d); the walking will occupy you fully", dest.X, dest.Y),
		domain.JourneyStarted{
			EventBase:   e.stamp(),
			Agent:       actor,
			Destination: dest,
			Landmark:    landmark,
			PathLen:     len(a.Journey.Path),
		},
	), nil
}
