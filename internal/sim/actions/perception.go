package actions

import (
	"encoding/json"
	"fmt"

	"hearth.world/internal/sim/domain"
)

// lookCell resolves a look direction ("north", ..., or "down") relative to
// the actor.
func lookCell(a domain.Agent, direction string) (domain.Position, bool) {
	if direction == "down" {
		return a.Position, true
	}
	d, ok := domain.ParseDirection(direction)
	if !ok {
		return domain.Position{}, false
	}
	return a.Position.Add(d), true
}

func handleExamine(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.ExamineArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable examine arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	p, ok := lookCell(a, args.Direction)
	if !ok {
		return domain.FailResult(fmt.Sprintf("%q is not a direction you can examine", args.Direction)), nil
	}
	if !p.InBounds(e.World.Width(), e.World.Height()) {
		return domain.FailResult("the world ends there"), nil
	}

	cell, err := e.World.Cell(p)
	if err != nil {
		return domain.ActionResult{}, err
	}
	objs, err := e.World.ObjectsAt(p)
	if err != nil {
		return domain.ActionResult{}, err
	}
	standing, err := e.Agents.At(p)
	if err != nil {
		return domain.ActionResult{}, err
	}

	var objData []map[string]any
	for _, o := range objs {
		d := map[string]any{"kind": string(o.Kind)}
		if o.Kind == domain.ObjectPlacedItem {
			d["item_kind"] = o.ItemKind
			if o.Quantity > 1 {
				d["quantity"] = o.Quantity
			}
		}
		if o.Kind == domain.ObjectSign {
			d["author"] = o.CreatedBy
		}
		objData = append(objData, d)
	}
	var names []string
	for _, other := range standing {
		if other.Name != actor {
			names = append(names, other.Name)
		}
	}

	data := map[string]any{
		"direction": args.Direction,
		"terrain":   string(cell.Terrain),
		"walls":     cell.Walls.Dirs(),
		"doors":     cell.Doors.Dirs(),
	}
	if cell.PlaceName != "" {
		data["place_name"] = cell.PlaceName
	}
	if len(objData) > 0 {
		data["objects"] = objData
	}
	if len(names) > 0 {
		data["agents"] = names
	}
	if res := cell.Terrain.Props().Gatherable; res != "" {
		data["gatherable"] = res
	}
	return domain.OKResult(fmt.Sprintf("you examine the ground to the %s", args.Direction)).WithData(data), nil
}

func handleSenseOthers(e *Env, actor string, _ json.RawMessage) (domain.ActionResult, error) {
	sensed, err := e.Agents.SenseOthers(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	if len(sensed) == 0 {
		return domain.OKResult("you reach out but feel no one you know").WithData(map[string]any{"sensed": []any{}}), nil
	}
	return domain.OKResult("you feel the presence of those you have met").
		WithData(map[string]any{"sensed": sensed}), nil
}
