package actions

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"hearth.world/internal/sim/domain"
	"hearth.world/internal/sim/world"
)

func handlePlaceWall(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.PlaceWallArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable place_wall arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	cell, err := e.World.Cell(a.Position)
	if err != nil {
		return domain.ActionResult{}, err
	}
	if cell.Walls.Has(args.Direction) {
		return domain.FailResult(fmt.Sprintf("there is already a wall to the %s", args.Direction)), nil
	}
	if a.Inventory.Count("wood") < e.Tun.WallWoodCost {
		return domain.FailResult("you need wood to build a wall"), nil
	}

	if err := e.World.PlaceWall(a.Position, args.Direction); err != nil {
		return domain.ActionResult{}, err
	}
	a.Inventory.Stacks["wood"] -= e.Tun.WallWoodCost
	e.Agents.Save(a)

	events := []domain.Event{
		domain.WallPlaced{EventBase: e.stamp(), Agent: actor, Pos: a.Position, Direction: args.Direction},
	}
	events, err = e.detectAfterWallChange(events, a.Position, []string{actor})
	if err != nil {
		return domain.ActionResult{}, err
	}
	return domain.ActionResult{OK: true, Message: fmt.Sprintf("you raise a wall to the %s", args.Direction), Events: events}, nil
}

// detectAfterWallChange re-runs structure detection from a seed and appends
// a detection event when an enclosure (re)forms.
func (e *Env) detectAfterWallChange(events []domain.Event, seed domain.Position, creators []string) ([]domain.Event, error) {
	st, err := e.World.DetectStructure(seed, creators)
	if err != nil {
		return events, err
	}
	if st != nil {
		events = append(events, domain.StructureDetected{
			EventBase:   e.stamp(),
			StructureID: st.ID,
			Size:        len(st.Interior),
			Creators:    st.Creators,
		})
	}
	return events, nil
}

func handleRemoveWall(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.RemoveWallArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable remove_wall arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	cell, err := e.World.Cell(a.Position)
	if err != nil {
		return domain.ActionResult{}, err
	}
	if !cell.Walls.Has(args.Direction) {
		return domain.FailResult(fmt.Sprintf("there is no wall to the %s", args.Direction)), nil
	}

	// Remember the creators of any structure this wall bounded so a
	// still-enclosed remainder keeps its attribution.
	var oldCreators []string
	if st, ok, err := e.World.StructureAt(a.Position); err != nil {
		return domain.ActionResult{}, err
	} else if ok {
		oldCreators = st.Creators
	}
	if err := e.World.ClearStructureAt(a.Position); err != nil {
		return domain.ActionResult{}, err
	}
	adj := a.Position.Add(args.Direction)
	if err := e.World.ClearStructureAt(adj); err != nil {
		return domain.ActionResult{}, err
	}

	if err := e.World.RemoveWall(a.Position, args.Direction); err != nil {
		return domain.ActionResult{}, err
	}

	events := []domain.Event{
		domain.WallRemoved{EventBase: e.stamp(), Agent: actor, Pos: a.Position, Direction: args.Direction},
	}
	events, err = e.detectAfterWallChange(events, a.Position, oldCreators)
	if err != nil {
		return domain.ActionResult{}, err
	}
	return domain.ActionResult{OK: true, Message: fmt.Sprintf("you tear down the wall to the %s", args.Direction), Events: events}, nil
}

func handlePlaceDoor(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.PlaceDoorArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable place_door arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	err = e.World.PlaceDoor(a.Position, args.Direction)
	if errors.Is(err, world.ErrNoWall) {
		return domain.FailResult(fmt.Sprintf("there is no wall to the %s to put a door in", args.Direction)), nil
	}
	if err != nil {
		return domain.ActionResult{}, err
	}
	return domain.OKResult(
		fmt.Sprintf("you fit a door into the %s wall", args.Direction),
		domain.DoorPlaced{EventBase: e.stamp(), Agent: actor, Pos: a.Position, Direction: args.Direction},
	), nil
}

func handlePlaceItem(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.PlaceItemArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable place_item arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}

	obj := domain.WorldObject{
		ID:          uuid.NewString(),
		Kind:        domain.ObjectPlacedItem,
		Position:    a.Position,
		CreatedBy:   actor,
		CreatedTick: e.Tick,
		ItemKind:    args.Kind,
		Quantity:    1,
	}
	switch {
	case a.Inventory.Count(args.Kind) > 0:
		a.Inventory.Stacks[args.Kind]--
	default:
		item, ok := a.Inventory.HasItemKind(args.Kind)
		if !ok {
			return domain.FailResult(fmt.Sprintf("you are not carrying %s", args.Kind)), nil
		}
		obj.ID = item.ID
		obj.Properties = item.Properties
		a.Inventory.Items = removeItem(a.Inventory.Items, item.ID)
	}

	if err := e.World.PutObject(obj); err != nil {
		return domain.ActionResult{}, err
	}
	e.Agents.Save(a)
	return domain.OKResult(
		fmt.Sprintf("you set the %s down with care", args.Kind),
		domain.ItemPlaced{EventBase: e.stamp(), Agent: actor, ObjectID: obj.ID, ItemKind: args.Kind, At: a.Position},
	), nil
}

// shelterEdges lists the perimeter edges of the 3x3 region centred on c:
// for each rim cell, the edges facing away from the centre.
func shelterEdges(c domain.Position) []struct {
	Pos domain.Position
	Dir domain.Direction
} {
	var out []struct {
		Pos domain.Position
		Dir domain.Direction
	}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			p := domain.Position{X: c.X + dx, Y: c.Y + dy}
			if dy == -1 {
				out = append(out, struct {
					Pos domain.Position
					Dir domain.Direction
				}{p, domain.North})
			}
			if dy == 1 {
				out = append(out, struct {
					Pos domain.Position
					Dir domain.Direction
				}{p, domain.South})
			}
			if dx == -1 {
				out = append(out, struct {
					Pos domain.Position
					Dir domain.Direction
				}{p, domain.West})
			}
			if dx == 1 {
				out = append(out, struct {
					Pos domain.Position
					Dir domain.Direction
				}{p, domain.East})
			}
		}
	}
	return out
}

func handleBuildShelter(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.BuildShelterArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable build_shelter arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}

	region := domain.RectAround(a.Position, 1)
	if region.MinX < 0 || region.MinY < 0 ||
		region.MaxX >= e.World.Width() || region.MaxY >= e.World.Height() {
		return domain.FailResult("there is not enough room here for a shelter"), nil
	}

	// Existing walls are kept (the shelter merges with them); only edges
	// actually added cost wood.
	edges := shelterEdges(a.Position)
	var toAdd []struct {
		Pos domain.Position
		Dir domain.Direction
	}
	for _, edge := range edges {
		cell, err := e.World.Cell(edge.Pos)
		if err != nil {
			return domain.ActionResult{}, err
		}
		if !cell.Walls.Has(edge.Dir) {
			toAdd = append(toAdd, edge)
		}
	}
	cost := len(toAdd) * e.Tun.WallWoodCost
	if a.Inventory.Count("wood") < cost {
		return domain.FailResult(fmt.Sprintf("a shelter here needs %d wood; you carry %d", cost, a.Inventory.Count("wood"))), nil
	}

	var events []domain.Event
	for _, edge := range toAdd {
		if err := e.World.PlaceWall(edge.Pos, edge.Dir); err != nil {
			return domain.ActionResult{}, err
		}
		events = append(events, domain.WallPlaced{EventBase: e.stamp(), Agent: actor, Pos: edge.Pos, Direction: edge.Dir})
	}
	if cost > 0 {
		a.Inventory.Stacks["wood"] -= cost
		e.Agents.Save(a)
	}

	// Door on the outward edge of the facing side's middle cell.
	doorCell := a.Position.Add(args.Facing)
	if err := e.World.PlaceDoor(doorCell, args.Facing); err != nil {
		return domain.ActionResult{}, err
	}
	events = append(events, domain.DoorPlaced{EventBase: e.stamp(), Agent: actor, Pos: doorCell, Direction: args.Facing})

	events, err = e.detectAfterWallChange(events, a.Position, []string{actor})
	if err != nil {
		return domain.ActionResult{}, err
	}
	return domain.ActionResult{
		OK:      true,
		Message: fmt.Sprintf("you raise a small shelter around yourself, its door facing %s", args.Facing),
		Events:  events,
	}, nil
}
