package actions

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"hearth.world/internal/sim/domain"
)

func handleGather(e *Env, actor string, _ json.RawMessage) (domain.ActionResult, error) {
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	cell, err := e.World.Cell(a.Position)
	if err != nil {
		return domain.ActionResult{}, err
	}
	resource := cell.Terrain.Props().Gatherable
	if resource == "" {
		return domain.FailResult(fmt.Sprintf("there is nothing to gather from %s", cell.Terrain)), nil
	}
	if a.Inventory.Stacks == nil {
		a.Inventory.Stacks = map[string]int{}
	}
	a.Inventory.Stacks[resource]++
	e.Agents.Save(a)
	return domain.OKResult(
		fmt.Sprintf("you gather one %s", resource),
		domain.AgentGathered{EventBase: e.stamp(), Agent: actor, Resource: resource, At: a.Position},
	).WithData(map[string]any{"resource": resource}), nil
}

func handleTake(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.TakeArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable take arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	p, ok := lookCell(a, args.Direction)
	if !ok {
		return domain.FailResult(fmt.Sprintf("%q is not a direction you can take from", args.Direction)), nil
	}
	objs, err := e.World.ObjectsAt(p)
	if err != nil {
		return domain.ActionResult{}, err
	}
	var pick *domain.WorldObject
	for i := range objs {
		if objs[i].Kind == domain.ObjectPlacedItem {
			pick = &objs[i]
			break
		}
	}
	if pick == nil {
		return domain.FailResult("there is nothing to take there"), nil
	}

	qty := pick.Quantity
	if qty <= 0 {
		qty = 1
	}
	if e.Recipes.Stackable(pick.ItemKind) {
		if a.Inventory.Stacks == nil {
			a.Inventory.Stacks = map[string]int{}
		}
		a.Inventory.Stacks[pick.ItemKind] += qty
	} else {
		a.Inventory.Items = append(a.Inventory.Items, domain.Item{
			ID:         pick.ID,
			Kind:       pick.ItemKind,
			Properties: pick.Properties,
		})
		qty = 1
	}
	e.World.RemoveObject(pick.ID)
	e.Agents.Save(a)
	return domain.OKResult(
		fmt.Sprintf("you pick up the %s", pick.ItemKind),
		domain.ItemTaken{EventBase: e.stamp(), Agent: actor, ObjectID: pick.ID, ItemKind: pick.ItemKind, Quantity: qty, From: p},
	), nil
}

func handleDrop(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.DropArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable drop arguments"), nil
	}
	qty := args.Quantity
	if qty <= 0 {
		qty = 1
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
	}
	switch {
	case a.Inventory.Count(args.Kind) >= qty:
		a.Inventory.Stacks[args.Kind] -= qty
		obj.Quantity = qty
	default:
		item, ok := a.Inventory.HasItemKind(args.Kind)
		if !ok {
			return domain.FailResult(fmt.Sprintf("you are not carrying %s", args.Kind)), nil
		}
		obj.ID = item.ID
		obj.Properties = item.Properties
		obj.Quantity = 1
		qty = 1
		a.Inventory.Items = removeItem(a.Inventory.Items, item.ID)
	}

	if err := e.World.PutObject(obj); err != nil {
		return domain.ActionResult{}, err
	}
	e.Agents.Save(a)
	return domain.OKResult(
		fmt.Sprintf("you put down the %s", args.Kind),
		domain.ItemDropped{EventBase: e.stamp(), Agent: actor, ObjectID: obj.ID, ItemKind: args.Kind, Quantity: qty, At: a.Position},
	), nil
}

func handleGive(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.GiveArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable give arguments"), nil
	}
	qty := args.Quantity
	if qty <= 0 {
		qty = 1
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	recipient, err := e.Agents.Get(args.Recipient)
	if err != nil {
		return domain.FailResult(fmt.Sprintf("there is no one called %s", args.Recipient)), nil
	}
	if a.Position.Chebyshev(recipient.Position) > 1 {
		return domain.FailResult(fmt.Sprintf("%s is too far away to hand anything to", args.Recipient)), nil
	}

	if recipient.Inventory.Stacks == nil {
		recipient.Inventory.Stacks = map[string]int{}
	}
	switch {
	case a.Inventory.Count(args.Kind) >= qty:
		a.Inventory.Stacks[args.Kind] -= qty
		recipient.Inventory.Stacks[args.Kind] += qty
	default:
		item, ok := a.Inventory.HasItemKind(args.Kind)
		if !ok {
			return domain.FailResult(fmt.Sprintf("you are not carrying %s", args.Kind)), nil
		}
		a.Inventory.Items = removeItem(a.Inventory.Items, item.ID)
		recipient.Inventory.Items = append(recipient.Inventory.Items, item)
		qty = 1
	}
	e.Agents.Save(a)
	e.Agents.Save(recipient)
	return domain.OKResult(
		fmt.Sprintf("you hand the %s to %s", args.Kind, args.Recipient),
		domain.ItemGiven{EventBase: e.stamp(), Giver: actor, Recipient: args.Recipient, ItemKind: args.Kind, Quantity: qty},
	), nil
}

func removeItem(items []domain.Item, id string) []domain.Item {
	out := items[:0]
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}
