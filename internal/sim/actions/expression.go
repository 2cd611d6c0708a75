package actions

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"hearth.world/internal/sim/domain"
)

func handleWriteSign(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.WriteSignArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable write_sign arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	obj := domain.WorldObject{
		ID:          uuid.NewString(),
		Kind:        domain.ObjectSign,
		Position:    a.Position,
		CreatedBy:   actor,
		CreatedTick: e.Tick,
		Text:        args.Text,
	}
	if err := e.World.PutObject(obj); err != nil {
		return domain.ActionResult{}, err
	}
	return domain.OKResult(
		"you plant a sign in the ground",
		domain.SignWritten{EventBase: e.stamp(), Agent: actor, ObjectID: obj.ID, At: a.Position},
	), nil
}

func handleReadSign(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.ReadSignArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable read_sign arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	p, ok := lookCell(a, args.Direction)
	if !ok {
		return domain.FailResult(fmt.Sprintf("%q is not a direction you can read from", args.Direction)), nil
	}
	objs, err := e.World.ObjectsAt(p)
	if err != nil {
		return domain.ActionResult{}, err
	}
	for _, o := range objs {
		if o.Kind == domain.ObjectSign {
			// The full text, untruncated.
			return domain.OKResult("you read the sign").WithData(map[string]any{
				"text":   o.Text,
				"author": o.CreatedBy,
			}), nil
		}
	}
	return domain.FailResult("there is no sign to read there"), nil
}

func handleNamePlace(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.NamePlaceArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable name_place arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	if _, taken, err := e.World.PlacePosition(args.Name); err != nil {
		return domain.ActionResult{}, err
	} else if taken {
		return domain.FailResult(fmt.Sprintf("somewhere is already called %q", args.Name)), nil
	}
	if err := e.World.RenamePlace(a.Position, args.Name); err != nil {
		return domain.ActionResult{}, err
	}
	return domain.OKResult(
		fmt.Sprintf("this place is now called %q", args.Name),
		domain.PlaceNamed{EventBase: e.stamp(), Agent: actor, Name: args.Name, At: a.Position},
	), nil
}
