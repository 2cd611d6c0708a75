package actions

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"hearth.world/internal/sim/domain"
	"hearth.world/internal/sim/recipes"
)

// hasKinds verifies the inventory covers a multiset of kinds (stacks or
// unique items), without consuming anything.
func hasKinds(inv domain.Inventory, kinds []string) (missing []string) {
	needed := map[string]int{}
	for _, k := range kinds {
		needed[k]++
	}
	keys := make([]string, 0, len(needed))
	for k := range needed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		have := inv.Count(k)
		for _, it := range inv.Items {
			if it.Kind == k {
				have++
			}
		}
		if have < needed[k] {
			missing = append(missing, k)
		}
	}
	return missing
}

// consumeKinds removes one unit per listed kind, preferring stacks over
// unique items. Caller has already verified availability.
func consumeKinds(inv *domain.Inventory, kinds []string) {
	for _, k := range kinds {
		if inv.Count(k) > 0 {
			inv.Stacks[k]--
			continue
		}
		if it, ok := inv.HasItemKind(k); ok {
			inv.Items = removeItem(inv.Items, it.ID)
		}
	}
}

// produce adds the recipe output to the inventory.
func produce(inv *domain.Inventory, r recipes.Recipe) {
	if r.OutputStackable {
		if inv.Stacks == nil {
			inv.Stacks = map[string]int{}
		}
		inv.Stacks[r.Name] += r.OutputQuantity
		return
	}
	inv.Items = append(inv.Items, domain.Item{
		ID:         uuid.NewString(),
		Kind:       r.Name,
		Properties: r.Properties,
	})
}

func craftFailure(e *Env, action string, inputs []string, technique, message string) domain.ActionResult {
	hints := e.Recipes.Hints(action, inputs, technique)
	data := map[string]any{}
	if len(hints) > 0 {
		data["hints"] = hints
	}
	return domain.FailResult(message).WithData(data)
}

func craftSuccess(e *Env, actor string, a domain.Agent, action string, inputs []string, technique string, r recipes.Recipe, consumed []string) (domain.ActionResult, error) {
	consumeKinds(&a.Inventory, consumed)
	produce(&a.Inventory, r)
	e.Agents.Save(a)

	msg := r.Description
	if msg == "" {
		msg = fmt.Sprintf("you make %s", r.Name)
	}
	data := map[string]any{"output": r.Name, "quantity": r.OutputQuantity}
	if len(r.Discoveries) > 0 {
		data["discoveries"] = r.Discoveries
	}
	return domain.OKResult(
		msg,
		domain.CraftSucceeded{
			EventBase:  e.stamp(),
			Agent:      actor,
			Action:     action,
			Inputs:     sortedInputs(inputs),
			Technique:  technique,
			OutputKind: r.Name,
			Quantity:   r.OutputQuantity,
		},
	).WithData(data), nil
}

func sortedInputs(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func handleCombine(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.CombineArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable combine arguments"), nil
	}
	if len(args.Items) < 2 {
		return craftFailure(e, "combine", args.Items, "", "combining needs at least two materials"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	if missing := hasKinds(a.Inventory, args.Items); len(missing) > 0 {
		return domain.FailResult(fmt.Sprintf("you are not carrying: %s", strings.Join(missing, ", "))), nil
	}
	r, ok := e.Recipes.Find("combine", args.Items, "")
	if !ok {
		return craftFailure(e, "combine", args.Items, "", "nothing comes of it"), nil
	}
	return craftSuccess(e, actor, a, "combine", args.Items, "", r, r.Inputs)
}

func handleWork(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.WorkArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable work arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	inputs := []string{args.Material}
	if missing := hasKinds(a.Inventory, inputs); len(missing) > 0 {
		return domain.FailResult(fmt.Sprintf("you are not carrying %s", args.Material)), nil
	}
	r, ok := e.Recipes.Find("work", inputs, args.Technique)
	if !ok {
		return craftFailure(e, "work", inputs, args.Technique,
			fmt.Sprintf("the %s does not yield to %s", args.Material, args.Technique)), nil
	}
	return craftSuccess(e, actor, a, "work", inputs, args.Technique, r, r.Inputs)
}

func handleApply(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.ApplyArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable apply arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	inputs := []string{args.Tool, args.Target}
	if missing := hasKinds(a.Inventory, inputs); len(missing) > 0 {
		return domain.FailResult(fmt.Sprintf("you are not carrying: %s", strings.Join(missing, ", "))), nil
	}
	r, ok := e.Recipes.FindApply(args.Tool, args.Target)
	if !ok {
		return craftFailure(e, "apply", inputs, "",
			fmt.Sprintf("the %s does nothing useful to the %s", args.Tool, args.Target)), nil
	}
	// The tool survives; only the target is consumed.
	return craftSuccess(e, actor, a, "apply", inputs, "", r, []string{args.Target})
}
