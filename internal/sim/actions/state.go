package actions

import (
	"encoding/json"

	"hearth.world/internal/sim/domain"
)

func handleSleep(e *Env, actor string, _ json.RawMessage) (domain.ActionResult, error) {
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	if a.Sleeping {
		return domain.FailResult("you are already asleep"), nil
	}
	a.Sleeping = true
	e.Agents.Save(a)
	return domain.OKResult(
		"you lie down and drift off",
		domain.AgentSlept{EventBase: e.stamp(), Agent: actor},
	), nil
}
