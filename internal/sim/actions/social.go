package actions

import (
	"encoding/json"
	"errors"
	"fmt"

	"hearth.world/internal/sim/convo"
	"hearth.world/internal/sim/domain"
)

// visibleAgent reports whether other is within the actor's effective
// vision right now.
func (e *Env) visibleAgent(a domain.Agent, other string) (bool, error) {
	visible, err := e.Agents.Within(a.Position, e.Vision(), a.Name)
	if err != nil {
		return false, err
	}
	for _, v := range visible {
		if v.Name == other {
			return true, nil
		}
	}
	return false, nil
}

func handleSpeak(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.SpeakArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable speak arguments"), nil
	}
	c, err := e.Convo.Speak(actor, args.Text, e.Tick)
	if errors.Is(err, convo.ErrNotInConversation) {
		return domain.FailResult("you are not in a conversation; invite someone first"), nil
	}
	if err != nil {
		return domain.ActionResult{}, err
	}
	return domain.OKResult(
		"you speak",
		domain.TurnAdded{EventBase: e.stamp(), ConversationID: c.ID, Speaker: actor, Text: args.Text},
	), nil
}

func handleInvite(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.InviteArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable invite arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	if _, err := e.Agents.Get(args.Invitee); err != nil {
		return domain.FailResult(fmt.Sprintf("there is no one called %s", args.Invitee)), nil
	}
	// Invitations need line of sight at send time; answers do not.
	if ok, err := e.visibleAgent(a, args.Invitee); err != nil {
		return domain.ActionResult{}, err
	} else if !ok {
		return domain.FailResult(fmt.Sprintf("you cannot see %s from here", args.Invitee)), nil
	}

	inv, err := e.Convo.Invite(actor, args.Invitee, args.Privacy, e.Tick)
	if err != nil {
		return domain.FailResult(err.Error()), nil
	}
	return domain.OKResult(
		fmt.Sprintf("you invite %s to talk", args.Invitee),
		domain.InvitationSent{EventBase: e.stamp(), InvitationID: inv.ID, Inviter: actor, Invitee: args.Invitee, Privacy: inv.Privacy},
	), nil
}

func handleAcceptInvite(e *Env, actor string, _ json.RawMessage) (domain.ActionResult, error) {
	out, err := e.Convo.Accept(actor, e.Tick)
	if errors.Is(err, convo.ErrNoInvite) {
		return domain.FailResult("no one has invited you to talk"), nil
	}
	if errors.Is(err, convo.ErrBusy) {
		return domain.FailResult("you are already in a conversation"), nil
	}
	if err != nil {
		return domain.ActionResult{}, err
	}

	events := []domain.Event{
		domain.InvitationAccepted{
			EventBase:    e.stamp(),
			InvitationID: out.Invitation.ID,
			Inviter:      out.Invitation.Inviter,
			Invitee:      actor,
		},
	}
	if out.Started {
		events = append(events, domain.ConversationStarted{
			EventBase:      e.stamp(),
			ConversationID: out.Conversation.ID,
			Privacy:        out.Conversation.Privacy,
			Participants:   out.Conversation.ActiveParticipants(),
		})
	} else {
		events = append(events, domain.ParticipantJoined{
			EventBase:      e.stamp(),
			ConversationID: out.Conversation.ID,
			Agent:          actor,
		})
	}
	return domain.ActionResult{
		OK:      true,
		Message: fmt.Sprintf("you accept %s's invitation", out.Invitation.Inviter),
		Events:  events,
	}, nil
}

func handleDeclineInvite(e *Env, actor string, _ json.RawMessage) (domain.ActionResult, error) {
	inv, err := e.Convo.Decline(actor, e.Tick)
	if errors.Is(err, convo.ErrNoInvite) {
		return domain.FailResult("no one has invited you to talk"), nil
	}
	if err != nil {
		return domain.ActionResult{}, err
	}
	return domain.OKResult(
		fmt.Sprintf("you decline %s's invitation", inv.Inviter),
		domain.InvitationDeclined{EventBase: e.stamp(), InvitationID: inv.ID, Inviter: inv.Inviter, Invitee: actor},
	), nil
}

func handleJoinConversation(e *Env, actor string, raw json.RawMessage) (domain.ActionResult, error) {
	args, err := decode[domain.JoinConversationArgs](raw)
	if err != nil {
		return domain.FailResult("unreadable join_conversation arguments"), nil
	}
	a, err := e.Agents.Get(actor)
	if err != nil {
		return domain.ActionResult{}, err
	}
	// Joining needs a visible, named participant of a public conversation.
	if ok, err := e.visibleAgent(a, args.Participant); err != nil {
		return domain.ActionResult{}, err
	} else if !ok {
		return domain.FailResult(fmt.Sprintf("you cannot see %s from here", args.Participant)), nil
	}

	c, err := e.Convo.Join(actor, args.Participant, e.Tick)
	if errors.Is(err, convo.ErrBusy) {
		return domain.FailResult("you are already in a conversation"), nil
	}
	if errors.Is(err, convo.ErrPrivate) {
		return domain.FailResult("that conversation is private"), nil
	}
	if errors.Is(err, convo.ErrNotJoinable) {
		return domain.FailResult(fmt.Sprintf("%s is not talking with anyone", args.Participant)), nil
	}
	if err != nil {
		return domain.ActionResult{}, err
	}
	return domain.OKResult(
		"you join the conversation",
		domain.ParticipantJoined{EventBase: e.stamp(), ConversationID: c.ID, Agent: actor},
	), nil
}

func handleLeaveConversation(e *Env, actor string, _ json.RawMessage) (domain.ActionResult, error) {
	out, err := e.Convo.Leave(actor, e.Tick)
	if errors.Is(err, convo.ErrNotInConversation) {
		return domain.FailResult("you are not in a conversation"), nil
	}
	if err != nil {
		return domain.ActionResult{}, err
	}
	events := []domain.Event{
		domain.ParticipantLeft{EventBase: e.stamp(), ConversationID: out.Conversation.ID, Agent: actor},
	}
	if out.Ended {
		events = append(events, domain.ConversationEnded{EventBase: e.stamp(), ConversationID: out.Conversation.ID})
	}
	return domain.ActionResult{OK: true, Message: "you step away from the conversation", Events: events}, nil
}
