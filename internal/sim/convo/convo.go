// Package convo implements the consent-based conversation lifecycle:
// invitations, accept/decline, join/leave, turns and expiry.
package convo

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"hearth.world/internal/persistence/store"
	"hearth.world/internal/sim/domain"
)

var (
	// ErrBusy reports an agent already in an active conversation.
	ErrBusy = errors.New("convo: already in a conversation")
	// ErrNoInvite reports accept/decline with nothing pending.
	ErrNoInvite = errors.New("convo: no pending invitation")
	// ErrNotInConversation reports speak/leave outside a conversation.
	ErrNotInConversation = errors.New("convo: not in a conversation")
	// ErrPrivate reports a join attempt on a private conversation.
	ErrPrivate = errors.New("convo: conversation is private")
	// ErrNotJoinable reports a join via an agent who is not in an active
	// conversation.
	ErrNotJoinable = errors.New("convo: named participant is not in a conversation")
)

// Writer is the mutation surface; *store.Tick provides it.
type Writer interface {
	store.Reader
	PutConversation(c domain.Conversation)
	PutInvitation(inv domain.Invitation)
}

// Service wraps a reader with conversation operations.
type Service struct {
	r store.Reader
}

func New(r store.Reader) *Service { return &Service{r: r} }

func (s *Service) writer() Writer {
	w, ok := s.r.(Writer)
	if !ok {
		panic("convo: mutation through a read-only reader")
	}
	return w
}

// Active returns the agent's active conversation, if any.
func (s *Service) Active(agent string) (domain.Conversation, bool, error) {
	return s.r.ActiveConversationFor(agent)
}

// PendingFor returns pending invitations addressed to the agent.
func (s *Service) PendingFor(agent string) ([]domain.Invitation, error) {
	return s.r.PendingInvitationsFor(agent)
}

// Invite records a pending invitation. Visibility is the caller's check;
// the service enforces only state rules.
func (s *Service) Invite(inviter, invitee string, privacy domain.Privacy, tick int) (domain.Invitation, error) {
	if privacy != domain.Private {
		privacy = domain.Public
	}
	if inviter == invitee {
		return domain.Invitation{}, fmt.Errorf("convo: cannot invite yourself")
	}
	pending, err := s.r.PendingInvitationsFor(invitee)
	if err != nil {
		return domain.Invitation{}, err
	}
	for _, inv := range pending {
		if inv.Inviter == inviter {
			return domain.Invitation{}, fmt.Errorf("convo: invitation to %s already pending", invitee)
		}
	}
	inv := domain.Invitation{
		ID:          uuid.NewString(),
		Inviter:     inviter,
		Invitee:     invitee,
		Privacy:     privacy,
		CreatedTick: tick,
		Status:      domain.InvitePending,
	}
	s.writer().PutInvitation(inv)
	return inv, nil
}

// AcceptOutcome describes what an accepted invitation did.
type AcceptOutcome struct {
	Invitation   domain.Invitation
	Conversation domain.Conversation
	// Started is true when a new conversation was created, false when the
	// invitee joined the inviter's existing one.
	Started bool
}

// Accept resolves the invitee's oldest pending invitation. If the inviter
// already talks in an active conversation the invitee joins it; otherwise a
// new conversation starts with both participants. Acceptance works from any
// distance.
func (s *Service) Accept(invitee string, tick int) (AcceptOutcome, error) {
	pending, err := s.r.PendingInvitationsFor(invitee)
	if err != nil {
		return AcceptOutcome{}, err
	}
	if len(pending) == 0 {
		return AcceptOutcome{}, ErrNoInvite
	}
	if _, busy, err := s.r.ActiveConversationFor(invitee); err != nil {
		return AcceptOutcome{}, err
	} else if busy {
		return AcceptOutcome{}, ErrBusy
	}

	inv := pending[0]
	inv.Status = domain.InviteAccepted
	w := s.writer()
	w.PutInvitation(inv)

	if c, ok, err := s.r.ActiveConversationFor(inv.Inviter); err != nil {
		return AcceptOutcome{}, err
	} else if ok {
		c.Participants = append(c.Participants, domain.Participant{
			Agent:        invitee,
			JoinedTick:   tick,
			LastTurnTick: tick,
		})
		w.PutConversation(c)
		return AcceptOutcome{Invitation: inv, Conversation: c, Started: false}, nil
	}

	c := domain.Conversation{
		ID:          uuid.NewString(),
		Privacy:     inv.Privacy,
		StartedTick: tick,
		CreatedBy:   inv.Inviter,
		Participants: []domain.Participant{
			{Agent: inv.Inviter, JoinedTick: tick, LastTurnTick: tick},
			{Agent: invitee, JoinedTick: tick, LastTurnTick: tick},
		},
	}
	w.PutConversation(c)
	return AcceptOutcome{Invitation: inv, Conversation: c, Started: true}, nil
}

// Decline resolves the invitee's oldest pending invitation as declined.
func (s *Service) Decline(invitee string, tick int) (domain.Invitation, error) {
	pending, err := s.r.PendingInvitationsFor(invitee)
	if err != nil {
		return domain.Invitation{}, err
	}
	if len(pending) == 0 {
		return domain.Invitation{}, ErrNoInvite
	}
	inv := pending[0]
	inv.Status = domain.InviteDeclined
	s.writer().PutInvitation(inv)
	return inv, nil
}

// Expire marks every pending invitation created expiryTicks or more ticks
// before tick as expired and returns them, oldest first.
func (s *Service) Expire(tick, expiryTicks int) ([]domain.Invitation, error) {
	pending, err := s.r.PendingInvitations()
	if err != nil {
		return nil, err
	}
	var out []domain.Invitation
	for _, inv := range pending {
		if tick-inv.CreatedTick >= expiryTicks {
			inv.Status = domain.InviteExpired
			s.writer().PutInvitation(inv)
			out = append(out, inv)
		}
	}
	return out, nil
}

// Speak appends a turn to the speaker's active conversation.
func (s *Service) Speak(speaker, text string, tick int) (domain.Conversation, error) {
	c, ok, err := s.r.ActiveConversationFor(speaker)
	if err != nil {
		return c, err
	}
	if !ok {
		return c, ErrNotInConversation
	}
	c.Turns = append(c.Turns, domain.Turn{Speaker: speaker, Text: text, Tick: tick})
	s.writer().PutConversation(c)
	return c, nil
}

// Join adds the agent to the public conversation a named participant is in.
// Privacy and visibility-of-participant are enforced here and by the action
// engine respectively.
func (s *Service) Join(agent, participant string, tick int) (domain.Conversation, error) {
	if _, busy, err := s.r.ActiveConversationFor(agent); err != nil {
		return domain.Conversation{}, err
	} else if busy {
		return domain.Conversation{}, ErrBusy
	}
	c, ok, err := s.r.ActiveConversationFor(participant)
	if err != nil {
		return c, err
	}
	if !ok {
		return c, fmt.Errorf("%w: %s", ErrNotJoinable, participant)
	}
	if c.Privacy != domain.Public {
		return c, ErrPrivate
	}
	c.Participants = append(c.Participants, domain.Participant{
		Agent:        agent,
		JoinedTick:   tick,
		LastTurnTick: tick,
	})
	s.writer().PutConversation(c)
	return c, nil
}

// LeaveOutcome reports a leave and whether it ended the conversation.
type LeaveOutcome struct {
	Conversation domain.Conversation
	Ended        bool
}

// Leave removes the agent from its active conversation. When the last
// participant leaves the conversation ends; ended conversations are never
// reopened.
func (s *Service) Leave(agent string, tick int) (LeaveOutcome, error) {
	c, ok, err := s.r.ActiveConversationFor(agent)
	if err != nil {
		return LeaveOutcome{}, err
	}
	if !ok {
		return LeaveOutcome{}, ErrNotInConversation
	}
	for i := range c.Participants {
		if c.Participants[i].Agent == agent && c.Participants[i].LeftTick == nil {
			t := tick
			c.Participants[i].LeftTick = &t
		}
	}
	ended := len(c.ActiveParticipants()) == 0
	if ended {
		t := tick
		c.EndedTick = &t
	}
	s.writer().PutConversation(c)
	return LeaveOutcome{Conversation: c, Ended: ended}, nil
}

// End force-ends a conversation (observer command): every remaining
// participant leaves at once.
func (s *Service) End(id string, tick int) (domain.Conversation, error) {
	c, ok, err := s.r.Conversation(id)
	if err != nil {
		return c, err
	}
	if !ok || !c.Active() {
		return c, fmt.Errorf("convo: no active conversation %s", id)
	}
	for i := range c.Participants {
		if c.Participants[i].LeftTick == nil {
			t := tick
			c.Participants[i].LeftTick = &t
		}
	}
	t := tick
	c.EndedTick = &t
	s.writer().PutConversation(c)
	return c, nil
}

// MarkSeen records that the agent received the conversation state this
// tick; turns at or before it are no longer unseen.
func (s *Service) MarkSeen(agent string, tick int) error {
	c, ok, err := s.r.ActiveConversationFor(agent)
	if err != nil || !ok {
		return err
	}
	for i := range c.Participants {
		if c.Participants[i].Agent == agent && c.Participants[i].LeftTick == nil {
			c.Participants[i].LastTurnTick = tick
		}
	}
	s.writer().PutConversation(c)
	return nil
}
