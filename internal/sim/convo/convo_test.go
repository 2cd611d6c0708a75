package convo

import (
	"errors"
	"path/filepath"
	"testing"

	"hearth.world/internal/persistence/store"
	"hearth.world/internal/sim/domain"
)

func newTestConvo(t *testing.T, names ...string) (*store.Tick, *Service) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "world.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitWorld(40, 40); err != nil {
		t.Fatalf("init: %v", err)
	}
	tk, err := s.Begin(1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, n := range names {
		tk.PutAgent(domain.Agent{Name: n, ModelID: "m", Inventory: domain.NewInventory()})
	}
	return tk, New(tk)
}

func TestInviteAcceptStartsConversation(t *testing.T) {
	_, svc := newTestConvo(t, "a", "b")

	inv, err := svc.Invite("a", "b", domain.Public, 1)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if inv.Status != domain.InvitePending || inv.CreatedTick != 1 {
		t.Fatalf("invitation = %+v", inv)
	}

	out, err := svc.Accept("b", 3)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !out.Started {
		t.Fatalf("expected a new conversation")
	}
	got := out.Conversation.ActiveParticipants()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("participants = %v", got)
	}
	if out.Conversation.StartedTick != 3 {
		t.Errorf("started tick = %d", out.Conversation.StartedTick)
	}
}

func TestAcceptJoinsInvitersExistingConversation(t *testing.T) {
	_, svc := newTestConvo(t, "a", "b", "c")

	if _, err := svc.Invite("a", "b", domain.Public, 1); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if _, err := svc.Accept("b", 1); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Invite("a", "c", domain.Public, 2); err != nil {
		t.Fatalf("invite c: %v", err)
	}
	out, err := svc.Accept("c", 2)
	if err != nil {
		t.Fatalf("accept c: %v", err)
	}
	if out.Started {
		t.Fatalf("should have joined the existing conversation")
	}
	if got := len(out.Conversation.ActiveParticipants()); got != 3 {
		t.Errorf("participants = %d, want 3", got)
	}
}

func TestDecline(t *testing.T) {
	_, svc := newTestConvo(t, "a", "b")
	if _, err := svc.Invite("a", "b", domain.Private, 1); err != nil {
		t.Fatalf("invite: %v", err)
	}
	inv, err := svc.Decline("b", 2)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if inv.Status != domain.InviteDeclined {
		t.Errorf("status = %s", inv.Status)
	}
	if _, err := svc.Accept("b", 2); !errors.Is(err, ErrNoInvite) {
		t.Errorf("accept after decline = %v, want ErrNoInvite", err)
	}
}

func TestExpiry(t *testing.T) {
	_, svc := newTestConvo(t, "a", "b")
	if _, err := svc.Invite("a", "b", domain.Public, 1); err != nil {
		t.Fatalf("invite: %v", err)
	}

	// Not yet: tick 2 is only one tick after creation.
	expired, err := svc.Expire(2, 2)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expired early: %+v", expired)
	}

	expired, err = svc.Expire(3, 2)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(expired) != 1 || expired[0].Status != domain.InviteExpired {
		t.Fatalf("expired = %+v", expired)
	}
	if _, err := svc.Accept("b", 3); !errors.Is(err, ErrNoInvite) {
		t.Errorf("accept after expiry = %v, want ErrNoInvite", err)
	}
}

func TestOneConversationAtATime(t *testing.T) {
	_, svc := newTestConvo(t, "a", "b", "c")
	mustStart(t, svc, "a", "b")

	if _, err := svc.Invite("c", "b", domain.Public, 2); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if _, err := svc.Accept("b", 2); !errors.Is(err, ErrBusy) {
		t.Errorf("accept while busy = %v, want ErrBusy", err)
	}
}

func TestJoinPublicOnly(t *testing.T) {
	_, svc := newTestConvo(t, "a", "b", "c")

	if _, err := svc.Invite("a", "b", domain.Private, 1); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if _, err := svc.Accept("b", 1); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Join("c", "a", 2); !errors.Is(err, ErrPrivate) {
		t.Errorf("join private = %v, want ErrPrivate", err)
	}
}

func TestJoinNeedsActiveParticipant(t *testing.T) {
	_, svc := newTestConvo(t, "a", "c")
	if _, err := svc.Join("c", "a", 1); !errors.Is(err, ErrNotJoinable) {
		t.Errorf("join = %v, want ErrNotJoinable", err)
	}
}

func TestSpeakAndUnseenTurns(t *testing.T) {
	_, svc := newTestConvo(t, "a", "b")
	mustStart(t, svc, "a", "b")

	if _, err := svc.Speak("a", "hello", 2); err != nil {
		t.Fatalf("speak: %v", err)
	}
	c, ok, err := svc.Active("b")
	if err != nil || !ok {
		t.Fatalf("active: %v %v", ok, err)
	}
	unseen := c.UnseenTurns("b")
	if len(unseen) != 1 || unseen[0].Text != "hello" {
		t.Fatalf("unseen = %+v", unseen)
	}

	if err := svc.MarkSeen("b", 2); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	c, _, _ = svc.Active("b")
	if got := c.UnseenTurns("b"); len(got) != 0 {
		t.Errorf("after mark seen unseen = %+v", got)
	}
}

func TestSpeakOutsideConversationFails(t *testing.T) {
	_, svc := newTestConvo(t, "a")
	if _, err := svc.Speak("a", "void", 1); !errors.Is(err, ErrNotInConversation) {
		t.Errorf("speak = %v, want ErrNotInConversation", err)
	}
}

func TestLastLeaveEndsConversation(t *testing.T) {
	_, svc := newTestConvo(t, "a", "b")
	mustStart(t, svc, "a", "b")

	out, err := svc.Leave("a", 2)
	if err != nil {
		t.Fatalf("leave a: %v", err)
	}
	if out.Ended {
		t.Fatalf("conversation ended with a participant remaining")
	}
	out, err = svc.Leave("b", 2)
	if err != nil {
		t.Fatalf("leave b: %v", err)
	}
	if !out.Ended || out.Conversation.EndedTick == nil {
		t.Fatalf("conversation did not end: %+v", out.Conversation)
	}
	// Ended conversations never reopen.
	if _, err := svc.Join("a", "b", 3); err == nil {
		t.Errorf("joined an ended conversation")
	}
}

func TestEndForcesEveryoneOut(t *testing.T) {
	_, svc := newTestConvo(t, "a", "b")
	mustStart(t, svc, "a", "b")
	c, _, _ := svc.Active("a")

	ended, err := svc.End(c.ID, 5)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.EndedTick == nil || len(ended.ActiveParticipants()) != 0 {
		t.Fatalf("end left state: %+v", ended)
	}
	if _, ok, _ := svc.Active("a"); ok {
		t.Errorf("a still in an active conversation")
	}
}

func mustStart(t *testing.T, svc *Service, inviter, invitee string) {
	t.Helper()
	if _, err := svc.Invite(inviter, invitee, domain.Public, 1); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if _, err := svc.Accept(invitee, 1); err != nil {
		t.Fatalf("accept: %v", err)
	}
}
