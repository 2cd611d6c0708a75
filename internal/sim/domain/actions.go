package domain

import "encoding/json"

// Action names. The vocabulary is closed: the action engine validates its
// dispatch map against this list at startup.
const (
	ActWalk     = "walk"
	ActApproach = "approach"
	ActJourney  = "journey"

	ActExamine     = "examine"
	ActSenseOthers = "sense_others"

	ActTake   = "take"
	ActDrop   = "drop"
	ActGive   = "give"
	ActGather = "gather"

	ActCombine = "combine"
	ActWork    = "work"
	ActApply   = "apply"

	ActBuildShelter = "build_shelter"
	ActPlaceWall    = "place_wall"
	ActPlaceDoor    = "place_door"
	ActPlaceItem    = "place_item"
	ActRemoveWall   = "remove_wall"

	ActWriteSign = "write_sign"
	ActReadSign  = "read_sign"
	ActNamePlace = "name_place"

	ActSpeak             = "speak"
	ActInvite            = "invite"
	ActAcceptInvite      = "accept_invite"
	ActDeclineInvite     = "decline_invite"
	ActJoinConversation  = "join_conversation"
	ActLeaveConversation = "leave_conversation"

	ActSleep = "sleep"
)

// ActionNames lists the full vocabulary in declaration order.
var ActionNames = []string{
	ActWalk, ActApproach, ActJourney,
	ActExamine, ActSenseOthers,
	ActTake, ActDrop, ActGive, ActGather,
	ActCombine, ActWork, ActApply,
	ActBuildShelter, ActPlaceWall, ActPlaceDoor, ActPlaceItem, ActRemoveWall,
	ActWriteSign, ActReadSign, ActNamePlace,
	ActSpeak, ActInvite, ActAcceptInvite, ActDeclineInvite,
	ActJoinConversation, ActLeaveConversation,
	ActSleep,
}

// ToolCall is one action request as emitted by the reasoner: a tool name
// plus its raw argument payload. The action engine validates the payload
// against the tool's schema before decoding.
type ToolCall struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// ActionResult is the outcome of executing one action. Failed actions carry
// no events and must have consumed nothing.
type ActionResult struct {
	OK      bool           `json:"ok"`
	Message string         `json:"message"`
	Events  []Event        `json:"-"`
	Data    map[string]any `json:"data,omitempty"`
}

// OKResult builds a successful result.
func OKResult(message string, events ...Event) ActionResult {
	return ActionResult{OK: true, Message: message, Events: events}
}

// FailResult builds a failed result. By the failed-action purity law it
// never carries events.
func FailResult(message string) ActionResult {
	return ActionResult{OK: false, Message: message}
}

// WithData attaches narrator context to a result.
func (r ActionResult) WithData(data map[string]any) ActionResult {
	r.Data = data
	return r
}

// --- typed argument payloads, one per action that takes arguments ---

type WalkArgs struct {
	Direction Direction `json:"direction"`
}

type ApproachArgs struct {
	// Target is an agent name or a direction-free object reference built
	// from perception ("sign", "placed item kind", ...).
	Target string `json:"target"`
}

type JourneyArgs struct {
	// Exactly one of X/Y or Place is set.
	X     *int   `json:"x,omitempty"`
	Y     *int   `json:"y,omitempty"`
	Place string `json:"place,omitempty"`
}

type ExamineArgs struct {
	// Direction is a cardinal name or "down" for the agent's own cell.
	Direction string `json:"direction"`
}

type TakeArgs struct {
	Direction string `json:"direction"`
}

type DropArgs struct {
	Kind     string `json:"kind"`
	Quantity int    `json:"quantity,omitempty"`
}

type GiveArgs struct {
	Recipient string `json:"recipient"`
	Kind      string `json:"kind"`
	Quantity  int    `json:"quantity,omitempty"`
}

type CombineArgs struct {
	Items []string `json:"items"`
}

type WorkArgs struct {
	Material  string `json:"material"`
	Technique string `json:"technique"`
}

type ApplyArgs struct {
	Tool   string `json:"tool"`
	Target string `json:"target"`
}

type BuildShelterArgs struct {
	// Facing picks the door edge of the shelter.
	Facing Direction `json:"facing"`
}

type PlaceWallArgs struct {
	Direction Direction `json:"direction"`
}

type PlaceDoorArgs struct {
	Direction Direction `json:"direction"`
}

type PlaceItemArgs struct {
	Kind string `json:"kind"`
}

type RemoveWallArgs struct {
	Direction Direction `json:"direction"`
}

type WriteSignArgs struct {
	Text string `json:"text"`
}

type ReadSignArgs struct {
	Direction string `json:"direction"`
}

type NamePlaceArgs struct {
	Name string `json:"name"`
}

type SpeakArgs struct {
	Text string `json:"text"`
}

type InviteArgs struct {
	Invitee string  `json:"invitee"`
	Privacy Privacy `json:"privacy,omitempty"`
}

type JoinConversationArgs struct {
	Participant string `json:"participant"`
}
