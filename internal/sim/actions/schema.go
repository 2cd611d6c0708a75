package actions

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"hearth.world/internal/sim/domain"
)

// ToolDef is one entry of the fixed tool schema handed to the reasoner.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"input_schema"`
}

const dirEnum = `{"type":"string","enum":["north","south","east","west"]}`
const lookEnum = `{"type":"string","enum":["north","south","east","west","down"]}`

func obj(required string, props string) string {
	if props == "" {
		return `{"type":"object","additionalProperties":false,"properties":{}}`
	}
	s := fmt.Sprintf(`{"type":"object","additionalProperties":false,"properties":{%s}`, props)
	if required != "" {
		s += fmt.Sprintf(`,"required":[%s]`, required)
	}
	return s + "}"
}

// toolSchemas declares the argument schema of every action. The reasoner's
// payloads are validated against these before dispatch.
var toolSchemas = map[string]string{
	domain.ActWalk:     obj(`"direction"`, `"direction":`+dirEnum),
	domain.ActApproach: obj(`"target"`, `"target":{"type":"string","minLength":1}`),
	domain.ActJourney:  obj("", `"x":{"type":"integer","minimum":0},"y":{"type":"integer","minimum":0},"place":{"type":"string"}`),

	domain.ActExamine:     obj(`"direction"`, `"direction":`+lookEnum),
	domain.ActSenseOthers: obj("", ""),

	domain.ActTake:   obj(`"direction"`, `"direction":`+lookEnum),
	domain.ActDrop:   obj(`"kind"`, `"kind":{"type":"string","minLength":1},"quantity":{"type":"integer","minimum":1}`),
	domain.ActGive:   obj(`"recipient","kind"`, `"recipient":{"type":"string","minLength":1},"kind":{"type":"string","minLength":1},"quantity":{"type":"integer","minimum":1}`),
	domain.ActGather: obj("", ""),

	domain.ActCombine: obj(`"items"`, `"items":{"type":"array","items":{"type":"string"},"minItems":2}`),
	domain.ActWork:    obj(`"material","technique"`, `"material":{"type":"string","minLength":1},"technique":{"type":"string","minLength":1}`),
	domain.ActApply:   obj(`"tool","target"`, `"tool":{"type":"string","minLength":1},"target":{"type":"string","minLength":1}`),

	domain.ActBuildShelter: obj(`"facing"`, `"facing":`+dirEnum),
	domain.ActPlaceWall:    obj(`"direction"`, `"direction":`+dirEnum),
	domain.ActPlaceDoor:    obj(`"direction"`, `"direction":`+dirEnum),
	domain.ActPlaceItem:    obj(`"kind"`, `"kind":{"type":"string","minLength":1}`),
	domain.ActRemoveWall:   obj(`"direction"`, `"direction":`+dirEnum),

	domain.ActWriteSign: obj(`"text"`, `"text":{"type":"string","minLength":1}`),
	domain.ActReadSign:  obj(`"direction"`, `"direction":`+lookEnum),
	domain.ActNamePlace: obj(`"name"`, `"name":{"type":"string","minLength":1}`),

	domain.ActSpeak:             obj(`"text"`, `"text":{"type":"string","minLength":1}`),
	domain.ActInvite:            obj(`"invitee"`, `"invitee":{"type":"string","minLength":1},"privacy":{"type":"string","enum":["public","private"]}`),
	domain.ActAcceptInvite:      obj("", ""),
	domain.ActDeclineInvite:     obj("", ""),
	domain.ActJoinConversation:  obj(`"participant"`, `"participant":{"type":"string","minLength":1}`),
	domain.ActLeaveConversation: obj("", ""),

	domain.ActSleep: obj("", ""),
}

var toolDescriptions = map[string]string{
	domain.ActWalk:              "Move one cell in a cardinal direction.",
	domain.ActApproach:          "Take one step toward a visible agent or object.",
	domain.ActJourney:           "Begin multi-cell travel to coordinates or a named place. You will walk on your own until you arrive or something interrupts you.",
	domain.ActExamine:           "Inspect a neighbouring cell, or your own with \"down\".",
	domain.ActSenseOthers:       "Feel the rough direction and distance of everyone you have met.",
	domain.ActTake:              "Pick up an item from a neighbouring cell, or your own with \"down\".",
	domain.ActDrop:              "Put something from your inventory on the ground.",
	domain.ActGive:              "Hand something to an agent next to you.",
	domain.ActGather:            "Collect the local resource from the terrain you stand on.",
	domain.ActCombine:           "Combine materials from your inventory into something new.",
	domain.ActWork:              "Shape a material with a technique (carve, weave, hollow, ...).",
	domain.ActApply:             "Use a tool on a target material. The tool is kept.",
	domain.ActBuildShelter:      "Build a walled 3x3 shelter around yourself with a door on the side you face.",
	domain.ActPlaceWall:         "Build a wall on one edge of your cell. Costs wood.",
	domain.ActPlaceDoor:         "Put a door into an existing wall on one edge of your cell.",
	domain.ActPlaceItem:         "Place an inventory item in the world as an object.",
	domain.ActRemoveWall:        "Tear down a wall on one edge of your cell.",
	domain.ActWriteSign:         "Leave a readable sign where you stand.",
	domain.ActReadSign:          "Read a sign on a neighbouring cell, or your own with \"down\".",
	domain.ActNamePlace:         "Give the place you stand on a name.",
	domain.ActSpeak:             "Say something in your current conversation.",
	domain.ActInvite:            "Invite a visible agent to talk.",
	domain.ActAcceptInvite:      "Accept your pending invitation.",
	domain.ActDeclineInvite:     "Decline your pending invitation.",
	domain.ActJoinConversation:  "Join the public conversation of a visible participant.",
	domain.ActLeaveConversation: "Leave your current conversation.",
	domain.ActSleep:             "Go to sleep until morning or until someone wakes you.",
}

var compiled = map[string]*jsonschema.Schema{}

func init() {
	for name, raw := range toolSchemas {
		c := jsonschema.NewCompiler()
		url := "hearth:///tools/" + name + ".json"
		if err := c.AddResource(url, strings.NewReader(raw)); err != nil {
			panic(fmt.Sprintf("actions: tool schema %s: %v", name, err))
		}
		sch, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("actions: tool schema %s: %v", name, err))
		}
		compiled[name] = sch
	}
}

// ValidateArgs checks a raw argument payload against the tool's schema.
func ValidateArgs(tool string, raw json.RawMessage) error {
	sch := compiled[tool]
	if sch == nil {
		return fmt.Errorf("unknown tool %q", tool)
	}
	var v any
	if len(raw) == 0 {
		v = map[string]any{}
	} else if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return sch.Validate(v)
}

// Tools returns the full 27-entry tool schema in vocabulary order.
func Tools() []ToolDef {
	out := make([]ToolDef, 0, len(domain.ActionNames))
	for _, name := range domain.ActionNames {
		out = append(out, ToolDef{
			Name:        name,
			Description: toolDescriptions[name],
			Schema:      json.RawMessage(toolSchemas[name]),
		})
	}
	return out
}
