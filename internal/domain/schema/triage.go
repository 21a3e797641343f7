package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/domain/payload"
)

// ActionNone is the triage action meaning nothing urgent is needed.
const ActionNone = "No Action Required"

const defaultRationale = "No rationale provided."

// TriageRequest is what Eloise sends to Triage.
type TriageRequest struct {
	Summary string `json:"summary" jsonschema:"description=Summary of the emergency"`
}

// TriageDecision is Triage's structured reply.
type TriageDecision struct {
	Actions   []string `json:"actions" jsonschema:"minItems=1,description=Urgent actions to take such as Call EMS or Call Tow Truck or No Action Required"`
	Rationale string   `json:"rationale" jsonschema:"description=Short explanation of the decision"`
}

func newTriageSchema() (*Schema, error) {
	action, err := reflectFunction("send_to_triage",
		"Send an emergency event to Triage for response.",
		TriageRequest{},
		map[string]any{"summary": ""})
	if err != nil {
		return nil, err
	}
	decision, err := reflectFunction("triage_action",
		"Determine what urgent actions (if any) should be taken for this emergency claim.",
		TriageDecision{},
		map[string]any{
			"actions":   []string{ActionNone},
			"rationale": defaultRationale,
		})
	if err != nil {
		return nil, err
	}
	return &Schema{
		Specialist:      agent.Triage,
		DisplayName:     "Triage",
		ActionCode:      "TRIAGE_CALL",
		Skill:           "triage_emergency",
		Action:          action,
		Decision:        decision,
		PrimaryField:    "actions",
		NarrativeField:  "summary",
		Instruction:     "Determine what urgent actions (if any) should be taken for this emergency claim. Use the triage_action function.",
		Acknowledgement: "I've alerted our emergency response team to assist you.",
		Undetermined:    "No decision was made by Triage. Please clarify the emergency.",
		reply:           triageReply,
		relay:           triageRelay,
	}, nil
}

func urgentActions(d payload.Fields) []string {
	var out []string
	for _, a := range d.Strings("actions") {
		if a != ActionNone {
			out = append(out, a)
		}
	}
	return out
}

func triageReply(d payload.Fields) string {
	actions := d.Strings("actions")
	if slices.Contains(actions, ActionNone) {
		return "No urgent action is required at this time."
	}
	return fmt.Sprintf("Triage has initiated: %s.", strings.Join(actions, ", "))
}

func triageRelay(d payload.Fields) string {
	rationale := d.String("rationale")
	if urgent := urgentActions(d); len(urgent) > 0 {
		return fmt.Sprintf("Our emergency team is already on it: %s. %s", strings.Join(urgent, " and "), rationale)
	}
	return "No urgent action is required at this time. " + rationale
}
