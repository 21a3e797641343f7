package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
	"github.com/Strob0t/ClaimDesk/internal/domain/payload"
)

// Coverage verdicts.
const (
	CoverageCovered      = "Covered"
	CoverageNotCovered   = "Not Covered"
	CoverageUndetermined = "Undetermined"
)

// CoverageRequest is what Eloise sends to Chris.
type CoverageRequest struct {
	IncidentDescription string `json:"incident_description" jsonschema:"description=What happened in the customer's words"`
	IncidentDate        string `json:"incident_date,omitempty" jsonschema:"description=When it happened, as the customer stated it"`
}

// CoverageDecision is Chris's structured reply.
type CoverageDecision struct {
	Coverage     string `json:"coverage" jsonschema:"enum=Covered,enum=Not Covered,enum=Undetermined,description=Coverage verdict"`
	IncidentDate string `json:"incident_date" jsonschema:"description=Absolute incident date (YYYY-MM-DD) or empty when unknown"`
	Rationale    string `json:"rationale" jsonschema:"description=Short explanation of the verdict"`
}

const dateNotResolvable = "date not resolvable"

var incidentDateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	time.RFC3339,
}

// ParseIncidentDate normalizes an absolute calendar date to YYYY-MM-DD.
// Relative expressions ("yesterday", "last week") do not parse.
func ParseIncidentDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range incidentDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly), true
		}
	}
	return "", false
}

func newCoverageSchema() (*Schema, error) {
	action, err := reflectFunction("send_to_chris",
		"Send coverage check information to Chris, the coverage agent.",
		CoverageRequest{},
		map[string]any{"incident_description": "", "incident_date": ""})
	if err != nil {
		return nil, err
	}
	decision, err := reflectFunction("reply_coverage_decision",
		"Reply with a coverage decision, the extracted date, and rationale.",
		CoverageDecision{},
		map[string]any{
			"coverage":      CoverageUndetermined,
			"incident_date": "",
			"rationale":     defaultRationale,
		})
	if err != nil {
		return nil, err
	}
	return &Schema{
		Specialist:      agent.Coverage,
		DisplayName:     "Chris",
		ActionCode:      "CHECK_COVERAGE",
		Skill:           "check_coverage",
		Action:          action,
		Decision:        decision,
		PrimaryField:    "coverage",
		NarrativeField:  "incident_description",
		Instruction:     `Extract the incident date and make a coverage decision. Use the reply_coverage_decision function. If the date is missing or ambiguous, reply "Undetermined".`,
		Acknowledgement: "I'm consulting our coverage agent, Chris. I'll update you as soon as I have an answer.",
		Undetermined:    "I couldn't determine coverage — missing information.",
		reply:           coverageReply,
		relay:           coverageRelay,
		normalize:       normalizeCoverage,
	}, nil
}

// normalizeCoverage enforces the absolute-date rule. Without a calendar
// date the verdict is Undetermined.
func normalizeCoverage(f payload.Fields, rep *Report) {
	raw := f.String("incident_date")
	if date, ok := ParseIncidentDate(raw); ok {
		if date != raw {
			rep.Adjusted = append(rep.Adjusted, "incident_date")
		}
		f["incident_date"] = date
		return
	}
	if raw != "" {
		rep.Adjusted = append(rep.Adjusted, "incident_date")
	}
	f["incident_date"] = ""
	if f.String("coverage") != CoverageUndetermined {
		f["coverage"] = CoverageUndetermined
		rep.Adjusted = append(rep.Adjusted, "coverage")
	}
	if rep.WasSubstituted("rationale") {
		f["rationale"] = dateNotResolvable
	}
}

func coverageReply(d payload.Fields) string {
	switch d.String("coverage") {
	case CoverageCovered:
		return "Customer is covered for this incident."
	case CoverageNotCovered:
		return "The policy does not cover this incident (expired)."
	default:
		return "Coverage determination is undetermined (missing/invalid date)."
	}
}

func coverageRelay(d payload.Fields) string {
	rationale := d.String("rationale")
	switch cov := d.String("coverage"); cov {
	case CoverageCovered:
		return "Great news — you are covered for this incident! " + rationale
	case CoverageNotCovered:
		return "Unfortunately, your policy does not cover this incident. " + rationale
	default:
		return fmt.Sprintf("Chris reviewed your incident: %s. %s", cov, rationale)
	}
}
