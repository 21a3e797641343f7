package a2a

import (
	"github.com/a2aproject/a2a-go/a2a"

	"github.com/Strob0t/ClaimDesk/internal/domain/schema"
)

var textModes = []string{"text/plain"}

var dataModes = []string{"application/json"}

// BuildAgentCard returns the card for the ClaimDesk service. Every
// specialist is offered as one skill.
func BuildAgentCard(baseURL, version string, registry *schema.Registry) a2a.AgentCard {
	schemas := registry.Schemas()
	skills := make([]a2a.AgentSkill, 0, len(schemas))
	for _, s := range schemas {
		skills = append(skills, skillOf(s))
	}
	return a2a.AgentCard{
		Name:               "ClaimDesk",
		Description:        "Insurance claims assistant with coverage and emergency triage specialists",
		URL:                baseURL,
		Version:            version,
		Capabilities:       a2a.AgentCapabilities{},
		DefaultInputModes:  dataModes,
		DefaultOutputModes: append(append([]string(nil), textModes...), dataModes...),
		Skills:             skills,
	}
}

// SpecialistCards returns one card per specialist, in registry order.
func SpecialistCards(baseURL, version string, registry *schema.Registry) []a2a.AgentCard {
	schemas := registry.Schemas()
	cards := make([]a2a.AgentCard, 0, len(schemas))
	for _, s := range schemas {
		cards = append(cards, a2a.AgentCard{
			Name:               s.DisplayName,
			Description:        s.Decision.Description,
			URL:                baseURL,
			Version:            version,
			Capabilities:       a2a.AgentCapabilities{},
			DefaultInputModes:  dataModes,
			DefaultOutputModes: dataModes,
			Skills:             []a2a.AgentSkill{skillOf(s)},
		})
	}
	return cards
}

func skillOf(s *schema.Schema) a2a.AgentSkill {
	return a2a.AgentSkill{
		ID:          s.Skill,
		Name:        s.DisplayName,
		Description: s.Action.Description,
		Tags:        []string{"claims", string(s.Specialist)},
		InputModes:  dataModes,
		OutputModes: append(append([]string(nil), textModes...), dataModes...),
	}
}
