package capability

import "strings"

// Capability tags understood by the default tagger.
const (
	Python             = "python"
	CodeGeneration     = "code_generation"
	Poetry             = "poetry"
	CreativeWriting    = "creative_writing"
	MedicalTerminology = "medical_terminology"
	Biology            = "biology"
	Blockchain         = "blockchain"
	SmartContracts     = "smart_contracts"
)

// Tagger maps free text to an ordered, duplicate-free set of capability tags.
type Tagger interface {
	Tag(text string) []string
}

// TriggerGroup fires its tags when any trigger phrase occurs in the text.
type TriggerGroup struct {
	Triggers []string
	Tags     []string
}

// DefaultTriggerGroups is the built-in trigger table.
func DefaultTriggerGroups() []TriggerGroup {
	return []TriggerGroup{
		{
			Triggers: []string{"python", "code", "function", "script"},
			Tags:     []string{Python, CodeGeneration},
		},
		{
			Triggers: []string{"poem", "poetry", "creative", "story"},
			Tags:     []string{Poetry, CreativeWriting},
		},
		{
			Triggers: []string{"medical", "anatomy", "biology", "krebs", "disease", "health"},
			Tags:     []string{MedicalTerminology, Biology},
		},
		{
			Triggers: []string{"blockchain", "smart contract", "solidity", "ethereum"},
			Tags:     []string{Blockchain, SmartContracts},
		},
	}
}

// KeywordTagger is a case-insensitive substring matcher over trigger groups.
type KeywordTagger struct {
	groups []TriggerGroup
}

// NewKeywordTagger builds a tagger over groups, or the default table when groups is empty.
func NewKeywordTagger(groups ...TriggerGroup) *KeywordTagger {
	if len(groups) == 0 {
		groups = DefaultTriggerGroups()
	}
	normalized := make([]TriggerGroup, 0, len(groups))
	for _, g := range groups {
		triggers := make([]string, 0, len(g.Triggers))
		for _, trigger := range g.Triggers {
			trigger = strings.ToLower(strings.TrimSpace(trigger))
			if trigger != "" {
				triggers = append(triggers, trigger)
			}
		}
		normalized = append(normalized, TriggerGroup{
			Triggers: triggers,
			Tags:     append([]string(nil), g.Tags...),
		})
	}
	return &KeywordTagger{groups: normalized}
}

// Tag returns tags in trigger-table order. Empty or unmatched text yields nil.
func (k *KeywordTagger) Tag(text string) []string {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	for _, g := range k.groups {
		if !matchesAny(lower, g.Triggers) {
			continue
		}
		for _, tag := range g.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

func matchesAny(text string, triggers []string) bool {
	for _, trigger := range triggers {
		if strings.Contains(text, trigger) {
			return true
		}
	}
	return false
}
