package coding

import "strings"

// triggerRule maps scenario phrases to a modifier code. Matching is
// plain substring over the lowercased scenario text.
type triggerRule struct {
	code    string
	phrases []string
}

// modifierTriggers is evaluated in table order, and the suggestion list
// follows that order. The laterality rules (LT/RT) are not mutually
// exclusive with the bilateral rule: a scenario mentioning both
// surfaces both codes.
var modifierTriggers = []triggerRule{
	{code: "50", phrases: []string{"bilateral", "both sides", "both limbs"}},
	{code: "LT", phrases: []string{"left", " lt "}},
	{code: "RT", phrases: []string{"right", " rt "}},
	{code: "76", phrases: []string{"repeat", "again"}},
	{code: "59", phrases: []string{"distinct", "different site", "separate session"}},
	{code: "25", phrases: []string{"evaluation", "e/m"}},
	{code: "26", phrases: []string{"interpretation", "professional"}},
	{code: "TC", phrases: []string{"equipment", "technical"}},
}

// TriggerCodes returns the distinct modifier codes the trigger table
// can suggest, in rule order. Catalog validation uses it to confirm
// every rule resolves to a cataloged modifier.
func TriggerCodes() []string {
	seen := make(map[string]bool, len(modifierTriggers))
	codes := make([]string, 0, len(modifierTriggers))
	for _, rule := range modifierTriggers {
		if !seen[rule.code] {
			seen[rule.code] = true
			codes = append(codes, rule.code)
		}
	}
	return codes
}

// triggeredModifierCodes returns the modifier codes whose trigger
// phrases occur in the scenario, in rule order, deduplicated keeping
// the first occurrence. The scenario is lowercased but not trimmed;
// the padded " lt "/" rt " tokens must see string edges exactly as
// the caller wrote them.
func triggeredModifierCodes(scenario string) []string {
	s := strings.ToLower(scenario)
	var codes []string
	seen := make(map[string]bool)
	for _, rule := range modifierTriggers {
		for _, phrase := range rule.phrases {
			if strings.Contains(s, phrase) {
				if !seen[rule.code] {
					seen[rule.code] = true
					codes = append(codes, rule.code)
				}
				break
			}
		}
	}
	return codes
}
