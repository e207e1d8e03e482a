package rules

import "sort"

// Rule priority is a total order per brand: lower sorts first and is tried
// first by the serial engine. An explicit stored priority always wins; absent
// that, priority is computed from the rule itself so that curated, narrow
// rules outrank generic mined fallbacks for the same brand.

const (
	curatedPriorityBoost = 1000
	mappingPriorityBoost = 100
)

// EffectivePriority returns the rule's explicit priority if set, else a
// computed one: curated rules first, then rules with a year mapping table,
// then by pattern specificity.
func EffectivePriority(r SerialRule) int {
	if r.Priority != nil {
		return *r.Priority
	}

	p := 0
	if r.Curated() {
		p -= curatedPriorityBoost
	}
	if len(r.Year.Mapping) > 0 {
		p -= mappingPriorityBoost
	}
	p -= int(SpecificityScore(r.SerialPattern))
	return p
}

// SortByPriority orders rules brand-first, then by effective priority
// ascending. The sort is stable so equal-priority rules keep their source
// order, and it happens once per load rather than per decode.
func SortByPriority(list []SerialRule) []SerialRule {
	out := make([]SerialRule, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Brand != out[j].Brand {
			return out[i].Brand < out[j].Brand
		}
		return EffectivePriority(out[i]) < EffectivePriority(out[j])
	})
	return out
}
