package rules

import "strings"

// SpecificityScore is a heuristic measure of how narrowly a regex constrains
// its matches. Higher means more specific. Inputs are deliberately shallow
// (no regex parsing): literal alphanumeric characters count for, wildcard
// constructs count heavily against, character classes count slightly against,
// and anchors count for.
//
// The score exists to order competing rules for the same brand, so only its
// relative ordering matters. It is a pure function and is pinned by tests;
// changing the weights reorders rule precedence across every brand.
func SpecificityScore(pattern string) float64 {
	if pattern == "" {
		return 0
	}

	literals := 0
	for _, ch := range pattern {
		if ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' {
			literals++
		}
	}
	wildcards := strings.Count(pattern, ".*") + strings.Count(pattern, ".+") + strings.Count(pattern, ".?")
	charClasses := strings.Count(pattern, "[")
	anchors := strings.Count(pattern, "^") + strings.Count(pattern, "$")

	return float64(literals) - 2*float64(wildcards) - 0.5*float64(charClasses) + float64(anchors)
}
