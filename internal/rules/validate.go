package rules

import "regexp"

// The validator is a quality gate: a rule that cannot prove itself against its
// own examples never reaches the decoding engines. Rules are accepted or
// rejected, never repaired.

// ValidateSerialRules partitions serial rules into accepted and issues.
func ValidateSerialRules(loaded []SerialRule) (accepted []SerialRule, issues []RuleIssue) {
	for _, r := range loaded {
		if issue := checkSerialRule(r); issue != "" {
			issues = append(issues, RuleIssue{
				RuleTable: "SerialDecodeRule",
				Brand:     r.Brand,
				Name:      r.StyleName,
				Kind:      issue,
			})
			continue
		}
		accepted = append(accepted, r)
	}
	return accepted, issues
}

func checkSerialRule(r SerialRule) string {
	if r.Kind == KindGuidance {
		if r.GuidanceAction == "" || r.GuidanceText == "" {
			return "guidance_missing_fields"
		}
		return ""
	}

	if r.SerialPattern == "" {
		return "missing_serial_pattern"
	}
	rx, err := regexp.Compile(r.SerialPattern)
	if err != nil {
		return "bad_pattern"
	}
	if len(r.ExampleSerials) == 0 {
		return "missing_examples"
	}
	for _, ex := range r.ExampleSerials {
		if rx.MatchString(ex) {
			return ""
		}
	}
	return "examples_do_not_match_pattern"
}

// ValidateAttributeRules partitions attribute rules into accepted and issues.
func ValidateAttributeRules(loaded []AttributeRule) (accepted []AttributeRule, issues []RuleIssue) {
	for _, r := range loaded {
		if issue := checkAttributeRule(r); issue != "" {
			issues = append(issues, RuleIssue{
				RuleTable: "AttributeDecodeRule",
				Brand:     r.Brand,
				Name:      r.AttributeName,
				Kind:      issue,
			})
			continue
		}
		accepted = append(accepted, r)
	}
	return accepted, issues
}

func checkAttributeRule(r AttributeRule) string {
	if r.Kind == KindGuidance {
		if r.GuidanceAction == "" || r.GuidanceText == "" {
			return "guidance_missing_fields"
		}
		return ""
	}

	if r.AttributeName == "" {
		return "missing_attribute_name"
	}
	if r.ModelPattern != "" {
		if _, err := regexp.Compile(r.ModelPattern); err != nil {
			return "bad_pattern"
		}
	}
	if r.Extraction.Positions == nil && len(r.Extraction.PositionList) == 0 && r.Extraction.Pattern == nil {
		return "extraction_missing_positions_or_pattern"
	}
	return ""
}
