package decoder

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/nameplate-cli/internal/normalize"
	"github.com/sells-group/nameplate-cli/internal/rules"
)

// DecodedAttribute is one decoded physical attribute. Value is a string
// unless the rule declared a numeric data type, in which case it is float64.
type DecodedAttribute struct {
	AttributeName string           `json:"attribute_name"`
	ValueRaw      string           `json:"value_raw"`
	Value         any              `json:"value"`
	Units         string           `json:"units,omitempty"`
	Confidence    rules.Confidence `json:"confidence"`
	Evidence      string           `json:"evidence,omitempty"`
	Source        string           `json:"source,omitempty"`
	// TypedRuleAppliedWithoutTypeContext flags values produced by a
	// type-scoped rule when the caller never said what the equipment is.
	// A soft warning for downstream consumers, not an error.
	TypedRuleAppliedWithoutTypeContext bool `json:"typed_rule_applied_without_type_context,omitempty"`
}

// AttributeCandidate is one eligible rule application, retained in full by
// the auditing decode variant.
type AttributeCandidate struct {
	Decoded     DecodedAttribute `json:"decoded"`
	Specificity float64          `json:"specificity"`
	Curated     bool             `json:"curated"`
	TypeScoped  bool             `json:"type_scoped"`
}

// AttributeAudit is the auditing variant's output: the winners plus every
// candidate and the number of attributes where two or more distinct values
// were eligible.
type AttributeAudit struct {
	Selected   []DecodedAttribute   `json:"selected"`
	Candidates []AttributeCandidate `json:"candidates"`
	Conflicts  int                  `json:"conflicts"`
}

type compiledAttrRule struct {
	rule    rules.AttributeRule
	modelRx *regexp.Regexp // nil = brand-wide rule
	types   map[string]struct{}
}

// AttributeDecoder matches model numbers against brand- and equipment-type-
// scoped attribute rules and resolves conflicts deterministically.
type AttributeDecoder struct {
	byBrand map[string][]compiledAttrRule
}

// NewAttributeDecoder indexes accepted decode rules by brand. Guidance rules
// carry no extraction and are not decode candidates.
func NewAttributeDecoder(accepted []rules.AttributeRule) *AttributeDecoder {
	d := &AttributeDecoder{byBrand: make(map[string][]compiledAttrRule)}
	for _, r := range accepted {
		if r.Kind != rules.KindDecode {
			continue
		}
		c := compiledAttrRule{rule: r}
		if r.ModelPattern != "" {
			rx, err := regexp.Compile(r.ModelPattern)
			if err != nil {
				continue
			}
			c.modelRx = rx
		}
		if len(r.EquipmentTypes) > 0 {
			c.types = make(map[string]struct{}, len(r.EquipmentTypes))
			for _, et := range r.EquipmentTypes {
				c.types[normalize.Text(et)] = struct{}{}
			}
		}
		d.byBrand[r.Brand] = append(d.byBrand[r.Brand], c)
	}
	return d
}

// Decode returns at most one DecodedAttribute per attribute name for the
// given brand, model string, and optional equipment-type context ("" means
// unknown).
func (d *AttributeDecoder) Decode(brand, modelRaw, equipmentType string) []DecodedAttribute {
	return d.DecodeAudit(brand, modelRaw, equipmentType).Selected
}

// DecodeAudit is Decode plus full candidate visibility for quality review.
func (d *AttributeDecoder) DecodeAudit(brand, modelRaw, equipmentType string) AttributeAudit {
	model := normalize.Model(modelRaw)
	if model == "" {
		return AttributeAudit{}
	}
	typeCtx := normalize.Text(equipmentType)

	var candidates []AttributeCandidate
	for _, c := range d.byBrand[brand] {
		cand, ok := d.evaluate(c, model, typeCtx)
		if !ok {
			continue
		}
		candidates = append(candidates, cand)
	}

	eligible := preferTypeScoped(candidates, typeCtx != "")
	selected, conflicts := pickWinners(eligible)

	return AttributeAudit{Selected: selected, Candidates: candidates, Conflicts: conflicts}
}

func (d *AttributeDecoder) evaluate(c compiledAttrRule, model, typeCtx string) (AttributeCandidate, bool) {
	if c.modelRx != nil && !c.modelRx.MatchString(model) {
		return AttributeCandidate{}, false
	}

	typedWithoutCtx := false
	if c.types != nil {
		if typeCtx == "" {
			typedWithoutCtx = true
		} else if _, ok := c.types[typeCtx]; !ok {
			return AttributeCandidate{}, false
		}
	}

	e := c.rule.Extraction
	raw, ok := extractRaw(model, e)
	if !ok {
		return AttributeCandidate{}, false
	}

	var value any = raw
	mapped, hadMapping := lookupMapping(raw, e.Mapping)
	if hadMapping {
		value = mapped
	}
	hadTransform := false
	if e.Transform != nil && e.Transform.Kind == rules.TransformDivide {
		if num, err := strconv.ParseFloat(strings.TrimSpace(valueString(value)), 64); err == nil {
			value = num / e.Transform.Divisor
			hadTransform = true
		}
	}
	if e.DataType == "number" {
		if s, isStr := value.(string); isStr {
			if num, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				value = num
			}
		}
	}

	confidence := rules.ConfidenceMedium
	if hadMapping || hadTransform || e.NumericFinal {
		confidence = rules.ConfidenceHigh
	}

	return AttributeCandidate{
		Decoded: DecodedAttribute{
			AttributeName:                      c.rule.AttributeName,
			ValueRaw:                           raw,
			Value:                              value,
			Units:                              c.rule.Units,
			Confidence:                         confidence,
			Evidence:                           c.rule.Provenance.Evidence,
			Source:                             c.rule.Provenance.Source,
			TypedRuleAppliedWithoutTypeContext: typedWithoutCtx,
		},
		Specificity: specificity(c.rule),
		Curated:     c.rule.Curated(),
		TypeScoped:  c.types != nil,
	}, true
}

// specificity scores how much deliberate narrowing went into a rule: a model
// pattern beats brand-wide, position extraction beats pattern extraction, and
// a mapping or transform means someone did the work to make the value
// unambiguous.
func specificity(r rules.AttributeRule) float64 {
	score := 0.0
	if r.ModelPattern != "" {
		score += 5 + rules.SpecificityScore(r.ModelPattern)
	}
	e := r.Extraction
	switch e.Method() {
	case rules.MethodSpan, rules.MethodPositionList:
		score += 3
	case rules.MethodPattern:
		score += 2 + rules.SpecificityScore(e.Pattern.Regex)
	}
	if len(e.Mapping) > 0 {
		score += 2
	}
	if e.Transform != nil {
		score += 1
	}
	return score
}

// preferTypeScoped drops type-agnostic candidates for any attribute that has
// at least one type-scoped candidate, but only when the caller's equipment
// type is actually known.
func preferTypeScoped(candidates []AttributeCandidate, typeKnown bool) []AttributeCandidate {
	if !typeKnown {
		return candidates
	}
	hasScoped := make(map[string]bool)
	for _, c := range candidates {
		if c.TypeScoped {
			hasScoped[c.Decoded.AttributeName] = true
		}
	}
	var out []AttributeCandidate
	for _, c := range candidates {
		if hasScoped[c.Decoded.AttributeName] && !c.TypeScoped {
			continue
		}
		out = append(out, c)
	}
	return out
}

// pickWinners selects exactly one candidate per attribute name: highest
// confidence, then curated source, then specificity, then a stable value
// string tie-break. Re-running selection on the same candidates always yields
// the same winner.
func pickWinners(eligible []AttributeCandidate) ([]DecodedAttribute, int) {
	byAttr := make(map[string][]AttributeCandidate)
	for _, c := range eligible {
		byAttr[c.Decoded.AttributeName] = append(byAttr[c.Decoded.AttributeName], c)
	}

	conflicts := 0
	winners := make([]AttributeCandidate, 0, len(byAttr))
	for _, cands := range byAttr {
		distinct := make(map[string]struct{})
		for _, c := range cands {
			distinct[valueString(c.Decoded.Value)] = struct{}{}
		}
		if len(distinct) >= 2 {
			conflicts++
		}

		best := cands[0]
		for _, c := range cands[1:] {
			if betterCandidate(c, best) {
				best = c
			}
		}
		winners = append(winners, best)
	}

	sort.Slice(winners, func(i, j int) bool {
		a, b := winners[i], winners[j]
		if ra, rb := a.Decoded.Confidence.Rank(), b.Decoded.Confidence.Rank(); ra != rb {
			return ra > rb
		}
		if a.Specificity != b.Specificity {
			return a.Specificity > b.Specificity
		}
		return a.Decoded.AttributeName < b.Decoded.AttributeName
	})

	out := make([]DecodedAttribute, len(winners))
	for i, w := range winners {
		out[i] = w.Decoded
	}
	return out, conflicts
}

func betterCandidate(a, b AttributeCandidate) bool {
	if ra, rb := a.Decoded.Confidence.Rank(), b.Decoded.Confidence.Rank(); ra != rb {
		return ra > rb
	}
	if a.Curated != b.Curated {
		return a.Curated
	}
	if a.Specificity != b.Specificity {
		return a.Specificity > b.Specificity
	}
	if va, vb := valueString(a.Decoded.Value), valueString(b.Decoded.Value); va != vb {
		return va > vb
	}
	return a.Decoded.AttributeName < b.Decoded.AttributeName
}

func valueString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
