// Package normalize canonicalizes manufacturer names and nameplate identifier
// strings into comparison-safe forms.
package normalize

import (
	"regexp"
	"strings"
)

// UnknownBrand is returned for empty or unrecognizable manufacturer input.
const UnknownBrand = "UNKNOWN"

var (
	multiSpaceRe = regexp.MustCompile(`\s+`)
	separatorRe  = regexp.MustCompile(`[\s\-_/]+`)
)

// Text standardizes free text for comparison: trim, collapse whitespace, uppercase.
func Text(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.ToUpper(multiSpaceRe.ReplaceAllString(s, " "))
}

// Serial normalizes a serial number. Separators (space, dash, underscore, slash)
// are stripped because serial formatting varies freely between nameplate photos,
// data entry, and vendor documentation.
func Serial(s string) string {
	return separatorRe.ReplaceAllString(Text(s), "")
}

// Model normalizes a model number. Separators are retained: model-number
// formatting is frequently significant to attribute rules.
func Model(s string) string {
	return Text(s)
}

// brandFamilies merges historical manufacturer names that share one rule set
// into a single canonical brand key.
var brandFamilies = map[string]string{
	"GE":                "GENERAL ELECTRIC",
	"GENERAL ELECTRIC":  "GENERAL ELECTRIC",
	"JOHNSON CONTROLS":  "YORK/JCI",
	"YORK":              "YORK/JCI",
	"COLEMAN":           "YORK/JCI",
	"LUXAIRE":           "YORK/JCI",
	"TRANE":             "TRANE",
	"AMERICAN STANDARD": "AMERICAN STANDARD",
	"LENNOX":            "LENNOX",
	"CARRIER":           "CARRIER/ICP",
	"BRYANT":            "CARRIER/ICP",
	"ICP":               "CARRIER/ICP",
	"TEMPSTAR":          "CARRIER/ICP",
	"HEIL":              "CARRIER/ICP",
	"COMFORTMAKER":      "CARRIER/ICP",
	"RHEEM":             "RHEEM/RUUD",
	"RUUD":              "RHEEM/RUUD",
	"GOODMAN":           "GOODMAN/AMANA/DAIKIN",
	"AMANA":             "GOODMAN/AMANA/DAIKIN",
	"DAIKIN":            "GOODMAN/AMANA/DAIKIN",
	"TELEDYNE":          "TELEDYNE LAARS",
	"TELEDYNE LAARS":    "TELEDYNE LAARS",
	"LAARS":             "LAARS",
	"CLIMATE MASTER":    "CLIMATE MASTER",
	"AAON":              "AAON",
	"MITSUBISHI":        "MITSUBISHI",
	"LG":                "LG",
}

// Brand canonicalizes a free-text manufacturer name into a brand key.
//
// Resolution is two-stage: first the caller-supplied alias table (normalized raw
// name -> canonical brand, promoted with each ruleset so new aliases need no code
// change), then the built-in brand family table. Unknown input passes through
// normalized; empty input maps to UnknownBrand.
func Brand(s string, aliases map[string]string) string {
	t := Text(s)
	if t == "" {
		return UnknownBrand
	}
	if aliases != nil {
		if mapped, ok := aliases[t]; ok && mapped != "" {
			t = Text(mapped)
		}
	}
	if family, ok := brandFamilies[t]; ok {
		return family
	}
	return t
}
