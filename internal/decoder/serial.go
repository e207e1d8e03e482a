// Package decoder implements the serial and attribute decoding engines.
// Engines are built once over validated, immutable rules and every decode
// call is a pure synchronous computation, so concurrent callers are safe
// by construction.
package decoder

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/nameplate-cli/internal/normalize"
	"github.com/sells-group/nameplate-cli/internal/rules"
)

// Bounds are caller-supplied plausibility limits on decoded manufacture years.
// Zero means unbounded on that side.
type Bounds struct {
	MinYear int
	MaxYear int
}

// DefaultMinYear guards against obviously obsolete decodes on modern
// equipment. Returning no decode beats returning a wrong year.
const DefaultMinYear = 1980

// SerialResult is the outcome of one serial decode. A zero Matched means no
// deterministic decode; Notes then carries any applicable guidance text.
type SerialResult struct {
	Matched          bool       `json:"matched"`
	MatchedStyleName string     `json:"matched_style_name,omitempty"`
	YearRaw          string     `json:"manufacture_year_raw,omitempty"`
	Year             *int       `json:"manufacture_year,omitempty"`
	MonthRaw         string     `json:"manufacture_month_raw,omitempty"`
	Month            *int       `json:"manufacture_month,omitempty"`
	WeekRaw          string     `json:"manufacture_week_raw,omitempty"`
	Week             *int       `json:"manufacture_week,omitempty"`
	AmbiguousDecade  bool       `json:"ambiguous_decade"`
	Confidence       rules.Confidence `json:"confidence"`
	Evidence         string     `json:"evidence,omitempty"`
	Source           string     `json:"source,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

type compiledSerialRule struct {
	rule rules.SerialRule
	rx   *regexp.Regexp
}

// SerialDecoder matches normalized serials against brand-scoped decode rules
// in priority order, first match wins.
type SerialDecoder struct {
	decodeByBrand   map[string][]compiledSerialRule
	guidanceByBrand map[string][]rules.SerialRule
	now             func() time.Time
}

// NewSerialDecoder indexes accepted rules by brand and sorts each brand's
// decode rules by effective priority once, up front.
func NewSerialDecoder(accepted []rules.SerialRule) *SerialDecoder {
	d := &SerialDecoder{
		decodeByBrand:   make(map[string][]compiledSerialRule),
		guidanceByBrand: make(map[string][]rules.SerialRule),
		now:             time.Now,
	}
	for _, r := range rules.SortByPriority(accepted) {
		if r.Kind == rules.KindGuidance {
			d.guidanceByBrand[r.Brand] = append(d.guidanceByBrand[r.Brand], r)
			continue
		}
		rx, err := regexp.Compile(r.SerialPattern)
		if err != nil {
			// Validation rejects uncompilable patterns; an unvalidated rule
			// slipping through is silently unusable rather than fatal.
			continue
		}
		d.decodeByBrand[r.Brand] = append(d.decodeByBrand[r.Brand], compiledSerialRule{rule: r, rx: rx})
	}
	return d
}

// Decode attempts to extract a manufacture date from a raw serial for the
// given canonical brand. Candidates are tried in priority order and the first
// pattern match with a plausible year wins; an implausible year moves on to
// the next candidate instead of being returned.
func (d *SerialDecoder) Decode(brand, serialRaw string, bounds Bounds) SerialResult {
	serial := normalize.Serial(serialRaw)
	if serial == "" {
		return SerialResult{Confidence: rules.ConfidenceNone, Notes: "empty serial"}
	}

	for _, c := range d.decodeByBrand[brand] {
		if !c.rx.MatchString(serial) {
			continue
		}
		if res, ok := d.decodeWithRule(c.rule, serial, bounds); ok {
			return res
		}
	}

	return SerialResult{
		Confidence: rules.ConfidenceNone,
		Notes:      d.guidanceNotes(brand),
	}
}

func (d *SerialDecoder) decodeWithRule(r rules.SerialRule, serial string, bounds Bounds) (SerialResult, bool) {
	yearRaw, yearOK := extractRaw(serial, r.Year)
	if !yearOK {
		return SerialResult{}, false
	}
	year, ok := resolveCode(yearRaw, r.Year)
	if !ok {
		return SerialResult{}, false
	}

	viaMapping := len(r.Year.Mapping) > 0
	tr := r.Year.Transform

	// YY codes without an explicit base get century inference pivoting just
	// past the current year, so future years cannot appear.
	if year >= 0 && year <= 99 && isTwoDigit(yearRaw, r.Year) {
		year = inferCentury(year, d.now().Year())
	}
	if tr != nil && tr.Kind == rules.TransformYearAddBase {
		year += tr.Base
	}

	if !yearPlausible(year, r, bounds, d.now().Year()) {
		return SerialResult{}, false
	}

	res := SerialResult{
		Matched:          true,
		MatchedStyleName: r.StyleName,
		YearRaw:          yearRaw,
		Year:             &year,
		Evidence:         r.Provenance.Evidence,
		Source:           r.Provenance.Source,
	}

	if monthRaw, ok := extractRaw(serial, r.Month); ok {
		res.MonthRaw = monthRaw
		if month, ok := resolveCode(monthRaw, r.Month); ok {
			res.Month = &month
		}
	}
	if weekRaw, ok := extractRaw(serial, r.Week); ok {
		res.WeekRaw = weekRaw
		if week, ok := resolveCode(weekRaw, r.Week); ok {
			res.Week = &week
		}
	}

	// A short reused year code is ambiguous even when the rule forgot to say so.
	res.AmbiguousDecade = r.Ambiguity.IsAmbiguous || (isDigits(yearRaw) && len(yearRaw) != 4)

	switch {
	case res.AmbiguousDecade:
		res.Confidence = rules.ConfidenceMedium
	case res.Month != nil || res.Week != nil || viaMapping || tr != nil:
		res.Confidence = rules.ConfidenceHigh
	default:
		res.Confidence = rules.ConfidenceLow
	}
	return res, true
}

// yearPlausible applies, in order: the rule transform's declared bounds, the
// era bounds inferred from the style label, the next-year ceiling, and the
// caller's bounds.
func yearPlausible(year int, r rules.SerialRule, bounds Bounds, nowYear int) bool {
	if tr := r.Year.Transform; tr != nil {
		if tr.MinYear != 0 && year < tr.MinYear {
			return false
		}
		if tr.MaxYear != 0 && year > tr.MaxYear {
			return false
		}
	}
	styleMin, styleMax := styleYearBounds(r.StyleName)
	if styleMin != 0 && year < styleMin {
		return false
	}
	if styleMax != 0 && year > styleMax {
		return false
	}
	if year > nowYear+1 {
		return false
	}
	if bounds.MinYear != 0 && year < bounds.MinYear {
		return false
	}
	if bounds.MaxYear != 0 && year > bounds.MaxYear {
		return false
	}
	return true
}

func (d *SerialDecoder) guidanceNotes(brand string) string {
	var notes []string
	for _, g := range d.guidanceByBrand[brand] {
		if g.GuidanceText == "" {
			continue
		}
		notes = append(notes, g.GuidanceText)
		if len(notes) == 3 {
			break
		}
	}
	return strings.Join(notes, " | ")
}

var styleRangeRe = regexp.MustCompile(`(19\d{2}|20\d{2})\s*[-–]\s*(19\d{2}|20\d{2})`)
var stylePlusRe = regexp.MustCompile(`(19\d{2}|20\d{2})\s*\+`)
var styleBeforeRe = regexp.MustCompile(`(?:PRIOR TO|BEFORE)\s*(19\d{2}|20\d{2})`)
var styleAfterRe = regexp.MustCompile(`(?:AFTER|SINCE)\s*(19\d{2}|20\d{2})`)

// styleYearBounds recovers intended era bounds from a human style label like
// "Style 3: 2002-2009" when the rule lacks explicit transform bounds. Zero
// means unbounded.
func styleYearBounds(styleName string) (min, max int) {
	if styleName == "" {
		return 0, 0
	}
	s := strings.ToUpper(styleName)

	if m := styleRangeRe.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		if a > b {
			a, b = b, a
		}
		return a, b
	}
	if m := stylePlusRe.FindStringSubmatch(s); m != nil {
		min, _ = strconv.Atoi(m[1])
		return min, 0
	}
	if m := styleBeforeRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		return 0, y - 1
	}
	if m := styleAfterRe.FindStringSubmatch(s); m != nil {
		min, _ = strconv.Atoi(m[1])
		return min, 0
	}
	return 0, 0
}

// inferCentury converts YY to YYYY with a pivot just past the current year:
// codes up to current-YY+1 read as 20YY, the rest as 19YY.
func inferCentury(twoDigit, nowYear int) int {
	if twoDigit <= nowYear%100+1 {
		return 2000 + twoDigit
	}
	return 1900 + twoDigit
}

func isTwoDigit(raw string, e rules.Extraction) bool {
	if len(raw) != 2 || !isDigits(raw) {
		return false
	}
	return e.Transform == nil || e.Transform.Kind != rules.TransformYearAddBase
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
