package patterns

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/merchant-intake/constants"
)

const monthNames = `(?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)`

var (
	reGenericPrefixed = regexp.MustCompile(`\b([A-Z]{2})\s?(\d{5,8})\b`)
	reBareNumber      = regexp.MustCompile(`\b\d{6,8}\b`)

	reDateNumeric = regexp.MustCompile(`\b(?:0[1-9]|[12][0-9]|3[01])[/\-.](?:0[1-9]|1[0-2])[/\-.]\d{4}\b`)
	reDateAlpha   = regexp.MustCompile(`(?i)\b(?:0?[1-9]|[12][0-9]|3[01])\s+` + monthNames + `\.?,?\s+\d{4}\b`)
	reDateVerbose = regexp.MustCompile(`(?i)\b(?:0?[1-9]|[12][0-9]|3[01])(?:st|nd|rd|th)?\s+day\s+of\s+` + monthNames + `\s*,?\s+\d{4}\b`)

	reCompanyLine = regexp.MustCompile(`^[A-Z0-9 .,&'()\-/]+$`)
	reEntityToken = regexp.MustCompile(`\b(?:LIMITED|LTD|INC)\b`)
	reBoilerplate = regexp.MustCompile(`CERTIFY|CERTIFICATE`)
)

// Two-letter words that precede numbers on certificates without being a
// registry prefix ("NO 123456").
var prefixStopwords = map[string]struct{}{
	"NO": {}, "NR": {}, "ID": {}, "OF": {}, "ON": {}, "AT": {}, "IN": {}, "BY": {}, "TO": {}, "AS": {},
}

func entityFamily(reg *Registry) Family {
	return Family{
		{Field: constants.FieldCompanyName, Chain: Chain{companyNameRule()}},
		{Field: constants.FieldRegistrationNumber, Chain: Chain{
			jurisdictionRule(reg),
			genericPrefixedRule(),
			regexRule("bare-digits", reBareNumber, nil),
		}},
		{Field: constants.FieldIncorporationDate, Chain: Chain{
			regexRule("numeric-dmy", reDateNumeric, nil),
			regexRule("day-month-year", reDateAlpha, collapseSpaces),
			regexRule("verbose-legal", reDateVerbose, collapseSpaces),
		}},
		{Field: constants.FieldCountry, Chain: Chain{countryRule(reg)}},
	}
}

func jurisdictionRule(reg *Registry) Rule {
	return Rule{
		Name: "jurisdiction-prefix",
		Extract: func(text string) (string, bool) {
			v, _, ok := reg.MatchRegistration(text)
			return v, ok
		},
	}
}

func genericPrefixedRule() Rule {
	return Rule{
		Name: "two-letter-prefix",
		Extract: func(text string) (string, bool) {
			for _, m := range reGenericPrefixed.FindAllStringSubmatch(text, -1) {
				if _, stop := prefixStopwords[m[1]]; stop {
					continue
				}
				return m[1] + m[2], true
			}
			return "", false
		},
	}
}

// companyNameRule picks the first all-caps line naming a legal entity that is
// not certificate boilerplate.
func companyNameRule() Rule {
	return Rule{
		Name: "uppercase-entity-line",
		Extract: func(text string) (string, bool) {
			for _, line := range splitLines(text) {
				if line == "" || !reCompanyLine.MatchString(line) {
					continue
				}
				if !strings.ContainsFunc(line, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
					continue
				}
				if !reEntityToken.MatchString(line) || reBoilerplate.MatchString(line) {
					continue
				}
				return collapseSpaces(line), true
			}
			return "", false
		},
	}
}

func countryRule(reg *Registry) Rule {
	return Rule{
		Name: "jurisdiction-signal",
		Extract: func(text string) (string, bool) {
			return reg.InferCountry(text)
		},
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
