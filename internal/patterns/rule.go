package patterns

import (
	"regexp"
	"strings"
)

// Rule extracts one candidate value from raw text. ok=false means "no match,
// try the next rule".
type Rule struct {
	Name    string
	Extract func(text string) (value string, ok bool)
}

// Chain is an ordered list of rules for one field. The first rule that
// matches wins; order encodes confidence, not completeness.
type Chain []Rule

// First runs the chain top to bottom and returns the first match and the rule
// name that produced it.
func (c Chain) First(text string) (value, rule string, ok bool) {
	for _, r := range c {
		if v, matched := r.Extract(text); matched {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			return v, r.Name, true
		}
	}
	return "", "", false
}

// FieldRules binds a chain to the field it fills.
type FieldRules struct {
	Field string
	Chain Chain
}

// Family is the rule set applied to one group of document categories.
type Family []FieldRules

// regexRule returns the whole match of re, transformed by norm when non-nil.
func regexRule(name string, re *regexp.Regexp, norm func(string) string) Rule {
	return Rule{
		Name: name,
		Extract: func(text string) (string, bool) {
			m := re.FindString(text)
			if m == "" {
				return "", false
			}
			if norm != nil {
				m = norm(m)
			}
			return m, true
		},
	}
}

// compact removes all whitespace and uppercases.
func compact(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// splitLines normalizes line endings and returns trimmed lines.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return lines
}
