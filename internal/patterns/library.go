// Package patterns holds the ordered regex and heuristic rules the local
// engine applies to OCR text. Each field has a chain of rules evaluated top to
// bottom; the first match wins.
package patterns

import (
	"github.com/joseph-ayodele/merchant-intake/constants"
)

// Version identifies the rule set; it is stored with every extraction run.
const Version = "2025.3"

// Match records which rule produced a field value.
type Match struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Rule  string `json:"rule"`
}

type Library struct {
	registry *Registry
	entity   Family
	identity Family
}

// NewLibrary builds the rule families over reg. Rules read reg at evaluation
// time, so jurisdictions registered later take effect immediately.
func NewLibrary(reg *Registry) *Library {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Library{
		registry: reg,
		entity:   entityFamily(reg),
		identity: identityFamily(),
	}
}

// Default returns a library over the built-in jurisdictions.
func Default() *Library {
	return NewLibrary(nil)
}

func (l *Library) Registry() *Registry { return l.registry }

// family picks the rule set for a category. Explain then keeps only the
// rules whose field the category can fill.
func (l *Library) family(category constants.DocumentCategory) Family {
	switch category {
	case constants.CertInc, constants.CertIncumbency:
		return l.entity
	case constants.PassportID:
		return l.identity
	default:
		return nil
	}
}

// Apply returns the fields found in rawText for the category. Fields with no
// match are absent.
func (l *Library) Apply(rawText string, category constants.DocumentCategory) map[string]string {
	out := make(map[string]string)
	for _, m := range l.Explain(rawText, category) {
		out[m.Field] = m.Value
	}
	return out
}

// Explain is Apply with the winning rule name per field.
func (l *Library) Explain(rawText string, category constants.DocumentCategory) []Match {
	fam := l.family(category)
	if len(fam) == 0 || rawText == "" {
		return nil
	}
	var matches []Match
	for _, fr := range fam {
		if !constants.IsExtractable(category, fr.Field) {
			continue
		}
		if v, rule, ok := fr.Chain.First(rawText); ok {
			matches = append(matches, Match{Field: fr.Field, Value: v, Rule: rule})
		}
	}
	return matches
}
