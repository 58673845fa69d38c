package patterns

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Jurisdiction describes one registry's company-number format and the words
// that identify its documents.
type Jurisdiction struct {
	Code    string
	Country string
	// Registration matches a registration number including its prefix. Optional.
	Registration *regexp.Regexp
	// Keywords are matched case-insensitively on word boundaries.
	Keywords []string

	keywordRe *regexp.Regexp
}

func (j *Jurisdiction) compile() {
	if len(j.Keywords) == 0 {
		j.keywordRe = nil
		return
	}
	quoted := make([]string, 0, len(j.Keywords))
	for _, k := range j.Keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(k), " ", `\s+`))
	}
	if len(quoted) == 0 {
		return
	}
	j.keywordRe = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Registry is an ordered, extensible list of jurisdictions. Earlier entries
// win when several match.
type Registry struct {
	mu    sync.RWMutex
	items []*Jurisdiction
}

func NewRegistry(items ...Jurisdiction) *Registry {
	r := &Registry{}
	for _, j := range items {
		r.Register(j)
	}
	return r
}

// Register appends j, or replaces an entry with the same code in place.
func (r *Registry) Register(j Jurisdiction) {
	jj := j
	jj.Keywords = append([]string(nil), j.Keywords...)
	jj.compile()

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.items {
		if strings.EqualFold(existing.Code, jj.Code) {
			r.items[i] = &jj
			return
		}
	}
	r.items = append(r.items, &jj)
}

func (r *Registry) snapshot() []*Jurisdiction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Jurisdiction(nil), r.items...)
}

// Codes returns the registered codes in priority order.
func (r *Registry) Codes() []string {
	items := r.snapshot()
	out := make([]string, len(items))
	for i, j := range items {
		out[i] = j.Code
	}
	return out
}

// MatchRegistration returns the first jurisdiction-specific registration number.
func (r *Registry) MatchRegistration(text string) (string, *Jurisdiction, bool) {
	for _, j := range r.snapshot() {
		if j.Registration == nil {
			continue
		}
		if m := j.Registration.FindString(text); m != "" {
			return compact(m), j, true
		}
	}
	return "", nil, false
}

// InferCountry checks registration prefixes first, then keywords, each in
// registry order.
func (r *Registry) InferCountry(text string) (string, bool) {
	items := r.snapshot()
	for _, j := range items {
		if j.Registration != nil && j.Country != "" && j.Registration.MatchString(text) {
			return j.Country, true
		}
	}
	for _, j := range items {
		if j.keywordRe != nil && j.Country != "" && j.keywordRe.MatchString(text) {
			return j.Country, true
		}
	}
	return "", false
}

// DefaultJurisdictions are the built-in entries in priority order.
func DefaultJurisdictions() []Jurisdiction {
	return []Jurisdiction{
		{
			Code:         "CY",
			Country:      "Cyprus",
			Registration: regexp.MustCompile(`(?i)\b(?:HE|SE|AE)\s?\d{5,6}\b`),
			Keywords:     []string{"Cyprus", "Nicosia", "Limassol", "Larnaca"},
		},
		{
			Code:         "GB",
			Country:      "United Kingdom",
			Registration: regexp.MustCompile(`\b(?:SC|NI|OC|SO|NC|LP)\s?\d{6}\b`),
			Keywords:     []string{"England and Wales", "Companies House", "United Kingdom", "Scotland"},
		},
		{Code: "MT", Country: "Malta", Keywords: []string{"Malta", "Valletta"}},
		{Code: "VG", Country: "British Virgin Islands", Keywords: []string{"British Virgin Islands", "BVI", "Tortola"}},
		{Code: "SC", Country: "Seychelles", Keywords: []string{"Seychelles"}},
		{Code: "GI", Country: "Gibraltar", Keywords: []string{"Gibraltar"}},
		{Code: "IE", Country: "Ireland", Keywords: []string{"Ireland", "Dublin"}},
		{Code: "EE", Country: "Estonia", Keywords: []string{"Estonia", "Tallinn"}},
		{Code: "AE", Country: "United Arab Emirates", Keywords: []string{"United Arab Emirates", "Dubai", "Abu Dhabi"}},
		{Code: "SG", Country: "Singapore", Keywords: []string{"Singapore"}},
	}
}

// DefaultRegistry returns a fresh registry holding the built-ins.
func DefaultRegistry() *Registry {
	return NewRegistry(DefaultJurisdictions()...)
}

type yamlJurisdiction struct {
	Code         string   `yaml:"code"`
	Country      string   `yaml:"country"`
	Registration string   `yaml:"registration"`
	Keywords     []string `yaml:"keywords"`
}

type yamlRegistry struct {
	Jurisdictions []yamlJurisdiction `yaml:"jurisdictions"`
}

// LoadYAML registers every jurisdiction in r. Entries with an existing code
// replace it; new codes are appended after the built-ins.
//
//	jurisdictions:
//	  - code: MH
//	    country: Marshall Islands
//	    registration: '\b\d{5}\b'
//	    keywords: [Marshall Islands, Majuro]
func (r *Registry) LoadYAML(in io.Reader) (int, error) {
	var doc yamlRegistry
	if err := yaml.NewDecoder(in).Decode(&doc); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("decode jurisdictions: %w", err)
	}
	for i, yj := range doc.Jurisdictions {
		if strings.TrimSpace(yj.Code) == "" {
			return i, fmt.Errorf("jurisdiction %d: code is required", i)
		}
		j := Jurisdiction{Code: yj.Code, Country: yj.Country, Keywords: yj.Keywords}
		if yj.Registration != "" {
			re, err := regexp.Compile(yj.Registration)
			if err != nil {
				return i, fmt.Errorf("jurisdiction %s: compile registration: %w", yj.Code, err)
			}
			j.Registration = re
		}
		r.Register(j)
	}
	return len(doc.Jurisdictions), nil
}
