// Package reconcile combines the two engine results into one field patch.
// Merge is pure: no I/O, no errors, no shared state.
package reconcile

import (
	"sort"
	"strings"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/extract"
)

type Source string

const (
	SourceRemote   Source = "remote"
	SourceLocal    Source = "local"
	SourceExisting Source = "existing"
)

// Disagreement is a field both engines filled with different values.
type Disagreement struct {
	Field  string `json:"field"`
	Remote string `json:"remote"`
	Local  string `json:"local"`
}

// Patch is the merged record for one upload. Fields holds every field that
// has a value after the merge; absent fields stay absent.
type Patch struct {
	Fields        map[string]string `json:"fields"`
	Sources       map[string]Source `json:"sources"`
	Disagreements []Disagreement    `json:"disagreements,omitempty"`
}

// Changed returns the fields whose value differs from current.
func (p Patch) Changed(current map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range p.Fields {
		if current[k] != v {
			out[k] = v
		}
	}
	return out
}

// CountBySource tallies how many fields each source won.
func (p Patch) CountBySource() map[Source]int {
	out := make(map[Source]int, 3)
	for _, s := range p.Sources {
		out[s]++
	}
	return out
}

// Merge picks, per field the category can fill, the remote value, else the
// local value, else the current value. Fields outside the category are left
// out of the patch.
func Merge(category constants.DocumentCategory, remote, local extract.Result, current map[string]string) Patch {
	p := Patch{
		Fields:  make(map[string]string),
		Sources: make(map[string]Source),
	}
	for _, field := range constants.ExtractableFields(category) {
		r := valueOf(remote, field)
		l := valueOf(local, field)

		switch {
		case r != "":
			p.Fields[field] = r
			p.Sources[field] = SourceRemote
		case l != "":
			p.Fields[field] = l
			p.Sources[field] = SourceLocal
		default:
			if c := strings.TrimSpace(current[field]); c != "" {
				p.Fields[field] = current[field]
				p.Sources[field] = SourceExisting
			}
		}

		if r != "" && l != "" && foldValue(r) != foldValue(l) {
			p.Disagreements = append(p.Disagreements, Disagreement{Field: field, Remote: r, Local: l})
		}
	}
	sort.Slice(p.Disagreements, func(i, j int) bool { return p.Disagreements[i].Field < p.Disagreements[j].Field })
	return p
}

func valueOf(r extract.Result, field string) string {
	v, ok := r.Fields[field]
	if !ok || v.IsEmpty() {
		return ""
	}
	return strings.TrimSpace(v.Unwrap())
}

// foldValue folds case and whitespace so "HE 274180" and "he274180" agree.
func foldValue(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
