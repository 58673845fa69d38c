// Package planner decides which document categories are still worth asking
// for, given what a record already holds.
package planner

import (
	"strings"

	"github.com/joseph-ayodele/merchant-intake/constants"
)

// Requirement offers Category while any of Fields is missing.
type Requirement struct {
	Category constants.DocumentCategory
	Fields   []string
}

// Checklist is the static per-kind requirement list, in display order.
var Checklist = map[constants.RecordKind][]Requirement{
	constants.KindEntity: {
		{constants.CertInc, []string{constants.FieldCompanyName, constants.FieldRegistrationNumber, constants.FieldIncorporationDate}},
		{constants.CertIncumbency, []string{constants.FieldRegisteredAddress}},
		{constants.CertAddress, []string{constants.FieldRegisteredAddress}},
		{constants.EntityUtility, []string{constants.FieldRegisteredAddress}},
	},
	constants.KindOfficer: {
		{constants.PassportID, []string{constants.FieldFullName, constants.FieldPassportNumber, constants.FieldDOB}},
		{constants.PersonalUtility, []string{constants.FieldResidentialAddress}},
	},
}

// SuggestedCategories returns the categories to offer, or the single
// AllDataExtracted sentinel when nothing is missing.
func SuggestedCategories(fields map[string]string, kind constants.RecordKind) []constants.DocumentCategory {
	reqs, ok := Checklist[kind]
	if !ok {
		return nil
	}
	var out []constants.DocumentCategory
	for _, r := range reqs {
		if len(MissingOf(fields, r.Fields)) > 0 {
			out = append(out, r.Category)
		}
	}
	if len(out) == 0 {
		return []constants.DocumentCategory{constants.AllDataExtracted}
	}
	return out
}

// UploadEnabled is false for an officer until a role is chosen.
func UploadEnabled(officer map[string]string) bool {
	return strings.TrimSpace(officer[constants.FieldRole]) != ""
}

// OfficerCategories applies the role lock before the missing-field check.
func OfficerCategories(officer map[string]string) []constants.DocumentCategory {
	if !UploadEnabled(officer) {
		return nil
	}
	return SuggestedCategories(officer, constants.KindOfficer)
}

// Complete reports whether the record needs no further documents.
func Complete(fields map[string]string, kind constants.RecordKind) bool {
	s := SuggestedCategories(fields, kind)
	return len(s) == 1 && s[0] == constants.AllDataExtracted
}

// MissingOf returns the names in want that are blank in fields.
func MissingOf(fields map[string]string, want []string) []string {
	var missing []string
	for _, f := range want {
		if strings.TrimSpace(fields[f]) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}
