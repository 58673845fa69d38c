package constants

import (
	"strings"
)

// DocumentCategory tags what kind of evidence an uploaded file represents.
// The string values are shared with the remote analyzer and must not change.
type DocumentCategory string

const (
	CertInc         DocumentCategory = "CERT_INC"
	CertIncumbency  DocumentCategory = "CERT_INCUMBENCY"
	CertAddress     DocumentCategory = "CERT_ADDRESS"
	EntityUtility   DocumentCategory = "ENTITY_UTILITY"
	PassportID      DocumentCategory = "PASSPORT_ID"
	PersonalUtility DocumentCategory = "PERSONAL_UTILITY"

	// AllDataExtracted is a planner sentinel, not an uploadable category.
	AllDataExtracted DocumentCategory = "ALL_DATA_EXTRACTED"
)

// RecordKind is the record a category writes into.
type RecordKind string

const (
	KindEntity  RecordKind = "entity"
	KindOfficer RecordKind = "officer"
)

var entityCategories = []DocumentCategory{
	CertInc,
	CertIncumbency,
	CertAddress,
	EntityUtility,
}

var officerCategories = []DocumentCategory{
	PassportID,
	PersonalUtility,
}

// Kind reports which record the category belongs to. The sentinel and unknown
// values report "".
func (c DocumentCategory) Kind() RecordKind {
	for _, e := range entityCategories {
		if c == e {
			return KindEntity
		}
	}
	for _, o := range officerCategories {
		if c == o {
			return KindOfficer
		}
	}
	return ""
}

// Valid is true for every uploadable category.
func (c DocumentCategory) Valid() bool { return c.Kind() != "" }

func (c DocumentCategory) String() string { return string(c) }

// CategoriesFor returns the uploadable categories of a record kind in display order.
func CategoriesFor(kind RecordKind) []DocumentCategory {
	switch kind {
	case KindEntity:
		return append([]DocumentCategory(nil), entityCategories...)
	case KindOfficer:
		return append([]DocumentCategory(nil), officerCategories...)
	default:
		return nil
	}
}

func AllCategoriesAsStrings() []string {
	all := append(CategoriesFor(KindEntity), CategoriesFor(KindOfficer)...)
	result := make([]string, len(all))
	for i, c := range all {
		result[i] = string(c)
	}
	return result
}

// ParseCategory accepts the exact token or a few human spellings.
func ParseCategory(input string) (DocumentCategory, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.ToUpper(strings.TrimSpace(input))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	synonyms := map[string]DocumentCategory{
		"CERTIFICATE_OF_INCORPORATION": CertInc,
		"INCORPORATION":                CertInc,
		"INCUMBENCY":                   CertIncumbency,
		"CERTIFICATE_OF_INCUMBENCY":    CertIncumbency,
		"REGISTERED_ADDRESS":           CertAddress,
		"ADDRESS":                      CertAddress,
		"UTILITY_BILL":                 EntityUtility,
		"PASSPORT":                     PassportID,
		"ID":                           PassportID,
		"ID_CARD":                      PassportID,
		"PROOF_OF_ADDRESS":             PersonalUtility,
	}
	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	cat := DocumentCategory(normalized)
	if cat.Valid() {
		return cat, true
	}
	return "", false
}
