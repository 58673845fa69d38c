package constants

// Field names shared by the pattern library, the remote analyzer and the backend.
const (
	FieldCompanyName        = "company_name"
	FieldRegistrationNumber = "registration_number"
	FieldIncorporationDate  = "incorporation_date"
	FieldCountry            = "country"
	FieldRegisteredAddress  = "registered_address"
	FieldOperationalAddress = "operational_address"

	FieldFullName           = "full_name"
	FieldRole               = "role"
	FieldDOB                = "dob"
	FieldPassportNumber     = "passport_number"
	FieldResidentialAddress = "residential_address"
)

var entityFields = []string{
	FieldCompanyName,
	FieldRegistrationNumber,
	FieldIncorporationDate,
	FieldCountry,
	FieldRegisteredAddress,
	FieldOperationalAddress,
}

// Role is entered by hand and never extracted.
var officerFields = []string{
	FieldFullName,
	FieldRole,
	FieldDOB,
	FieldPassportNumber,
	FieldResidentialAddress,
}

// FieldsFor returns the known fields of a record kind.
func FieldsFor(kind RecordKind) []string {
	switch kind {
	case KindEntity:
		return append([]string(nil), entityFields...)
	case KindOfficer:
		return append([]string(nil), officerFields...)
	default:
		return nil
	}
}

// categoryFields lists what each document category can fill. A utility bill
// never carries registry data, so it cannot overwrite what the certificate gave.
var categoryFields = map[DocumentCategory][]string{
	CertInc:         {FieldCompanyName, FieldRegistrationNumber, FieldIncorporationDate, FieldCountry},
	CertIncumbency:  {FieldCompanyName, FieldRegistrationNumber, FieldRegisteredAddress},
	CertAddress:     {FieldRegisteredAddress},
	EntityUtility:   {FieldRegisteredAddress, FieldOperationalAddress},
	PassportID:      {FieldFullName, FieldDOB, FieldPassportNumber},
	PersonalUtility: {FieldResidentialAddress},
}

// ExtractableFields returns the fields a document of this category can fill.
// Role is never among them.
func ExtractableFields(c DocumentCategory) []string {
	return append([]string(nil), categoryFields[c]...)
}

// IsExtractable reports whether a document of category c may fill name.
func IsExtractable(c DocumentCategory, name string) bool {
	for _, f := range categoryFields[c] {
		if f == name {
			return true
		}
	}
	return false
}

// IsKnownField reports whether name belongs to the record kind.
func IsKnownField(kind RecordKind, name string) bool {
	for _, f := range FieldsFor(kind) {
		if f == name {
			return true
		}
	}
	return false
}
