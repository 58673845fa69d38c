package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/extract"
)

func result(engine extract.EngineKind, fields map[string]extract.FieldValue) extract.Result {
	return extract.Result{Engine: engine, Fields: fields}
}

func TestMergeRemoteWins(t *testing.T) {
	remote := result(extract.EngineRemote, map[string]extract.FieldValue{
		constants.FieldRegistrationNumber: extract.Wrapped("HE274180"),
	})
	local := result(extract.EngineLocal, map[string]extract.FieldValue{
		constants.FieldRegistrationNumber: extract.Scalar("274180X"),
	})

	p := Merge(constants.CertInc, remote, local, nil)

	assert.Equal(t, "HE274180", p.Fields[constants.FieldRegistrationNumber])
	assert.Equal(t, SourceRemote, p.Sources[constants.FieldRegistrationNumber])
	assert.Equal(t, []Disagreement{{Field: constants.FieldRegistrationNumber, Remote: "HE274180", Local: "274180X"}}, p.Disagreements)
}

func TestMergePrecedenceIgnoresShape(t *testing.T) {
	// a scalar from the remote engine and a wrapper from the local one still
	// resolve by source, not by shape
	remote := result(extract.EngineRemote, map[string]extract.FieldValue{
		constants.FieldDOB: extract.Scalar("01/01/1980"),
	})
	local := result(extract.EngineLocal, map[string]extract.FieldValue{
		constants.FieldDOB:      extract.Wrapped("02/02/1982"),
		constants.FieldFullName: extract.Wrapped("JANE DOE"),
	})

	p := Merge(constants.PassportID, remote, local, nil)

	assert.Equal(t, "01/01/1980", p.Fields[constants.FieldDOB])
	assert.Equal(t, "JANE DOE", p.Fields[constants.FieldFullName])
	assert.Equal(t, SourceLocal, p.Sources[constants.FieldFullName])
}

func TestMergeLocalFillsGaps(t *testing.T) {
	remote := result(extract.EngineRemote, map[string]extract.FieldValue{
		constants.FieldCompanyName:       extract.Wrapped("ACME TRADING LIMITED"),
		constants.FieldIncorporationDate: extract.Wrapped("  "),
	})
	local := result(extract.EngineLocal, map[string]extract.FieldValue{
		constants.FieldIncorporationDate: extract.Scalar("12/05/2020"),
	})

	p := Merge(constants.CertInc, remote, local, nil)

	assert.Equal(t, "12/05/2020", p.Fields[constants.FieldIncorporationDate])
	assert.Equal(t, SourceLocal, p.Sources[constants.FieldIncorporationDate])
	assert.Empty(t, p.Disagreements)
}

func TestMergeNonDestructiveFallback(t *testing.T) {
	current := map[string]string{
		constants.FieldCountry:     "Cyprus",
		constants.FieldCompanyName: "OLD NAME LTD",
	}
	remote := result(extract.EngineRemote, map[string]extract.FieldValue{
		constants.FieldCompanyName: extract.Wrapped("NEW NAME LTD"),
	})
	local := extract.Result{Engine: extract.EngineLocal, Error: "local OCR blocked"}

	p := Merge(constants.CertInc, remote, local, current)

	assert.Equal(t, "Cyprus", p.Fields[constants.FieldCountry])
	assert.Equal(t, SourceExisting, p.Sources[constants.FieldCountry])
	assert.Equal(t, "NEW NAME LTD", p.Fields[constants.FieldCompanyName])
	assert.NotContains(t, p.Fields, constants.FieldRegisteredAddress)

	assert.Equal(t, map[string]string{constants.FieldCompanyName: "NEW NAME LTD"}, p.Changed(current))
	assert.Equal(t, map[Source]int{SourceRemote: 1, SourceExisting: 1}, p.CountBySource())
}

func TestMergeBothEnginesFailed(t *testing.T) {
	current := map[string]string{constants.FieldFullName: "Jane Doe", constants.FieldRole: "Director"}
	p := Merge(constants.PassportID,
		extract.Result{Engine: extract.EngineRemote, Error: "quota"},
		extract.Result{Engine: extract.EngineLocal, Error: "ocr"},
		current)

	assert.Equal(t, map[string]string{constants.FieldFullName: "Jane Doe"}, p.Fields)
	assert.Empty(t, p.Changed(current))
}

func TestMergeUtilityBillKeepsCertificateData(t *testing.T) {
	current := map[string]string{
		constants.FieldRegistrationNumber: "HE274180",
		constants.FieldIncorporationDate:  "12/05/2020",
	}
	local := result(extract.EngineLocal, map[string]extract.FieldValue{
		constants.FieldRegistrationNumber: extract.Scalar("40512345"),
		constants.FieldIncorporationDate:  extract.Scalar("03/02/2024"),
		constants.FieldCountry:            extract.Scalar("Cyprus"),
	})
	remote := result(extract.EngineRemote, map[string]extract.FieldValue{
		constants.FieldOperationalAddress: extract.Wrapped("1 Makariou Ave, Limassol"),
	})

	p := Merge(constants.EntityUtility, remote, local, current)

	assert.Equal(t, map[string]string{constants.FieldOperationalAddress: "1 Makariou Ave, Limassol"}, p.Fields)
	assert.Equal(t, map[string]string{constants.FieldOperationalAddress: "1 Makariou Ave, Limassol"}, p.Changed(current))
}

func TestMergeNeverSetsRole(t *testing.T) {
	current := map[string]string{constants.FieldRole: "UBO"}
	remote := result(extract.EngineRemote, map[string]extract.FieldValue{
		constants.FieldRole:           extract.Wrapped("Director"),
		constants.FieldPassportNumber: extract.Wrapped("A1234567B"),
	})

	p := Merge(constants.PassportID, remote, extract.Result{}, current)

	assert.NotContains(t, p.Fields, constants.FieldRole)
	assert.NotContains(t, p.Sources, constants.FieldRole)
	assert.Equal(t, "A1234567B", p.Fields[constants.FieldPassportNumber])
}

func TestMergeOnlyTouchesCategoryFields(t *testing.T) {
	remote := result(extract.EngineRemote, map[string]extract.FieldValue{
		constants.FieldCompanyName: extract.Wrapped("ACME LTD"),
		"favourite_colour":         extract.Wrapped("blue"),
	})
	p := Merge(constants.PassportID, remote, extract.Result{}, nil)
	assert.Empty(t, p.Fields)
}

func TestMergeAgreementIgnoresCaseAndSpacing(t *testing.T) {
	remote := result(extract.EngineRemote, map[string]extract.FieldValue{
		constants.FieldRegistrationNumber: extract.Wrapped("HE274180"),
	})
	local := result(extract.EngineLocal, map[string]extract.FieldValue{
		constants.FieldRegistrationNumber: extract.Scalar("he 274180"),
	})
	p := Merge(constants.CertInc, remote, local, nil)
	assert.Empty(t, p.Disagreements)
}
