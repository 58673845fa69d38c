package extract

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/backend"
	"github.com/joseph-ayodele/merchant-intake/internal/ocr"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n fake image body")

type fakeText struct {
	text    string
	err     error
	gotPath string
	gotExt  string
}

func (f *fakeText) Extract(_ context.Context, path string) (ocr.Result, error) {
	f.gotPath = path
	f.gotExt = filepath.Ext(path)
	if _, err := os.Stat(path); err != nil {
		return ocr.Result{}, err
	}
	if f.err != nil {
		return ocr.Result{Warnings: []string{"tesseract: not found"}}, f.err
	}
	return ocr.Result{Text: f.text, Method: "image-ocr"}, nil
}

type fakeAnalyzer struct {
	resp *backend.AnalyzeResponse
	err  error
	got  backend.AnalyzeRequest
}

func (f *fakeAnalyzer) AnalyzeDocument(_ context.Context, req backend.AnalyzeRequest) (*backend.AnalyzeResponse, error) {
	f.got = req
	return f.resp, f.err
}

func TestFieldValueJSON(t *testing.T) {
	var m map[string]FieldValue
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":{"value":"y"},"c":null,"d":42,"e":{"value":null}}`), &m))

	assert.Equal(t, Scalar("x"), m["a"])
	assert.Equal(t, Wrapped("y"), m["b"])
	assert.True(t, m["c"].IsEmpty())
	assert.Equal(t, "42", m["d"].Unwrap())
	assert.True(t, m["e"].IsWrapped())
	assert.True(t, m["e"].IsEmpty())

	out, err := json.Marshal(map[string]FieldValue{"a": Scalar("x"), "b": Wrapped("y")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":{"value":"y"}}`, string(out))

	assert.Equal(t, map[string]string{"a": "x", "b": "y", "d": "42"}, Values(m))
}

func TestLocalEngineAppliesPatterns(t *testing.T) {
	text := &fakeText{text: "ACME TRADING LIMITED\nReg HE 274180\nIncorporated 12/05/2020 in Nicosia"}
	e := NewLocalEngine(text, nil, LocalOptions{TempDir: t.TempDir()}, nil)

	res := e.Run(context.Background(), Document{
		Bytes: pngBytes, FileName: "cert.png", MimeType: "image/png", Category: constants.CertInc,
	})

	assert.Equal(t, EngineLocal, res.Engine)
	assert.Empty(t, res.Error)
	assert.Equal(t, ".png", text.gotExt)
	assert.Equal(t, Scalar("HE274180"), res.Fields[constants.FieldRegistrationNumber])
	assert.Equal(t, Scalar("12/05/2020"), res.Fields[constants.FieldIncorporationDate])
	assert.Equal(t, Scalar("Cyprus"), res.Fields[constants.FieldCountry])
	assert.Contains(t, res.RawText, "ACME TRADING LIMITED")

	_, err := os.Stat(text.gotPath)
	assert.True(t, os.IsNotExist(err), "temp copy is removed")
}

func TestLocalEngineOCRFailureDegrades(t *testing.T) {
	e := NewLocalEngine(&fakeText{err: errors.New("worker unavailable")}, nil, LocalOptions{TempDir: t.TempDir()}, nil)

	res := e.Run(context.Background(), Document{Bytes: pngBytes, FileName: "id.png", Category: constants.PassportID})

	assert.True(t, res.Failed())
	assert.Contains(t, res.Error, "local OCR blocked")
	assert.Empty(t, res.Fields)
	assert.NotNil(t, res.Fields)
}

func TestLocalEnginePDFCapabilityFlag(t *testing.T) {
	text := &fakeText{text: "ACME LTD"}
	pdf := Document{Bytes: []byte("%PDF-1.7 body"), FileName: "cert.pdf", MimeType: "application/pdf", Category: constants.CertInc}

	off := NewLocalEngine(text, nil, LocalOptions{EnablePDF: false}, nil).Run(context.Background(), pdf)
	assert.Equal(t, MsgLocalPDFUnsupported, off.Error)

	on := NewLocalEngine(text, nil, LocalOptions{EnablePDF: true, TempDir: t.TempDir()}, nil).Run(context.Background(), pdf)
	assert.Empty(t, on.Error)
	assert.Equal(t, ".pdf", text.gotExt)
}

func TestLocalEngineRejectsUnsupportedType(t *testing.T) {
	e := NewLocalEngine(&fakeText{}, nil, LocalOptions{}, nil)
	res := e.Run(context.Background(), Document{Bytes: []byte("hello world"), FileName: "notes.txt", Category: constants.CertInc})
	assert.Contains(t, res.Error, "unsupported file type")
}

func TestLocalEngineWithoutOCR(t *testing.T) {
	res := NewLocalEngine(nil, nil, LocalOptions{}, nil).Run(context.Background(), Document{Bytes: pngBytes})
	assert.True(t, res.Failed())
}

func TestRemoteEngineWrapsValues(t *testing.T) {
	a := &fakeAnalyzer{resp: &backend.AnalyzeResponse{
		Analysis: json.RawMessage(`{"company_name":"ACME TRADING LIMITED","registration_number":{"value":"HE274180"},"country":null,"notes":"looks fine"}`),
		FileID:   "file-1",
		FileURL:  "https://drive.example/file-1",
	}}
	e := NewRemoteEngine(a, nil)

	res := e.Run(context.Background(), Document{
		Bytes: pngBytes, FileName: "cert.png", Category: constants.CertInc, MerchantID: "M-1",
	})

	require.Empty(t, res.Error)
	assert.Equal(t, Wrapped("ACME TRADING LIMITED"), res.Fields[constants.FieldCompanyName])
	assert.Equal(t, Wrapped("HE274180"), res.Fields[constants.FieldRegistrationNumber])
	assert.NotContains(t, res.Fields, constants.FieldCountry)
	assert.Equal(t, "file-1", res.FileID)
	assert.Len(t, res.Warnings, 1, "unknown key reported")

	assert.Equal(t, "image/png", a.got.MimeType)
	assert.Equal(t, "CERT_INC", a.got.DocCategory)
	assert.Equal(t, "M-1", a.got.MerchantID)
	assert.NotEmpty(t, a.got.FileBase64)
}

func TestRemoteEngineLenientSchema(t *testing.T) {
	a := &fakeAnalyzer{resp: &backend.AnalyzeResponse{
		Analysis: json.RawMessage(`{"full_name":"JANE DOE","passport_number":["K0123456"],"dob":{"value":"01/01/1980"}}`),
	}}

	res := NewRemoteEngine(a, nil).Run(context.Background(), Document{Bytes: pngBytes, FileName: "p.png", Category: constants.PassportID})

	require.Empty(t, res.Error)
	assert.Equal(t, "JANE DOE", res.Fields[constants.FieldFullName].Unwrap())
	assert.Equal(t, "01/01/1980", res.Fields[constants.FieldDOB].Unwrap())
	assert.NotContains(t, res.Fields, constants.FieldPassportNumber)
	assert.NotEmpty(t, res.Warnings)
}

func TestDecodeAnalysisIgnoresRole(t *testing.T) {
	fields, warnings, err := DecodeAnalysis(constants.PassportID, []byte(`{"role":"Director","passport_number":"A1234567B"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]FieldValue{constants.FieldPassportNumber: Scalar("A1234567B")}, fields)
	assert.Equal(t, []string{"ignored fields: [role]"}, warnings)

	schema := BuildAnalysisSchema(constants.EntityUtility)
	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, constants.FieldOperationalAddress)
	assert.NotContains(t, props, constants.FieldRegistrationNumber)
}

func TestRemoteEngineFailureDegrades(t *testing.T) {
	cases := map[string]*fakeAnalyzer{
		"transport error": {err: errors.New("quota exceeded")},
		"no analysis":     {resp: &backend.AnalyzeResponse{}},
		"not an object":   {resp: &backend.AnalyzeResponse{Analysis: json.RawMessage(`"sorry"`)}},
	}
	for name, a := range cases {
		t.Run(name, func(t *testing.T) {
			res := NewRemoteEngine(a, nil).Run(context.Background(), Document{Bytes: pngBytes, Category: constants.CertInc})
			assert.Equal(t, EngineRemote, res.Engine)
			assert.True(t, res.Failed())
			assert.Empty(t, res.Fields)
		})
	}
}

func TestRemoteEngineNotConfigured(t *testing.T) {
	res := NewRemoteEngine(nil, nil).Run(context.Background(), Document{Bytes: pngBytes})
	assert.Equal(t, MsgRemoteNotConfigured, res.Error)
}
