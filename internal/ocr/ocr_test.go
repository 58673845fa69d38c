package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/merchant-intake/constants"
)

type call struct {
	name string
	args []string
}

// stubRunner answers by binary name and records every call.
type stubRunner struct {
	mu      sync.Mutex
	calls   []call
	outputs map[string]string
	errs    map[string]error

	// pages is how many PNGs a pdftoppm call writes next to its prefix.
	pages int

	// writeLast names a binary whose last argument is an output file to create.
	writeLast string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{name: name, args: args})
	s.mu.Unlock()

	key := name
	if name == "tesseract" && args[len(args)-1] == "tsv" {
		key = "tesseract-tsv"
	}
	if err := s.errs[key]; err != nil {
		return nil, []byte(key + " exploded"), err
	}
	if name == s.writeLast {
		_ = os.WriteFile(args[len(args)-1], []byte("png"), 0o600)
	}
	if name == "pdftoppm" {
		prefix := args[len(args)-1]
		for i := 1; i <= s.pages; i++ {
			_ = os.WriteFile(prefix+"-"+string(rune('0'+i))+".png", []byte("png"), 0o600)
		}
	}
	return []byte(s.outputs[key]), nil, nil
}

func (s *stubRunner) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func touch(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	return p
}

const tsvSample = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t800\t600\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t20\t120\t30\t90\tACME\n" +
	"5\t1\t1\t1\t1\t2\t140\t20\t160\t30\t70\tLIMITED\n"

func TestExtractImage(t *testing.T) {
	r := &stubRunner{outputs: map[string]string{
		"tesseract":     "ACME   LIMITED\r\n-----\nHE 274180\n\n\n\nNicosia",
		"tesseract-tsv": tsvSample,
	}}
	e := NewExtractor(Config{CaptureWords: true}, r, nil)

	res, err := e.Extract(context.Background(), touch(t, "cert.png"))
	require.NoError(t, err)

	assert.Equal(t, "ACME LIMITED\n\nHE 274180\n\nNicosia", res.Text)
	assert.Equal(t, constants.IMAGE, res.SourceType)
	assert.Equal(t, "image-ocr", res.Method)
	require.Len(t, res.Words, 2)
	assert.Equal(t, Word{Text: "ACME", Confidence: 0.9, Page: 1, Left: 10, Top: 20, Width: 120, Height: 30}, res.Words[0])
	assert.Greater(t, res.Confidence, float32(0))
}

func TestExtractImageTesseractFailure(t *testing.T) {
	r := &stubRunner{errs: map[string]error{"tesseract": errors.New("exit status 1")}}
	e := NewExtractor(Config{}, r, nil)

	res, err := e.Extract(context.Background(), touch(t, "cert.jpg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract")
	assert.Equal(t, []string{"tesseract exploded"}, res.Warnings)
}

func TestExtractWordsFailureIsAWarning(t *testing.T) {
	r := &stubRunner{
		outputs: map[string]string{"tesseract": "PASSPORT"},
		errs:    map[string]error{"tesseract-tsv": errors.New("boom")},
	}
	e := NewExtractor(Config{CaptureWords: true}, r, nil)

	res, err := e.Extract(context.Background(), touch(t, "id.png"))
	require.NoError(t, err)
	assert.Equal(t, "PASSPORT", res.Text)
	assert.Empty(t, res.Words)
	assert.NotEmpty(t, res.Warnings)
}

func TestExtractPDFTextLayer(t *testing.T) {
	layer := "CERTIFICATE OF INCORPORATION\nACME TRADING LIMITED\nRegistration No. HE 274180\f"
	r := &stubRunner{outputs: map[string]string{"pdftotext": layer}}
	e := NewExtractor(Config{}, r, nil)

	res, err := e.Extract(context.Background(), touch(t, "cert.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf-text", res.Method)
	assert.Equal(t, 1, res.Pages)
	assert.Contains(t, res.Text, "HE 274180")
	assert.Zero(t, r.count("pdftoppm"))
}

func TestExtractPDFFallsBackToOCR(t *testing.T) {
	r := &stubRunner{
		outputs: map[string]string{"pdftotext": "  \f", "tesseract": "PAGE TEXT"},
		pages:   2,
	}
	e := NewExtractor(Config{MaxPages: 5}, r, nil)

	res, err := e.Extract(context.Background(), touch(t, "scan.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "PAGE TEXT\n\f\nPAGE TEXT", res.Text)
	assert.Equal(t, 2, r.count("tesseract"))
}

func TestExtractPDFRasterizeFailure(t *testing.T) {
	r := &stubRunner{
		errs: map[string]error{
			"pdftotext": errors.New("missing"),
			"pdftoppm":  errors.New("missing"),
		},
	}
	e := NewExtractor(Config{}, r, nil)

	res, err := e.Extract(context.Background(), touch(t, "scan.pdf"))
	require.Error(t, err)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.NotEmpty(t, res.Warnings)
}

func TestExtractUnsupportedExtension(t *testing.T) {
	e := NewExtractor(Config{}, &stubRunner{}, nil)
	_, err := e.Extract(context.Background(), touch(t, "notes.docx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported extension")
}

func TestTesseractArgs(t *testing.T) {
	e := NewExtractor(Config{Lang: "ell+eng", PSM: 6, TessdataDir: "/td"}, &stubRunner{}, nil)
	got := e.tesseractArgs("/in.png", "tsv")
	assert.Equal(t, "/in.png stdout -l ell+eng --psm 6 --tessdata-dir /td tsv", strings.Join(got, " "))
}

func TestNormalizeKeepsDigits(t *testing.T) {
	assert.Equal(t, "12/05/2020 HE 074180", Normalize("12/05/2020\tHE  074180  "))
	assert.Equal(t, "", Normalize(""))
}

func TestNormalizeRepairsInvalidUTF8(t *testing.T) {
	got := Normalize("HE 274180 \xff\xfe")
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "HE 274180 \uFFFD", got)
}

func TestExtractHEICConvertsFirst(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "passport.heic")
	require.NoError(t, os.WriteFile(in, []byte("heic"), 0o600))

	r := &stubRunner{outputs: map[string]string{"tesseract": "P<CYPDOE<<JANE"}, writeLast: "magick"}
	e := NewExtractor(Config{}, r, nil)

	res, err := e.Extract(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "P<CYPDOE<<JANE", res.Text)
	assert.Equal(t, 1, r.count("magick"))
	// tesseract reads the converted png, not the original
	require.Equal(t, 1, r.count("tesseract"))
	for _, c := range r.calls {
		if c.name == "tesseract" {
			assert.True(t, strings.HasSuffix(c.args[0], ".png"))
		}
	}
}

func TestExtractHEICConverterFailure(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "passport.heif")
	require.NoError(t, os.WriteFile(in, []byte("heif"), 0o600))

	r := &stubRunner{errs: map[string]error{"sips": errors.New("exit 1")}}
	e := NewExtractor(Config{HeicConverter: HeicSips}, r, nil)

	_, err := e.Extract(context.Background(), in)
	assert.ErrorContains(t, err, "sips failed")
	assert.Zero(t, r.count("tesseract"))
}
