package patterns

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/merchant-intake/constants"
)

var (
	reNineToken      = regexp.MustCompile(`\b[A-Z0-9]{9}\b`)
	reCompressedDate = regexp.MustCompile(`^\d{2}[A-Z]{3}\d{4}$`)

	// document number, check digit, issuing state, birth date (YYMMDD)
	reMRZLine2 = regexp.MustCompile(`([A-Z0-9<]{9})(\d)([A-Z<]{3})(\d{6})`)
	// P, type filler, issuing state, SURNAME<<GIVEN<NAMES
	reMRZLine1 = regexp.MustCompile(`P[A-Z<]([A-Z<]{3})([A-Z]+(?:<[A-Z]+)*)<<([A-Z]+(?:<[A-Z]+)*)`)

	reDOB = regexp.MustCompile(`(?i)\b(?:0[1-9]|[12][0-9]|3[01])\s(?:JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)\s\d{4}\b|\b(?:0[1-9]|[12][0-9]|3[01])[/\-.](?:0[1-9]|1[0-2])[/\-.]\d{4}\b`)
)

func identityFamily() Family {
	return Family{
		{Field: constants.FieldPassportNumber, Chain: Chain{
			visualDocumentNumberRule(),
			mrzDocumentNumberRule(),
		}},
		{Field: constants.FieldDOB, Chain: Chain{
			regexRule("visual-date", reDOB, nil),
			mrzBirthDateRule(time.Now),
		}},
		{Field: constants.FieldFullName, Chain: Chain{mrzNameRule()}},
	}
}

// visualDocumentNumberRule takes the first 9-character token that carries a
// digit and is not a compressed date such as 12MAY2020.
func visualDocumentNumberRule() Rule {
	return Rule{
		Name: "visual-nine-char",
		Extract: func(text string) (string, bool) {
			for _, tok := range reNineToken.FindAllString(text, -1) {
				if reCompressedDate.MatchString(tok) {
					continue
				}
				if !strings.ContainsAny(tok, "0123456789") {
					continue
				}
				return tok, true
			}
			return "", false
		},
	}
}

func mrzDocumentNumberRule() Rule {
	return Rule{
		Name: "mrz-line-2",
		Extract: func(text string) (string, bool) {
			m := findMRZLine2(text)
			if m == nil {
				return "", false
			}
			num := strings.Trim(m[1], "<")
			num = strings.ReplaceAll(num, "<", "")
			return num, num != ""
		},
	}
}

func mrzBirthDateRule(now func() time.Time) Rule {
	return Rule{
		Name: "mrz-birth-date",
		Extract: func(text string) (string, bool) {
			m := findMRZLine2(text)
			if m == nil {
				return "", false
			}
			return mrzDate(m[4], now())
		},
	}
}

func mrzNameRule() Rule {
	return Rule{
		Name: "mrz-line-1",
		Extract: func(text string) (string, bool) {
			for _, line := range splitLines(text) {
				line = strings.ReplaceAll(line, " ", "")
				m := reMRZLine1.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				surname := strings.ReplaceAll(m[2], "<", " ")
				given := strings.ReplaceAll(m[3], "<", " ")
				return collapseSpaces(given + " " + surname), true
			}
			return "", false
		},
	}
}

func findMRZLine2(text string) []string {
	for _, line := range splitLines(text) {
		line = strings.ReplaceAll(line, " ", "")
		if len(line) < 19 {
			continue
		}
		if m := reMRZLine2.FindStringSubmatch(line); m != nil {
			return m
		}
	}
	return nil
}

// mrzDate turns YYMMDD into DD/MM/YYYY. Birth years are never in the future,
// so a two-digit year above the current one belongs to the previous century.
func mrzDate(yymmdd string, now time.Time) (string, bool) {
	if len(yymmdd) != 6 {
		return "", false
	}
	yy, err1 := strconv.Atoi(yymmdd[0:2])
	mm, err2 := strconv.Atoi(yymmdd[2:4])
	dd, err3 := strconv.Atoi(yymmdd[4:6])
	if err1 != nil || err2 != nil || err3 != nil || mm < 1 || mm > 12 || dd < 1 || dd > 31 {
		return "", false
	}
	century := now.Year() / 100 * 100
	year := century + yy
	if year > now.Year() {
		year -= 100
	}
	return fmt.Sprintf("%02d/%02d/%04d", dd, mm, year), true
}
