package ocr

import (
	"regexp"
)

var (
	reDateish    = regexp.MustCompile(`\b\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4}\b|\b\d{1,2}\s+[A-Za-z]{3,9}\.?,?\s+\d{4}\b`)
	reRegNumber  = regexp.MustCompile(`\b[A-Z]{2}\s?\d{5,8}\b|\b\d{6,8}\b`)
	reEntityWord = regexp.MustCompile(`(?i)\b(limited|ltd|inc|passport|certificate|registrar)\b`)
	reMRZ        = regexp.MustCompile(`<<`)
)

// heuristicConfidence scores how much the text looks like an onboarding
// document. It is reported for audit only; no field logic reads it.
func heuristicConfidence(txt string) float32 {
	score := float32(0.2)
	if reDateish.MatchString(txt) {
		score += 0.2
	}
	if reRegNumber.MatchString(txt) {
		score += 0.15
	}
	if reEntityWord.MatchString(txt) {
		score += 0.15
	}
	if reMRZ.MatchString(txt) {
		score += 0.1
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// blendConfidence weights engine confidence higher when present.
func blendConfidence(ocrConf, heurConf float32) float32 {
	conf := heurConf
	if ocrConf > 0 {
		conf = 0.7*ocrConf + 0.3*heurConf
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
