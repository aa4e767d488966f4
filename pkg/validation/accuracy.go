// Package validation scores recognized text against a caller-supplied
// reference transcript.
package validation

import (
	"strings"

	"go-ocr-service/pkg/models"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
)

// Score compares recognized text against the expected transcript and
// returns word and character error rates plus an overall match score.
// Both inputs are compared case-insensitively with collapsed whitespace.
func Score(expected, recognized string) *models.AccuracyReport {
	report := &models.AccuracyReport{ExpectedText: expected}

	refWords := strings.Fields(strings.ToLower(expected))
	hypWords := strings.Fields(strings.ToLower(recognized))

	refText := strings.Join(refWords, " ")
	hypText := strings.Join(hypWords, " ")

	report.WER = wordErrorRate(refWords, hypWords)
	report.CER = charErrorRate(refText, hypText)
	report.MatchScore = clamp01(1.0 - report.CER)
	return report
}

func wordErrorRate(ref, hyp []string) float64 {
	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0.0
		}
		return 1.0
	}
	rate, _ := wer.WER(ref, hyp)
	return rate
}

func charErrorRate(ref, hyp string) float64 {
	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0.0
		}
		return 1.0
	}
	dist := levenshtein.Distance(ref, hyp)
	return float64(dist) / float64(len([]rune(ref)))
}

func clamp01(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
