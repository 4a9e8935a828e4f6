// Package langdetect tags incoming articles with an ISO 639-1 language code
// so non-English items can be stored without entering analysis.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// feedLanguages covers English plus the Indian-language press the default
// feeds publish in. A narrow set keeps the detector models small.
var feedLanguages = []lingua.Language{
	lingua.English,
	lingua.Hindi,
	lingua.Bengali,
	lingua.Gujarati,
	lingua.Marathi,
	lingua.Punjabi,
	lingua.Tamil,
	lingua.Telugu,
	lingua.Urdu,
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectISO6391 returns the two-letter code of the dominant language of text,
// or "" when the sample is too short to call.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 6 {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// NormalizeCode reduces a caller-supplied language tag to its lowercase
// primary subtag: "en" from "en-US" or "EN_us". Returns "" for blank or
// malformed tags so detection can take over.
func NormalizeCode(raw string) string {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if tag == "" {
		return ""
	}

	tag = strings.Trim(strings.ReplaceAll(tag, "_", "-"), "-")
	if dash := strings.IndexByte(tag, '-'); dash >= 0 {
		tag = tag[:dash]
	}
	for _, r := range tag {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return tag
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(feedLanguages...).
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
