package parser

import (
	"strings"

	"github.com/raphaelgruber/seedforge/internal/models"
	"golang.org/x/text/cases"
)

// DenyList holds hedging and refusal phrases that mark a low-quality triple.
// Matching is case-insensitive substring search over instruction and output.
var DenyList = []string{
	"the text",
	"is not specified",
	"is not mentioned",
	"does not mention",
	"does not provide",
	"does not indicate",
	"cannot provide",
	"is not stated",
	"is not provided",
	"without further",
	"are not provided",
	"i'm sorry,",
	"the article did not",
	"no information was provided",
}

// Typographic apostrophes are normalised so "I’m sorry," matches like "I'm sorry,".
var quoteNormalizer = strings.NewReplacer("’", "'", "‘", "'")

var foldedDenyList = foldAll(DenyList)

func foldAll(phrases []string) []string {
	caser := cases.Fold()
	out := make([]string, len(phrases))
	for i, p := range phrases {
		out[i] = caser.String(quoteNormalizer.Replace(p))
	}
	return out
}

// Rejected reports whether rec's instruction or output contains a deny-listed phrase.
func Rejected(rec models.Record) bool {
	// A Caser carries state and must not be shared between goroutines.
	caser := cases.Fold()
	return containsDenied(caser, rec.Instruction) || containsDenied(caser, rec.Output)
}

func containsDenied(caser cases.Caser, text string) bool {
	folded := caser.String(quoteNormalizer.Replace(text))
	for _, phrase := range foldedDenyList {
		if strings.Contains(folded, phrase) {
			return true
		}
	}
	return false
}
