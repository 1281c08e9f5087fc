// Package words canonicalizes free text into comparable word sequences.
// Every solver funnels both the fetched documents and the candidate answers
// through the same normalization, so occurrence counting compares like with
// like. Normalization is deterministic and performs no I/O.
package words

import (
	"regexp"
	"strings"

	"github.com/kljensen/snowball"
)

var nonWord = regexp.MustCompile(`[^\w ]`)

// RawWords reduces text to a single normalized string: word characters and
// spaces only, lower case, the literal word "and" dropped, repeated spaces
// collapsed, each remaining token reduced to its dictionary base form.
func RawWords(text string) string {
	return strings.Join(Normalize(text), " ")
}

// Normalize reduces text to its sequence of normalized words.
func Normalize(text string) []string {
	cleaned := strings.ToLower(nonWord.ReplaceAllString(text, ""))
	fields := strings.Fields(cleaned)
	normalized := make([]string, 0, len(fields))
	for _, field := range fields {
		if field == "and" {
			continue
		}
		stemmed, err := snowball.Stem(field, "english", true)
		if err != nil {
			// Non-stemmable tokens (numbers, foreign words) pass through as-is.
			stemmed = field
		}
		normalized = append(normalized, stemmed)
	}
	return normalized
}

// SignificantWords filters stop-words out of a normalized word sequence,
// leaving the nouns and keywords solvers match on. Words shorter than three
// characters are dropped along with the stop-word set.
func SignificantWords(sequence []string) []string {
	significant := make([]string, 0, len(sequence))
	for _, word := range sequence {
		if len(word) < 3 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		significant = append(significant, word)
	}
	return significant
}

// stopWords is the filtered English stop-word set. Entries are stored in
// their stemmed form so membership tests line up with Normalize output.
var stopWords = map[string]struct{}{}

func init() {
	list := []string{
		"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you",
		"your", "yours", "yourself", "yourselves", "he", "him", "his",
		"himself", "she", "her", "hers", "herself", "it", "its", "itself",
		"they", "them", "their", "theirs", "themselves", "what", "which",
		"who", "whom", "this", "that", "these", "those", "am", "is", "are",
		"was", "were", "be", "been", "being", "have", "has", "had", "having",
		"do", "does", "did", "doing", "a", "an", "the", "and", "but", "if",
		"or", "because", "as", "until", "while", "of", "at", "by", "for",
		"with", "about", "against", "between", "into", "through", "during",
		"before", "after", "above", "below", "to", "from", "up", "down",
		"in", "out", "on", "off", "over", "under", "again", "further",
		"then", "once", "here", "there", "when", "where", "why", "how",
		"all", "any", "both", "each", "few", "more", "most", "other",
		"some", "such", "no", "nor", "not", "only", "own", "same", "so",
		"than", "too", "very", "can", "will", "just", "should", "now",
	}
	for _, word := range list {
		stemmed, err := snowball.Stem(word, "english", true)
		if err != nil {
			stemmed = word
		}
		stopWords[stemmed] = struct{}{}
	}
}
