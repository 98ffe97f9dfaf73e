package memory

import "strings"

const maxKeywords = 20

// Keywords splits text on punctuation and whitespace and returns up to 20
// lowercase words of three or more characters, skipping stopwords.
func Keywords(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '_' || r == '-' || r == '$' ||
			r > 127)
	})

	seen := make(map[string]bool)
	var result []string
	for _, w := range words {
		lower := strings.ToLower(strings.TrimPrefix(w, "$"))
		if len(lower) < 3 || stopwords[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		result = append(result, lower)
		if len(result) >= maxKeywords {
			break
		}
	}
	return result
}

// Tags merges fixed tags with the keywords of text, fixed tags first.
func Tags(text string, fixed ...string) []string {
	return uniqueTags(append(append([]string(nil), fixed...), Keywords(text)...))
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true,
	"but": true, "not": true, "you": true, "all": true,
	"can": true, "had": true, "was": true, "one": true,
	"our": true, "out": true, "has": true, "its": true,
	"have": true, "been": true, "this": true, "that": true,
	"with": true, "from": true, "they": true, "will": true,
	"what": true, "when": true, "make": true, "like": true,
	"just": true, "into": true, "than": true, "them": true,
	"some": true, "could": true, "would": true, "there": true,
	"about": true, "should": true, "which": true, "their": true,
}

// GoalTags derives the tag query used to recall memories for a goal.
func GoalTags(goalType, description string) []string {
	return Tags(description, goalType)
}
