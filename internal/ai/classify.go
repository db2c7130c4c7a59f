package ai

import "strings"

// Query types recognized by the solution formatter.
const (
	QueryTypeMCQ       = "mcq"
	QueryTypeNumerical = "numerical"
	QueryTypeTrueFalse = "true_false"
	QueryTypeGeneral   = "general"
)

// subjectKeywords maps each syllabus subject to indicative query terms.
var subjectKeywords = map[string][]string{
	"physics":     {"force", "velocity", "acceleration", "energy", "momentum", "wave", "electric", "magnetic", "thermodynamics", "optics"},
	"chemistry":   {"molecule", "atom", "reaction", "bond", "compound", "element", "acid", "base", "organic", "inorganic"},
	"mathematics": {"equation", "derivative", "integral", "limit", "matrix", "vector", "probability", "geometry", "algebra", "trigonometry"},
}

// DetectSubject scores the query against each subject's keyword list and
// returns the best match, or "" when nothing matches.
func DetectSubject(text string) string {
	textLower := strings.ToLower(text)

	best := ""
	bestScore := 0
	for _, subject := range []string{"physics", "chemistry", "mathematics"} {
		score := 0
		for _, keyword := range subjectKeywords[subject] {
			if strings.Contains(textLower, keyword) {
				score++
			}
		}
		if score > bestScore {
			best = subject
			bestScore = score
		}
	}
	return best
}

// DetectQueryType classifies the question so the formatter can shape the
// answer (option highlighting for MCQs, value extraction for numericals).
func DetectQueryType(text string) string {
	textLower := strings.ToLower(text)

	switch {
	case containsAny(textLower, "option", "choose", "which of", "select"):
		return QueryTypeMCQ
	case containsAny(textLower, "calculate", "find the value", "compute"):
		return QueryTypeNumerical
	case containsAny(textLower, "true or false", "correct or incorrect"):
		return QueryTypeTrueFalse
	default:
		return QueryTypeGeneral
	}
}

func containsAny(s string, phrases ...string) bool {
	for _, phrase := range phrases {
		if strings.Contains(s, phrase) {
			return true
		}
	}
	return false
}
