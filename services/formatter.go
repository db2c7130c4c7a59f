package services

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"exam-tutor-platform/internal/ai"
	"exam-tutor-platform/models"
)

// AnswerFormatter turns raw model output into a structured solution.
// Parsing is best effort: every extraction rule has a fallback, so
// Format always returns a usable structure.
type AnswerFormatter struct{}

func NewAnswerFormatter() *AnswerFormatter {
	return &AnswerFormatter{}
}

const collapseThreshold = 200

var (
	stepMarkerRe = regexp.MustCompile(`(?im)^\s*(?:-\s*)?(?:#{1,6}\s*)?\*{0,2}step\s+(\d+)\s*:\s*([^\n]*)$`)
	headingRe    = regexp.MustCompile(`^#{1,6}\s*`)
	mathRe       = regexp.MustCompile(`\$\$([^$]+)\$\$|\$([^$]+)\$`)
	optionRe     = regexp.MustCompile(`(?i)\(([A-D])\)`)
	numberRe     = regexp.MustCompile(`[-+]?\d*\.?\d+(?:[eE][-+]?\d+)?`)

	// Ordered: the first matching phrase wins.
	understandingRes = []*regexp.Regexp{
		regexp.MustCompile(`(?s)Understanding the [Pp]roblem[:\s]*(.*?)(?:Step|\n\n|$)`),
		regexp.MustCompile(`(?s)Given[:\s]*(.*?)(?:Step|\n\n|$)`),
		regexp.MustCompile(`(?s)Problem Analysis[:\s]*(.*?)(?:Step|\n\n|$)`),
	}
	// Word boundaries keep "Answers to ..." or "Thereafter" from being
	// mistaken for an answer marker.
	finalAnswerRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)Final Answer\b[:\s]*(.*?)(?:\n\n|Verification|$)`),
		regexp.MustCompile(`(?is)\bAnswer\b[:\s]*(.*?)(?:\n\n|Verification|$)`),
		regexp.MustCompile(`(?is)\bTherefore\b[,:\s]*(.*?)(?:\n\n|Verification|$)`),
		regexp.MustCompile(`(?is)\bHence\b[,:\s]*(.*?)(?:\n\n|Verification|$)`),
	}
	verificationRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)Verification[:\s]*(.*)`),
		regexp.MustCompile(`(?is)Check[:\s]*(.*)`),
		regexp.MustCompile(`(?is)Verify[:\s]*(.*)`),
	}
)

// recognizedUnits are matched as whole whitespace-delimited tokens, not
// by word-boundary regex, because Ω and °C are not ASCII word
// characters. Compound units come before their prefixes.
var recognizedUnits = []string{"m/s", "kg", "Hz", "mol", "°C", "m", "N", "J", "W", "s", "A", "V", "Ω", "L", "K"}

// Format parses rawText into a FormattedSolution shaped for queryType
// (mcq, numerical, true_false or general).
func (f *AnswerFormatter) Format(rawText, queryType string) models.FormattedSolution {
	steps := f.parseSteps(rawText)
	finalAnswer := f.extractFinalAnswer(rawText)
	verification := f.extractVerification(rawText)

	solution := models.FormattedSolution{
		Type:                 queryType,
		ProblemUnderstanding: f.extractProblemUnderstanding(rawText),
		FormulasUsed:         f.extractFormulas(rawText),
		Steps:                steps,
		FinalAnswer:          finalAnswer,
		Verification:         verification,
		Confidence:           f.confidence(steps, finalAnswer),
	}

	switch queryType {
	case ai.QueryTypeMCQ:
		if m := optionRe.FindStringSubmatch(finalAnswer); m != nil {
			solution.AnswerOption = strings.ToUpper(m[1])
			solution.FinalAnswer = fmt.Sprintf("**Option (%s)** - %s", solution.AnswerOption, finalAnswer)
		}
	case ai.QueryTypeNumerical:
		solution.NumericalAnswer = numberRe.FindString(finalAnswer)
		solution.Unit = extractUnit(finalAnswer)
	}

	solution.DisplayHTML = renderHTML(solution)
	solution.DisplayText = renderPlainText(solution.Steps)
	return solution
}

// parseSteps splits the text on "Step N: Title" markers. Without
// markers it falls back to blank-line-separated paragraphs.
func (f *AnswerFormatter) parseSteps(text string) []models.SolutionStep {
	matches := stepMarkerRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return f.paragraphSteps(text)
	}

	steps := make([]models.SolutionStep, 0, len(matches))
	for i, m := range matches {
		number, _ := strconv.Atoi(text[m[2]:m[3]])
		title := cleanHeading(strings.TrimRight(strings.TrimSpace(text[m[4]:m[5]]), "* \t"))

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		content := cleanHeading(strings.TrimSpace(text[m[1]:end]))

		steps = append(steps, models.SolutionStep{
			Number:      number,
			Title:       title,
			Content:     content,
			Collapsible: len(content) > collapseThreshold,
		})
	}
	return steps
}

func (f *AnswerFormatter) paragraphSteps(text string) []models.SolutionStep {
	var steps []models.SolutionStep
	for _, para := range strings.Split(text, "\n\n") {
		trimmed := strings.TrimSpace(para)
		if trimmed == "" {
			continue
		}
		n := len(steps) + 1
		steps = append(steps, models.SolutionStep{
			Number:      n,
			Title:       fmt.Sprintf("Part %d", n),
			Content:     cleanHeading(trimmed),
			Collapsible: len(trimmed) > collapseThreshold,
		})
	}
	return steps
}

func (f *AnswerFormatter) extractProblemUnderstanding(text string) string {
	for _, re := range understandingRes {
		if m := re.FindStringSubmatch(text); m != nil {
			return cleanHeading(strings.TrimSpace(m[1]))
		}
	}
	firstPara := strings.SplitN(text, "\n\n", 2)[0]
	if len(firstPara) < 300 {
		return cleanHeading(strings.TrimSpace(firstPara))
	}
	return ""
}

func (f *AnswerFormatter) extractFormulas(text string) []models.Formula {
	var formulas []models.Formula
	for _, m := range mathRe.FindAllStringSubmatch(text, -1) {
		latex, kind := m[1], "display"
		if latex == "" {
			latex, kind = m[2], "inline"
		}
		// Skip trivially short expressions like $x$.
		if len(latex) > 5 {
			formulas = append(formulas, models.Formula{Latex: latex, Type: kind})
		}
	}
	return formulas
}

func (f *AnswerFormatter) extractFinalAnswer(text string) string {
	for _, re := range finalAnswerRes {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimLeft(strings.TrimSpace(m[1]), ": \t")
		}
	}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" && !strings.HasPrefix(line, "Verification") {
			return line
		}
	}
	return "Solution provided above"
}

func (f *AnswerFormatter) extractVerification(text string) string {
	for _, re := range verificationRes {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// confidence is a heuristic completeness signal, not a calibrated
// probability.
func (f *AnswerFormatter) confidence(steps []models.SolutionStep, finalAnswer string) float64 {
	confidence := 0.5
	if len(steps) > 1 {
		confidence += 0.2
	}
	if len(finalAnswer) > 10 {
		confidence += 0.15
	}
	for _, step := range steps {
		if strings.Contains(step.Content, "$") {
			confidence += 0.1
			break
		}
	}
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}

func extractUnit(answer string) string {
	for _, token := range strings.Fields(answer) {
		token = strings.Trim(token, ".,;:()")
		for _, unit := range recognizedUnits {
			if token == unit {
				return unit
			}
		}
	}
	return ""
}

func cleanHeading(text string) string {
	return strings.TrimSpace(headingRe.ReplaceAllString(strings.TrimSpace(text), ""))
}

// renderHTML and renderPlainText derive purely from the parsed steps so
// the projections never disagree with the structure.
func renderHTML(solution models.FormattedSolution) string {
	var b strings.Builder
	b.WriteString(`<div class="solution">`)
	for _, step := range solution.Steps {
		class := "step-content"
		if step.Collapsible {
			class += " collapsible"
		}
		fmt.Fprintf(&b, `<div class="step" data-step="%d"><h3 class="step-title">Step %d: %s</h3><div class="%s">%s</div></div>`,
			step.Number, step.Number, html.EscapeString(step.Title), class, html.EscapeString(step.Content))
	}
	if solution.AnswerOption != "" {
		fmt.Fprintf(&b, `<div class="final-answer mcq"><strong>Correct Option:</strong> %s</div>`, solution.AnswerOption)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func renderPlainText(steps []models.SolutionStep) string {
	var parts []string
	for _, step := range steps {
		parts = append(parts, fmt.Sprintf("Step %d: %s", step.Number, step.Title), step.Content, "")
	}
	return strings.Join(parts, "\n")
}
