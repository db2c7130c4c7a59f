// models/solution.go
package models

// SolutionStep is one step of a worked solution.
type SolutionStep struct {
	Number      int    `json:"step_number"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Collapsible bool   `json:"collapsible"`
}

// Formula is a LaTeX expression extracted from a solution.
// Type is "display" for $$...$$ blocks and "inline" for $...$ spans.
type Formula struct {
	Latex string `json:"latex"`
	Type  string `json:"type"`
}

// FormattedSolution is the structured rendering of a raw model answer.
type FormattedSolution struct {
	Type                 string         `json:"type"`
	ProblemUnderstanding string         `json:"problem_understanding,omitempty"`
	FormulasUsed         []Formula      `json:"formulas_used,omitempty"`
	Steps                []SolutionStep `json:"steps"`
	FinalAnswer          string         `json:"final_answer"`
	Verification         string         `json:"verification,omitempty"`
	Confidence           float64        `json:"confidence"`

	// Populated for mcq answers only.
	AnswerOption string `json:"answer_option,omitempty"`

	// Populated for numerical answers only.
	NumericalAnswer string `json:"numerical_answer,omitempty"`
	Unit            string `json:"unit,omitempty"`

	DisplayHTML string `json:"display_html"`
	DisplayText string `json:"display_text"`
}
