package services

import (
	"strings"
	"testing"

	"exam-tutor-platform/internal/ai"
)

const stepSolution = `**Step 1: Understanding the Problem**
We are given a 0.01 M HCl solution and need the pH.

**Step 2: Solution**
HCl dissociates completely, so $[H^+] = 0.01$ M and $pH = -\log[H^+]$.

Final Answer: the pH of the solution is 2`

func TestParseStepsWithMarkers(t *testing.T) {
	f := NewAnswerFormatter()
	solution := f.Format(stepSolution, ai.QueryTypeGeneral)

	if len(solution.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(solution.Steps))
	}
	if solution.Steps[0].Number != 1 || solution.Steps[0].Title != "Understanding the Problem" {
		t.Errorf("step 1 parsed as %d %q", solution.Steps[0].Number, solution.Steps[0].Title)
	}
	if solution.Steps[1].Number != 2 || solution.Steps[1].Title != "Solution" {
		t.Errorf("step 2 parsed as %d %q", solution.Steps[1].Number, solution.Steps[1].Title)
	}
	if !strings.Contains(solution.Steps[1].Content, "dissociates completely") {
		t.Errorf("step 2 content wrong: %q", solution.Steps[1].Content)
	}
}

func TestParseStepsParagraphFallback(t *testing.T) {
	f := NewAnswerFormatter()
	raw := "First we examine the forces acting on the block.\n\nThen we apply the equations of motion."
	solution := f.Format(raw, ai.QueryTypeGeneral)

	if len(solution.Steps) != 2 {
		t.Fatalf("expected 2 paragraph steps, got %d", len(solution.Steps))
	}
	if solution.Steps[0].Title != "Part 1" || solution.Steps[1].Title != "Part 2" {
		t.Errorf("fallback titles wrong: %q, %q", solution.Steps[0].Title, solution.Steps[1].Title)
	}
	if solution.Steps[1].Number != 2 {
		t.Errorf("fallback numbering wrong: %d", solution.Steps[1].Number)
	}
}

func TestCollapsibleThreshold(t *testing.T) {
	f := NewAnswerFormatter()
	long := strings.Repeat("a detailed derivation ", 15)
	raw := "Step 1: Short\nbrief\n\nStep 2: Long\n" + long
	solution := f.Format(raw, ai.QueryTypeGeneral)

	if len(solution.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(solution.Steps))
	}
	if solution.Steps[0].Collapsible {
		t.Error("short step should not be collapsible")
	}
	if !solution.Steps[1].Collapsible {
		t.Error("long step should be collapsible")
	}
}

func TestConfidenceFullyStructured(t *testing.T) {
	f := NewAnswerFormatter()
	solution := f.Format(stepSolution, ai.QueryTypeGeneral)

	// Two steps, answer over 10 chars, math delimiter present.
	if solution.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", solution.Confidence)
	}
}

func TestConfidenceBase(t *testing.T) {
	f := NewAnswerFormatter()
	solution := f.Format("The block stays at rest. Answer: yes", ai.QueryTypeGeneral)

	if len(solution.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(solution.Steps))
	}
	if solution.FinalAnswer != "yes" {
		t.Errorf("final answer = %q, want %q", solution.FinalAnswer, "yes")
	}
	if solution.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", solution.Confidence)
	}
}

func TestFinalAnswerSkipsAnswersProse(t *testing.T) {
	f := NewAnswerFormatter()
	raw := "Answers to similar problems use the same trigonometric identity.\n\nTherefore, x = 4."
	solution := f.Format(raw, ai.QueryTypeGeneral)

	if !strings.Contains(solution.FinalAnswer, "x = 4") {
		t.Errorf("final answer = %q, want the Therefore clause", solution.FinalAnswer)
	}
	if strings.Contains(solution.FinalAnswer, "similar problems") {
		t.Errorf("prose mistaken for an answer marker: %q", solution.FinalAnswer)
	}
}

func TestProblemUnderstandingExtraction(t *testing.T) {
	f := NewAnswerFormatter()
	solution := f.Format(stepSolution, ai.QueryTypeGeneral)

	if !strings.Contains(solution.ProblemUnderstanding, "0.01 M HCl") {
		t.Errorf("problem understanding = %q", solution.ProblemUnderstanding)
	}
}

func TestFormulaExtraction(t *testing.T) {
	f := NewAnswerFormatter()
	raw := "Apply $$E = mc^2$$ and then $F = ma + kx$ to the system."
	solution := f.Format(raw, ai.QueryTypeGeneral)

	if len(solution.FormulasUsed) != 2 {
		t.Fatalf("expected 2 formulas, got %d", len(solution.FormulasUsed))
	}
	if solution.FormulasUsed[0].Type != "display" || solution.FormulasUsed[0].Latex != "E = mc^2" {
		t.Errorf("display formula parsed as %+v", solution.FormulasUsed[0])
	}
	if solution.FormulasUsed[1].Type != "inline" {
		t.Errorf("inline formula parsed as %+v", solution.FormulasUsed[1])
	}
}

func TestMCQOptionHighlighting(t *testing.T) {
	f := NewAnswerFormatter()
	raw := "Step 1: Eliminate options\nOptions (A) and (C) violate conservation.\n\nFinal Answer: the correct choice is (b) by momentum conservation"
	solution := f.Format(raw, ai.QueryTypeMCQ)

	if solution.AnswerOption != "B" {
		t.Errorf("answer option = %q, want B", solution.AnswerOption)
	}
	if !strings.HasPrefix(solution.FinalAnswer, "**Option (B)** - ") {
		t.Errorf("final answer not prefixed: %q", solution.FinalAnswer)
	}
}

func TestNumericalAnswerExtraction(t *testing.T) {
	f := NewAnswerFormatter()
	solution := f.Format(stepSolution, ai.QueryTypeNumerical)

	if solution.NumericalAnswer != "2" {
		t.Errorf("numerical answer = %q, want 2", solution.NumericalAnswer)
	}
	if !strings.Contains(solution.FinalAnswer, "2") {
		t.Errorf("final answer = %q", solution.FinalAnswer)
	}
}

func TestNumericalUnitExtraction(t *testing.T) {
	f := NewAnswerFormatter()
	raw := "Step 1: Work\nUse v = u + at.\n\nFinal Answer: the velocity is 25 m/s."
	solution := f.Format(raw, ai.QueryTypeNumerical)

	if solution.NumericalAnswer != "25" {
		t.Errorf("numerical answer = %q, want 25", solution.NumericalAnswer)
	}
	if solution.Unit != "m/s" {
		t.Errorf("unit = %q, want m/s", solution.Unit)
	}
}

func TestUnitTokenMatching(t *testing.T) {
	cases := []struct {
		answer string
		want   string
	}{
		{"the resistance is 4 Ω in series", "Ω"},
		{"temperature rises to 30 °C.", "°C"},
		{"n = 2 mol of gas", "mol"},
		{"mass of 5 kg", "kg"},
		{"no unit here", ""},
		{"2m is not a separated token", ""},
	}
	for _, tc := range cases {
		if got := extractUnit(tc.answer); got != tc.want {
			t.Errorf("extractUnit(%q) = %q, want %q", tc.answer, got, tc.want)
		}
	}
}

func TestVerificationExtraction(t *testing.T) {
	f := NewAnswerFormatter()
	raw := "Step 1: Work\nSolve directly.\n\nFinal Answer: x = 4\n\nVerification: substituting back gives 16 = 16."
	solution := f.Format(raw, ai.QueryTypeGeneral)

	if !strings.Contains(solution.Verification, "substituting back") {
		t.Errorf("verification = %q", solution.Verification)
	}
	if strings.Contains(solution.FinalAnswer, "Verification") {
		t.Errorf("final answer bleeds into verification: %q", solution.FinalAnswer)
	}
}

func TestRenderedProjections(t *testing.T) {
	f := NewAnswerFormatter()
	solution := f.Format(stepSolution, ai.QueryTypeGeneral)

	if !strings.Contains(solution.DisplayHTML, `data-step="1"`) {
		t.Error("html projection missing step block")
	}
	if !strings.Contains(solution.DisplayText, "Step 1: Understanding the Problem") {
		t.Error("plain text projection missing step title")
	}
}
