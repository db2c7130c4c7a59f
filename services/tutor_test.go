package services

import (
	"context"
	"strings"
	"testing"

	"exam-tutor-platform/internal/ai"
	"exam-tutor-platform/internal/config"
	"exam-tutor-platform/models"
)

type fakeCompletionClient struct {
	answer       string
	lastQuery    string
	lastSnippets []string
}

func (f *fakeCompletionClient) Complete(ctx context.Context, query string, contextSnippets []string, temperature float32, maxTokens int32) (*ai.Completion, error) {
	f.lastQuery = query
	f.lastSnippets = contextSnippets
	return &ai.Completion{
		Answer: f.answer,
		Model:  "test-model",
		Usage:  ai.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}, nil
}

const phCompletion = `**Step 1: Understanding the Problem**
We need the pH of a 0.01 M HCl solution.

**Step 2: Solution**
HCl is a strong acid, so $[H^+] = 0.01$ M and $pH = -\log(0.01)$.

Final Answer: pH = 2`

func phKnowledgeBase(t *testing.T) *VectorIndex {
	t.Helper()
	idx := NewVectorIndex(&fakeEmbedder{dim: 64}, "", 0, nil)
	docs := []models.Document{
		{
			Text: "pH Formula: pH = -log[H⁺]\nDescription: pH is the negative logarithm of hydrogen ion concentration\nConditions: For aqueous solutions",
			Meta: models.DocumentMeta{Source: "Formula Sheet", Subject: "chemistry", Topics: []string{"Acids and Bases", "pH"}},
		},
		{
			Text: "Question: Calculate the pH of a 0.01 M HCl solution.\nSolution: HCl is a strong acid, so [H⁺] = 0.01 M, pH = 2",
			Meta: models.DocumentMeta{Source: "JEE 2023", Subject: "chemistry", Topics: []string{"pH Calculation"}},
		},
		{
			Text: "Newton's second law states that force equals mass times acceleration",
			Meta: models.DocumentMeta{Source: "NCERT", Subject: "physics", Topics: []string{"Newton's Laws"}},
		},
	}
	if err := idx.Add(context.Background(), docs); err != nil {
		t.Fatalf("seeding index: %v", err)
	}
	return idx
}

func testTutorConfig() *config.Config {
	return &config.Config{
		TopKRetrieval: 5,
		Temperature:   0.7,
		MaxTokens:     2048,
	}
}

func TestAnswerEndToEnd(t *testing.T) {
	client := &fakeCompletionClient{answer: phCompletion}
	tutor := NewTutorService(testTutorConfig(), client, phKnowledgeBase(t))

	resp, err := tutor.Answer(context.Background(), "Calculate the pH of a 0.01 M HCl solution", "chemistry")
	if err != nil {
		t.Fatalf("answer error: %v", err)
	}

	if resp.QueryType != ai.QueryTypeNumerical {
		t.Errorf("query type = %q, want numerical", resp.QueryType)
	}
	if resp.Subject != "chemistry" {
		t.Errorf("subject = %q, want chemistry", resp.Subject)
	}
	if resp.QueryID == "" {
		t.Error("missing query id")
	}
	if resp.TokensUsed != 150 {
		t.Errorf("tokens = %d, want 150", resp.TokensUsed)
	}

	// The pH knowledge must have been retrieved and passed as context.
	foundFormula := false
	for _, r := range resp.Sources {
		if r.Subject != "chemistry" {
			t.Errorf("subject filter leaked %q", r.Subject)
		}
		if strings.Contains(r.Text, "negative logarithm") {
			foundFormula = true
		}
	}
	if !foundFormula {
		t.Error("pH formula document not retrieved")
	}
	if len(client.lastSnippets) != len(resp.Sources) {
		t.Errorf("context snippets = %d, sources = %d", len(client.lastSnippets), len(resp.Sources))
	}

	if resp.Solution.NumericalAnswer != "2" {
		t.Errorf("numerical answer = %q, want 2", resp.Solution.NumericalAnswer)
	}
	if !strings.Contains(resp.Solution.FinalAnswer, "2") {
		t.Errorf("final answer = %q", resp.Solution.FinalAnswer)
	}
}

func TestAnswerDetectsSubjectWhenNoHint(t *testing.T) {
	client := &fakeCompletionClient{answer: "Step 1: Work\nUse F = ma.\n\nFinal Answer: a = 5 m/s"}
	tutor := NewTutorService(testTutorConfig(), client, phKnowledgeBase(t))

	resp, err := tutor.Answer(context.Background(), "Calculate the force when acceleration doubles", "")
	if err != nil {
		t.Fatalf("answer error: %v", err)
	}
	if resp.Subject != "physics" {
		t.Errorf("detected subject = %q, want physics", resp.Subject)
	}
	for _, r := range resp.Sources {
		if r.Subject != "physics" {
			t.Errorf("detected subject filter leaked %q", r.Subject)
		}
	}
}

func TestFollowUpCarriesPreviousSolution(t *testing.T) {
	client := &fakeCompletionClient{answer: phCompletion}
	tutor := NewTutorService(testTutorConfig(), client, phKnowledgeBase(t))

	previous := &models.QueryRecord{
		QueryID:  "q-1",
		Question: "Calculate the pH of a 0.01 M HCl solution",
		Subject:  "chemistry",
		Solution: models.FormattedSolution{DisplayText: "Step 1: Work\npH = 2"},
	}

	resp, err := tutor.FollowUp(context.Background(), previous, "What if the concentration is 0.001 M?")
	if err != nil {
		t.Fatalf("followup error: %v", err)
	}
	if resp.Subject != "chemistry" {
		t.Errorf("followup subject = %q, want inherited chemistry", resp.Subject)
	}
	if len(client.lastSnippets) == 0 || !strings.Contains(client.lastSnippets[0], "Previous solution") {
		t.Error("previous solution not prepended to context")
	}
}
