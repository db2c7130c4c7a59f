package services

import (
	"context"
	"fmt"
	"time"

	"exam-tutor-platform/internal/ai"
	"exam-tutor-platform/internal/config"
	"exam-tutor-platform/internal/logger"
	"exam-tutor-platform/models"

	"github.com/google/uuid"
)

// CompletionClient is the generation half of the model provider.
// *ai.Client satisfies it; tests substitute a fake.
type CompletionClient interface {
	Complete(ctx context.Context, query string, contextSnippets []string, temperature float32, maxTokens int32) (*ai.Completion, error)
}

// TutorService answers exam questions: it classifies the question,
// retrieves supporting passages from the vector index, asks the model
// for a worked solution and formats the raw completion.
type TutorService struct {
	cfg       *config.Config
	client    CompletionClient
	index     *VectorIndex
	formatter *AnswerFormatter
}

func NewTutorService(cfg *config.Config, client CompletionClient, index *VectorIndex) *TutorService {
	return &TutorService{
		cfg:       cfg,
		client:    client,
		index:     index,
		formatter: NewAnswerFormatter(),
	}
}

// Answer resolves one question. subjectHint overrides keyword-based
// subject detection when the caller already knows the subject.
func (t *TutorService) Answer(ctx context.Context, question, subjectHint string) (*models.QueryResponse, error) {
	return t.answer(ctx, question, subjectHint, nil)
}

// FollowUp answers a question in the context of a previous solution.
// The previous answer is prepended to the retrieved context so the
// model can resolve references like "that value" or "the same setup".
func (t *TutorService) FollowUp(ctx context.Context, previous *models.QueryRecord, question string) (*models.QueryResponse, error) {
	leading := []string{"Previous question: " + previous.Question + "\nPrevious solution: " + previous.Solution.DisplayText}
	return t.answer(ctx, question, previous.Subject, leading)
}

func (t *TutorService) answer(ctx context.Context, question, subjectHint string, leadingContext []string) (*models.QueryResponse, error) {
	subject := subjectHint
	if subject == "" {
		subject = ai.DetectSubject(question)
	}
	queryType := ai.DetectQueryType(question)

	results, err := t.index.Search(ctx, question, t.cfg.TopKRetrieval, models.SearchFilter{Subject: subject})
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	snippets := leadingContext
	for _, r := range results {
		snippets = append(snippets, r.Text)
	}

	completion, err := t.client.Complete(ctx, question, snippets, float32(t.cfg.Temperature), int32(t.cfg.MaxTokens))
	if err != nil {
		return nil, fmt.Errorf("generating solution: %w", err)
	}

	solution := t.formatter.Format(completion.Answer, queryType)

	logger.Info("question answered",
		"subject", subject,
		"query_type", queryType,
		"context_passages", len(results),
		"tokens_used", completion.Usage.TotalTokens,
		"confidence", solution.Confidence)

	return &models.QueryResponse{
		QueryID:    uuid.NewString(),
		Question:   question,
		Subject:    subject,
		QueryType:  queryType,
		Solution:   solution,
		Sources:    results,
		TokensUsed: int(completion.Usage.TotalTokens),
		CreatedAt:  time.Now().UTC(),
	}, nil
}
