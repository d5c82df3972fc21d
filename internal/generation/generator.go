// Package generation produces discussion question sets for a Bible passage by
// calling an external OpenAI-compatible completion endpoint.
package generation

import (
	"context"
	"fmt"
	"strings"
)

// QuestionCount is the number of questions a study is generated with.
// Responses with any other count are rejected.
const QuestionCount = 5

// GeneratedQuestion is one context/discussion/principle triple returned by
// the generator.
type GeneratedQuestion struct {
	Context    string `json:"context"`
	Discussion string `json:"discussion"`
	Principle  string `json:"principle"`
	Passage    string `json:"passage"`
}

// Generator produces a question set for a passage. Implementations make a
// single bounded attempt; any failure aborts the caller's study creation.
type Generator interface {
	GenerateQuestions(ctx context.Context, book string, chapter int) ([]GeneratedQuestion, error)
}

// validateQuestions checks the structural contract on a generated payload:
// exactly QuestionCount items, each with non-empty context and discussion.
func validateQuestions(questions []GeneratedQuestion) error {
	if len(questions) != QuestionCount {
		return fmt.Errorf("expected %d questions, got %d", QuestionCount, len(questions))
	}

	for i, q := range questions {
		if strings.TrimSpace(q.Context) == "" {
			return fmt.Errorf("question %d has empty context", i+1)
		}
		if strings.TrimSpace(q.Discussion) == "" {
			return fmt.Errorf("question %d has empty discussion", i+1)
		}
	}

	return nil
}
