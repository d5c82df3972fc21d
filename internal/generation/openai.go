package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseSize limits the completion response body.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// OpenAIGenerator calls an OpenAI-compatible chat completions API.
type OpenAIGenerator struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIGenerator creates a generator for the given endpoint. The timeout
// bounds the whole completion call; there are no retries.
func NewOpenAIGenerator(baseURL, model, apiKey string, timeout time.Duration) *OpenAIGenerator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OpenAIGenerator{
		baseURL: baseURL,
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// chatRequest is the OpenAI-compatible request format.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the OpenAI-compatible response format.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

const systemPrompt = "You are a Bible study guide writer. " +
	"You respond only with a JSON array, no prose before or after it."

// GenerateQuestions requests a question set for the passage and validates the
// returned shape before accepting it.
func (g *OpenAIGenerator) GenerateQuestions(ctx context.Context, book string, chapter int) ([]GeneratedQuestion, error) {
	userPrompt := fmt.Sprintf(
		"Write exactly %d discussion questions for a small-group study of %s chapter %d. "+
			"Return a JSON array of %d objects, each with string fields "+
			"\"context\" (background for the question), \"discussion\" (the question itself), "+
			"\"principle\" (the underlying principle) and \"passage\" (the verses it draws on).",
		QuestionCount, book, chapter, QuestionCount)

	reqBody, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.buildURL(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completion endpoint returned status %d", resp.StatusCode)
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("parse completion response: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices in completion response")
	}

	return parseQuestions(completion.Choices[0].Message.Content)
}

// buildURL constructs the chat completions endpoint.
func (g *OpenAIGenerator) buildURL() string {
	baseURL := strings.TrimSuffix(g.baseURL, "/")

	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}

	return baseURL + "/chat/completions"
}

// parseQuestions extracts the JSON array from the model output and validates
// it against the expected shape.
func parseQuestions(content string) ([]GeneratedQuestion, error) {
	raw := extractJSONArray(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON array in completion output")
	}

	var questions []GeneratedQuestion
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		return nil, fmt.Errorf("parse question payload: %w", err)
	}

	if err := validateQuestions(questions); err != nil {
		return nil, err
	}

	return questions, nil
}
