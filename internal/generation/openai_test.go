package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(content string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"message": map[string]string{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func validPayload() string {
	questions := make([]GeneratedQuestion, QuestionCount)
	for i := range questions {
		questions[i] = GeneratedQuestion{
			Context:    fmt.Sprintf("Context %d", i+1),
			Discussion: fmt.Sprintf("Question %d?", i+1),
			Principle:  fmt.Sprintf("Principle %d", i+1),
			Passage:    fmt.Sprintf("v. %d", i+1),
		}
	}
	b, _ := json.Marshal(questions)
	return string(b)
}

func TestGenerateQuestions(t *testing.T) {
	var gotPath string
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		var req chatRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		require.NoError(t, err)
		assert.Equal(t, "test-model", req.Model)
		assert.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "Philippians chapter 2")

		fmt.Fprint(w, completionBody(validPayload()))
	}))
	defer server.Close()

	g := NewOpenAIGenerator(server.URL, "test-model", "sk-test", 5*time.Second)

	questions, err := g.GenerateQuestions(context.Background(), "Philippians", 2)
	require.NoError(t, err)
	assert.Len(t, questions, QuestionCount)
	assert.Equal(t, "Context 1", questions[0].Context)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}

func TestGenerateQuestionsMarkdownFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := "Here are the questions:\n```json\n" + validPayload() + "\n```\n"
		fmt.Fprint(w, completionBody(content))
	}))
	defer server.Close()

	g := NewOpenAIGenerator(server.URL, "test-model", "", 5*time.Second)

	questions, err := g.GenerateQuestions(context.Background(), "John", 3)
	require.NoError(t, err)
	assert.Len(t, questions, QuestionCount)
}

func TestGenerateQuestionsRejectsWrongCount(t *testing.T) {
	payload := `[{"context":"c","discussion":"d","principle":"p","passage":"v"}]`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody(payload))
	}))
	defer server.Close()

	g := NewOpenAIGenerator(server.URL, "test-model", "", 5*time.Second)

	_, err := g.GenerateQuestions(context.Background(), "John", 3)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected 5 questions")
}

func TestGenerateQuestionsRejectsEmptyFields(t *testing.T) {
	questions := make([]GeneratedQuestion, QuestionCount)
	for i := range questions {
		questions[i] = GeneratedQuestion{Context: "c", Discussion: "d"}
	}
	questions[2].Discussion = "   "
	b, _ := json.Marshal(questions)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody(string(b)))
	}))
	defer server.Close()

	g := NewOpenAIGenerator(server.URL, "test-model", "", 5*time.Second)

	_, err := g.GenerateQuestions(context.Background(), "John", 3)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty discussion")
}

func TestGenerateQuestionsRejectsNonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody("I'd be happy to help with that study!"))
	}))
	defer server.Close()

	g := NewOpenAIGenerator(server.URL, "test-model", "", 5*time.Second)

	_, err := g.GenerateQuestions(context.Background(), "John", 3)
	assert.Error(t, err)
}

func TestGenerateQuestionsEndpointError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	g := NewOpenAIGenerator(server.URL, "test-model", "", 5*time.Second)

	_, err := g.GenerateQuestions(context.Background(), "John", 3)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestGenerateQuestionsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, completionBody(validPayload()))
	}))
	defer server.Close()

	g := NewOpenAIGenerator(server.URL, "test-model", "", 50*time.Millisecond)

	_, err := g.GenerateQuestions(context.Background(), "John", 3)
	assert.Error(t, err)
}

func TestBuildURL(t *testing.T) {
	g := NewOpenAIGenerator("https://api.openai.com/v1", "m", "", 0)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", g.buildURL())

	g = NewOpenAIGenerator("http://localhost:11434/v1/", "m", "", 0)
	assert.Equal(t, "http://localhost:11434/v1/chat/completions", g.buildURL())

	g = NewOpenAIGenerator("http://proxy.local/v1/chat/completions", "m", "", 0)
	assert.Equal(t, "http://proxy.local/v1/chat/completions", g.buildURL())
}
