package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const chatCompletionsEndpoint = "/chat/completions"

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type StoryRequest struct {
	Prompt       string `json:"prompt" validate:"required,max=4000"`
	SystemPrompt string `json:"systemPrompt" validate:"max=4000"`
	Era          string `json:"era" validate:"max=100"`
	Character    string `json:"characterName" validate:"max=100"`
}

type Story struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

type Generator interface {
	// GenerateStory calls the completion API. apiKey overrides the configured
	// key when not empty.
	GenerateStory(ctx context.Context, req StoryRequest, apiKey string) (*Story, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type client struct {
	http   *http.Client
	config Config
}

func NewClient(cfg Config) Generator {
	return &client{
		http:   &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

func (c *client) GenerateStory(ctx context.Context, req StoryRequest, apiKey string) (*Story, error) {
	if apiKey == "" {
		apiKey = c.config.APIKey
	}
	if apiKey == "" {
		return nil, ErrUnauthorized
	}

	system := req.SystemPrompt
	if system == "" {
		system = "You write short illustrated children's storybooks."
	}
	user := req.Prompt
	if req.Era != "" || req.Character != "" {
		user = fmt.Sprintf("Era: %s\nMain character: %s\n\n%s", req.Era, req.Character, req.Prompt)
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}); err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.config.BaseURL, "/")+chatCompletionsEndpoint, &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, MapStatusToError(resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding error: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResult
	}

	return &Story{Content: out.Choices[0].Message.Content, Model: out.Model}, nil
}
