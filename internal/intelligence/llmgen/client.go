// Package llmgen provides LLM-backed implementations of the keyword
// generator, prompt builder, and visibility sampler interfaces. Each one
// calls an OpenAI-compatible chat-completions endpoint and falls back to its
// deterministic counterpart on any error, so enabling the backend can never
// make initialization or analysis fail.
package llmgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/pkg/errors"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultModel     = "gpt-4o-mini"
	completionsPath  = "/chat/completions"
	maxResponseBytes = 1 << 20
)

// Config parameterizes the chat-completions client. BaseURL points at any
// OpenAI-compatible server (api.openai.com/v1, a local vLLM, a proxy).
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client is a minimal chat-completions client. It issues one non-streaming
// request per call and returns the first choice's content.
type Client struct {
	cfg  Config
	http *http.Client
	log  logging.Logger
}

// NewClient builds a chat client. BaseURL and APIKey must be set; Model and
// Timeout default when empty.
func NewClient(cfg Config, log logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.Validation("llm generator requires a base URL")
	}
	if cfg.APIKey == "" {
		return nil, errors.Validation("llm generator requires an API key")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.Named("llmgen"),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends a system+user message pair and returns the assistant reply.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeGeneration, "encode chat request")
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + completionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeGeneration, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeGeneration, "chat completion request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeGeneration, "read chat completion response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.New(errors.ErrCodeGeneration,
			fmt.Sprintf("chat completion returned status %d", resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeGeneration, "decode chat completion response")
	}
	if parsed.Error != nil {
		return "", errors.New(errors.ErrCodeGeneration, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New(errors.ErrCodeGeneration, "chat completion returned no choices")
	}

	c.log.Debug("chat completion",
		logging.String("model", c.cfg.Model),
		logging.Duration("elapsed", time.Since(start)))
	return parsed.Choices[0].Message.Content, nil
}
