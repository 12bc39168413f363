// Package llm calls an OpenAI-compatible chat completions API for the
// content-generation endpoints.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/nurture/internal/adapters/upstream"
	"github.com/okian/nurture/internal/domain/errkind"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 1024
)

// Role of a chat turn.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client generates text through the provider.
type Client struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	timeout   time.Duration
	http      *upstream.Client
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// New creates a client. An empty apiKey yields a client whose calls fail
// with an upstream error.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	c.http = upstream.New("llm", c.timeout)
	return c
}

// Complete runs one chat completion and returns the first choice.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	const op = "llm.Complete"
	if c.apiKey == "" {
		return "", errkind.Wrap(op, errkind.ErrUpstream, upstream.ErrNotConfigured)
	}
	req, err := upstream.JSONRequest(ctx, http.MethodPost, c.baseURL+"/chat/completions", chatRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", errkind.Wrap(op, errkind.ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var resp chatResponse
	if err := c.http.Do(req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errkind.Wrap(op, errkind.ErrUpstream, errors.New("no choices returned"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Summarize condenses text into a short summary.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	return c.Complete(ctx, []Message{
		{Role: RoleSystem, Content: "You summarise documents for busy executives. Reply with a concise summary of at most five sentences."},
		{Role: RoleUser, Content: text},
	})
}

// Insights extracts actionable observations from text, one per line.
func (c *Client) Insights(ctx context.Context, text string) ([]string, error) {
	out, err := c.Complete(ctx, []Message{
		{Role: RoleSystem, Content: "You are a strategy coach. List three to five actionable insights from the text, one per line, without numbering."},
		{Role: RoleUser, Content: text},
	})
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

// GenerateTitle proposes a short title for text.
func (c *Client) GenerateTitle(ctx context.Context, text string) (string, error) {
	out, err := c.Complete(ctx, []Message{
		{Role: RoleSystem, Content: "Write a compelling title of at most ten words for the text. Reply with the title only."},
		{Role: RoleUser, Content: text},
	})
	if err != nil {
		return "", err
	}
	return strings.Trim(out, "\"' "), nil
}

// DocumentChat answers the last user turn of conversation about document.
func (c *Client) DocumentChat(ctx context.Context, document string, conversation []Message) (string, error) {
	if len(conversation) == 0 {
		return "", errkind.Validation("llm.DocumentChat", "conversation is required")
	}
	system := "Answer questions using only the document below. If the answer is not in the document, say so."
	if document != "" {
		system = fmt.Sprintf("%s\n\n---\n%s", system, document)
	}
	msgs := make([]Message, 0, len(conversation)+1)
	msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	for _, m := range conversation {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			m.Role = RoleUser
		}
		msgs = append(msgs, m)
	}
	return c.Complete(ctx, msgs)
}

func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(l), "-*•"))
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
