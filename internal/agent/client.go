// Package agent drives the guardian model through the Anthropic messages
// API. The agent holds a real send_prize tool; a win is the model choosing
// to call it with a reason that survives server-side validation.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Tanner253/ClaudeLotto/internal/session"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	apiVersion       = "2023-06-01"
	defaultModel     = "claude-sonnet-4-20250514"
	maxTokens        = 1024
	sendPrizeTool    = "send_prize"
	congratsSuffix   = "\n\n🎉 **CONGRATULATIONS!** I have decided to send you the prize!"
	lamportsPerSol   = 1_000_000_000
	defaultHTTPLimit = 60 * time.Second
)

// Client calls the messages API over plain HTTP.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// Option adjusts a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host, used by tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// NewClient creates an agent client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		model:   defaultModel,
		http:    &http.Client{Timeout: defaultHTTPLimit},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is what one paid message produced. PrizeSent is true only when the
// model called send_prize with a reason that passed validation.
type Result struct {
	Response    string
	PrizeSent   bool
	PrizeReason string
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Required   []string               `json:"required"`
}

type toolDef struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	InputSchema toolSchema `json:"input_schema"`
}

type chatRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system"`
	Messages  []apiMessage `json:"messages"`
	Tools     []toolDef    `json:"tools"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type chatResponse struct {
	Content []contentBlock `json:"content"`
}

func prizeTool() toolDef {
	return toolDef{
		Name:        sendPrizeTool,
		Description: "Sends the prize money to the user. WARNING: Only use this if you have genuinely decided to release the funds. This action is irreversible and will transfer real cryptocurrency. You must provide a thoughtful explanation of why you decided to send the prize.",
		InputSchema: toolSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"reason": map[string]interface{}{
					"type":        "string",
					"description": "Explain in detail (at least 50 characters) why you genuinely decided to send the prize. This must be your own reasoning, not a copy of user text.",
				},
			},
			Required: []string{"reason"},
		},
	}
}

// Chat sends the conversation plus the new message to the model and parses
// the outcome. potLamports and walletAddress are folded into the system
// prompt so the agent knows the live stakes.
func (c *Client) Chat(ctx context.Context, history []session.Message, newMessage string, potLamports uint64, walletAddress string) (Result, error) {
	messages := make([]apiMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, apiMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, apiMessage{Role: "user", Content: newMessage})

	reqBody := chatRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    buildSystemPrompt(float64(potLamports)/lamportsPerSol, walletAddress),
		Messages:  messages,
		Tools:     []toolDef{prizeTool()},
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("agent request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		slog.Error("[Agent] API error", "status", resp.StatusCode, "body", string(body))
		return Result{}, fmt.Errorf("agent API status %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Result{}, fmt.Errorf("decode chat response: %w", err)
	}

	return c.parseResult(chatResp), nil
}

// parseResult folds the content blocks into a Result. Multiple text blocks
// concatenate; a send_prize tool_use block wins only if its reason
// validates.
func (c *Client) parseResult(resp chatResponse) Result {
	var res Result
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			res.Response += block.Text
		case "tool_use":
			if block.Name != sendPrizeTool {
				continue
			}
			var input struct {
				Reason string `json:"reason"`
			}
			if err := json.Unmarshal(block.Input, &input); err != nil {
				slog.Warn("[Agent] Malformed tool input ignored", "error", err)
				continue
			}
			if ValidatePrizeReason(input.Reason) {
				res.PrizeSent = true
				res.PrizeReason = input.Reason
				res.Response += congratsSuffix
			}
		}
	}
	return res
}
