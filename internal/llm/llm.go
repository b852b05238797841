// Package llm wraps the Anthropic API for the agents. Each agent owns its
// prompts and response shapes; this package owns the transport.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Client wraps the Anthropic API with a primary and a fast model.
type Client struct {
	api       *anthropic.Client
	model     anthropic.Model
	fastModel anthropic.Model
}

// NewClient creates an LLM client. fastModel may equal model when no cheaper
// tier is configured.
func NewClient(apiKey, model, fastModel string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	if fastModel == "" {
		fastModel = model
	}
	return &Client{
		api:       &client,
		model:     anthropic.Model(model),
		fastModel: anthropic.Model(fastModel),
	}
}

// Complete sends one system+user exchange and returns the text reply.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int64, fast bool) (string, error) {
	model := c.model
	if fast {
		model = c.fastModel
	}

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content in API response")
	}
	return text, nil
}

// Summarize condenses a file that is too large to include in a prompt
// verbatim. It runs on the fast model.
func (c *Client) Summarize(ctx context.Context, path, content string) (string, error) {
	system := `You summarize source files for a code-generation agent. Describe the file's purpose, its public interface (functions, classes, types, constants with signatures), and anything another file would need to know to use or modify it. Be dense and factual. Plain text only.`
	user := fmt.Sprintf("Summarize %s:\n\n%s", path, content)
	return c.Complete(ctx, system, user, 2048, true)
}

// StripFences removes a markdown code fence wrapper if present.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
