package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicCompleter is the production Completer, grounded on the
// go.mod-pinned github.com/anthropics/anthropic-sdk-go client. Only the
// CLI names it, when constructing the Adapter; the Adapter itself only
// ever sees the Completer interface.
type AnthropicCompleter struct{}

// Complete issues one Messages.New call. Temperature and max tokens come
// straight from Request.
func (c AnthropicCompleter) Complete(ctx context.Context, req Request) (Response, error) {
	return c.completeWithOptions(ctx, req)
}

// completeWithOptions is Complete plus caller-supplied client options,
// letting tests point the client at a local server instead of the real API.
func (AnthropicCompleter) completeWithOptions(ctx context.Context, req Request, extra ...option.RequestOption) (Response, error) {
	opts := []option.RequestOption{option.WithAPIKey(req.Auth)}
	if req.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(req.Endpoint))
	}
	opts = append(opts, extra...)
	client := anthropic.NewClient(opts...)

	maxTokens := int64(req.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return Response{}, err
	}

	text := ""
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return Response{}, fmt.Errorf("llm: anthropic response contained no text content")
	}

	return Response{
		Text:                 text,
		InputTokensReported:  int(message.Usage.InputTokens),
		OutputTokensReported: int(message.Usage.OutputTokens),
	}, nil
}
