package llmclient

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a model conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes a single model call.
type Request struct {
	Model     string
	System    string
	Messages  []Message
	MaxTokens int
}

// Response carries the model text and token accounting for one call.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Caller issues one model call. Implementations must be safe for concurrent use.
type Caller interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// Client talks to the Anthropic Messages API.
type Client struct {
	client anthropic.Client
	logger *zap.Logger
}

func New(apiKey string, logger *zap.Logger) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
	}
}

// Call sends one Messages request and collects the text blocks of the reply.
// Failures come back as *APIError so callers can branch on the class.
func (c *Client) Call(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, &APIError{Type: ErrorTypeBadRequest, Message: "empty message list"}
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(m.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)},
		})
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System, Type: "text"}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		classified := classifyError(err)
		c.logger.Warn("Model call failed",
			zap.String("model", req.Model),
			zap.String("error_type", classified.Type.String()),
			zap.Error(err))
		return Response{}, classified
	}
	if resp == nil || len(resp.Content) == 0 {
		return Response{}, &APIError{Type: ErrorTypeTransient, Message: "empty response from model"}
	}

	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	return Response{
		Text:         text.String(),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}
