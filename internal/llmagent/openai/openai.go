// Package openai implements llmagent.Agent against OpenAI's chat
// completions API: a single non-streaming request per Chat call, with the
// same retry-on-transient-error policy the teacher's streaming provider
// uses.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fenwick-labs/toolgate/internal/convo"
	"github.com/fenwick-labs/toolgate/internal/llmagent"
)

// Config configures an Agent.
type Config struct {
	APIKey       string
	Model        string
	SystemPrompt string
	MaxTokens    int
	MaxRetries   int
	RetryDelay   time.Duration
}

const (
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

// Agent adapts OpenAI's chat completions API to llmagent.Agent.
type Agent struct {
	client     *openai.Client
	model      string
	system     string
	maxTokens  int
	maxRetries int
	retryDelay time.Duration
}

var _ llmagent.Agent = (*Agent)(nil)

// New constructs an Agent.
func New(cfg Config) (*Agent, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &Agent{
		client:     openai.NewClient(cfg.APIKey),
		model:      cfg.Model,
		system:     cfg.SystemPrompt,
		maxTokens:  cfg.MaxTokens,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}, nil
}

// Chat sends conv and tools to OpenAI and translates the response back into
// content blocks, applying sentinel detection and text hygiene to any Text
// block produced.
func (a *Agent) Chat(ctx context.Context, conv *convo.Conversation, tools []llmagent.ToolSpec) ([]convo.ContentBlock, error) {
	messages, err := convertMessages(conv, a.system)
	if err != nil {
		return nil, fmt.Errorf("openai: convert conversation: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: messages,
	}
	if a.maxTokens > 0 {
		req.MaxTokens = a.maxTokens
	}
	if len(tools) > 0 {
		req.Tools = convertTools(tools)
	}

	var resp openai.ChatCompletionResponse
	var lastErr error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.retryDelay * time.Duration(attempt)):
			}
		}
		resp, lastErr = a.client.CreateChatCompletion(ctx, req)
		if lastErr == nil {
			break
		}
		if !isRetryableError(lastErr) {
			return nil, fmt.Errorf("openai: create chat completion: %w", lastErr)
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("openai: max retries exceeded: %w", lastErr)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: response had no choices")
	}

	return convertResponse(resp.Choices[0].Message), nil
}

func convertMessages(conv *convo.Conversation, system string) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(conv.Messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, msg := range conv.Messages {
		switch msg.Role {
		case convo.RoleAssistant:
			m, err := convertAssistantMessage(msg.Blocks)
			if err != nil {
				return nil, err
			}
			if m != nil {
				out = append(out, *m)
			}
		default:
			userMsgs, err := convertUserBlocks(msg.Blocks)
			if err != nil {
				return nil, err
			}
			out = append(out, userMsgs...)
		}
	}
	return out, nil
}

func convertAssistantMessage(blocks []convo.ContentBlock) (*openai.ChatCompletionMessage, error) {
	var text []string
	var calls []openai.ToolCall
	for _, b := range blocks {
		switch v := b.(type) {
		case convo.Text:
			text = append(text, v.Value)
		case convo.FinalResponse:
			text = append(text, v.Value)
		case convo.ToolUse:
			args, err := json.Marshal(v.Arguments)
			if err != nil {
				return nil, fmt.Errorf("openai: marshal tool-use arguments: %w", err)
			}
			calls = append(calls, openai.ToolCall{
				ID:   v.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      v.ToolName,
					Arguments: string(args),
				},
			})
		case convo.Thinking:
			// not replayed; see the Anthropic adapter for the same decision
		case convo.Exception:
			text = append(text, "[error] "+v.Message)
		}
	}
	if len(text) == 0 && len(calls) == 0 {
		return nil, nil
	}
	return &openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   strings.Join(text, "\n"),
		ToolCalls: calls,
	}, nil
}

func convertUserBlocks(blocks []convo.ContentBlock) ([]openai.ChatCompletionMessage, error) {
	var out []openai.ChatCompletionMessage
	var text []string
	flushText := func() {
		if len(text) == 0 {
			return
		}
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: strings.Join(text, "\n")})
		text = nil
	}
	for _, b := range blocks {
		switch v := b.(type) {
		case convo.Text:
			text = append(text, v.Value)
		case convo.UserInput:
			text = append(text, v.Prompt)
		case convo.FinalResponse:
			text = append(text, v.Value)
		case convo.Exception:
			text = append(text, "[error] "+v.Message)
		case convo.ToolResult:
			flushText()
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    v.Content,
				ToolCallID: v.ToolUseID,
			})
		}
	}
	flushText()
	return out, nil
}

func convertTools(tools []llmagent.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		schemaMap := map[string]any{"type": "object", "properties": map[string]any{}}
		if len(t.InputSchema) > 0 {
			var parsed map[string]any
			if err := json.Unmarshal(t.InputSchema, &parsed); err == nil {
				schemaMap = parsed
			}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaMap,
			},
		}
	}
	return out
}

func convertResponse(msg openai.ChatCompletionMessage) []convo.ContentBlock {
	var out []convo.ContentBlock
	if strings.TrimSpace(msg.Content) != "" {
		if sentinel, ok := convo.DetectSentinel(msg.Content); ok {
			out = append(out, sentinel)
		} else {
			out = append(out, convo.Hygiene(convo.Text{Value: msg.Content}))
		}
	}
	for _, tc := range msg.ToolCalls {
		var arguments map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &arguments)
		out = append(out, convo.ToolUse{ID: tc.ID, ToolName: tc.Function.Name, Arguments: arguments})
	}
	return out
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"rate limit", "429", "500", "502", "503", "504", "timeout", "deadline exceeded"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
