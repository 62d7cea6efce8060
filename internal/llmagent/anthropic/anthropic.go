// Package anthropic implements llmagent.Agent against Anthropic's Messages
// API: a single non-streaming request per Chat call, converting the
// neutral Conversation model to and from Anthropic's content-block wire
// shape.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fenwick-labs/toolgate/internal/convo"
	"github.com/fenwick-labs/toolgate/internal/llmagent"
)

// Config configures an Agent.
type Config struct {
	APIKey       string
	Model        string
	SystemPrompt string
	MaxTokens    int
}

const defaultMaxTokens = 4096

// Agent adapts Anthropic's Messages API to llmagent.Agent.
type Agent struct {
	client    anthropic.Client
	model     string
	system    string
	maxTokens int64
}

var _ llmagent.Agent = (*Agent)(nil)

// New constructs an Agent.
func New(cfg Config) (*Agent, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic: model is required")
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Agent{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		system:    cfg.SystemPrompt,
		maxTokens: maxTokens,
	}, nil
}

// Chat sends conv and tools to Anthropic and translates the response back
// into content blocks, applying sentinel detection and text hygiene to any
// Text block produced.
func (a *Agent) Chat(ctx context.Context, conv *convo.Conversation, tools []llmagent.ToolSpec) ([]convo.ContentBlock, error) {
	messages, err := convertMessages(conv)
	if err != nil {
		return nil, fmt.Errorf("anthropic: convert conversation: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		Messages:  messages,
		MaxTokens: a.maxTokens,
	}
	if a.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.system}}
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: create message: %w", err)
	}

	return convertResponse(resp), nil
}

func convertMessages(conv *convo.Conversation) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		blocks, err := convertBlocks(msg.Blocks)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		if msg.Role == convo.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out, nil
}

func convertBlocks(blocks []convo.ContentBlock) ([]anthropic.ContentBlockParamUnion, error) {
	out := make([]anthropic.ContentBlockParamUnion, 0, len(blocks))
	for _, b := range blocks {
		switch v := b.(type) {
		case convo.Text:
			out = append(out, anthropic.NewTextBlock(v.Value))
		case convo.ToolUse:
			out = append(out, anthropic.NewToolUseBlock(v.ID, v.Arguments, v.ToolName))
		case convo.ToolResult:
			out = append(out, anthropic.NewToolResultBlock(v.ToolUseID, v.Content, v.IsError))
		case convo.UserInput:
			out = append(out, anthropic.NewTextBlock(v.Prompt))
		case convo.FinalResponse:
			out = append(out, anthropic.NewTextBlock(v.Value))
		case convo.Exception:
			out = append(out, anthropic.NewTextBlock("[error] "+v.Message))
		case convo.Thinking:
			// Extended-thinking traces are not replayed into subsequent
			// requests; only the immediate response's thinking block is
			// surfaced to the caller, never round-tripped.
		default:
			return nil, fmt.Errorf("anthropic: unsupported content block %T", b)
		}
	}
	return out, nil
}

func convertTools(tools []llmagent.ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if len(t.InputSchema) > 0 {
			var parsed map[string]any
			if err := json.Unmarshal(t.InputSchema, &parsed); err == nil {
				if props, ok := parsed["properties"]; ok {
					schema.Properties = props
				}
				if req, ok := parsed["required"].([]any); ok {
					for _, r := range req {
						if s, ok := r.(string); ok {
							schema.Required = append(schema.Required, s)
						}
					}
				}
			}
		}
		tp := anthropic.ToolParam{Name: t.Name, InputSchema: schema}
		if t.Description != "" {
			tp.Description = anthropic.String(t.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tp})
	}
	return out
}

func convertResponse(resp *anthropic.Message) []convo.ContentBlock {
	out := make([]convo.ContentBlock, 0, len(resp.Content))
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if sentinel, ok := convo.DetectSentinel(block.Text); ok {
				out = append(out, sentinel)
				continue
			}
			out = append(out, convo.Hygiene(convo.Text{Value: block.Text}))
		case "tool_use":
			args, _ := json.Marshal(block.Input)
			var arguments map[string]any
			_ = json.Unmarshal(args, &arguments)
			out = append(out, convo.ToolUse{ID: block.ID, ToolName: block.Name, Arguments: arguments})
		case "thinking":
			out = append(out, convo.Thinking{Value: block.Thinking, Signature: block.Signature})
		}
	}
	return out
}
