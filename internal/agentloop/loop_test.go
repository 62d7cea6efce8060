package agentloop

import (
	"context"
	"errors"
	"testing"

	"github.com/fenwick-labs/toolgate/internal/catalogue"
	"github.com/fenwick-labs/toolgate/internal/catalogue/embedder/hashembed"
	"github.com/fenwick-labs/toolgate/internal/catalogue/store/memstore"
	"github.com/fenwick-labs/toolgate/internal/convo"
	"github.com/fenwick-labs/toolgate/internal/llmagent"
	"github.com/fenwick-labs/toolgate/internal/pool"
	"github.com/fenwick-labs/toolgate/internal/registry"
	"github.com/fenwick-labs/toolgate/internal/registryclient"
	"github.com/fenwick-labs/toolgate/internal/toolbox"
)

// scriptedAgent replays a fixed sequence of responses, one per Chat call,
// ignoring the conversation and tools it's given.
type scriptedAgent struct {
	responses [][]convo.ContentBlock
	errs      []error
	calls     int
}

func (a *scriptedAgent) Chat(ctx context.Context, conv *convo.Conversation, tools []llmagent.ToolSpec) ([]convo.ContentBlock, error) {
	i := a.calls
	a.calls++
	var err error
	if i < len(a.errs) {
		err = a.errs[i]
	}
	if i < len(a.responses) {
		return a.responses[i], err
	}
	return nil, err
}

func newTestToolbox() *toolbox.Toolbox {
	p := pool.New(func(ctx context.Context, key pool.Key) (pool.Conn, error) {
		return nil, errors.New("no upstream servers in this test")
	}, pool.Config{})
	cat := catalogue.New(memstore.New(), hashembed.New(), nil)
	rc := registryclient.NewInProcess(registry.New(cat))
	return toolbox.New(p, rc, nil)
}

func TestRunReturnsFinalResponse(t *testing.T) {
	agent := &scriptedAgent{responses: [][]convo.ContentBlock{
		{convo.FinalResponse{Value: "the answer is 4"}},
	}}
	loop := New(agent, newTestToolbox(), Config{}, nil)

	conv := convo.New()
	conv.AppendUserText("what is 2+2?")
	result := loop.Run(context.Background(), conv)

	if result.Kind != KindFinal {
		t.Fatalf("Kind = %q, want %q", result.Kind, KindFinal)
	}
	if result.Text != "the answer is 4" {
		t.Errorf("Text = %q", result.Text)
	}
	if result.Depth != 1 {
		t.Errorf("Depth = %d, want 1", result.Depth)
	}
}

func TestRunReturnsNeedsInput(t *testing.T) {
	agent := &scriptedAgent{responses: [][]convo.ContentBlock{
		{convo.UserInput{Prompt: "which file should I look at?"}},
	}}
	loop := New(agent, newTestToolbox(), Config{}, nil)

	conv := convo.New()
	conv.AppendUserText("fix the bug")
	result := loop.Run(context.Background(), conv)

	if result.Kind != KindNeedsInput {
		t.Fatalf("Kind = %q, want %q", result.Kind, KindNeedsInput)
	}
	if result.Text != "which file should I look at?" {
		t.Errorf("Text = %q", result.Text)
	}
}

func TestRunDispatchesToolUseThenFinishes(t *testing.T) {
	agent := &scriptedAgent{responses: [][]convo.ContentBlock{
		{convo.ToolUse{ID: "1", ToolName: registry.ToolListTools, Arguments: map[string]any{}}},
		{convo.FinalResponse{Value: "done"}},
	}}
	tb := newTestToolbox()
	loop := New(agent, tb, Config{}, nil)

	conv := convo.New()
	conv.AppendUserText("list the tools")
	result := loop.Run(context.Background(), conv)

	if result.Kind != KindFinal {
		t.Fatalf("Kind = %q, want %q", result.Kind, KindFinal)
	}
	if result.Depth != 2 {
		t.Errorf("Depth = %d, want 2", result.Depth)
	}
	if agent.calls != 2 {
		t.Errorf("expected exactly 2 Agent calls, got %d", agent.calls)
	}

	// The tool result should have been appended as a user message ahead of
	// the final response's assistant message.
	foundToolResult := false
	for _, msg := range conv.Messages {
		for _, b := range msg.Blocks {
			if _, ok := b.(convo.ToolResult); ok {
				foundToolResult = true
			}
		}
	}
	if !foundToolResult {
		t.Error("expected a ToolResult block appended to the conversation")
	}
}

func TestRunPlainTextWithNoSentinelIsTreatedAsFinal(t *testing.T) {
	agent := &scriptedAgent{responses: [][]convo.ContentBlock{
		{convo.Text{Value: "just some prose, no sentinel"}},
	}}
	loop := New(agent, newTestToolbox(), Config{}, nil)

	conv := convo.New()
	conv.AppendUserText("hello")
	result := loop.Run(context.Background(), conv)

	if result.Kind != KindFinal {
		t.Fatalf("Kind = %q, want %q", result.Kind, KindFinal)
	}
	if result.Text != "just some prose, no sentinel" {
		t.Errorf("Text = %q", result.Text)
	}
}

func TestRunDepthExceeded(t *testing.T) {
	agent := &scriptedAgent{}
	for i := 0; i < 3; i++ {
		agent.responses = append(agent.responses, []convo.ContentBlock{convo.Text{Value: "keep going"}, convo.ToolUse{ID: "x", ToolName: registry.ToolListTools, Arguments: map[string]any{}}})
	}

	loop := New(agent, newTestToolbox(), Config{MaxDepth: 3}, nil)
	conv := convo.New()
	conv.AppendUserText("loop forever")
	result := loop.Run(context.Background(), conv)

	if result.Kind != KindDepthExceeded {
		t.Fatalf("Kind = %q, want %q", result.Kind, KindDepthExceeded)
	}
	if result.Depth != 3 {
		t.Errorf("Depth = %d, want 3", result.Depth)
	}
	if agent.calls != 3 {
		t.Errorf("expected exactly 3 Agent calls, got %d", agent.calls)
	}
}

func TestRunAgentErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	agent := &scriptedAgent{errs: []error{boom}}
	loop := New(agent, newTestToolbox(), Config{}, nil)

	conv := convo.New()
	conv.AppendUserText("hello")
	result := loop.Run(context.Background(), conv)

	if result.Kind != KindError {
		t.Fatalf("Kind = %q, want %q", result.Kind, KindError)
	}
	if !errors.Is(result.Err, boom) {
		t.Errorf("expected the underlying error to be wrapped, got %v", result.Err)
	}
}

func TestRunExceptionBlockIsError(t *testing.T) {
	agent := &scriptedAgent{responses: [][]convo.ContentBlock{
		{convo.Exception{Message: "catalogue unavailable"}},
	}}
	loop := New(agent, newTestToolbox(), Config{}, nil)

	conv := convo.New()
	conv.AppendUserText("hello")
	result := loop.Run(context.Background(), conv)

	if result.Kind != KindError {
		t.Fatalf("Kind = %q, want %q", result.Kind, KindError)
	}
	if result.Err == nil {
		t.Fatal("expected a non-nil error")
	}
}

func TestRunNoContentBlocksIsError(t *testing.T) {
	agent := &scriptedAgent{responses: [][]convo.ContentBlock{{}}}
	loop := New(agent, newTestToolbox(), Config{}, nil)

	conv := convo.New()
	conv.AppendUserText("hello")
	result := loop.Run(context.Background(), conv)

	if result.Kind != KindError {
		t.Fatalf("Kind = %q, want %q", result.Kind, KindError)
	}
	if !errors.Is(result.Err, ErrNoToolsAndNoText) {
		t.Errorf("expected ErrNoToolsAndNoText, got %v", result.Err)
	}
}
