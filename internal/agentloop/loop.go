// Package agentloop drives the bounded iterative conversation the spec
// calls the Agent Loop: call the Agent, dispatch any tool uses it
// requested strictly sequentially (preserving causal order per tool-result
// dependency), append results, and repeat until a sentinel, an error, or
// MaxDepth is reached. Modeled on the teacher's agent.AgenticLoop state
// machine (Stream → ExecuteTools → Continue), stripped of persistence,
// job queues, approval gates, and steering — this module has none of
// those concerns.
package agentloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fenwick-labs/toolgate/internal/convo"
	"github.com/fenwick-labs/toolgate/internal/llmagent"
	"github.com/fenwick-labs/toolgate/internal/toolbox"
)

// DefaultMaxDepth is the resolved open question: ten LLM round-trips per
// Run before the loop gives up and reports exhaustion.
const DefaultMaxDepth = 10

// Config configures a Loop.
type Config struct {
	// MaxDepth bounds the number of Agent calls a single Run makes.
	// Defaults to DefaultMaxDepth when <= 0.
	MaxDepth int
}

// Kind classifies how a Run ended.
type Kind string

const (
	// KindFinal means the assistant emitted FINAL_RESPONSE.
	KindFinal Kind = "final"
	// KindNeedsInput means the assistant emitted NEED_USER_INPUT; the
	// caller should collect a reply and start a new Run appending it.
	KindNeedsInput Kind = "needs_input"
	// KindDepthExceeded means MaxDepth was reached with neither sentinel.
	KindDepthExceeded Kind = "depth_exceeded"
	// KindError means the Run ended on an error: the Agent call failed, the
	// context was canceled, or the response was empty or carried an
	// Exception block.
	KindError Kind = "error"
)

// Result is what one Run produces.
type Result struct {
	Kind Kind
	// Text is the final or prompt text for KindFinal/KindNeedsInput.
	Text  string
	Depth int
	Err   error
}

// Loop ties one Agent to one Toolbox.
type Loop struct {
	agent    llmagent.Agent
	toolbox  *toolbox.Toolbox
	maxDepth int
	logger   *slog.Logger

	iterations prometheus.Histogram
	outcomes   *prometheus.CounterVec
}

// New constructs a Loop.
func New(agent llmagent.Agent, tb *toolbox.Toolbox, cfg Config, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Loop{
		agent:    agent,
		toolbox:  tb,
		maxDepth: maxDepth,
		logger:   logger.With("component", "agentloop"),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "toolgate_agentloop_depth",
			Help:    "Number of Agent round-trips a Run took before ending.",
			Buckets: prometheus.LinearBuckets(1, 1, DefaultMaxDepth),
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgate_agentloop_outcome_total",
			Help: "Run outcomes by kind.",
		}, []string{"kind"}),
	}
}

// Collectors exposes the Loop's prometheus metrics for registration by the
// caller.
func (l *Loop) Collectors() []prometheus.Collector {
	return []prometheus.Collector{l.iterations, l.outcomes}
}

// ErrNoToolsAndNoText is returned when the Agent produces no content blocks
// at all — an empty response the loop cannot continue from.
var ErrNoToolsAndNoText = errors.New("agentloop: agent returned no content blocks")

// Run drives conv forward until a sentinel, an error, or MaxDepth. conv is
// mutated in place: every Agent response and every ToolResult is appended
// to it, so a caller can inspect the full transcript after Run returns
// regardless of outcome.
func (l *Loop) Run(ctx context.Context, conv *convo.Conversation) Result {
	tools := toSpecs(l.toolbox.AvailableTools())

	for depth := 1; depth <= l.maxDepth; depth++ {
		select {
		case <-ctx.Done():
			appendException(conv, ctx.Err().Error(), ctx.Err())
			l.outcomes.WithLabelValues(string(KindError)).Inc()
			return Result{Kind: KindError, Depth: depth - 1, Err: ctx.Err()}
		default:
		}

		blocks, err := l.agent.Chat(ctx, conv, tools)
		if err != nil {
			l.logger.Error("agent call failed", "depth", depth, "error", err)
			appendException(conv, err.Error(), err)
			l.outcomes.WithLabelValues(string(KindError)).Inc()
			l.iterations.Observe(float64(depth))
			return Result{Kind: KindError, Depth: depth, Err: fmt.Errorf("agentloop: %w", err)}
		}
		if len(blocks) == 0 {
			appendException(conv, ErrNoToolsAndNoText.Error(), nil)
			l.outcomes.WithLabelValues(string(KindError)).Inc()
			l.iterations.Observe(float64(depth))
			return Result{Kind: KindError, Depth: depth, Err: ErrNoToolsAndNoText}
		}

		conv.Append(convo.Message{Role: convo.RoleAssistant, Blocks: blocks})

		if res, done := terminal(blocks, depth); done {
			l.outcomes.WithLabelValues(string(res.Kind)).Inc()
			l.iterations.Observe(float64(depth))
			return res
		}

		toolUses := collectToolUses(blocks)
		if len(toolUses) == 0 {
			// Plain text with no sentinel and no tool use: nothing more
			// for the loop to do productively; treat the text itself as
			// the final answer.
			l.outcomes.WithLabelValues(string(KindFinal)).Inc()
			l.iterations.Observe(float64(depth))
			return Result{Kind: KindFinal, Text: firstText(blocks), Depth: depth}
		}

		// Tool calls are dispatched strictly sequentially: a later call in
		// the same turn may depend on an earlier one's result, so nothing
		// here runs concurrently.
		var results []convo.ContentBlock
		for _, use := range toolUses {
			result := l.toolbox.ExecuteTool(ctx, use)
			results = append(results, result)
		}
		conv.Append(convo.Message{Role: convo.RoleUser, Blocks: results})
	}

	l.outcomes.WithLabelValues(string(KindDepthExceeded)).Inc()
	l.iterations.Observe(float64(l.maxDepth))
	return Result{Kind: KindDepthExceeded, Depth: l.maxDepth, Err: fmt.Errorf("agentloop: reached max depth %d without a final response", l.maxDepth)}
}

// appendException records an Agent-level failure as a system-role Exception
// message (§4.10 transition 3, §7) so the conversation buffer — and the
// turn log that replays it verbatim — always shows why a turn ended in
// error, not just that it did.
func appendException(conv *convo.Conversation, message string, cause error) {
	conv.Append(convo.Message{Role: convo.RoleSystem, Blocks: []convo.ContentBlock{convo.Exception{Message: message, Cause: cause}}})
}

func terminal(blocks []convo.ContentBlock, depth int) (Result, bool) {
	for _, b := range blocks {
		switch v := b.(type) {
		case convo.FinalResponse:
			return Result{Kind: KindFinal, Text: v.Value, Depth: depth}, true
		case convo.UserInput:
			return Result{Kind: KindNeedsInput, Text: v.Prompt, Depth: depth}, true
		case convo.Exception:
			err := fmt.Errorf("agentloop: %s", v.Message)
			if v.Cause != nil {
				err = fmt.Errorf("agentloop: %s: %w", v.Message, v.Cause)
			}
			return Result{Kind: KindError, Depth: depth, Err: err}, true
		}
	}
	return Result{}, false
}

func collectToolUses(blocks []convo.ContentBlock) []convo.ToolUse {
	var out []convo.ToolUse
	for _, b := range blocks {
		if tu, ok := b.(convo.ToolUse); ok {
			out = append(out, tu)
		}
	}
	return out
}

func firstText(blocks []convo.ContentBlock) string {
	for _, b := range blocks {
		if t, ok := b.(convo.Text); ok {
			return t.Value
		}
	}
	return ""
}

func toSpecs(tools []toolbox.AvailableTool) []llmagent.ToolSpec {
	out := make([]llmagent.ToolSpec, len(tools))
	for i, t := range tools {
		out[i] = llmagent.ToolSpec{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}
	return out
}
