// Package llmagent defines the Agent contract (spec §4.9): a stateless
// per-turn chat(conversation, tools) → newBlocks call that concrete vendor
// adapters implement. The Agent translates the neutral conversation model
// and tool list into a vendor's wire form, makes one request, and
// translates the response back, including sentinel detection. It has no
// knowledge of the Toolbox or the Connection Pool.
package llmagent

import (
	"context"

	"github.com/fenwick-labs/toolgate/internal/convo"
)

// ToolSpec is the vendor-neutral shape an Agent needs to advertise one
// tool, matching what Toolbox.AvailableTools produces.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema []byte
}

// Agent is one vendor's chat contract. Implementations carry their own
// system prompt, model name, and max-token setting.
type Agent interface {
	// Chat sends conv plus tools to the vendor and returns the new content
	// blocks the assistant produced for this turn.
	Chat(ctx context.Context, conv *convo.Conversation, tools []ToolSpec) ([]convo.ContentBlock, error)
}
