// Package convo defines the vendor-neutral conversation model the Agent
// Loop drives: a tagged union of content blocks and the message/conversation
// types built from them. Vendor wire-format translation lives on the Agent
// adapters, not here — this package never imports a vendor SDK.
package convo

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentBlock is a closed tagged union. Each variant is its own struct with
// its own fields — there is no shared base type to downcast from, matching
// the redesign direction favoring concrete variants over a virtual base.
type ContentBlock interface {
	contentBlock()
}

// Text is a plain natural-language block, either user input or assistant
// output before sentinel extraction.
type Text struct {
	Value string
}

func (Text) contentBlock() {}

// Thinking carries a model's extended-thinking trace. It is never sent back
// to a tool and is excluded from text-hygiene processing.
type Thinking struct {
	Value     string
	Signature string
}

func (Thinking) contentBlock() {}

// ToolUse is an assistant request to invoke one tool. ID correlates the
// eventual ToolResult.
type ToolUse struct {
	ID        string
	ToolName  string
	Arguments map[string]any
}

func (ToolUse) contentBlock() {}

// ToolResult carries a tool's output back into the conversation. IsError
// marks a failed call; image content is explicitly unsupported, so Content
// is always text.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (ToolResult) contentBlock() {}

// UserInput is produced when the assistant's output matched the
// NEED_USER_INPUT sentinel. Prompt is the text that follows the marker, up
// to the next blank line or the end of the text.
type UserInput struct {
	Prompt string
}

func (UserInput) contentBlock() {}

// FinalResponse is produced when the assistant's output matched the
// FINAL_RESPONSE sentinel, terminating the Agent Loop successfully.
type FinalResponse struct {
	Value string
}

func (FinalResponse) contentBlock() {}

// Exception marks an Agent-level failure (a vendor error, a malformed
// response) that terminates the Agent Loop abnormally.
type Exception struct {
	Message string
	Cause   error
}

func (Exception) contentBlock() {}

// Message is one turn: a role and the content blocks produced in that turn.
type Message struct {
	Role   Role
	Blocks []ContentBlock
}

// Conversation is an ordered, append-only buffer of messages. It is held
// entirely in memory; nothing here persists across process restarts.
type Conversation struct {
	Messages []Message
}

// New returns an empty conversation.
func New() *Conversation {
	return &Conversation{}
}

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
}

// AppendUserText is a convenience for appending a single-block user turn.
func (c *Conversation) AppendUserText(text string) {
	c.Append(Message{Role: RoleUser, Blocks: []ContentBlock{Text{Value: text}}})
}

// LastMessage returns the most recent message, or the zero value and false
// if the conversation is empty.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}
