// Package mcpclient implements the MCP client side of the initialize
// handshake and the four request families a tool-server exposes: tools,
// resources, prompts, and sampling. It sits directly on top of
// internal/mcptransport; Dial opens the transport through mcptransport.Dial.
package mcpclient

import "encoding/json"

// ToolDescriptor is the wire shape of a tool exposed by a server.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ResourceDescriptor is the wire shape of a resource exposed by a server.
type ResourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PromptDescriptor is the wire shape of a prompt template.
type PromptDescriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument describes one prompt parameter.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// ResourceContent holds the content of one resource.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// MessageContent is a typed content part. Type "image" is parsed but
// rejected by Client.CallTool — image parts in tool results are
// explicitly unsupported.
type MessageContent struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	Data     string           `json:"data,omitempty"`
	MimeType string           `json:"mimeType,omitempty"`
	Resource *ResourceContent `json:"resource,omitempty"`
}

// PromptMessage is one message in a prompts/get response.
type PromptMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// ServerInfo identifies the connected server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// initializeResult is the result of the "initialize" method.
type initializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ServerInfo `json:"serverInfo"`
}

type listToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

type listResourcesResult struct {
	Resources []ResourceDescriptor `json:"resources"`
}

type listPromptsResult struct {
	Prompts []PromptDescriptor `json:"prompts"`
}

type readResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}

type getPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCallResult holds the result of calling a tool.
type ToolCallResult struct {
	Content []MessageContent `json:"content"`
	IsError bool             `json:"isError,omitempty"`
}

// SamplingRequest is a server-initiated sampling/createMessage request.
type SamplingRequest struct {
	Messages     []PromptMessage `json:"messages"`
	SystemPrompt string          `json:"systemPrompt,omitempty"`
	MaxTokens    int             `json:"maxTokens,omitempty"`
	Model        string          `json:"model,omitempty"`
}

// SamplingResponse is the client's answer to a SamplingRequest.
type SamplingResponse struct {
	Role       string         `json:"role"`
	Content    MessageContent `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stopReason,omitempty"`
}
