package mcptransport

import (
	"context"
	"fmt"
)

// Kind names one of the three wire transports a ServerDescriptor may
// request.
type Kind string

const (
	KindStdio Kind = "stdio"
	KindSSE   Kind = "sse"
	KindWS    Kind = "ws"
)

// Descriptor is the transport-relevant subset of a server descriptor: just
// enough to dial a connection. The catalogue-facing ServerDescriptor wraps
// this with an ID and display name.
type Descriptor struct {
	Transport Kind

	// Stdio fields.
	Command string
	Args    []string
	Env     map[string]string
	WorkDir string

	// SSE/WS fields.
	URL     string
	Headers map[string]string

	RequestTimeout int // seconds; 0 means the transport's default
}

// Transport is the contract all three wire transports satisfy. A Transport
// is single-use: once Close is called it cannot be reconnected.
type Transport interface {
	// Connect dials or spawns the upstream and blocks until the channel is
	// ready to carry JSON-RPC traffic. It does not perform the MCP
	// "initialize" handshake — that is the Client's job.
	Connect(ctx context.Context) error

	// Close tears the transport down. Safe to call more than once.
	Close() error

	// Call sends a request and blocks for the matching response.
	Call(ctx context.Context, method string, params any) (Response, error)

	// Notify sends a notification; no response is expected.
	Notify(ctx context.Context, method string, params any) error

	// Events delivers server-initiated notifications.
	Events() <-chan Notification

	// Requests delivers server-initiated requests (e.g. sampling).
	Requests() <-chan Request

	// Respond answers a server-initiated request received from Requests.
	Respond(ctx context.Context, id any, result any, rpcErr *RPCError) error

	// Connected reports whether the transport believes itself open.
	Connected() bool
}

// Dial constructs and connects the Transport named by d.Transport. A dial
// failure is fatal for that transport instance — callers must construct a
// fresh Transport to retry, never reuse a failed one.
func Dial(ctx context.Context, d Descriptor) (Transport, error) {
	var t Transport
	switch d.Transport {
	case KindStdio, "":
		t = newStdioTransport(d)
	case KindSSE:
		t = newSSETransport(d)
	case KindWS:
		t = newWSTransport(d)
	default:
		return nil, fmt.Errorf("mcptransport: unsupported transport kind %q", d.Transport)
	}

	if err := t.Connect(ctx); err != nil {
		return nil, err
	}
	return t, nil
}
