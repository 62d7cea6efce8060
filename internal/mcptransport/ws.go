package mcptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsTransport speaks one JSON-RPC message per WebSocket frame over a
// symmetric duplex connection — the only transport of the three where the
// server can push a request or notification without a dedicated poll loop.
type wsTransport struct {
	desc   Descriptor
	logger *slog.Logger

	conn   *websocket.Conn
	writeMu sync.Mutex

	pending   map[string]chan Response
	pendingMu sync.Mutex
	events    chan Notification
	requests  chan Request

	connected atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

func newWSTransport(d Descriptor) *wsTransport {
	return &wsTransport{
		desc:     d,
		logger:   slog.Default().With("transport", "ws"),
		pending:  make(map[string]chan Response),
		events:   make(chan Notification, 100),
		requests: make(chan Request, 100),
		stopChan: make(chan struct{}),
	}
}

func (t *wsTransport) Connect(ctx context.Context) error {
	if t.desc.URL == "" {
		return fmt.Errorf("mcptransport: ws requires a url")
	}

	header := http.Header{}
	for k, v := range t.desc.Headers {
		header.Set(k, v)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, t.desc.URL, header)
	if err != nil {
		return fmt.Errorf("mcptransport: ws dial: %w", err)
	}
	t.conn = conn
	t.connected.Store(true)
	t.logger.Info("ws transport connected", "url", t.desc.URL)

	t.wg.Add(1)
	go t.readLoop()
	return nil
}

func (t *wsTransport) Close() error {
	if !t.connected.CompareAndSwap(true, false) {
		return nil
	}
	close(t.stopChan)
	if t.conn != nil {
		t.conn.Close()
	}
	t.wg.Wait()
	return nil
}

func (t *wsTransport) Connected() bool { return t.connected.Load() }

func (t *wsTransport) writeJSON(v any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) Call(ctx context.Context, method string, params any) (Response, error) {
	if !t.connected.Load() {
		return Response{}, fmt.Errorf("mcptransport: not connected")
	}

	id := uuid.New().String()
	req := Request{JSONRPC: "2.0", ID: id, Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return Response{}, fmt.Errorf("mcptransport: marshal params: %w", err)
		}
		req.Params = paramsJSON
	}

	respChan := make(chan Response, 1)
	t.pendingMu.Lock()
	t.pending[id] = respChan
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	if err := t.writeJSON(req); err != nil {
		return Response{}, fmt.Errorf("mcptransport: write request: %w", err)
	}

	timeout := time.Duration(t.desc.RequestTimeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	select {
	case resp := <-respChan:
		if resp.Error != nil {
			return Response{}, resp.Error
		}
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-time.After(timeout):
		return Response{}, fmt.Errorf("mcptransport: request timeout after %v", timeout)
	case <-t.stopChan:
		return Response{}, fmt.Errorf("mcptransport: transport closed")
	}
}

func (t *wsTransport) Notify(ctx context.Context, method string, params any) error {
	if !t.connected.Load() {
		return fmt.Errorf("mcptransport: not connected")
	}
	notif := Notification{JSONRPC: "2.0", Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("mcptransport: marshal params: %w", err)
		}
		notif.Params = paramsJSON
	}
	return t.writeJSON(notif)
}

func (t *wsTransport) Respond(ctx context.Context, id any, result any, rpcErr *RPCError) error {
	resp := Response{JSONRPC: "2.0", ID: id, Error: rpcErr}
	if rpcErr == nil && result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("mcptransport: marshal result: %w", err)
		}
		resp.Result = data
	}
	return t.writeJSON(resp)
}

func (t *wsTransport) Events() <-chan Notification { return t.events }
func (t *wsTransport) Requests() <-chan Request     { return t.requests }

func (t *wsTransport) readLoop() {
	defer t.wg.Done()
	defer t.connected.Store(false)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.stopChan:
			default:
				t.logger.Debug("ws read error", "error", err)
			}
			return
		}
		t.processFrame(data)
	}
}

func (t *wsTransport) processFrame(data []byte) {
	var probe struct {
		Method string `json:"method"`
	}
	_ = json.Unmarshal(data, &probe)
	var resp Response
	if err := json.Unmarshal(data, &resp); err == nil && resp.ID != nil && probe.Method == "" {
		id := fmt.Sprint(resp.ID)
		t.pendingMu.Lock()
		if ch, ok := t.pending[id]; ok {
			select {
			case ch <- resp:
			default:
			}
			delete(t.pending, id)
		}
		t.pendingMu.Unlock()
		return
	}

	var req Request
	if err := json.Unmarshal(data, &req); err == nil && req.Method != "" && req.ID != nil {
		select {
		case t.requests <- req:
		default:
			t.logger.Warn("request channel full, dropping")
		}
		return
	}

	var notif Notification
	if err := json.Unmarshal(data, &notif); err == nil && notif.Method != "" {
		select {
		case t.events <- notif:
		default:
			t.logger.Warn("event channel full, dropping")
		}
	}
}
