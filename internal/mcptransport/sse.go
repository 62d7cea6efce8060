package mcptransport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// sseTransport issues one HTTP POST per outbound request and maintains a
// long-lived GET against the server's event-stream endpoint for
// notifications and server-initiated requests.
type sseTransport struct {
	desc   Descriptor
	logger *slog.Logger
	client *http.Client

	events    chan Notification
	requests  chan Request
	connected atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

func newSSETransport(d Descriptor) *sseTransport {
	timeout := time.Duration(d.RequestTimeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &sseTransport{
		desc:     d,
		logger:   slog.Default().With("transport", "sse"),
		client:   &http.Client{Timeout: timeout},
		events:   make(chan Notification, 100),
		requests: make(chan Request, 100),
		stopChan: make(chan struct{}),
	}
}

func (t *sseTransport) Connect(ctx context.Context) error {
	if t.desc.URL == "" {
		return fmt.Errorf("mcptransport: sse requires a url")
	}
	t.connected.Store(true)
	t.logger.Info("sse transport ready", "url", t.desc.URL)

	t.wg.Add(1)
	go t.streamLoop(ctx)
	return nil
}

func (t *sseTransport) Close() error {
	if !t.connected.CompareAndSwap(true, false) {
		return nil
	}
	close(t.stopChan)
	t.wg.Wait()
	return nil
}

func (t *sseTransport) Connected() bool { return t.connected.Load() }

func (t *sseTransport) post(ctx context.Context, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.desc.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("mcptransport: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.desc.Headers {
		httpReq.Header.Set(k, v)
	}
	return t.client.Do(httpReq)
}

func (t *sseTransport) Call(ctx context.Context, method string, params any) (Response, error) {
	if !t.connected.Load() {
		return Response{}, fmt.Errorf("mcptransport: not connected")
	}

	req := Request{JSONRPC: "2.0", ID: uuid.New().String(), Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return Response{}, fmt.Errorf("mcptransport: marshal params: %w", err)
		}
		req.Params = paramsJSON
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("mcptransport: marshal request: %w", err)
	}

	resp, err := t.post(ctx, body)
	if err != nil {
		return Response{}, fmt.Errorf("mcptransport: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return Response{}, fmt.Errorf("mcptransport: http %d: %s", resp.StatusCode, string(errBody))
	}

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return Response{}, fmt.Errorf("mcptransport: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return Response{}, rpcResp.Error
	}
	return rpcResp, nil
}

func (t *sseTransport) Notify(ctx context.Context, method string, params any) error {
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
	body, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("mcptransport: marshal notification: %w", err)
	}
	resp, err := t.post(ctx, body)
	if err != nil {
		return fmt.Errorf("mcptransport: http request: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (t *sseTransport) Respond(ctx context.Context, id any, result any, rpcErr *RPCError) error {
	if !t.connected.Load() {
		return fmt.Errorf("mcptransport: not connected")
	}
	resp := Response{JSONRPC: "2.0", ID: id, Error: rpcErr}
	if rpcErr == nil && result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("mcptransport: marshal result: %w", err)
		}
		resp.Result = data
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("mcptransport: marshal response: %w", err)
	}
	httpResp, err := t.post(ctx, body)
	if err != nil {
		return fmt.Errorf("mcptransport: http request: %w", err)
	}
	httpResp.Body.Close()
	return nil
}

func (t *sseTransport) Events() <-chan Notification { return t.events }
func (t *sseTransport) Requests() <-chan Request     { return t.requests }

func (t *sseTransport) streamLoop(ctx context.Context) {
	defer t.wg.Done()
	sseURL := strings.TrimSuffix(t.desc.URL, "/") + "/sse"

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopChan:
			return
		default:
		}

		t.connectStream(ctx, sseURL)

		select {
		case <-ctx.Done():
			return
		case <-t.stopChan:
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (t *sseTransport) connectStream(ctx context.Context, sseURL string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sseURL, nil)
	if err != nil {
		t.logger.Debug("failed to create sse request", "error", err)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range t.desc.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug("sse connection failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Debug("sse returned non-200", "status", resp.StatusCode)
		return
	}
	t.logger.Debug("sse connected", "url", sseURL)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		case <-t.stopChan:
			return
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var envelope struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      any             `json:"id"`
			Method  string          `json:"method"`
			Params  json.RawMessage `json:"params,omitempty"`
		}
		if err := json.Unmarshal([]byte(data), &envelope); err != nil || envelope.Method == "" {
			continue
		}

		if envelope.ID != nil {
			select {
			case t.requests <- Request{JSONRPC: envelope.JSONRPC, ID: envelope.ID, Method: envelope.Method, Params: envelope.Params}:
			default:
				t.logger.Warn("request channel full, dropping")
			}
			continue
		}
		select {
		case t.events <- Notification{JSONRPC: envelope.JSONRPC, Method: envelope.Method, Params: envelope.Params}:
		default:
			t.logger.Warn("event channel full, dropping")
		}
	}
	if err := scanner.Err(); err != nil {
		t.logger.Debug("sse scanner error", "error", err)
	}
}
