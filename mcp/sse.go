package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// sseTransport implements the HTTP-with-SSE MCP transport: a long-lived
// GET stream delivers server messages while requests are POSTed to an
// endpoint URL announced on the stream.
type sseTransport struct {
	baseURL *url.URL
	headers map[string]string
	client  *http.Client
	logger  *zap.Logger

	readTimeout time.Duration
	sendTimeout time.Duration

	mu       sync.Mutex
	endpoint *url.URL
	pending  map[string]chan *Message

	connected chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc
	stopOnce  sync.Once
	closeErr  error
}

func newSSETransport(rawURL string, headers map[string]string, timeout, readTimeout time.Duration, logger *zap.Logger) (*sseTransport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse sse url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if readTimeout <= 0 {
		readTimeout = 5 * time.Minute
	}
	t := &sseTransport{
		baseURL:     u,
		headers:     headers,
		client:      &http.Client{},
		logger:      logger.With(zap.String("transport", "sse")),
		readTimeout: readTimeout,
		sendTimeout: timeout,
		pending:     make(map[string]chan *Message),
		connected:   make(chan struct{}),
		done:        make(chan struct{}),
	}
	if err := t.connect(); err != nil {
		return nil, err
	}
	return t, nil
}

// connect opens the event stream and waits for the endpoint announcement.
func (t *sseTransport) connect() error {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL.String(), nil)
	if err != nil {
		cancel()
		return fmt.Errorf("sse connect: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-store")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("sse connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("sse connect: unexpected status %d", resp.StatusCode)
	}

	go t.readLoop(resp.Body)

	select {
	case <-t.connected:
		return nil
	case <-time.After(t.sendTimeout):
		t.close()
		return fmt.Errorf("sse connect: no endpoint event within %s", t.sendTimeout)
	}
}

// readLoop parses the SSE stream and dispatches events until the
// connection drops or the transport closes.
func (t *sseTransport) readLoop(body io.ReadCloser) {
	defer body.Close()
	defer t.stop(nil)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	event := "message"
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				t.dispatch(event, data.String())
			}
			event = "message"
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		t.logger.Warn("sse stream ended", zap.Error(err))
	}
}

func (t *sseTransport) dispatch(event, data string) {
	switch event {
	case "endpoint":
		ep, err := t.baseURL.Parse(strings.TrimSpace(data))
		if err != nil {
			t.logger.Warn("invalid endpoint event", zap.String("data", data), zap.Error(err))
			return
		}
		if ep.Scheme != t.baseURL.Scheme || ep.Host != t.baseURL.Host {
			t.logger.Warn("endpoint origin mismatch",
				zap.String("announced", ep.String()),
				zap.String("expected", t.baseURL.Host),
			)
			return
		}
		t.mu.Lock()
		first := t.endpoint == nil
		t.endpoint = ep
		t.mu.Unlock()
		if first {
			close(t.connected)
		}
	case "message":
		var msg Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			t.logger.Warn("undecodable sse message", zap.Error(err))
			return
		}
		if msg.ID == nil {
			return
		}
		t.mu.Lock()
		ch, ok := t.pending[idKey(msg.ID)]
		if ok {
			delete(t.pending, idKey(msg.ID))
		}
		t.mu.Unlock()
		if ok {
			ch <- &msg
		}
	}
}

func (t *sseTransport) send(ctx context.Context, msg *Message) (*Message, error) {
	t.mu.Lock()
	endpoint := t.endpoint
	t.mu.Unlock()
	if endpoint == nil {
		return nil, fmt.Errorf("sse transport has no endpoint")
	}

	var respCh chan *Message
	if msg.ID != nil {
		respCh = make(chan *Message, 1)
		t.mu.Lock()
		t.pending[idKey(msg.ID)] = respCh
		t.mu.Unlock()
		defer func() {
			t.mu.Lock()
			delete(t.pending, idKey(msg.ID))
			t.mu.Unlock()
		}()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("post to endpoint: status %d", resp.StatusCode)
	}

	if respCh == nil {
		return nil, nil
	}

	timer := time.NewTimer(t.readTimeout)
	defer timer.Stop()
	select {
	case m := <-respCh:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, fmt.Errorf("sse transport closed")
	case <-timer.C:
		return nil, fmt.Errorf("timed out waiting for response after %s", t.readTimeout)
	}
}

func (t *sseTransport) stop(err error) {
	t.stopOnce.Do(func() {
		t.closeErr = err
		if t.cancel != nil {
			t.cancel()
		}
		close(t.done)
	})
}

func (t *sseTransport) close() error {
	t.stop(nil)
	return t.closeErr
}
