package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const sessionHeader = "Mcp-Session-Id"

// streamableTransport implements the streamable-HTTP MCP transport: each
// message is a POST, responses arrive either as a JSON body or as a
// single-event SSE body, and the server session is carried in the
// Mcp-Session-Id header.
type streamableTransport struct {
	url     string
	headers map[string]string
	client  *http.Client
	logger  *zap.Logger

	mu        sync.Mutex
	sessionID string
}

func newStreamableTransport(rawURL string, headers map[string]string, timeout time.Duration, logger *zap.Logger) *streamableTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &streamableTransport{
		url:     rawURL,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("transport", "streamable_http")),
	}
}

func (t *streamableTransport) send(ctx context.Context, msg *Message) (*Message, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	t.mu.Lock()
	if t.sessionID != "" {
		req.Header.Set(sessionHeader, t.sessionID)
	}
	t.mu.Unlock()

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if sid := resp.Header.Get(sessionHeader); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "text/event-stream") {
		return readSSEMessage(resp.Body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var out Message
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// readSSEMessage extracts the first "message" event from an SSE body.
func readSSEMessage(body io.Reader) (*Message, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	event := "message"
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == "message" && data.Len() > 0 {
				var msg Message
				if err := json.Unmarshal(data.Bytes(), &msg); err != nil {
					return nil, fmt.Errorf("decode sse event: %w", err)
				}
				return &msg, nil
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
		return nil, fmt.Errorf("read sse body: %w", err)
	}
	if event == "message" && data.Len() > 0 {
		var msg Message
		if err := json.Unmarshal(data.Bytes(), &msg); err != nil {
			return nil, fmt.Errorf("decode sse event: %w", err)
		}
		return &msg, nil
	}
	return nil, nil
}

func (t *streamableTransport) close() error {
	return nil
}
