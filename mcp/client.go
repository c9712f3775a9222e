package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// transport delivers one JSON-RPC message and returns the matching
// response. Notifications (no id) return a nil message.
type transport interface {
	send(ctx context.Context, msg *Message) (*Message, error)
	close() error
}

// serverClient speaks MCP to one server over a transport.
type serverClient struct {
	name   string
	tr     transport
	nextID atomic.Int64
	logger *zap.Logger
}

func newServerClient(name string, tr transport, logger *zap.Logger) *serverClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &serverClient{
		name:   name,
		tr:     tr,
		logger: logger.With(zap.String("server", name)),
	}
}

// call performs one request/response exchange. A server-side RPC error is
// returned separately from transport failures so callers can special-case
// "method not found" on optional capabilities.
func (c *serverClient) call(ctx context.Context, method string, params map[string]any) (json.RawMessage, *RPCError, error) {
	id := c.nextID.Add(1)
	resp, err := c.tr.send(ctx, newRequest(id, method, params))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %s: %w", c.name, method, err)
	}
	if resp == nil {
		return nil, nil, fmt.Errorf("%s: %s: no response", c.name, method)
	}
	if resp.Error != nil {
		return nil, resp.Error, nil
	}
	return resp.Result, nil, nil
}

// initialize performs the MCP handshake.
func (c *serverClient) initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": Version,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "reagent",
			"version": "1.0.0",
		},
	}
	if _, rpcErr, err := c.call(ctx, "initialize", params); err != nil {
		return err
	} else if rpcErr != nil {
		return fmt.Errorf("%s: initialize: %w", c.name, rpcErr)
	}

	if _, err := c.tr.send(ctx, newNotification("notifications/initialized", map[string]any{})); err != nil {
		return fmt.Errorf("%s: notifications/initialized: %w", c.name, err)
	}

	c.logger.Info("mcp server initialized")
	return nil
}

// listOptional runs a list method that servers may not implement:
// "method not found" yields an empty result instead of an error.
func (c *serverClient) listOptional(ctx context.Context, method string, out any) error {
	result, rpcErr, err := c.call(ctx, method, map[string]any{})
	if err != nil {
		return err
	}
	if rpcErr != nil {
		if rpcErr.Code == codeMethodNotFound {
			return nil
		}
		return fmt.Errorf("%s: %s: %w", c.name, method, rpcErr)
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("%s: %s: decode result: %w", c.name, method, err)
	}
	return nil
}

func (c *serverClient) listTools(ctx context.Context) ([]ToolDefinition, error) {
	var res toolsListResult
	if err := c.listOptional(ctx, "tools/list", &res); err != nil {
		return nil, err
	}
	return res.Tools, nil
}

func (c *serverClient) callTool(ctx context.Context, name string, args map[string]any) ([]Content, error) {
	result, rpcErr, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}
	if rpcErr != nil {
		return nil, fmt.Errorf("%s: tools/call: %w", c.name, rpcErr)
	}
	var res toolsCallResult
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, fmt.Errorf("%s: tools/call: decode result: %w", c.name, err)
	}
	return res.Content, nil
}

func (c *serverClient) listResources(ctx context.Context) ([]map[string]any, error) {
	var res resourcesListResult
	if err := c.listOptional(ctx, "resources/list", &res); err != nil {
		return nil, err
	}
	return res.Resources, nil
}

func (c *serverClient) listResourceTemplates(ctx context.Context) ([]map[string]any, error) {
	var res resourceTemplatesResult
	if err := c.listOptional(ctx, "resources/templates/list", &res); err != nil {
		return nil, err
	}
	return res.ResourceTemplates, nil
}

func (c *serverClient) readResource(ctx context.Context, uri string) ([]map[string]any, error) {
	result, rpcErr, err := c.call(ctx, "resources/read", map[string]any{"uri": uri})
	if err != nil {
		return nil, err
	}
	if rpcErr != nil {
		return nil, fmt.Errorf("%s: resources/read: %w", c.name, rpcErr)
	}
	var res resourcesReadResult
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, fmt.Errorf("%s: resources/read: decode result: %w", c.name, err)
	}
	return res.Contents, nil
}

func (c *serverClient) listPrompts(ctx context.Context) ([]map[string]any, error) {
	var res promptsListResult
	if err := c.listOptional(ctx, "prompts/list", &res); err != nil {
		return nil, err
	}
	return res.Prompts, nil
}

func (c *serverClient) getPrompt(ctx context.Context, name string, args map[string]any) ([]promptMessage, error) {
	result, rpcErr, err := c.call(ctx, "prompts/get", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}
	if rpcErr != nil {
		return nil, fmt.Errorf("%s: prompts/get: %w", c.name, rpcErr)
	}
	var res promptsGetResult
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, fmt.Errorf("%s: prompts/get: decode result: %w", c.name, err)
	}
	return res.Messages, nil
}

func (c *serverClient) close() error {
	return c.tr.close()
}
