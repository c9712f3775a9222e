package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/reagent/types"
)

// Transport selectors accepted in server configuration.
const (
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable_http"
)

var serverNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ServerConfig describes one MCP server connection. Timeout fields are
// in seconds to match the common JSON configuration shape.
type ServerConfig struct {
	Transport      string            `json:"transport,omitempty"`
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers,omitempty"`
	Timeout        float64           `json:"timeout,omitempty"`
	SSEReadTimeout float64           `json:"sse_read_timeout,omitempty"`
}

// ParseServersConfig decodes a JSON server map. The raw string may be
// wrapped in stray quotes and may nest the map under an "mcpServers" key;
// both shapes are accepted. Server names are restricted to
// [a-zA-Z0-9_-] and every entry needs a URL.
func ParseServersConfig(raw string) (map[string]ServerConfig, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "\"")
	if raw == "" || raw == "{}" {
		return map[string]ServerConfig{}, nil
	}

	var outer map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &outer); err != nil {
		return nil, fmt.Errorf("mcp servers config is not a valid json object: %w", err)
	}
	if wrapped, ok := outer["mcpServers"]; ok && len(outer) == 1 {
		if err := json.Unmarshal(wrapped, &outer); err != nil {
			return nil, fmt.Errorf("mcpServers is not a valid json object: %w", err)
		}
	}

	servers := make(map[string]ServerConfig, len(outer))
	for name, rawCfg := range outer {
		if !serverNamePattern.MatchString(name) {
			return nil, fmt.Errorf("invalid mcp server name %q: only letters, digits, _ and - are allowed", name)
		}
		var cfg ServerConfig
		if err := json.Unmarshal(rawCfg, &cfg); err != nil {
			return nil, fmt.Errorf("mcp server %s: %w", name, err)
		}
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcp server %s: url is required", name)
		}
		servers[name] = cfg
	}
	return servers, nil
}

// actionKind discriminates what a catalogue entry routes to.
type actionKind int

const (
	kindTool actionKind = iota
	kindResource
	kindResourceTemplate
	kindPrompt
)

type toolAction struct {
	server  string
	kind    actionKind
	name    string         // server-side name for tools and prompts
	feature map[string]any // fixed routing data, e.g. a resource uri
}

// Clients aggregates several MCP servers into one tool universe. Server
// resources and prompt templates can optionally be surfaced as
// synthesized tools alongside the real ones.
type Clients struct {
	clients map[string]*serverClient
	order   []string
	logger  *zap.Logger

	resourcesAsTools bool
	promptsAsTools   bool

	mu      sync.RWMutex
	actions map[string]toolAction
	schemas []types.ToolSchema

	closeOnce sync.Once
	closeErr  error
}

// DialOption customizes a Clients aggregate.
type DialOption func(*Clients)

// WithResourcesAsTools surfaces server resources and resource templates
// as synthesized read tools.
func WithResourcesAsTools() DialOption {
	return func(c *Clients) { c.resourcesAsTools = true }
}

// WithPromptsAsTools surfaces server prompt templates as synthesized
// tools that render the prompt.
func WithPromptsAsTools() DialOption {
	return func(c *Clients) { c.promptsAsTools = true }
}

// Dial connects and initializes every server in the JSON configuration.
// Any connection or handshake failure aborts the whole dial; servers
// connected so far are closed.
func Dial(ctx context.Context, rawConfig string, logger *zap.Logger, opts ...DialOption) (*Clients, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	configs, err := ParseServersConfig(rawConfig)
	if err != nil {
		return nil, err
	}

	c := &Clients{
		clients: make(map[string]*serverClient, len(configs)),
		logger:  logger.With(zap.String("component", "mcp_clients")),
		actions: make(map[string]toolAction),
	}
	for _, opt := range opts {
		opt(c)
	}

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := configs[name]
		tr, err := dialTransport(cfg, c.logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("mcp server %s: %w", name, err)
		}
		client := newServerClient(name, tr, c.logger)
		if err := client.initialize(ctx); err != nil {
			client.close()
			c.Close()
			return nil, err
		}
		c.clients[name] = client
		c.order = append(c.order, name)
	}
	return c, nil
}

func dialTransport(cfg ServerConfig, logger *zap.Logger) (transport, error) {
	timeout := time.Duration(cfg.Timeout * float64(time.Second))
	readTimeout := time.Duration(cfg.SSEReadTimeout * float64(time.Second))

	if resolveTransport(cfg) == TransportStreamableHTTP {
		return newStreamableTransport(cfg.URL, cfg.Headers, timeout, logger), nil
	}
	return newSSETransport(cfg.URL, cfg.Headers, timeout, readTimeout, logger)
}

// resolveTransport picks the wire flavor. Only an explicit streamable
// selector chooses streamable HTTP; anything else, including an absent
// transport field, means SSE.
func resolveTransport(cfg ServerConfig) string {
	switch cfg.Transport {
	case TransportStreamableHTTP, "http", "streamable":
		return TransportStreamableHTTP
	default:
		return TransportSSE
	}
}

type serverCatalogue struct {
	tools     []ToolDefinition
	resources []map[string]any
	templates []map[string]any
	prompts   []map[string]any
}

// FetchTools lists every server's capabilities and rebuilds the merged
// catalogue. Fetches run concurrently; the merge is sequential in sorted
// server order so naming is deterministic. A name collision across
// servers is disambiguated as server__name.
func (c *Clients) FetchTools(ctx context.Context) ([]types.ToolSchema, error) {
	catalogues := make(map[string]*serverCatalogue, len(c.order))
	var catMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range c.order {
		client := c.clients[name]
		g.Go(func() error {
			cat := &serverCatalogue{}
			var err error
			if cat.tools, err = client.listTools(gctx); err != nil {
				return err
			}
			if c.resourcesAsTools {
				if cat.resources, err = client.listResources(gctx); err != nil {
					return err
				}
				if cat.templates, err = client.listResourceTemplates(gctx); err != nil {
					return err
				}
			}
			if c.promptsAsTools {
				if cat.prompts, err = client.listPrompts(gctx); err != nil {
					return err
				}
			}
			catMu.Lock()
			catalogues[client.name] = cat
			catMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	actions := make(map[string]toolAction)
	var schemas []types.ToolSchema

	add := func(name string, server string, action toolAction, description string, inputSchema map[string]any) {
		if _, taken := actions[name]; taken {
			name = server + "__" + name
		}
		if _, taken := actions[name]; taken {
			name = name + "__" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		}
		actions[name] = action
		params, _ := json.Marshal(normalizeSchema(inputSchema))
		schemas = append(schemas, types.ToolSchema{
			Name:        name,
			Description: description,
			Parameters:  params,
		})
	}

	for _, server := range c.order {
		cat := catalogues[server]
		if cat == nil {
			continue
		}
		for _, tool := range cat.tools {
			add(tool.Name, server,
				toolAction{server: server, kind: kindTool, name: tool.Name},
				tool.Description, tool.InputSchema)
		}
		for _, res := range cat.resources {
			uri, _ := res["uri"].(string)
			if uri == "" {
				continue
			}
			resName, _ := res["name"].(string)
			desc, _ := res["description"].(string)
			if desc == "" {
				desc = "Read the resource " + uri
			}
			add(resourceToolName(resName), server,
				toolAction{server: server, kind: kindResource, feature: map[string]any{"uri": uri}},
				desc, nil)
		}
		for _, tpl := range cat.templates {
			uriTemplate, _ := tpl["uriTemplate"].(string)
			if uriTemplate == "" {
				continue
			}
			tplName, _ := tpl["name"].(string)
			desc, _ := tpl["description"].(string)
			if desc == "" {
				desc = "Read a resource matching " + uriTemplate
			}
			schema := map[string]any{
				"type": "object",
				"properties": map[string]any{
					"uri": map[string]any{
						"type":        "string",
						"description": "Resource URI, following the template " + uriTemplate,
					},
				},
				"required": []any{"uri"},
			}
			add(resourceToolName(tplName), server,
				toolAction{server: server, kind: kindResourceTemplate},
				desc, schema)
		}
		for _, prompt := range cat.prompts {
			promptName, _ := prompt["name"].(string)
			if promptName == "" {
				continue
			}
			desc, _ := prompt["description"].(string)
			add("prompt__"+promptName, server,
				toolAction{server: server, kind: kindPrompt, name: promptName},
				desc, promptInputSchema(prompt))
		}
	}

	c.mu.Lock()
	c.actions = actions
	c.schemas = schemas
	c.mu.Unlock()

	c.logger.Info("mcp catalogue refreshed",
		zap.Int("servers", len(c.order)),
		zap.Int("tools", len(schemas)),
	)
	return schemas, nil
}

// Has reports whether a catalogue entry with this name exists.
func (c *Clients) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.actions[name]
	return ok
}

// ExecuteTool routes a catalogue entry to its server and returns the raw
// content items of the result.
func (c *Clients) ExecuteTool(ctx context.Context, name string, args map[string]any) ([]map[string]any, error) {
	c.mu.RLock()
	action, ok := c.actions[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no mcp tool named %s", name)
	}
	client, ok := c.clients[action.server]
	if !ok {
		return nil, fmt.Errorf("mcp server %s is not connected", action.server)
	}

	switch action.kind {
	case kindTool:
		content, err := client.callTool(ctx, action.name, args)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(content))
		for _, item := range content {
			out = append(out, map[string]any(item))
		}
		return out, nil

	case kindResource:
		uri, _ := action.feature["uri"].(string)
		return c.readResourceContent(ctx, client, uri)

	case kindResourceTemplate:
		uri, _ := args["uri"].(string)
		if uri == "" {
			return nil, fmt.Errorf("tool %s requires a uri argument", name)
		}
		return c.readResourceContent(ctx, client, uri)

	case kindPrompt:
		messages, err := client.getPrompt(ctx, action.name, args)
		if err != nil {
			return nil, err
		}
		var b strings.Builder
		for _, m := range messages {
			text, _ := m.Content["text"].(string)
			b.WriteString(m.Role)
			b.WriteString(": ")
			b.WriteString(text)
			b.WriteString("\n")
		}
		return []map[string]any{{
			"type": "text",
			"text": strings.TrimSpace(b.String()),
		}}, nil

	default:
		return nil, fmt.Errorf("unknown action kind for tool %s", name)
	}
}

// readResourceContent folds resources/read contents into resource-typed
// content items so downstream rendering treats reads like tool results.
func (c *Clients) readResourceContent(ctx context.Context, client *serverClient, uri string) ([]map[string]any, error) {
	contents, err := client.readResource(ctx, uri)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(contents))
	for _, content := range contents {
		resource := map[string]any{"uri": uri}
		if u, ok := content["uri"].(string); ok && u != "" {
			resource["uri"] = u
		}
		if mime, ok := content["mimeType"].(string); ok && mime != "" {
			resource["mimeType"] = mime
		} else {
			resource["mimeType"] = "text/plain"
		}
		if text, ok := content["text"].(string); ok {
			resource["text"] = text
		} else if blob, ok := content["blob"].(string); ok {
			resource["blob"] = blob
		}
		out = append(out, map[string]any{"type": "resource", "resource": resource})
	}
	return out, nil
}

// Close shuts every server connection down. Safe to call more than once.
func (c *Clients) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		for _, name := range c.order {
			if client, ok := c.clients[name]; ok {
				if err := client.close(); err != nil {
					errs = append(errs, fmt.Errorf("close %s: %w", name, err))
				}
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

var resourceNameCleaner = regexp.MustCompile(`[^a-zA-Z0-9 _-]`)

// resourceToolName derives a catalogue name for a resource. Names that
// sanitize to nothing get a random suffix so the entry stays reachable.
func resourceToolName(name string) string {
	cleaned := resourceNameCleaner.ReplaceAllString(name, "")
	cleaned = strings.ReplaceAll(cleaned, " ", "_")
	cleaned = strings.ToLower(strings.Trim(cleaned, "_"))
	if cleaned == "" {
		cleaned = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return "resource__" + cleaned
}

// promptInputSchema converts a prompt's argument list into a JSON schema
// object for the synthesized tool.
func promptInputSchema(prompt map[string]any) map[string]any {
	properties := map[string]any{}
	var required []any

	rawArgs, _ := prompt["arguments"].([]any)
	for _, rawArg := range rawArgs {
		arg, ok := rawArg.(map[string]any)
		if !ok {
			continue
		}
		argName, _ := arg["name"].(string)
		if argName == "" {
			continue
		}
		desc, _ := arg["description"].(string)
		properties[argName] = map[string]any{
			"type":        "string",
			"description": desc,
		}
		if req, _ := arg["required"].(bool); req {
			required = append(required, argName)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// normalizeSchema guarantees a well-formed object schema even when the
// server omits one.
func normalizeSchema(schema map[string]any) map[string]any {
	if schema == nil {
		schema = map[string]any{}
	}
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}
	if _, ok := schema["required"]; !ok {
		schema["required"] = []any{}
	}
	return schema
}
