package react

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/reagent/tools"
	"github.com/BaSui01/reagent/types"
)

// RemoteInvoker is the remote tool universe: a catalogue that can be
// fetched and entries that can be executed by name. Implemented by the
// mcp package's multi-server aggregate.
type RemoteInvoker interface {
	FetchTools(ctx context.Context) ([]types.ToolSchema, error)
	ExecuteTool(ctx context.Context, name string, args map[string]any) ([]map[string]any, error)
	Close() error
}

// Dispatcher resolves an action against the local and remote tool
// universes, invokes it, and folds the result into one observation
// string. Local tools win name collisions.
type Dispatcher struct {
	invoker tools.Invoker
	remote  RemoteInvoker
	logger  *zap.Logger

	local      map[string]*tools.Entity
	localOrder []string

	mu            sync.RWMutex
	remoteSchemas []types.ToolSchema
	remoteParams  map[string][]string
}

// NewDispatcher builds a dispatcher over the given local tool entities.
// invoker executes local tools; remote may be nil when no remote servers
// are configured.
func NewDispatcher(entities []*tools.Entity, invoker tools.Invoker, remote RemoteInvoker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		invoker:      invoker,
		remote:       remote,
		logger:       logger.With(zap.String("component", "dispatcher")),
		local:        make(map[string]*tools.Entity, len(entities)),
		remoteParams: map[string][]string{},
	}
	for _, e := range entities {
		if e == nil || e.Name == "" {
			continue
		}
		if _, exists := d.local[e.Name]; exists {
			continue
		}
		d.local[e.Name] = e
		d.localOrder = append(d.localOrder, e.Name)
	}
	return d
}

// RefreshCatalogue refetches the remote tool catalogue. A nil remote
// universe is a no-op.
func (d *Dispatcher) RefreshCatalogue(ctx context.Context) error {
	if d.remote == nil {
		return nil
	}
	schemas, err := d.remote.FetchTools(ctx)
	if err != nil {
		return err
	}

	params := make(map[string][]string, len(schemas))
	for _, s := range schemas {
		params[s.Name] = schemaParamNames(s.Parameters)
	}

	d.mu.Lock()
	d.remoteSchemas = schemas
	d.remoteParams = params
	d.mu.Unlock()
	return nil
}

// Catalogue returns the merged tool catalogue, local tools first.
func (d *Dispatcher) Catalogue() []types.ToolSchema {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]types.ToolSchema, 0, len(d.localOrder)+len(d.remoteSchemas))
	for _, name := range d.localOrder {
		out = append(out, d.local[name].Schema())
	}
	out = append(out, d.remoteSchemas...)
	return out
}

// Dispatch executes one action and returns the observation text fed back
// to the model. Tool failures of every kind fold into the observation;
// the returned error is reserved for argument shapes that cannot be
// resolved at all.
func (d *Dispatcher) Dispatch(ctx context.Context, action *Action) (string, map[string]any, error) {
	if entity, ok := d.local[action.Name]; ok {
		return d.dispatchLocal(ctx, entity, action)
	}
	if d.remote != nil && d.hasRemote(action.Name) {
		return d.dispatchRemote(ctx, action)
	}
	return "there is not a tool named " + action.Name, nil, nil
}

func (d *Dispatcher) dispatchLocal(ctx context.Context, entity *tools.Entity, action *Action) (string, map[string]any, error) {
	llmParams := entity.LLMParameters()
	names := make([]string, 0, len(llmParams))
	for _, p := range llmParams {
		names = append(names, p.Name)
	}

	params, err := coerceParams(action.Input, names)
	if err != nil {
		return "", nil, err
	}
	for k, v := range entity.RuntimeParameters {
		if _, set := params[k]; !set {
			params[k] = v
		}
	}

	msgs, err := d.invoker.Invoke(ctx, entity.Provider, entity.ProviderID, entity.Name, params)
	if err != nil {
		d.logger.Warn("local tool failed", zap.String("tool", entity.Name), zap.Error(err))
		return "tool invoke error: " + err.Error(), params, nil
	}
	return renderInvokeMessages(msgs), params, nil
}

func (d *Dispatcher) dispatchRemote(ctx context.Context, action *Action) (string, map[string]any, error) {
	d.mu.RLock()
	names := d.remoteParams[action.Name]
	d.mu.RUnlock()

	params, err := coerceParams(action.Input, names)
	if err != nil {
		return "", nil, err
	}

	content, err := d.remote.ExecuteTool(ctx, action.Name, params)
	if err != nil {
		d.logger.Warn("remote tool failed", zap.String("tool", action.Name), zap.Error(err))
		return "tool invoke error: " + err.Error(), params, nil
	}
	return renderRemoteContent(content), params, nil
}

func (d *Dispatcher) hasRemote(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.remoteParams[name]
	return ok
}

// coerceParams turns the model-supplied action input into a parameter
// map. Raw strings that are not JSON objects are resolved against the
// tool's declared parameters: none means the value is dropped, exactly
// one means the value binds to it, more is unresolvable.
func coerceParams(input any, paramNames []string) (map[string]any, error) {
	switch v := input.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		if v == nil {
			return map[string]any{}, nil
		}
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		var decoded map[string]any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			// "null" decodes successfully into a nil map.
			if decoded == nil {
				return map[string]any{}, nil
			}
			return decoded, nil
		}
		return bindScalar(v, paramNames)
	default:
		return bindScalar(v, paramNames)
	}
}

func bindScalar(value any, paramNames []string) (map[string]any, error) {
	switch len(paramNames) {
	case 0:
		return map[string]any{}, nil
	case 1:
		return map[string]any{paramNames[0]: value}, nil
	default:
		return nil, errors.New("tool call args is not a valid json string")
	}
}

// renderInvokeMessages folds a local tool's typed messages into one
// observation string.
func renderInvokeMessages(msgs []tools.InvokeMessage) string {
	var b strings.Builder
	for _, msg := range msgs {
		switch msg.Type {
		case tools.MessageText:
			b.WriteString(msg.Text)
		case tools.MessageLink, tools.MessageImageLink:
			b.WriteString("result link: " + msg.Text + ". please tell user to check it.")
		case tools.MessageImage:
			b.WriteString("image has been created and sent to user already, " +
				"you do not need to create it, just tell the user to check it now.")
		case tools.MessageJSON:
			b.WriteString("tool response: " + compactJSON(msg.JSON) + ".")
		default:
			b.WriteString("tool response: " + msg.Text + ".")
		}
	}
	return b.String()
}

// renderRemoteContent folds remote content items into one observation
// string. A lone text item passes through verbatim; a lone resource item
// renders its payload; anything else renders as JSON.
func renderRemoteContent(content []map[string]any) string {
	if len(content) == 1 {
		item := content[0]
		typ, _ := item["type"].(string)
		switch typ {
		case "text":
			text, _ := item["text"].(string)
			return text
		case "resource":
			if resource, ok := item["resource"].(map[string]any); ok {
				return compactJSON(resource)
			}
		}
		return compactJSON(item)
	}
	return compactJSON(content)
}

func compactJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

// schemaParamNames extracts the property names of an object schema.
func schemaParamNames(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var schema struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	return names
}
