package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Func is the tool function signature.
type Func func(ctx context.Context, params map[string]any) ([]InvokeMessage, error)

// RateLimit configures per-tool call throttling.
type RateLimit struct {
	MaxCalls int           // maximum calls per window
	Window   time.Duration // time window
}

// Options configures a registered tool.
type Options struct {
	RateLimit *RateLimit    // optional throttle
	Timeout   time.Duration // execution timeout, default 30s
}

type registration struct {
	entity  *Entity
	fn      Func
	opts    Options
	limiter *rate.Limiter
}

// Registry holds locally registered tools and implements Invoker.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*registration
	order  []string
	logger *zap.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:  make(map[string]*registration),
		logger: logger.With(zap.String("component", "tool_registry")),
	}
}

// Register adds a tool. Names must be unique within the registry.
func (r *Registry) Register(entity *Entity, fn Func, opts Options) error {
	if entity == nil || entity.Name == "" {
		return fmt.Errorf("tool entity requires a name")
	}
	if fn == nil {
		return fmt.Errorf("tool %s: handler is required", entity.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[entity.Name]; exists {
		return fmt.Errorf("tool %s already registered", entity.Name)
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	reg := &registration{entity: entity, fn: fn, opts: opts}
	if rl := opts.RateLimit; rl != nil && rl.MaxCalls > 0 && rl.Window > 0 {
		reg.limiter = rate.NewLimiter(rate.Every(rl.Window/time.Duration(rl.MaxCalls)), rl.MaxCalls)
	}

	r.tools[entity.Name] = reg
	r.order = append(r.order, entity.Name)

	r.logger.Info("tool registered",
		zap.String("name", entity.Name),
		zap.Duration("timeout", opts.Timeout),
	)
	return nil
}

// Unregister removes a tool.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("tool %s not found", name)
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.logger.Info("tool unregistered", zap.String("name", name))
	return nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Entities returns the registered tool descriptors in registration order.
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entity, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].entity)
	}
	return out
}

// Invoke executes a registered tool by name. The providerType/providerID
// pair is matched against the registered entity when set, so a registry
// can safely back several logical providers.
func (r *Registry) Invoke(ctx context.Context, providerType ProviderType, providerID, toolName string, params map[string]any) ([]InvokeMessage, error) {
	r.mu.RLock()
	reg, ok := r.tools[toolName]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}
	if providerType != "" && reg.entity.Provider != "" && reg.entity.Provider != providerType {
		return nil, fmt.Errorf("tool %s: provider type mismatch: %s", toolName, providerType)
	}
	if providerID != "" && reg.entity.ProviderID != "" && reg.entity.ProviderID != providerID {
		return nil, fmt.Errorf("tool %s: unknown provider: %s", toolName, providerID)
	}
	if reg.limiter != nil && !reg.limiter.Allow() {
		return nil, fmt.Errorf("tool %s: rate limit exceeded", toolName)
	}

	ctx, cancel := context.WithTimeout(ctx, reg.opts.Timeout)
	defer cancel()

	start := time.Now()
	msgs, err := reg.fn(ctx, params)
	if err != nil {
		r.logger.Warn("tool invocation failed",
			zap.String("name", toolName),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	r.logger.Debug("tool invoked",
		zap.String("name", toolName),
		zap.Int("messages", len(msgs)),
		zap.Duration("duration", time.Since(start)),
	)
	return msgs, nil
}
