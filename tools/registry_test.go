package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textTool(name string, reply string) (*Entity, Func) {
	entity := &Entity{Provider: ProviderBuiltin, Name: name}
	fn := func(ctx context.Context, params map[string]any) ([]InvokeMessage, error) {
		return []InvokeMessage{NewTextMessage(reply)}, nil
	}
	return entity, fn
}

func TestRegistryRegisterAndInvoke(t *testing.T) {
	r := NewRegistry(nil)
	entity, fn := textTool("greet", "hello")
	require.NoError(t, r.Register(entity, fn, Options{}))

	assert.True(t, r.Has("greet"))

	msgs, err := r.Invoke(context.Background(), ProviderBuiltin, "", "greet", nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry(nil)
	entity, fn := textTool("dup", "x")
	require.NoError(t, r.Register(entity, fn, Options{}))

	err := r.Register(entity, fn, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryRejectsInvalidRegistrations(t *testing.T) {
	r := NewRegistry(nil)
	_, fn := textTool("x", "x")

	assert.Error(t, r.Register(nil, fn, Options{}))
	assert.Error(t, r.Register(&Entity{}, fn, Options{}))
	assert.Error(t, r.Register(&Entity{Name: "no-fn"}, nil, Options{}))
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Invoke(context.Background(), "", "", "ghost", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRegistryProviderMismatch(t *testing.T) {
	r := NewRegistry(nil)
	entity, fn := textTool("scoped", "x")
	entity.ProviderID = "vendor-a"
	require.NoError(t, r.Register(entity, fn, Options{}))

	_, err := r.Invoke(context.Background(), ProviderBuiltin, "vendor-b", "scoped", nil)
	require.Error(t, err)

	_, err = r.Invoke(context.Background(), ProviderAPI, "vendor-a", "scoped", nil)
	require.Error(t, err)

	_, err = r.Invoke(context.Background(), ProviderBuiltin, "vendor-a", "scoped", nil)
	require.NoError(t, err)
}

func TestRegistryRateLimit(t *testing.T) {
	r := NewRegistry(nil)
	entity, fn := textTool("limited", "x")
	require.NoError(t, r.Register(entity, fn, Options{
		RateLimit: &RateLimit{MaxCalls: 1, Window: time.Hour},
	}))

	_, err := r.Invoke(context.Background(), "", "", "limited", nil)
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), "", "", "limited", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestRegistryTimeoutApplied(t *testing.T) {
	r := NewRegistry(nil)
	entity := &Entity{Provider: ProviderBuiltin, Name: "slow"}
	fn := func(ctx context.Context, params map[string]any) ([]InvokeMessage, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return nil, errors.New("should have been cancelled")
		}
	}
	require.NoError(t, r.Register(entity, fn, Options{Timeout: 10 * time.Millisecond}))

	_, err := r.Invoke(context.Background(), "", "", "slow", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistryEntitiesKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{"c", "a", "b"} {
		entity, fn := textTool(name, name)
		require.NoError(t, r.Register(entity, fn, Options{}))
	}

	entities := r.Entities()
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)

	require.NoError(t, r.Unregister("a"))
	assert.False(t, r.Has("a"))
	assert.Len(t, r.Entities(), 2)
}

func TestEntitySchema(t *testing.T) {
	entity := &Entity{
		Name:        "weather",
		Description: "look up weather",
		Parameters: []Parameter{
			{Name: "city", Type: "string", Form: FormLLM, Required: true, Description: "city name"},
			{Name: "api_key", Type: "string", Form: FormFixed},
		},
	}

	schema := entity.Schema()
	assert.Equal(t, "weather", schema.Name)
	assert.JSONEq(t,
		`{"type": "object", "properties": {"city": {"type": "string", "description": "city name"}}, "required": ["city"]}`,
		string(schema.Parameters),
	)

	llmParams := entity.LLMParameters()
	require.Len(t, llmParams, 1)
	assert.Equal(t, "city", llmParams[0].Name)
}
