package react

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/reagent/types"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) FetchTools(ctx context.Context) ([]types.ToolSchema, error) {
	args := m.Called(ctx)
	schemas, _ := args.Get(0).([]types.ToolSchema)
	return schemas, args.Error(1)
}

func (m *mockRemote) ExecuteTool(ctx context.Context, name string, params map[string]any) ([]map[string]any, error) {
	args := m.Called(ctx, name, params)
	content, _ := args.Get(0).([]map[string]any)
	return content, args.Error(1)
}

func (m *mockRemote) Close() error {
	return m.Called().Error(0)
}

// A catalogue fetch failure is a setup error, and the remote client must
// still be closed on that exit path.
func TestLoopFetchToolsErrorClosesRemote(t *testing.T) {
	remote := &mockRemote{}
	remote.On("FetchTools", mock.Anything).Return(nil, errors.New("listing refused"))
	remote.On("Close").Return(nil).Once()

	provider := &scriptedProvider{}
	loop := New(provider, &countingInvoker{}, WithRemoteDialer(
		func(ctx context.Context, serversConfig string, resourcesAsTools, promptsAsTools bool) (RemoteInvoker, error) {
			return remote, nil
		},
	))

	_, err := loop.Run(context.Background(), &Params{
		Query:            "q",
		Model:            loopModel(),
		MCPServersConfig: `{"srv": {"url": "http://localhost:9"}}`,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch mcp tools")
	remote.AssertExpectations(t)
}
