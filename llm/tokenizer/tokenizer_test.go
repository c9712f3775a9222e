package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimatorCountTokens(t *testing.T) {
	tok := NewEstimatorTokenizer("any", 0)

	n, err := tok.CountTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = tok.CountTokens("x")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "never rounds nonempty text down to zero")

	latin, err := tok.CountTokens("hello world, this is latin text")
	require.NoError(t, err)
	cjk, err := tok.CountTokens("你好世界这是中文")
	require.NoError(t, err)
	assert.Greater(t, latin, 0)
	assert.Greater(t, cjk, 0)
	// 8 CJK chars weigh more than 8 latin chars.
	latin8, _ := tok.CountTokens("abcdefgh")
	assert.Greater(t, cjk, latin8)
}

func TestEstimatorCountMessagesAddsOverhead(t *testing.T) {
	tok := NewEstimatorTokenizer("any", 0)
	content, err := tok.CountTokens("hello there")
	require.NoError(t, err)

	total, err := tok.CountMessages([]Message{{Role: "user", Content: "hello there"}})
	require.NoError(t, err)
	assert.Equal(t, content+4, total)
}

func TestEstimatorDefaults(t *testing.T) {
	assert.Equal(t, 8192, NewEstimatorTokenizer("any", 0).MaxTokens())
	assert.Equal(t, 4096, NewEstimatorTokenizer("any", 4096).MaxTokens())
	assert.Equal(t, "estimator", NewEstimatorTokenizer("any", 0).Name())
}

type stubTokenizer struct{ name string }

func (s *stubTokenizer) CountTokens(text string) (int, error)      { return len(text), nil }
func (s *stubTokenizer) CountMessages(msgs []Message) (int, error) { return len(msgs), nil }
func (s *stubTokenizer) MaxTokens() int                            { return 1 }
func (s *stubTokenizer) Name() string                              { return s.name }

func TestRegistryPrefixMatch(t *testing.T) {
	stub := &stubTokenizer{name: "stub"}
	RegisterTokenizer("custom-model", stub)

	got, err := GetTokenizer("custom-model")
	require.NoError(t, err)
	assert.Same(t, Tokenizer(stub), got)

	got, err = GetTokenizer("custom-model-32k")
	require.NoError(t, err)
	assert.Same(t, Tokenizer(stub), got)

	_, err = GetTokenizer("completely-unknown")
	require.Error(t, err)
}

func TestForModelAlwaysReturnsSomething(t *testing.T) {
	tok := ForModel("some-model-nobody-knows")
	require.NotNil(t, tok)
	n, err := tok.CountTokens("hello")
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}
