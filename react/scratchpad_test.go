package react

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionIsFinal(t *testing.T) {
	cases := []struct {
		name  string
		final bool
	}{
		{"final answer", true},
		{"Final Answer", true},
		{"FINAL ANSWER", true},
		{"final  answer", false},
		{"get_weather", false},
		{"", false},
	}
	for _, tc := range cases {
		a := &Action{Name: tc.name}
		assert.Equal(t, tc.final, a.IsFinal(), "name %q", tc.name)
	}

	var nilAction *Action
	assert.False(t, nilAction.IsFinal())
}

func TestActionInputString(t *testing.T) {
	assert.Equal(t, "", (&Action{}).InputString())
	assert.Equal(t, "plain", (&Action{Input: "plain"}).InputString())
	assert.Equal(t, "42", (&Action{Input: 42}).InputString())
	assert.JSONEq(t, `{"a":1}`, (&Action{Input: map[string]any{"a": 1}}).InputString())
	assert.JSONEq(t, `[1,2]`, (&Action{Input: []any{1, 2}}).InputString())
}

func TestUnitIsFinal(t *testing.T) {
	assert.False(t, (&Unit{}).IsFinal())
	assert.False(t, (&Unit{Action: &Action{Name: "search"}}).IsFinal())
	assert.True(t, (&Unit{Action: &Action{Name: "Final Answer"}}).IsFinal())
}
