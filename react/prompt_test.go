package react

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/reagent/types"
)

func sampleSchemas() []types.ToolSchema {
	params, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": map[string]any{"city": map[string]any{"type": "string"}},
	})
	return []types.ToolSchema{
		{Name: "get_weather", Description: "Look up the weather.", Parameters: params},
		{Name: "search", Description: "Web search.", Parameters: params},
	}
}

func TestSystemMessageSubstitution(t *testing.T) {
	a := &Assembler{Instruction: "Answer in French."}
	msg := a.SystemMessage(sampleSchemas())

	assert.Equal(t, types.RoleSystem, msg.Role)
	assert.Contains(t, msg.Content, "Answer in French.")
	assert.Contains(t, msg.Content, `"get_weather", "search"`)
	assert.Contains(t, msg.Content, "Look up the weather.")
	assert.NotContains(t, msg.Content, "{{instruction}}")
	assert.NotContains(t, msg.Content, "{{tools}}")
	assert.NotContains(t, msg.Content, "{{tool_names}}")
}

func TestAssembleOrdering(t *testing.T) {
	a := &Assembler{Instruction: "be brief"}
	history := []types.Message{
		types.NewUserMessage("earlier question"),
		types.NewAssistantMessage("earlier answer"),
	}

	msgs := a.Assemble(history, "what now?", nil, sampleSchemas())
	require.Len(t, msgs, 4)
	assert.Equal(t, types.RoleSystem, msgs[0].Role)
	assert.Equal(t, "earlier question", msgs[1].Content)
	assert.Equal(t, "earlier answer", msgs[2].Content)
	assert.Equal(t, types.RoleUser, msgs[3].Role)
	assert.Equal(t, "what now?", msgs[3].Content)
}

func TestAssembleAppendsScratchpad(t *testing.T) {
	a := &Assembler{}
	scratchpad := []*Unit{{
		Thought:     "need the weather",
		ActionRaw:   `{"action":"get_weather","action_input":{"city":"Paris"}}`,
		Action:      &Action{Name: "get_weather"},
		Observation: "sunny",
	}}

	msgs := a.Assemble(nil, "weather?", scratchpad, nil)
	require.Len(t, msgs, 3)
	last := msgs[len(msgs)-1]
	assert.Equal(t, types.RoleAssistant, last.Role)
	assert.Equal(t,
		"Thought: need the weather\n\n"+
			`Action: {"action":"get_weather","action_input":{"city":"Paris"}}`+"\n\n"+
			"Observation: sunny\n\n",
		last.Content,
	)
}

func TestRenderScratchpadSkipsEmptyObservation(t *testing.T) {
	out := RenderScratchpad([]*Unit{{
		Thought:   "need the weather",
		ActionRaw: `{"action":"get_weather","action_input":{"city":"Paris"}}`,
		Action:    &Action{Name: "get_weather"},
	}})
	assert.NotContains(t, out, "Observation:")
	assert.Equal(t,
		"Thought: need the weather\n\n"+
			`Action: {"action":"get_weather","action_input":{"city":"Paris"}}`+"\n\n",
		out,
	)
}

func TestRenderScratchpadFinalUnit(t *testing.T) {
	out := RenderScratchpad([]*Unit{
		{Thought: "t1", Observation: "o1"},
		{Action: &Action{Name: "Final Answer"}, Response: "all done"},
	})
	assert.Contains(t, out, "Thought: t1\n\nObservation: o1\n\n")
	assert.Contains(t, out, "Final Answer: all done")
}

// Prompt assembly is pure: the same inputs always produce the same
// messages, so a prompt can be rebuilt at any point of the loop.
func TestAssembleIsPure(t *testing.T) {
	a := &Assembler{Instruction: "x"}
	history := []types.Message{types.NewUserMessage("hi")}
	scratchpad := []*Unit{{Thought: "t", Observation: "o"}}
	tools := sampleSchemas()

	first := a.Assemble(history, "q", scratchpad, tools)
	second := a.Assemble(history, "q", scratchpad, tools)
	assert.Equal(t, first, second)
}
