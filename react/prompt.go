package react

import (
	"encoding/json"
	"strings"

	"github.com/BaSui01/reagent/types"
)

// systemTemplate is the instruction block handed to the model. The
// {{instruction}}, {{tools}} and {{tool_names}} slots are filled at
// assembly time.
const systemTemplate = "Respond to the human as helpfully and accurately as possible.\n\n" +
	"{{instruction}}\n\n" +
	"You have access to the following tools:\n\n" +
	"{{tools}}\n\n" +
	"Use a json blob to specify a tool by providing an action key (tool name) " +
	"and an action_input key (tool input).\n" +
	"Valid \"action\" values: \"Final Answer\" or {{tool_names}}\n\n" +
	"Provide only ONE action per $JSON_BLOB, as shown:\n\n" +
	"```\n" +
	"{\n" +
	"  \"action\": $TOOL_NAME,\n" +
	"  \"action_input\": $ACTION_INPUT\n" +
	"}\n" +
	"```\n\n" +
	"Follow this format:\n\n" +
	"Question: input question to answer\n" +
	"Thought: consider previous and subsequent steps\n" +
	"Action:\n" +
	"```\n" +
	"$JSON_BLOB\n" +
	"```\n" +
	"Observation: action result\n" +
	"... (repeat Thought/Action/Observation N times)\n" +
	"Thought: I know what to respond\n" +
	"Action:\n" +
	"```\n" +
	"{\n" +
	"  \"action\": \"Final Answer\",\n" +
	"  \"action_input\": \"Final response to human\"\n" +
	"}\n" +
	"```\n\n" +
	"Begin! Reminder to ALWAYS respond with a valid json blob of a single action. " +
	"Use tools if necessary. Respond directly if appropriate. " +
	"Format is Action:```$JSON_BLOB```then Observation:."

// Assembler builds the message list for one model invocation. It holds no
// state, so a prompt can be reconstructed from the same inputs at any
// point.
type Assembler struct {
	Instruction string
}

// SystemMessage renders the system prompt for the given tool catalogue.
func (a *Assembler) SystemMessage(tools []types.ToolSchema) types.Message {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, `"`+t.Name+`"`)
	}

	catalogue := "[]"
	if len(tools) > 0 {
		if raw, err := json.MarshalIndent(tools, "", "  "); err == nil {
			catalogue = string(raw)
		}
	}

	content := strings.ReplaceAll(systemTemplate, "{{instruction}}", a.Instruction)
	content = strings.ReplaceAll(content, "{{tools}}", catalogue)
	content = strings.ReplaceAll(content, "{{tool_names}}", strings.Join(names, ", "))
	return types.NewSystemMessage(content)
}

// Assemble builds the full prompt: system message, prior conversation,
// the user query, and the replayed scratchpad when any rounds exist.
func (a *Assembler) Assemble(history []types.Message, query string, scratchpad []*Unit, tools []types.ToolSchema) []types.Message {
	messages := make([]types.Message, 0, len(history)+3)
	messages = append(messages, a.SystemMessage(tools))
	messages = append(messages, history...)
	messages = append(messages, types.NewUserMessage(query))

	if replay := RenderScratchpad(scratchpad); replay != "" {
		messages = append(messages, types.NewAssistantMessage(replay))
	}
	return messages
}

// RenderScratchpad serializes completed rounds into the assistant turn
// replayed to the model.
func RenderScratchpad(units []*Unit) string {
	var b strings.Builder
	for _, u := range units {
		if u.IsFinal() {
			b.WriteString("Final Answer: ")
			b.WriteString(u.Response)
			continue
		}
		b.WriteString("Thought: ")
		b.WriteString(u.Thought)
		b.WriteString("\n\n")
		if u.ActionRaw != "" {
			b.WriteString("Action: ")
			b.WriteString(u.ActionRaw)
			b.WriteString("\n\n")
		}
		if u.Observation != "" {
			b.WriteString("Observation: ")
			b.WriteString(u.Observation)
			b.WriteString("\n\n")
		}
	}
	return b.String()
}
