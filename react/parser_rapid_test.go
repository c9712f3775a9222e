package react

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/BaSui01/reagent/llm"
)

// Classification must not depend on how the model output is chunked:
// any split of the same text yields the same thought and actions.
func TestParseStreamChunkingInvariance(t *testing.T) {
	outputs := []string{
		"plain thought with no action at all",
		"thinking first Action: {\"action\": \"lookup\", \"action_input\": {\"q\": \"go\"}}",
		"Thought: check\n```json\n{\"action\": \"search\", \"action_input\": \"x\"}\n```\nafter",
		"almost Act but not quite, then ``` not json ```",
		"Action: {\"action\": \"final answer\", \"action_input\": \"done { braces } inside\"}",
	}

	rapid.Check(t, func(t *rapid.T) {
		output := rapid.SampledFrom(outputs).Draw(t, "output")

		var parts []string
		rest := output
		for len(rest) > 0 {
			n := rapid.IntRange(1, len(rest)).Draw(t, "cut")
			parts = append(parts, rest[:n])
			rest = rest[n:]
		}

		chunked := classify(parts)
		whole := classify([]string{output})

		if chunked.text != whole.text {
			t.Fatalf("text diverged: %q vs %q", chunked.text, whole.text)
		}
		if len(chunked.actions) != len(whole.actions) {
			t.Fatalf("action count diverged: %d vs %d", len(chunked.actions), len(whole.actions))
		}
		for i := range chunked.actions {
			if chunked.actions[i].Name != whole.actions[i].Name {
				t.Fatalf("action name diverged: %q vs %q", chunked.actions[i].Name, whole.actions[i].Name)
			}
			if chunked.raws[i] != whole.raws[i] {
				t.Fatalf("raw action diverged: %q vs %q", chunked.raws[i], whole.raws[i])
			}
		}
	})
}

func classify(parts []string) parseOutcome {
	ch := make(chan llm.StreamChunk, len(parts))
	for _, p := range parts {
		ch <- llm.StreamChunk{Delta: p}
	}
	close(ch)

	var out parseOutcome
	r := ParseStream(ch)
	for item := range r.Items() {
		if item.Action != nil {
			out.actions = append(out.actions, item.Action)
			out.raws = append(out.raws, item.ActionRaw)
			continue
		}
		out.text += item.Text
	}
	return out
}
