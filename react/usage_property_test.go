package react

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/BaSui01/reagent/llm"
	"github.com/BaSui01/reagent/types"
)

// Usage reported across any number of stream chunks accumulates exactly,
// independent of interleaved text deltas.
func TestParseStreamUsageAccumulation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("usage sums over all chunks", prop.ForAll(
		func(prompts []int, completions []int) bool {
			var chunks []llm.StreamChunk
			wantPrompt, wantCompletion := 0, 0
			for i, p := range prompts {
				c := 0
				if i < len(completions) {
					c = completions[i]
				}
				wantPrompt += p
				wantCompletion += c
				chunks = append(chunks,
					llm.StreamChunk{Delta: "x"},
					llm.StreamChunk{Usage: &types.TokenUsage{
						PromptTokens:     p,
						CompletionTokens: c,
						TotalTokens:      p + c,
					}},
				)
			}

			r := ParseStream(streamOf(chunks...))
			for range r.Items() {
			}
			usage := r.Usage()
			return usage.PromptTokens == wantPrompt &&
				usage.CompletionTokens == wantCompletion &&
				usage.TotalTokens == wantPrompt+wantCompletion
		},
		gen.SliceOf(gen.IntRange(0, 10000)),
		gen.SliceOf(gen.IntRange(0, 10000)),
	))

	properties.TestingRun(t)
}
