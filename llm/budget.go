package llm

import (
	"github.com/BaSui01/reagent/llm/tokenizer"
	"github.com/BaSui01/reagent/types"
)

// minCompletionTokens is the floor kept for the completion even when the
// prompt nearly fills the context window.
const minCompletionTokens = 256

// RecalcMaxTokens adjusts req.MaxTokens so that prompt plus completion fit
// inside the model's context window. Best-effort: counting failures leave
// the request untouched. contextWindow <= 0 falls back to the tokenizer's
// own limit.
func RecalcMaxTokens(tok tokenizer.Tokenizer, req *ChatRequest, contextWindow int) {
	if tok == nil || req == nil {
		return
	}
	if contextWindow <= 0 {
		contextWindow = tok.MaxTokens()
	}
	if contextWindow <= 0 {
		return
	}

	promptTokens, err := tok.CountMessages(toTokenizerMessages(req.Messages))
	if err != nil {
		return
	}
	for _, t := range req.Tools {
		n, err := tok.CountTokens(t.Name + " " + t.Description + " " + string(t.Parameters))
		if err != nil {
			return
		}
		promptTokens += n
	}

	available := contextWindow - promptTokens
	if available < minCompletionTokens {
		available = minCompletionTokens
	}
	if req.MaxTokens == 0 || req.MaxTokens > available {
		req.MaxTokens = available
	}
}

func toTokenizerMessages(msgs []types.Message) []tokenizer.Message {
	out := make([]tokenizer.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, tokenizer.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}
