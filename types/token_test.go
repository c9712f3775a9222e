package types

import "testing"

func TestTokenUsageAdd(t *testing.T) {
	u := TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, Cost: 0.25, Currency: "USD"}
	u.Add(TokenUsage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30, Cost: 0.5, Currency: "USD"})

	if u.PromptTokens != 30 {
		t.Errorf("PromptTokens = %d, want 30", u.PromptTokens)
	}
	if u.CompletionTokens != 15 {
		t.Errorf("CompletionTokens = %d, want 15", u.CompletionTokens)
	}
	if u.TotalTokens != 45 {
		t.Errorf("TotalTokens = %d, want 45", u.TotalTokens)
	}
	if u.Cost != 0.75 {
		t.Errorf("Cost = %v, want 0.75", u.Cost)
	}
}

func TestTokenUsageIsZero(t *testing.T) {
	var u TokenUsage
	if !u.IsZero() {
		t.Error("zero value should report IsZero")
	}
	u.TotalTokens = 1
	if u.IsZero() {
		t.Error("non-zero usage should not report IsZero")
	}
}
