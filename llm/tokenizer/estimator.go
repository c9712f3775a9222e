package tokenizer

// EstimatorTokenizer is a character-class token estimator used when no
// exact tokenizer is available for a model. CJK characters average fewer
// characters per token than Latin text, so the two classes are weighted
// separately.
type EstimatorTokenizer struct {
	model     string
	maxTokens int
}

const defaultEstimatorMaxTokens = 8192

// NewEstimatorTokenizer creates an estimator for the given model.
// maxTokens <= 0 selects a conservative default context size.
func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = defaultEstimatorMaxTokens
	}
	return &EstimatorTokenizer{model: model, maxTokens: maxTokens}
}

func (t *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	var cjk, other int
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FA5 {
			cjk++
		} else {
			other++
		}
	}
	tokens := float64(cjk)/1.5 + float64(other)/4.0
	if tokens < 1 {
		return 1, nil
	}
	return int(tokens), nil
}

func (t *EstimatorTokenizer) CountMessages(messages []Message) (int, error) {
	const perMessage = 4
	total := 0
	for _, m := range messages {
		n, err := t.CountTokens(m.Content)
		if err != nil {
			return 0, err
		}
		total += n + perMessage
	}
	return total, nil
}

func (t *EstimatorTokenizer) MaxTokens() int { return t.maxTokens }

func (t *EstimatorTokenizer) Name() string { return "estimator" }
