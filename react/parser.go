package react

import (
	"encoding/json"
	"strings"

	"github.com/BaSui01/reagent/llm"
	"github.com/BaSui01/reagent/types"
)

// Markers that flip the classifier from thought to action buffering.
const (
	actionMarker = "Action:"
	fenceMarker  = "```"
)

// StreamItem is one classified piece of model output: incremental thought
// text, or a decoded action with its raw JSON.
type StreamItem struct {
	Text      string
	Action    *Action
	ActionRaw string
}

// ParseResult drives classification of one model stream. Items must be
// drained; Usage and Err are valid once the item channel is closed.
type ParseResult struct {
	items chan StreamItem
	usage types.TokenUsage
	err   error
	done  chan struct{}
}

// ParseStream classifies a streaming chat response into thought text and
// structured actions. The returned result owns the chunk channel.
func ParseStream(chunks <-chan llm.StreamChunk) *ParseResult {
	r := &ParseResult{
		items: make(chan StreamItem),
		done:  make(chan struct{}),
	}
	go r.run(chunks)
	return r
}

// Items returns the classified item channel. It closes when the model
// stream ends.
func (r *ParseResult) Items() <-chan StreamItem {
	return r.items
}

// Usage returns the token usage reported by the stream. Valid after the
// item channel has been drained.
func (r *ParseResult) Usage() types.TokenUsage {
	<-r.done
	return r.usage
}

// Err returns the stream error, if any. Valid after the item channel has
// been drained.
func (r *ParseResult) Err() error {
	<-r.done
	return r.err
}

func (r *ParseResult) run(chunks <-chan llm.StreamChunk) {
	defer close(r.items)
	defer close(r.done)

	c := &classifier{emit: func(item StreamItem) { r.items <- item }}
	for chunk := range chunks {
		if chunk.Err != nil {
			r.err = chunk.Err
			break
		}
		if chunk.Usage != nil {
			r.usage.Add(*chunk.Usage)
		}
		if chunk.Delta != "" {
			c.feed(chunk.Delta)
		}
	}
	c.finish()
}

// classifier states.
const (
	stateThought = iota
	stateAction
	stateFenceTail
)

// classifier is a character-level state machine. It streams thought text
// out as it arrives, holding back only the shortest tail that could still
// grow into a marker, so classification does not depend on how the stream
// is chunked.
type classifier struct {
	emit   func(StreamItem)
	state  int
	text   string // thought-state buffer, at most a marker prefix long
	action string // action-state buffer, text after the opening marker
	tail   string // fence-tail buffer while skipping to the closing fence
	fenced bool
}

func (c *classifier) feed(delta string) {
	switch c.state {
	case stateThought:
		c.feedThought(delta)
	case stateAction:
		c.feedAction(delta)
	case stateFenceTail:
		c.feedFenceTail(delta)
	}
}

func (c *classifier) feedThought(delta string) {
	c.text += delta

	idx, marker := findMarker(c.text)
	if idx >= 0 {
		if idx > 0 {
			c.emit(StreamItem{Text: c.text[:idx]})
		}
		rest := c.text[idx+len(marker):]
		c.text = ""
		c.action = ""
		c.fenced = marker == fenceMarker
		c.state = stateAction
		if rest != "" {
			c.feedAction(rest)
		}
		return
	}

	hold := markerHoldback(c.text)
	if flush := c.text[:len(c.text)-hold]; flush != "" {
		c.emit(StreamItem{Text: flush})
		c.text = c.text[len(c.text)-hold:]
	}
}

func (c *classifier) feedAction(delta string) {
	c.action += delta

	start := strings.IndexByte(c.action, '{')
	if start < 0 {
		// A fenced block that closes without JSON is not an action.
		if c.fenced && strings.Contains(c.action, fenceMarker) {
			c.flushActionAsThought()
		}
		return
	}

	end, complete := scanJSONObject(c.action[start:])
	if !complete {
		return
	}

	raw := c.action[start : start+end]
	var act Action
	if err := json.Unmarshal([]byte(raw), &act); err != nil || act.Name == "" {
		c.flushActionAsThought()
		return
	}

	rest := c.action[start+end:]
	c.action = ""
	c.emit(StreamItem{Action: &act, ActionRaw: raw})

	if c.fenced {
		c.tail = ""
		c.state = stateFenceTail
		if rest != "" {
			c.feedFenceTail(rest)
		}
	} else {
		c.state = stateThought
		if rest != "" {
			c.feedThought(rest)
		}
	}
}

func (c *classifier) feedFenceTail(delta string) {
	c.tail += delta
	if idx := strings.Index(c.tail, fenceMarker); idx >= 0 {
		rest := c.tail[idx+len(fenceMarker):]
		c.tail = ""
		c.state = stateThought
		if rest != "" {
			c.feedThought(rest)
		}
		return
	}
	// Keep only what could still be the start of the closing fence.
	if keep := len(fenceMarker) - 1; len(c.tail) > keep {
		c.tail = c.tail[len(c.tail)-keep:]
	}
}

// flushActionAsThought downgrades a failed action buffer back to thought
// text, marker included, and resumes thought scanning.
func (c *classifier) flushActionAsThought() {
	marker := actionMarker
	if c.fenced {
		marker = fenceMarker
	}
	c.emit(StreamItem{Text: marker + c.action})
	c.action = ""
	c.state = stateThought
}

// finish flushes whatever is still buffered when the stream ends. A
// stream that ends mid-action recovers by emitting the buffer as thought.
func (c *classifier) finish() {
	switch c.state {
	case stateThought:
		if c.text != "" {
			c.emit(StreamItem{Text: c.text})
			c.text = ""
		}
	case stateAction:
		c.flushActionAsThought()
	case stateFenceTail:
		c.tail = ""
		c.state = stateThought
	}
}

// findMarker returns the earliest marker occurrence, or -1.
func findMarker(s string) (int, string) {
	idx, marker := -1, ""
	if i := strings.Index(s, actionMarker); i >= 0 {
		idx, marker = i, actionMarker
	}
	if i := strings.Index(s, fenceMarker); i >= 0 && (idx < 0 || i < idx) {
		idx, marker = i, fenceMarker
	}
	return idx, marker
}

// markerHoldback returns the length of the longest buffer tail that is a
// proper prefix of a marker and therefore must not be emitted yet.
func markerHoldback(s string) int {
	max := 0
	for _, marker := range []string{actionMarker, fenceMarker} {
		for k := len(marker) - 1; k > max; k-- {
			if k <= len(s) && strings.HasPrefix(marker, s[len(s)-k:]) {
				max = k
				break
			}
		}
	}
	return max
}

// scanJSONObject scans a string starting with '{' and returns the index
// one past the matching close brace. complete is false while the object
// is still open.
func scanJSONObject(s string) (end int, complete bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}
