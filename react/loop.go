package react

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/reagent/internal/metrics"
	"github.com/BaSui01/reagent/llm"
	"github.com/BaSui01/reagent/llm/tokenizer"
	"github.com/BaSui01/reagent/mcp"
	"github.com/BaSui01/reagent/tools"
	"github.com/BaSui01/reagent/types"
)

// DefaultMaxIterations bounds the loop when the caller does not.
const DefaultMaxIterations = 3

// maxIterationsCap is the hard ceiling on the round budget.
const maxIterationsCap = 99

// fallbackThought stands in when a round produced an action with no
// visible reasoning text.
const fallbackThought = "I am thinking about how to help you"

// observationStop is appended to the stop sequences of models that
// support it so generation halts before hallucinating an observation.
const observationStop = "Observation"

// Params configures one loop invocation.
type Params struct {
	Query       string
	Instruction string
	Model       llm.ModelConfig
	Tools       []*tools.Entity
	History     []types.Message

	// MCPServersConfig is the raw JSON server map for the remote tool
	// universe. Empty disables remote tools.
	MCPServersConfig    string
	MCPResourcesAsTools bool
	MCPPromptsAsTools   bool

	// MaxIterations bounds the number of rounds. Zero means the default.
	MaxIterations int
}

// Validate normalizes the parameters in place.
func (p *Params) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return errors.New("query is required")
	}
	if p.Model.Model == "" {
		return errors.New("model is required")
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = DefaultMaxIterations
	}
	if p.MaxIterations > maxIterationsCap {
		p.MaxIterations = maxIterationsCap
	}
	return nil
}

// Result is the outcome of one loop invocation.
type Result struct {
	Answer     string
	Usage      types.TokenUsage
	Rounds     int
	Scratchpad []*Unit
}

// RemoteDialer connects the remote tool universe for one invocation.
type RemoteDialer func(ctx context.Context, serversConfig string, resourcesAsTools, promptsAsTools bool) (RemoteInvoker, error)

// Loop runs bounded reason-act-observe invocations against a streaming
// model provider.
type Loop struct {
	provider  llm.Provider
	invoker   tools.Invoker
	emitter   Emitter
	collector *metrics.Collector
	logger    *zap.Logger
	tokenizer tokenizer.Tokenizer
	dialer    RemoteDialer
}

// Option customizes a Loop.
type Option func(*Loop)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithEmitter sets the event emitter.
func WithEmitter(e Emitter) Option {
	return func(l *Loop) { l.emitter = e }
}

// WithTokenizer fixes the tokenizer used for prompt budgeting. Without
// it the tokenizer is resolved from the model name per round.
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(l *Loop) { l.tokenizer = t }
}

// WithMetrics sets the Prometheus collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(l *Loop) { l.collector = c }
}

// WithRemoteDialer overrides how the remote tool universe is connected.
func WithRemoteDialer(d RemoteDialer) Option {
	return func(l *Loop) { l.dialer = d }
}

// New builds a loop over a model provider and a local tool invoker.
func New(provider llm.Provider, invoker tools.Invoker, opts ...Option) *Loop {
	l := &Loop{
		provider: provider,
		invoker:  invoker,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.emitter == nil {
		l.emitter = NewZapEmitter(l.logger)
	}
	if l.dialer == nil {
		l.dialer = dialMCP
	}
	l.logger = l.logger.With(zap.String("component", "react_loop"))
	return l
}

func dialMCP(ctx context.Context, serversConfig string, resourcesAsTools, promptsAsTools bool) (RemoteInvoker, error) {
	var opts []mcp.DialOption
	if resourcesAsTools {
		opts = append(opts, mcp.WithResourcesAsTools())
	}
	if promptsAsTools {
		opts = append(opts, mcp.WithPromptsAsTools())
	}
	return mcp.Dial(ctx, serversConfig, nil, opts...)
}

// Run executes the loop until the model answers or the round budget runs
// out. Model call failures abort the invocation; tool failures do not.
func (l *Loop) Run(ctx context.Context, params *Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var remote RemoteInvoker
	if strings.TrimSpace(params.MCPServersConfig) != "" && strings.TrimSpace(params.MCPServersConfig) != "{}" {
		var err error
		remote, err = l.dialer(ctx, params.MCPServersConfig, params.MCPResourcesAsTools, params.MCPPromptsAsTools)
		if err != nil {
			return nil, fmt.Errorf("connect mcp servers: %w", err)
		}
		defer remote.Close()
	}

	dispatcher := NewDispatcher(params.Tools, l.invoker, remote, l.logger)
	if remote != nil {
		if err := dispatcher.RefreshCatalogue(ctx); err != nil {
			return nil, fmt.Errorf("fetch mcp tools: %w", err)
		}
	}

	assembler := &Assembler{Instruction: params.Instruction}
	result := &Result{}
	var scratchpad []*Unit

	for iteration := 1; iteration <= params.MaxIterations; iteration++ {
		roundStart := time.Now()
		lastRound := iteration == params.MaxIterations

		roundLog := l.emitter.CreateLog(
			fmt.Sprintf("ROUND %d", iteration),
			nil,
			map[string]any{MetaStartedAt: roundStart.Unix(), MetaProvider: l.provider.Name()},
			nil,
			LogStart,
		)

		// The final round must answer, so the model sees no tools.
		var catalogue []types.ToolSchema
		if !lastRound {
			catalogue = dispatcher.Catalogue()
		}

		unit, usage, err := l.runRound(ctx, assembler, params, scratchpad, catalogue)
		if err != nil {
			l.finishRound(roundLog, roundStart, usage, LogError)
			return nil, err
		}
		result.Usage.Add(usage)
		result.Rounds = iteration
		scratchpad = append(scratchpad, unit)

		terminal := unit.Action == nil || unit.IsFinal()
		switch {
		case terminal:
			result.Answer = unit.Response

		case lastRound:
			// Budget exhausted with an unanswered action: the last
			// thought is the best available answer.
			unit.Response = unit.Thought
			result.Answer = unit.Thought

		default:
			obs, _, err := l.dispatch(ctx, dispatcher, unit.Action, roundLog)
			if err != nil {
				l.finishRound(roundLog, roundStart, usage, LogError)
				return nil, err
			}
			unit.Observation = obs
		}

		l.finishRound(roundLog, roundStart, usage, LogSuccess)
		l.collector.RecordRound(time.Since(roundStart))

		if terminal || lastRound {
			break
		}
	}

	result.Scratchpad = scratchpad
	l.emitter.Text(result.Answer)
	l.emitter.JSON(map[string]any{
		MetaTotalTokens: result.Usage.TotalTokens,
		MetaTotalPrice:  result.Usage.Cost,
		MetaCurrency:    result.Usage.Currency,
	})

	l.logger.Info("loop finished",
		zap.Int("rounds", result.Rounds),
		zap.Int("total_tokens", result.Usage.TotalTokens),
	)
	return result, nil
}

func containsStop(stops []string, want string) bool {
	for _, s := range stops {
		if s == want {
			return true
		}
	}
	return false
}

// runRound performs one model invocation and classifies its output.
func (l *Loop) runRound(ctx context.Context, assembler *Assembler, params *Params, scratchpad []*Unit, catalogue []types.ToolSchema) (*Unit, types.TokenUsage, error) {
	messages := assembler.Assemble(params.History, params.Query, scratchpad, catalogue)
	for i := range messages {
		messages[i].Content = strings.TrimSpace(messages[i].Content)
	}

	req := &llm.ChatRequest{
		Model:       params.Model.Model,
		Messages:    messages,
		MaxTokens:   params.Model.Params.MaxTokens,
		Temperature: params.Model.Params.Temperature,
		TopP:        params.Model.Params.TopP,
		Stop:        append([]string(nil), params.Model.Params.Stop...),
		Tools:       catalogue,
	}
	if params.Model.SupportsObservationStop && !containsStop(req.Stop, observationStop) {
		req.Stop = append(req.Stop, observationStop)
	}
	tok := l.tokenizer
	if tok == nil {
		tok = tokenizer.ForModel(params.Model.Model)
	}
	llm.RecalcMaxTokens(tok, req, params.Model.ContextWindow)

	callStart := time.Now()
	chunks, err := l.provider.Stream(ctx, req)
	if err != nil {
		return nil, types.TokenUsage{}, fmt.Errorf("model call failed: %w", err)
	}

	parsed := ParseStream(chunks)
	var thought strings.Builder
	var action *Action
	actionRaw := ""
	for item := range parsed.Items() {
		if item.Action != nil {
			action = item.Action
			actionRaw = item.ActionRaw
			continue
		}
		thought.WriteString(item.Text)
	}
	if err := parsed.Err(); err != nil {
		return nil, parsed.Usage(), fmt.Errorf("model stream failed: %w", err)
	}

	usage := parsed.Usage()
	l.collector.RecordModelCall(l.provider.Name(), time.Since(callStart),
		usage.PromptTokens, usage.CompletionTokens, usage.Cost)

	unit := &Unit{
		Thought:   strings.TrimSpace(thought.String()),
		Action:    action,
		ActionRaw: actionRaw,
	}
	if unit.Thought == "" {
		unit.Thought = fallbackThought
	}

	switch {
	case action == nil:
		// Plain text with no action is already the answer.
		unit.Response = unit.Thought
	case action.IsFinal():
		unit.Response = action.InputString()
	}
	return unit, usage, nil
}

// dispatch executes one tool action under a CALL log entry.
func (l *Loop) dispatch(ctx context.Context, dispatcher *Dispatcher, action *Action, parent *LogHandle) (string, map[string]any, error) {
	callStart := time.Now()
	callLog := l.emitter.CreateLog(
		"CALL "+action.Name,
		map[string]any{"input": action.Input},
		map[string]any{MetaStartedAt: callStart.Unix()},
		parent,
		LogStart,
	)

	observation, callParams, err := dispatcher.Dispatch(ctx, action)
	elapsed := time.Since(callStart)
	if err != nil {
		l.emitter.FinishLog(callLog,
			map[string]any{"error": err.Error()},
			map[string]any{MetaFinishedAt: time.Now().Unix(), MetaElapsedTime: elapsed.Seconds()},
		)
		l.collector.RecordToolCall(action.Name, elapsed, false)
		return "", nil, fmt.Errorf("dispatch %s: %w", action.Name, err)
	}

	l.emitter.FinishLog(callLog,
		map[string]any{"params": callParams, "observation": observation},
		map[string]any{MetaFinishedAt: time.Now().Unix(), MetaElapsedTime: elapsed.Seconds()},
	)
	l.collector.RecordToolCall(action.Name, elapsed, !strings.HasPrefix(observation, "tool invoke error:"))
	return observation, callParams, nil
}

func (l *Loop) finishRound(handle *LogHandle, start time.Time, usage types.TokenUsage, status LogStatus) {
	l.emitter.FinishLog(handle, map[string]any{"status": string(status)}, map[string]any{
		MetaFinishedAt:  time.Now().Unix(),
		MetaElapsedTime: time.Since(start).Seconds(),
		MetaTotalTokens: usage.TotalTokens,
		MetaTotalPrice:  usage.Cost,
		MetaCurrency:    usage.Currency,
	})
}
