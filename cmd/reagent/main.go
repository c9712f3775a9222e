// Command reagent answers one query with the bounded reasoning loop: it
// loads configuration, wires the model provider and the local tool
// registry, optionally connects MCP servers, and prints the answer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/reagent/config"
	"github.com/BaSui01/reagent/internal/metrics"
	"github.com/BaSui01/reagent/providers/openai"
	"github.com/BaSui01/reagent/react"
	"github.com/BaSui01/reagent/tools"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to the YAML configuration file")
		query       = flag.String("query", "", "question to answer")
		instruction = flag.String("instruction", "", "extra system instruction, overrides the configured one")
	)
	flag.Parse()

	if *query == "" {
		fmt.Fprintln(os.Stderr, "usage: reagent -query \"...\" [-config config.yaml]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := tools.NewRegistry(logger)
	if err := registerBuiltins(registry); err != nil {
		logger.Fatal("register tools", zap.Error(err))
	}

	provider := openai.New(cfg.Provider.APIKey,
		openai.WithBaseURL(cfg.Provider.BaseURL),
		openai.WithLogger(logger),
	)

	loop := react.New(provider, registry,
		react.WithLogger(logger),
		react.WithMetrics(metrics.NewCollector("reagent", nil, logger)),
	)

	inst := cfg.Loop.Instruction
	if *instruction != "" {
		inst = *instruction
	}

	result, err := loop.Run(ctx, &react.Params{
		Query:               *query,
		Instruction:         inst,
		Model:               cfg.Model,
		Tools:               registry.Entities(),
		MCPServersConfig:    cfg.MCP.ServersConfig,
		MCPResourcesAsTools: cfg.MCP.ResourcesAsTools,
		MCPPromptsAsTools:   cfg.MCP.PromptsAsTools,
		MaxIterations:       cfg.Loop.MaxIterations,
	})
	if err != nil {
		logger.Fatal("loop failed", zap.Error(err))
	}

	fmt.Println(result.Answer)
	logger.Info("done",
		zap.Int("rounds", result.Rounds),
		zap.Int("total_tokens", result.Usage.TotalTokens),
	)
}

// registerBuiltins wires the demo tools shipped with the CLI.
func registerBuiltins(registry *tools.Registry) error {
	now := &tools.Entity{
		Provider:    tools.ProviderBuiltin,
		Name:        "current_time",
		Description: "Returns the current date and time in RFC 3339 format.",
	}
	if err := registry.Register(now, func(ctx context.Context, params map[string]any) ([]tools.InvokeMessage, error) {
		return []tools.InvokeMessage{tools.NewTextMessage(time.Now().Format(time.RFC3339))}, nil
	}, tools.Options{}); err != nil {
		return err
	}

	calc := &tools.Entity{
		Provider:    tools.ProviderBuiltin,
		Name:        "add",
		Description: "Adds two numbers and returns the sum.",
		Parameters: []tools.Parameter{
			{Name: "a", Type: "number", Form: tools.FormLLM, Required: true, Description: "first operand"},
			{Name: "b", Type: "number", Form: tools.FormLLM, Required: true, Description: "second operand"},
		},
	}
	return registry.Register(calc, func(ctx context.Context, params map[string]any) ([]tools.InvokeMessage, error) {
		a, err := toFloat(params["a"])
		if err != nil {
			return nil, fmt.Errorf("a: %w", err)
		}
		b, err := toFloat(params["b"])
		if err != nil {
			return nil, fmt.Errorf("b: %w", err)
		}
		return []tools.InvokeMessage{tools.NewTextMessage(strconv.FormatFloat(a+b, 'f', -1, 64))}, nil
	}, tools.Options{})
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
