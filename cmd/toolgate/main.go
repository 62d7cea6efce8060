// Command toolgate is the CLI entrypoint: a registry-gated lazy MCP client.
// The root command runs the interactive REPL directly (equivalent to
// `repl`); `serve` runs the Registry Service standalone, and `repl` is
// exposed explicitly for symmetry and scripting.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fenwick-labs/toolgate/internal/agentloop"
	"github.com/fenwick-labs/toolgate/internal/bootstrap"
	"github.com/fenwick-labs/toolgate/internal/catalogue"
	"github.com/fenwick-labs/toolgate/internal/config"
	"github.com/fenwick-labs/toolgate/internal/convo"
	"github.com/fenwick-labs/toolgate/internal/llmagent"
	"github.com/fenwick-labs/toolgate/internal/llmagent/anthropic"
	"github.com/fenwick-labs/toolgate/internal/llmagent/openai"
	"github.com/fenwick-labs/toolgate/internal/mcpclient"
	"github.com/fenwick-labs/toolgate/internal/pool"
	"github.com/fenwick-labs/toolgate/internal/registry"
	"github.com/fenwick-labs/toolgate/internal/registryclient"
	"github.com/fenwick-labs/toolgate/internal/serverspec"
	"github.com/fenwick-labs/toolgate/internal/toolbox"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "toolgate:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var serversFile string
	root := &cobra.Command{
		Use:   "toolgate <registry-spec> [server-spec...]",
		Short: "A registry-gated lazy MCP client",
		Long: `toolgate exposes a small always-on meta tool set (query-tools, list-tools,
add-tool, add-server, delete-tool) instead of every upstream MCP tool at
once. The model discovers and connects tools on demand; registry-spec names
the Registry Service to use ("embedded" for in-process, or a "url::type"
spec dialing a standalone Registry Service such as "toolgate serve"), and any server-specs
are connected eagerly at startup.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.Context(), args[0], args[1:], serversFile)
		},
	}
	root.Flags().StringVar(&serversFile, "servers-file", "", "YAML file declaring a fleet of MCP servers to connect at startup")
	root.AddCommand(buildServeCmd(), buildREPLCmd())
	return root
}

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Registry Service standalone over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func buildREPLCmd() *cobra.Command {
	var serversFile string
	cmd := &cobra.Command{
		Use:   "repl <registry-spec> [server-spec...]",
		Short: "Run the interactive REPL (same as the root command)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.Context(), args[0], args[1:], serversFile)
		},
	}
	cmd.Flags().StringVar(&serversFile, "servers-file", "", "YAML file declaring a fleet of MCP servers to connect at startup")
	return cmd
}

func runServe(ctx context.Context) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cat, err := bootstrap.NewCatalogue(cfg, logger)
	if err != nil {
		return fmt.Errorf("construct catalogue: %w", err)
	}
	srv := registry.New(cat)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("registry service starting", "transport", "stdio")
	return srv.ServeStdio(ctx, os.Stdin, os.Stdout, logger)
}

func runREPL(ctx context.Context, registrySpec string, serverSpecs []string, serversFile string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serversFile == "" {
		serversFile = cfg.ServersFile
	}

	logFile, err := openTurnLog()
	if err != nil {
		return fmt.Errorf("open turn log: %w", err)
	}
	defer logFile.Close()

	connPool := pool.New(dialFactory(logger), pool.Config{
		Capacity: cfg.PoolCapacity,
		TTL:      cfg.PoolTTL,
		Logger:   logger,
	})
	defer connPool.Clear()
	defer connPool.Stop()

	var registryClient *registryclient.Client
	if registrySpec == "embedded" {
		cat, err := bootstrap.NewCatalogue(cfg, logger)
		if err != nil {
			return fmt.Errorf("construct catalogue: %w", err)
		}
		registryClient = registryclient.NewInProcess(registry.New(cat))
	} else {
		registryClient = registryclient.NewRemote(connPool, pool.Key(registrySpec))
	}

	tb := toolbox.New(connPool, registryClient, logger)

	for _, spec := range serverSpecs {
		url, kind, _ := serverspec.Split(spec)
		server := catalogue.ServerDescriptor{ID: spec, Name: spec, URL: url, Transport: kind}
		if err := tb.ConnectToServer(ctx, server); err != nil {
			return fmt.Errorf("connect server %q: %w", spec, err)
		}
		logger.Info("connected server", "spec", spec)
	}

	if serversFile != "" {
		declared, err := config.LoadServersFile(serversFile)
		if err != nil {
			return err
		}
		for _, s := range declared {
			key := s.Key()
			server := catalogue.ServerDescriptor{ID: key, Name: s.ID, URL: s.URL, Transport: s.Transport}
			if err := tb.ConnectToServer(ctx, server); err != nil {
				return fmt.Errorf("connect server %q (from %s): %w", s.ID, serversFile, err)
			}
			logger.Info("connected server from servers file", "id", s.ID)
		}
	}

	agent, err := buildAgent(cfg)
	if err != nil {
		return fmt.Errorf("construct agent: %w", err)
	}

	loop := agentloop.New(agent, tb, agentloop.Config{MaxDepth: cfg.MaxRecursionDepth}, logger)

	fmt.Println("toolgate ready. Type a message, or \"quit\" to exit.")
	conv := convo.New()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return nil
		}
		line := scanner.Text()
		if line == "quit" {
			return nil
		}
		if line == "" {
			continue
		}

		turnStart := len(conv.Messages)
		conv.AppendUserText(line)
		fmt.Fprintf(logFile, "--- user ---\n%s\n", line)

		result := loop.Run(ctx, conv)
		printResult(result)
		logTurn(logFile, conv, turnStart, result)

		if result.Kind == agentloop.KindError {
			logger.Error("turn ended in error", "error", result.Err)
		}
	}
}

func buildAgent(cfg *config.Config) (llmagent.Agent, error) {
	switch cfg.AgentProvider {
	case "openai":
		return openai.New(openai.Config{
			APIKey:       cfg.OpenAIAgentAPIKey,
			Model:        cfg.ModelName,
			SystemPrompt: cfg.SystemPrompt,
		})
	default:
		return anthropic.New(anthropic.Config{
			APIKey:       cfg.AnthropicAPIKey,
			Model:        cfg.ModelName,
			SystemPrompt: cfg.SystemPrompt,
		})
	}
}

// dialFactory builds the single Factory shared by every pooled connection:
// the tool dispatch pool and the Registry Client's remote backend alike,
// since the Registry Service is itself just another MCP server.
func dialFactory(logger *slog.Logger) pool.Factory {
	return func(ctx context.Context, key pool.Key) (pool.Conn, error) {
		desc, err := serverspec.Parse(string(key), "")
		if err != nil {
			return nil, err
		}
		return mcpclient.Dial(ctx, desc, logger)
	}
}

func openTurnLog() (*os.File, error) {
	dir := os.Getenv("TOOLGATE_LOG_DIR")
	if dir == "" {
		dir = "."
	}
	name := filepath.Join(dir, fmt.Sprintf("toolgate-%s.log", time.Now().UTC().Format("20060102T150405Z")))
	return os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// printResult prints exactly one thing per turn, per spec's user-visible
// behavior requirement: a FinalResponse, a UserInput prompt, accumulated
// text, or an Exception message.
func printResult(result agentloop.Result) {
	switch result.Kind {
	case agentloop.KindFinal:
		fmt.Println(result.Text)
	case agentloop.KindNeedsInput:
		fmt.Println(result.Text)
	case agentloop.KindDepthExceeded:
		fmt.Printf("[depth exhausted after %d round-trips without a final response]\n", result.Depth)
	case agentloop.KindError:
		fmt.Printf("[error] %v\n", result.Err)
	}
}

// logTurn appends every message produced since turnStart to the turn log,
// preserving the complete conversation verbatim per spec's error-handling
// section.
func logTurn(f *os.File, conv *convo.Conversation, turnStart int, result agentloop.Result) {
	fmt.Fprintf(f, "--- turn (kind=%s depth=%d) ---\n", result.Kind, result.Depth)
	for _, msg := range conv.Messages[turnStart:] {
		fmt.Fprintf(f, "[%s]\n", msg.Role)
		for _, b := range msg.Blocks {
			fmt.Fprintf(f, "%#v\n", b)
		}
	}
}
