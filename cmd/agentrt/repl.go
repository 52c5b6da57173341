package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/agentrt/internal/config"
	"github.com/nextlevelbuilder/agentrt/internal/extension"
	"github.com/nextlevelbuilder/agentrt/internal/inspect"
	"github.com/nextlevelbuilder/agentrt/internal/permission"
	"github.com/nextlevelbuilder/agentrt/internal/providers"
	"github.com/nextlevelbuilder/agentrt/internal/router"
	"github.com/nextlevelbuilder/agentrt/internal/session"
	"github.com/nextlevelbuilder/agentrt/internal/tool"
	"github.com/nextlevelbuilder/agentrt/internal/toolvalidate"
	"github.com/nextlevelbuilder/agentrt/internal/tracing"
	"github.com/nextlevelbuilder/agentrt/internal/turn"
)

func runREPL() {
	workspace, err := filepath.Abs(workspaceFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error: creating workspace: %v\n", err)
		os.Exit(1)
	}

	provider, err := resolveProvider(providerFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	registry := tool.NewRegistry()
	registry.Register(tool.NewReadFileTool(workspace, true))
	registry.Register(tool.NewWriteFileTool(workspace, true))
	registry.Register(tool.NewListFilesTool(workspace, true))
	registry.Register(tool.NewExecTool(workspace, true))

	sessions, err := session.NewStore(sessionDirFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(permissionFlag), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	permStore, err := permission.NewStore(permissionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var permOpts []inspect.PermissionOption
	if autoApproveFlag {
		permOpts = append(permOpts, inspect.WithAutoApprove())
	}
	pipeline := inspect.NewPipeline(inspect.NewPermissionInspector(permStore, permOpts...))

	var manager *extension.Manager
	var watcher *config.ManifestWatcher
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if manifestDirFlag != "" {
		manifest, err := config.LoadManifest(manifestDirFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: loading manifest: %v\n", err)
			os.Exit(1)
		}
		manager = extension.NewManager(registry, manifest.ToServerConfigs())
		if err := manager.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		watcher = config.NewManifestWatcher(manifestDirFlag, manager)
		if err := watcher.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: manifest watch disabled: %v\n", err)
		}
		defer watcher.Close()
		defer manager.Stop()
	}

	var selector router.ToolSelector
	routerTopK := 0
	if routerFlag {
		idx := router.NewInMemoryIndex()
		_ = idx.IndexTools(ctx, toolDefinitions(registry), "builtin")
		selector = idx
		routerTopK = 6
	}

	tp := tracing.NewTracerProvider()
	collector := tracing.NewCollector(tp, verboseFlag)

	engine := turn.NewEngine(turn.Config{
		Provider:  provider,
		Registry:  registry,
		Policy:    tool.Policy{Profile: profileFlag},
		Permissions: permStore,
		Pipeline:  pipeline,
		Sessions:  sessions,
		Tracing:   collector,
		Validator: toolvalidate.NewValidator(),
		Selector:  selector,
		RouterTopK: routerTopK,
	})

	fmt.Fprintf(os.Stderr, "agentrt — provider=%s model=%s workspace=%s\n", provider.Name(), modelFlag, workspace)
	fmt.Fprintf(os.Stderr, "type \"exit\" to quit, \"/new\" to start a fresh session\n\n")

	sessionID := uuid.NewString()
	approve := cliApprover()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\ngoodbye")
			return
		default:
		}

		fmt.Fprint(os.Stderr, "you> ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return
		}
		if input == "/new" {
			sessionID = uuid.NewString()
			fmt.Fprintf(os.Stderr, "new session: %s\n\n", sessionID)
			continue
		}

		sink := turn.EventSink(func(ev turn.Event) {
			switch ev.Type {
			case turn.EventToolCall:
				fmt.Fprintf(os.Stderr, "  [tool] %s\n", ev.ToolName)
			case turn.EventApprovalRequired:
				fmt.Fprintf(os.Stderr, "  [approval requested] %s\n", ev.ToolName)
			case turn.EventSummarizing:
				fmt.Fprintf(os.Stderr, "  [context summarized]\n")
			case turn.EventError:
				fmt.Fprintf(os.Stderr, "  [error] %v\n", ev.Err)
			}
		})

		result, err := engine.Reply(ctx, sessionID, input, turn.ReplyOptions{Model: modelFlag}, sink, approve)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
			continue
		}
		if result.Cancelled {
			fmt.Fprintf(os.Stderr, "(cancelled)\n\n")
			continue
		}
		fmt.Printf("\n%s\n\n", result.Content)
	}
}

// cliApprover prompts the operator on stderr for each batch of pending
// tool approvals, one line per request.
func cliApprover() turn.Approver {
	var mu sync.Mutex
	scanner := bufio.NewScanner(os.Stdin)

	return func(ctx context.Context, requests []turn.ApprovalRequest) (map[string]permission.Permission, error) {
		mu.Lock()
		defer mu.Unlock()

		out := make(map[string]permission.Permission, len(requests))
		for _, req := range requests {
			fmt.Fprintf(os.Stderr, "approve %q with args %v? [y]es/[n]o/[a]lways/[c]ancel: ", req.ToolName, req.Arguments)
			if !scanner.Scan() {
				out[req.RequestID] = permission.PermissionCancel
				continue
			}
			switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
			case "y", "yes":
				out[req.RequestID] = permission.PermissionAllowOnce
			case "a", "always":
				out[req.RequestID] = permission.PermissionAlwaysAllow
			case "c", "cancel":
				out[req.RequestID] = permission.PermissionCancel
			default:
				out[req.RequestID] = permission.PermissionDenyOnce
			}
		}
		return out, nil
	}
}

func resolveProvider(name string) (providers.Provider, error) {
	switch name {
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return providers.NewAnthropicProvider(apiKey), nil
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return providers.NewOpenAIProvider("openai", apiKey, "", "gpt-4o"), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want anthropic or openai)", name)
	}
}

func toolDefinitions(registry *tool.Registry) []providers.ToolDefinition {
	names := registry.Names()
	defs := make([]providers.ToolDefinition, 0, len(names))
	for _, name := range names {
		t, ok := registry.Get(name)
		if !ok {
			continue
		}
		defs = append(defs, tool.Definition(t))
	}
	return defs
}
