// Command agentrt is a minimal REPL that exercises the TurnEngine
// end-to-end: a provider, the built-in filesystem/shell tools, an
// optional stdio MCP extension, and session persistence all wired
// together exactly the way a real caller would wire them.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0".
var Version = "dev"

var (
	workspaceFlag    string
	manifestDirFlag  string
	sessionDirFlag   string
	permissionFlag   string
	providerFlag     string
	modelFlag        string
	profileFlag      string
	routerFlag       bool
	verboseFlag      bool
	autoApproveFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "agentrt",
	Short: "agentrt — a minimal interactive shell over the agent TurnEngine",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel := slog.LevelInfo
		if verboseFlag {
			logLevel = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
	},
	Run: func(cmd *cobra.Command, args []string) {
		runREPL()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workspaceFlag, "workspace", "./agentrt-workspace", "directory the filesystem/exec tools are restricted to")
	rootCmd.PersistentFlags().StringVar(&manifestDirFlag, "manifest-dir", "", "directory of MCP server manifest files to watch (disabled if empty)")
	rootCmd.PersistentFlags().StringVar(&sessionDirFlag, "session-dir", "./agentrt-sessions", "directory session journals are written to")
	rootCmd.PersistentFlags().StringVar(&permissionFlag, "permission-file", "./agentrt-sessions/permissions.json", "path to the persisted tool-approval store")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "anthropic", "provider to chat with: anthropic or openai")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "model override (defaults to the provider's own default)")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "coding", "tool policy profile: minimal, coding, full")
	rootCmd.PersistentFlags().BoolVar(&routerFlag, "router", false, "narrow the tool catalog sent to the provider via the embedding router")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging and verbose tracing")
	rootCmd.PersistentFlags().BoolVar(&autoApproveFlag, "auto-approve", false, "skip the approval prompt and allow every tool call (unattended runs only)")

	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("agentrt %s\n", Version)
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
