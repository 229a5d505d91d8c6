package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// rootOptions holds the global flags shared by every subcommand
type rootOptions struct {
	configPath string
	logLevel   string
	backend    string
	model      string
	remote     bool
}

// NewRootCommand creates and returns the root cobra command for taskpilot
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "taskpilot",
		Short: "Agent task orchestration: plan, classify, reflect, remember",
		Long: `Taskpilot turns a natural-language goal into an ordered task plan,
decides whether a message needs agent work or a plain reply, judges
whether executed actions met their requirement, and keeps a per-task
memory that is fed back into later prompts.

Generation runs through the Claude CLI or a local Ollama server.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to config file (default .taskpilot/config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	flags.StringVar(&opts.backend, "backend", "", "Generation backend: claude or ollama")
	flags.StringVar(&opts.model, "model", "", "Model name passed to the generation backend")
	flags.BoolVar(&opts.remote, "remote", false, "Route planning and intent detection to the remote server")

	cmd.AddCommand(newPlanCommand(opts))
	cmd.AddCommand(newClassifyCommand(opts))
	cmd.AddCommand(newReflectCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newMemoryCommand(opts))

	return cmd
}
