package cmd

import (
	"github.com/google/uuid"
	"github.com/harrison/taskpilot/internal/display"
	"github.com/harrison/taskpilot/internal/intent"
	"github.com/harrison/taskpilot/internal/logger"
	"github.com/harrison/taskpilot/internal/orchestrator"
	"github.com/harrison/taskpilot/internal/planner"
	"github.com/harrison/taskpilot/internal/reflection"
	"github.com/harrison/taskpilot/internal/runner"
	"github.com/spf13/cobra"
)

// defaultNamespace scopes conversation memory written by the CLI
const defaultNamespace = "conversations"

func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		conversation string
		files        []string
		previous     string
	)

	cmd := &cobra.Command{
		Use:   "run GOAL",
		Short: "Handle one turn end to end",
		Long: `Classify the message, and when it needs agent work plan it, execute each
task through the Claude CLI, and judge every result. Outcomes are written
to conversation memory so the next turn of the same conversation sees them.

Press Ctrl+C to cancel; the current task is interrupted and the turn ends.

Examples:
  taskpilot run "add a CONTRIBUTING.md"
  taskpilot run "now link it from the README" --conversation 3f2b...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}

			gen, err := a.generator()
			if err != nil {
				return err
			}
			mgr, err := a.memory()
			if err != nil {
				return err
			}
			defer mgr.Close()

			logs := logger.NewRegistry(a.cfg.LogDir, a.cfg.LogLevel)
			defer logs.Close()

			collected, err := a.collectFiles(cmd, files)
			if err != nil {
				return err
			}

			if conversation == "" {
				conversation = uuid.NewString()
			}

			classifier := intent.New(gen, a.templates)
			classifier.Logger = a.log
			p := planner.New(gen, a.templates)
			p.Retry = a.retryConfig()
			p.Logger = a.log
			if rc := a.remoteClient(); rc != nil {
				classifier.Remote = rc
				p.Remote = rc
			}
			evaluator := reflection.New(gen, a.templates)
			evaluator.Model = a.cfg.Generation.Model
			evaluator.Logger = a.log

			r := runner.NewClaudeRunner()
			r.ClaudePath = a.cfg.Generation.ClaudePath
			r.Model = a.cfg.Generation.Model
			r.Timeout = a.cfg.Generation.Timeout
			r.Logger = a.log

			o := &orchestrator.Orchestrator{
				Classifier:    classifier,
				Planner:       p,
				Runner:        r,
				Reflector:     evaluator,
				Memory:        mgr,
				Logs:          logs,
				Logger:        a.log,
				Namespace:     defaultNamespace,
				HandleSignals: true,
			}

			store := mgr.Open(defaultNamespace, conversation)
			result, err := o.HandleTurn(cmd.Context(), orchestrator.Turn{
				ConversationID: conversation,
				Message:        args[0],
				History:        history(store.GetMessages(cmd.Context())),
				Files:          collected,
				PreviousResult: previous,
				Model:          a.cfg.Generation.Model,
				IsSubscribe:    a.cfg.Remote.Enabled,
			})
			if result != nil {
				display.Turn(a.out, conversation, result)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&conversation, "conversation", "", "Conversation id (default: a new random id)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "File or directory relevant to the goal (repeatable)")
	cmd.Flags().StringVar(&previous, "previous", "", "Result of the previous turn")

	return cmd
}
