package cmd

import (
	"encoding/json"

	"github.com/fatih/color"
	"github.com/harrison/taskpilot/internal/display"
	"github.com/harrison/taskpilot/internal/planner"
	"github.com/spf13/cobra"
)

func newPlanCommand(opts *rootOptions) *cobra.Command {
	var (
		files        []string
		previous     string
		conversation string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "plan GOAL",
		Short: "Turn a goal into an ordered task plan",
		Long: `Ask the generation backend for a Markdown task list and convert it into
tasks. Malformed answers are retried with a corrective follow-up; when no
attempt yields a list the plan is empty.

Examples:
  taskpilot plan "add a health endpoint" --file server.go
  taskpilot plan "write release notes" --json`,
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
			p := planner.New(gen, a.templates)
			p.Retry = a.retryConfig()
			p.Logger = a.log
			if rc := a.remoteClient(); rc != nil {
				p.Remote = rc
			}

			collected, err := a.collectFiles(cmd, files)
			if err != nil {
				return err
			}

			memorized := ""
			if conversation != "" {
				mgr, err := a.memory()
				if err != nil {
					return err
				}
				defer mgr.Close()
				memorized = mgr.Open(defaultNamespace, conversation).GetMemorizedContent(cmd.Context())
			}

			tasks, err := p.Plan(cmd.Context(), args[0], planner.Options{
				ConversationID: conversation,
				Files:          collected,
				PreviousResult: previous,
				Memory:         memorized,
				Model:          planner.ModelConfig{Name: a.cfg.Generation.Model, IsSubscribe: a.cfg.Remote.Enabled},
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(tasks)
			}
			if len(tasks) == 0 {
				color.New(color.FgYellow).Fprintln(a.out, "Planning could not be completed.")
				return nil
			}
			display.Tasks(a.out, tasks)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&files, "file", nil, "File or directory relevant to the goal (repeatable)")
	cmd.Flags().StringVar(&previous, "previous", "", "Result of the previous turn")
	cmd.Flags().StringVar(&conversation, "conversation", "", "Conversation id whose memorized content is injected")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plan as JSON")

	return cmd
}
