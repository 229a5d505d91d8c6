package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/harrison/taskpilot/internal/intent"
	"github.com/harrison/taskpilot/internal/models"
	"github.com/spf13/cobra"
)

func newClassifyCommand(opts *rootOptions) *cobra.Command {
	var (
		conversation string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "classify MESSAGE",
		Short: "Decide whether a message needs agent work or a chat reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}

			gen, err := a.generator()
			if err != nil {
				return err
			}
			c := intent.New(gen, a.templates)
			c.Logger = a.log
			if rc := a.remoteClient(); rc != nil {
				c.Remote = rc
			}

			var hist []models.Message
			if conversation != "" {
				mgr, err := a.memory()
				if err != nil {
					return err
				}
				defer mgr.Close()
				hist = history(mgr.Open(defaultNamespace, conversation).GetMessages(cmd.Context()))
			}

			res, err := c.Classify(cmd.Context(), args[0], hist, intent.Options{
				ConversationID: conversation,
				Model:          intent.ModelConfig{Name: a.cfg.Generation.Model, IsSubscribe: a.cfg.Remote.Enabled},
			})
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(a.out).Encode(struct {
					Intent    models.IntentKind   `json:"intent"`
					Reasoning string              `json:"reasoning"`
					Branch    models.IntentBranch `json:"branch"`
				}{res.Intent, res.Reasoning, res.Branch})
			}

			kind := color.New(color.FgCyan, color.Bold)
			if res.Intent == models.IntentChat {
				kind = color.New(color.FgGreen, color.Bold)
			}
			fmt.Fprintf(a.out, "Intent: %s (via %s)\n", kind.Sprint(res.Intent), res.Branch)
			if res.Reasoning != "" {
				fmt.Fprintf(a.out, "Reasoning: %s\n", res.Reasoning)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&conversation, "conversation", "", "Conversation id whose messages are sent as history")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}
