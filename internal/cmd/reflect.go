package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/harrison/taskpilot/internal/logger"
	"github.com/harrison/taskpilot/internal/models"
	"github.com/harrison/taskpilot/internal/reflection"
	"github.com/spf13/cobra"
)

func newReflectCommand(opts *rootOptions) *cobra.Command {
	var (
		requirement string
		status      string
		content     string
		errText     string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "reflect",
		Short: "Judge whether an action satisfied its requirement",
		Long: `Evaluate an action result against its requirement. Success, and failure
with an error message, are taken as reported; any other result is judged
by the generation backend.

Examples:
  taskpilot reflect --requirement "create README.md" --status success --content "wrote README.md"
  taskpilot reflect --requirement "fix the tests" --status running --content "edited 2 files"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var actionStatus models.ActionStatus
			switch models.ActionStatus(status) {
			case models.ActionSuccess, models.ActionFailure, models.ActionRunning:
				actionStatus = models.ActionStatus(status)
			default:
				return fmt.Errorf("invalid --status %q, must be one of: success, failure, running", status)
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}

			gen, err := a.generator()
			if err != nil {
				return err
			}
			e := reflection.New(gen, a.templates)
			e.Model = a.cfg.Generation.Model
			e.Logger = a.log

			verdict, err := e.Reflect(cmd.Context(), requirement, models.ActionResult{
				Status:  actionStatus,
				Content: content,
				Error:   errText,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(a.out).Encode(struct {
					Status   models.VerdictStatus `json:"status"`
					Comments string               `json:"comments"`
					Degraded bool                 `json:"degraded,omitempty"`
				}{verdict.Status, verdict.Comments, verdict.Degraded()})
			}

			fmt.Fprintf(a.out, "Verdict: %s\n", logger.VerdictColor(verdict.Status).Sprint(verdict.Status))
			if verdict.Comments != "" {
				fmt.Fprintf(a.out, "Comments: %s\n", verdict.Comments)
			}
			if verdict.Degraded() {
				fmt.Fprintf(a.out, "Note: evaluation could not be parsed (%v)\n", verdict.ParseError)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&requirement, "requirement", "", "What the action was supposed to achieve")
	cmd.Flags().StringVar(&status, "status", "", "Action status: success, failure or running")
	cmd.Flags().StringVar(&content, "content", "", "Action output")
	cmd.Flags().StringVar(&errText, "error", "", "Action error message")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the verdict as JSON")
	cmd.MarkFlagRequired("requirement")
	cmd.MarkFlagRequired("status")

	return cmd
}
