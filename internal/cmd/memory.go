package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newMemoryCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and clear conversation memory",
		Long: `Memory holds one append-only entry log per conversation. Memorized
entries are summarized and injected into later planning prompts.`,
	}

	cmd.AddCommand(newMemoryShowCommand(opts))
	cmd.AddCommand(newMemoryMemorizedCommand(opts))
	cmd.AddCommand(newMemoryClearCommand(opts))

	return cmd
}

func newMemoryShowCommand(opts *rootOptions) *cobra.Command {
	var (
		namespace string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "show KEY",
		Short: "List every entry stored for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			mgr, err := a.memory()
			if err != nil {
				return err
			}
			defer mgr.Close()

			entries := mgr.Open(namespace, args[0]).GetMessages(cmd.Context())

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(a.out, "No memory for %s\n", args[0])
				return nil
			}

			role := color.New(color.FgCyan, color.Bold)
			star := color.New(color.FgYellow)
			for i, e := range entries {
				mark := " "
				if e.Memorized {
					mark = star.Sprint("*")
				}
				fmt.Fprintf(a.out, "%3d %s %s [%s] %s\n", i+1, mark, role.Sprint(e.Role), e.ActionType, e.Content)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", defaultNamespace, "Memory namespace")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")

	return cmd
}

func newMemoryMemorizedCommand(opts *rootOptions) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "memorized KEY",
		Short: "Print the memorized content injected into prompts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			mgr, err := a.memory()
			if err != nil {
				return err
			}
			defer mgr.Close()

			content := mgr.Open(namespace, args[0]).GetMemorizedContent(cmd.Context())
			if content != "" {
				fmt.Fprintln(a.out, content)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", defaultNamespace, "Memory namespace")

	return cmd
}

func newMemoryClearCommand(opts *rootOptions) *cobra.Command {
	var (
		namespace string
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "clear KEY",
		Short: "Delete every entry stored for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}

			if !yes {
				fmt.Fprintf(a.out, "This will delete all memory for %s.\n", args[0])
				if !confirmAction(cmd.InOrStdin(), a.out) {
					fmt.Fprintln(a.out, "Aborted.")
					return nil
				}
			}

			mgr, err := a.memory()
			if err != nil {
				return err
			}
			defer mgr.Close()

			if err := mgr.Open(namespace, args[0]).ClearMemory(cmd.Context()); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(a.out, "Cleared memory for %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", defaultNamespace, "Memory namespace")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")

	return cmd
}
