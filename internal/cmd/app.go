package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/harrison/taskpilot/internal/config"
	"github.com/harrison/taskpilot/internal/display"
	"github.com/harrison/taskpilot/internal/fileutil"
	"github.com/harrison/taskpilot/internal/llm"
	"github.com/harrison/taskpilot/internal/logger"
	"github.com/harrison/taskpilot/internal/memory"
	"github.com/harrison/taskpilot/internal/models"
	"github.com/harrison/taskpilot/internal/prompt"
	"github.com/harrison/taskpilot/internal/remote"
	"github.com/harrison/taskpilot/internal/retry"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// app is the per-invocation wiring built from config and flags
type app struct {
	cfg       *config.Config
	out       io.Writer
	log       *logger.ConsoleLogger
	templates *prompt.Loader
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	home, err := config.GetHome()
	if err != nil {
		return nil, err
	}

	var cfg *config.Config
	if opts.configPath != "" {
		cfg, err = config.LoadConfig(opts.configPath)
	} else {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			return nil, fmt.Errorf("get working directory: %w", cwdErr)
		}
		cfg, err = config.LoadConfigFromDir(cwd)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	var logLevel, backend, model *string
	var remoteEnabled *bool
	if flags.Changed("log-level") {
		logLevel = &opts.logLevel
	}
	if flags.Changed("backend") {
		backend = &opts.backend
	}
	if flags.Changed("model") {
		model = &opts.model
	}
	if flags.Changed("remote") {
		remoteEnabled = &opts.remote
	}
	cfg.MergeWithFlags(logLevel, backend, model, nil, remoteEnabled)
	cfg.ResolvePaths(home)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	configureColor(out)

	return &app{
		cfg:       cfg,
		out:       out,
		log:       logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel),
		templates: prompt.NewLoader(cfg.Templates.Dir, cfg.Templates.CacheDir),
	}, nil
}

// configureColor disables color unless w is a terminal
func configureColor(w io.Writer) {
	f, ok := w.(*os.File)
	if !ok {
		color.NoColor = true
		return
	}
	color.NoColor = !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func (a *app) generator() (llm.Generator, error) {
	return llm.New(a.cfg.Generation, a.log)
}

func (a *app) retryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:     a.cfg.Retry.MaxAttempts,
		BaseTemperature: a.cfg.Retry.BaseTemperature,
		TemperatureStep: a.cfg.Retry.TemperatureStep,
	}
}

// remoteClient returns nil when remote routing is disabled
func (a *app) remoteClient() *remote.Client {
	if !a.cfg.Remote.Enabled {
		return nil
	}
	return remote.NewClient(a.cfg.Remote.BaseURL, a.cfg.Remote.Timeout)
}

func (a *app) memory() (*memory.Manager, error) {
	backend, err := memory.NewBackend(a.cfg.Memory)
	if err != nil {
		return nil, fmt.Errorf("open memory: %w", err)
	}
	return memory.NewManager(backend, a.log), nil
}

// maxPromptFiles caps how many files directory arguments contribute
const maxPromptFiles = 200

// collectFiles expands --file arguments. Missing paths are reported on
// stderr and left out.
func (a *app) collectFiles(cmd *cobra.Command, paths []string) ([]string, error) {
	res, err := fileutil.Collect(paths, fileutil.Options{
		ExcludeDirs: fileutil.DefaultExcludeDirs,
		MaxFiles:    maxPromptFiles,
	})
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}
	if len(res.Missing) > 0 {
		display.WarnMissingFiles(res.Missing).Display(cmd.ErrOrStderr())
	}
	if res.Truncated {
		a.log.LogWarn(fmt.Sprintf("directory arguments truncated to %d files", maxPromptFiles))
	}
	return res.Files, nil
}

// history converts stored entries into conversation messages
func history(entries []models.MemoryEntry) []models.Message {
	msgs := make([]models.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, models.Message{Role: e.Role, Content: e.Content})
	}
	return msgs
}

// confirmAction prompts the user for confirmation
func confirmAction(in io.Reader, out io.Writer) bool {
	scanner := bufio.NewScanner(in)

	fmt.Fprintf(out, "Continue? [y/N]: ")

	if !scanner.Scan() {
		return false
	}

	response := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return response == "y" || response == "yes"
}
