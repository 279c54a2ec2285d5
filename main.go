package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"themeqa/config"
	"themeqa/qa"
	"themeqa/report"
	"themeqa/storage"
	"themeqa/visual"
)

var (
	configPath     string
	outDir         string
	logLevel       string
	stylesheet     string
	strict         bool
	updateBaseline bool
	appVersion     = "0.1.0"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

var rootCmd = &cobra.Command{
	Use:           "themeqa",
	Short:         "themeqa – multi-tenant theme token and visual QA",
	Long:          "themeqa checks per-organization theme tokens for completeness, contrast and regressions, and compares per-organization screenshots against a baseline.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger(cmd.ErrOrStderr(), logLevel))
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Snapshot theme tokens and compare against the baseline",
	Long:  "Extract every organization's theme tokens from the stylesheet, check them, write latest.json and a report, and either compare against or replace baseline.json.",
	Args:  cobra.NoArgs,
	RunE:  runTokens,
}

var visualCmd = &cobra.Command{
	Use:   "visual",
	Short: "Capture per-organization screenshots and compare against the baseline",
	Long:  "Start the dev server, capture every configured page for every organization found in the stylesheet, and compare the images with the stored baseline by content hash.",
	Args:  cobra.NoArgs,
	RunE:  runVisual,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  "Manage themeqa configuration files.",
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a default configuration file",
	Long:  "Generate a default themeqa.yaml at the --config path (or in the current directory if not specified).",
	Args:  cobra.NoArgs,
	RunE:  runConfigGenerate,
}

func init() {
	rootCmd.Version = appVersion
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFile, "Config file")
	rootCmd.PersistentFlags().StringVar(&outDir, "out", "", "Output directory (default from config: qa)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	tokensCmd.Flags().BoolVar(&strict, "strict", false, "Treat near-identical primary variants as errors")
	tokensCmd.Flags().BoolVar(&updateBaseline, "update-baseline", false, "Replace the baseline with this run")
	tokensCmd.Flags().StringVar(&stylesheet, "stylesheet", "", "Theme stylesheet (default from config)")

	visualCmd.Flags().BoolVar(&updateBaseline, "update-baseline", false, "Replace the screenshot baseline with this run")

	configCmd.AddCommand(configGenerateCmd)
	rootCmd.AddCommand(tokensCmd, visualCmd, configCmd)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// loadConfig reads the config file and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.OutDir = outDir
	}
	if flags.Lookup("stylesheet") != nil && flags.Changed("stylesheet") {
		cfg.Stylesheet = stylesheet
	}
	if flags.Lookup("strict") != nil && flags.Changed("strict") {
		cfg.Strict = strict
	}
	return cfg, nil
}

func runTokens(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := slog.Default()

	res, err := qa.RunTokens(cmd.Context(), qa.Options{
		Stylesheet:     cfg.Stylesheet,
		Policy:         cfg.Policy(),
		UpdateBaseline: updateBaseline,
		Store:          storage.New(cfg.OutDir),
		Logger:         log,
	})
	if err != nil {
		return err
	}

	report.Console(cmd.OutOrStdout(), report.TokenSummary(res.Report(updateBaseline), res.ExitCode == 0, res.ReportPath))
	if res.ExitCode != 0 {
		return &exitError{code: res.ExitCode}
	}
	return nil
}

func runVisual(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := slog.Default()
	vc := cfg.Visual

	store := storage.New(cfg.OutDir)
	rep, err := visual.Run(cmd.Context(), visual.Options{
		Stylesheet: cfg.Stylesheet,
		Pages:      vc.Pages,
		BaseURL:    vc.BaseURL,
		OrgParam:   vc.OrgParam,
		Update:     updateBaseline,
		Server: visual.ServerConfig{
			Command:      vc.DevServerCommand,
			Dir:          vc.DevServerDir,
			ReadyTimeout: vc.ReadyTimeout,
			Stdout:       os.Stderr,
			Stderr:       os.Stderr,
		},
		NewRenderer: visual.RodFactory(visual.RodConfig{
			Bin:            vc.BrowserBin,
			ViewportWidth:  vc.ViewportWidth,
			ViewportHeight: vc.ViewportHeight,
			Logger:         log,
		}),
		Store:  store,
		Logger: log,
	})
	if err != nil {
		return err
	}

	title := fmt.Sprintf("visual snapshots (%d orgs × %d pages)", rep.OrgCount, len(vc.Pages))
	if rep.Skipped {
		title = "visual snapshots skipped: " + rep.SkipReason
	}
	report.Console(cmd.OutOrStdout(), report.Summary{
		Title:  title,
		Passed: rep.ExitCode() == 0,
		Counts: []report.Count{
			{Label: "new", N: rep.New},
			{Label: "changed", N: rep.Changed, Bad: !rep.UpdateBaseline},
			{Label: "unchanged", N: rep.Unchanged},
		},
		Artifact: store.Path(storage.VisualDir, storage.VisualReportMD),
	})
	if code := rep.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func runConfigGenerate(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := config.Save(config.Default(), path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Generated default config file: %s\n", path)
	return nil
}

// execute runs the command tree and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}
