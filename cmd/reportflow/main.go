// Package main provides the reportflow CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/reportflow/cli"
	"github.com/richinex/reportflow/config"
)

var (
	// Global flags
	configPath string
	provider   string
	driver     string
	dbPath     string
	verbose    bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "reportflow",
		Short: "Plan, review and draft structured reports with an LLM",
		Long: `reportflow turns a set of source items into a structured report.

A session runs in phases:
- plan: the model proposes a hierarchical outline
- review: a human approves the outline or rejects it with feedback
- draft: each section is written with research tools and committed
- synthesize: summary sections are written from everything drafted

Every step is checkpointed, so interrupted sessions can be resumed.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML settings file")
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider ("+strings.Join(config.SupportedProviders(), ", ")+")")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "Storage driver (memory, sqlite3, sqlite)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path for checkpoints and sections")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")

	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(decideCmd(true))
	rootCmd.AddCommand(decideCmd(false))
	rootCmd.AddCommand(resumeCmd())
	rootCmd.AddCommand(resumeAllCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(documentCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(toolsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options(progress bool) cli.Options {
	return cli.Options{
		ConfigPath: configPath,
		Provider:   provider,
		Driver:     driver,
		DBPath:     dbPath,
		Verbose:    verbose,
		Progress:   progress,
	}
}

// withApp opens the app, runs f and closes it.
func withApp(cmd *cobra.Command, withModel, progress bool, f func(*cli.App) error) error {
	app, err := cli.Open(cmd.Context(), options(progress), withModel)
	if err != nil {
		return err
	}
	defer app.Close()
	return f(app)
}

func startCmd() *cobra.Command {
	var sessionID string
	var constraints string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a session and run it until the plan needs review",
		Long: `Start a new session. Sources are read from <sources dir>/<session>.yaml,
or from the default manifest. The run pauses when the candidate plan is
ready for review.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, true, func(app *cli.App) error {
				return app.Start(cmd.Context(), sessionID, constraints)
			})
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID (generated when empty)")
	cmd.Flags().StringVar(&constraints, "constraints", "", "Extra instructions for the planner and drafter")

	return cmd
}

func decideCmd(approve bool) *cobra.Command {
	var feedback string

	use, short := "approve [session]", "Approve the candidate plan and draft the report"
	if !approve {
		use, short = "reject [session]", "Reject the candidate plan and replan with feedback"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, true, func(app *cli.App) error {
				return app.Decide(cmd.Context(), args[0], approve, feedback)
			})
		},
	}

	if !approve {
		cmd.Flags().StringVarP(&feedback, "feedback", "f", "", "What the planner should change (required)")
		_ = cmd.MarkFlagRequired("feedback")
	}

	return cmd
}

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume [session]",
		Short: "Resume an interrupted session from its latest checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, true, func(app *cli.App) error {
				return app.Resume(cmd.Context(), args[0])
			})
		},
	}
}

func resumeAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume-all",
		Short: "Resume every interrupted session concurrently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, true, func(app *cli.App) error {
				return app.ResumeAll(cmd.Context())
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [session]",
		Short: "Show a session's status, or list every session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return withApp(cmd, false, false, func(app *cli.App) error {
				return app.Status(cmd.Context(), id)
			})
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [session]",
		Short: "List a session's checkpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, false, func(app *cli.App) error {
				return app.History(cmd.Context(), args[0])
			})
		},
	}
}

func documentCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "document [session]",
		Short: "Print the report, or the plan with --format yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, false, func(app *cli.App) error {
				return app.Document(cmd.Context(), args[0], format)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", cli.FormatMarkdown, "Output format (markdown, yaml)")

	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve review tools over MCP on stdio",
		Long: `Serve the report_status, report_decide, report_document and
report_sessions tools over MCP on stdio. When metrics.addr is configured
Prometheus metrics are served there as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, false, func(app *cli.App) error {
				return app.Serve(cmd.Context())
			})
		},
	}
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered to the drafter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, false, func(app *cli.App) error {
				app.ListTools(verbose)
				return nil
			})
		},
	}
}
