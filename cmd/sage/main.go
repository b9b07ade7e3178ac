// Command sage runs the coaching decision engine from the command line.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sagecoach/engine/internal/config"
	"github.com/sagecoach/engine/internal/engine"
	"github.com/sagecoach/engine/internal/experience"
	"github.com/sagecoach/engine/internal/policy"
	"github.com/sagecoach/engine/internal/replay"
	"github.com/sagecoach/engine/internal/security"
)

var (
	configPath string
	dbPath     string
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:   "sage",
		Short: "Adaptive coaching decision engine",
		Long: `sage selects and delivers coaching actions from behavioral signals,
learning per-user policy weights from outcome feedback.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "override database path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug|info|warn|error)")

	root.AddCommand(
		decideCmd(),
		outcomeCmd(),
		profileCmd(),
		replayCmd(),
		inspectCmd(),
		resetCapsCmd(),
		consentCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges file, environment, and flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #region decide

func decideCmd() *cobra.Command {
	var callerContext string
	cmd := &cobra.Command{
		Use:   "decide <user-id> <skill>",
		Short: "Run one coaching decision",
		Long: fmt.Sprintf("Runs the full decision pipeline for a user.\nSkills: %s",
			joinSkills()),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Engine.Decide(cmd.Context(), engine.Request{
				UserID:        args[0],
				Skill:         args[1],
				CallerContext: callerContext,
			})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&callerContext, "context", "", "optional caller context (screened)")
	return cmd
}

func joinSkills() string {
	var names []string
	for _, s := range security.Skills() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

// #endregion decide

// #region outcome

func outcomeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outcome <correlation-id> <feedback>",
		Short: "Record feedback for a delivered decision",
		Long:  "Feedback: completed, accepted, neutral, ignored, rejected.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			feedback := experience.FeedbackKind(args[1])
			switch feedback {
			case experience.FeedbackCompleted, experience.FeedbackAccepted,
				experience.FeedbackNeutral, experience.FeedbackIgnored,
				experience.FeedbackRejected:
			default:
				return fmt.Errorf("unknown feedback kind %q", args[1])
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Engine.RecordOutcome(cmd.Context(), args[0], feedback)
		},
	}
}

// #endregion outcome

// #region profile

func profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <user-id>",
		Short: "Regenerate and print the user's behavioral profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			dna, err := app.Engine.RefreshProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(dna)
		},
	}
}

// #endregion profile

// #region replay

func replayCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "replay <user-id>",
		Short: "Score current weights against the user's experience history",
		Long: `Replays the scored experience history through the user's current
weights and a zero-weight baseline, ranking the candidates by estimated
policy value. Read-only against the database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			history, err := app.Experiences.ListRecent(cmd.Context(), args[0], limit, true)
			if err != nil {
				return err
			}
			current, err := app.Experiences.Weights(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			summary := replay.Run(history, []replay.Candidate{
				{Name: "current", Weights: current},
				{Name: "baseline", Weights: policy.Weights{}},
			})
			return printJSON(summary)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", experience.DefaultRetention, "max experiences to replay")
	return cmd
}

// #endregion replay

// #region inspect

func inspectCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect <user-id>",
		Short: "Print recent decision audit entries for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			entries, err := app.Audit.Recent(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return printJSON(entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max entries")
	return cmd
}

// #endregion inspect

// #region reset-caps

func resetCapsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-caps",
		Short: "Zero every user's daily action counter",
		Long:  "Intended to be invoked once a day by an external scheduler.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Gate.ResetDailyCaps(cmd.Context())
		},
	}
}

// #endregion reset-caps

// #region consent

func consentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consent <user-id> <grant|revoke>",
		Short: "Set a user's coaching consent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var granted bool
			switch args[1] {
			case "grant":
				granted = true
			case "revoke":
			default:
				return fmt.Errorf("expected grant or revoke, got %q", args[1])
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Records.SetConsent(cmd.Context(), args[0], granted)
		},
	}
}

// #endregion consent
