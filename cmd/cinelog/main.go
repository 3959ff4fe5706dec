// Command cinelog builds the movie knowledge base and answers similarity
// queries against it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/cinelog/internal/logging"
	"github.com/cognicore/cinelog/pkg/cinelog"
	"github.com/cognicore/cinelog/pkg/cinelog/config"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	csvPath    string
	kbPath     string
	dbPath     string
	logLevel   string
	maxSteps   int

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cinelog",
		Short: "Deductive movie similarity engine",
		Long: `cinelog loads movie facts (genres, directors, actors, keywords, budgets)
and answers similarity questions by evaluating logic rules over them.

Facts come from a SQLite snapshot (--db), a text dump (--kb) or the
movie CSV (--csv), in that order of preference.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML config file")
	flags.StringVar(&a.csvPath, "csv", "", "movie CSV export")
	flags.StringVar(&a.kbPath, "kb", "", "knowledge-base text dump")
	flags.StringVar(&a.dbPath, "db", "", "SQLite fact snapshot")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.IntVar(&a.maxSteps, "max-steps", 0, "resolution-step ceiling per query")

	root.AddCommand(
		a.buildCmd(),
		a.queryCmd(),
		a.recommendCmd(),
		a.levelsCmd(),
		a.interactiveCmd(),
	)
	return root
}

// setup loads .env, the config file and the environment, applies flag
// overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg := config.Default()
	if a.configPath != "" {
		var err error
		if cfg, err = config.Load(a.configPath); err != nil {
			return err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("csv") {
		cfg.Data.CSVPath = a.csvPath
	}
	if flags.Changed("kb") {
		cfg.Data.KBPath = a.kbPath
	}
	if flags.Changed("db") {
		cfg.Data.SQLitePath = a.dbPath
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("max-steps") {
		cfg.Engine.MaxSteps = a.maxSteps
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

// open loads the knowledge base and wraps it in the query facade.
func (a *app) open(ctx context.Context) (*cinelog.Cinelog, error) {
	comps, err := config.NewLoader(a.cfg, a.logger).Load(ctx)
	if err != nil {
		return nil, err
	}
	return cinelog.New(cinelog.Options{
		Facts:      comps.Facts,
		Rules:      comps.Rules,
		MaxSteps:   a.cfg.Engine.MaxSteps,
		MaxResults: a.cfg.Engine.DefaultMaxResults,
		Logger:     a.logger,
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
