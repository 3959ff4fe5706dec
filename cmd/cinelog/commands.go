package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cognicore/cinelog/pkg/cinelog"
	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/factstore/sqlite"
	"github.com/cognicore/cinelog/pkg/cinelog/ingest"
	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/maintenance"
	"github.com/cognicore/cinelog/pkg/cinelog/query"
	"github.com/cognicore/cinelog/pkg/cinelog/similarity"
)

var printer = message.NewPrinter(language.English)

func (a *app) buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Import the movie CSV and write a text dump and/or SQLite snapshot",
		Example: `  cinelog build --csv movies.csv --kb movie_kb.pl
  cinelog build --csv movies.csv --db movies.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data := a.cfg.Data

			facts, report, err := ingest.ReadFile(data.CSVPath, ingest.Options{MaxMovies: data.MaxMovies, Logger: a.logger})
			if err != nil {
				return err
			}
			store := factstore.New()
			if err := similarity.Declare(store); err != nil {
				return err
			}
			if err := store.AddFacts(facts); err != nil {
				return fmt.Errorf("load facts: %w", err)
			}
			rs, err := similarity.NewRuleSet()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printer.Fprintf(out, "Imported %d movies (%d rows, %d duplicates, %d skipped): %d facts\n",
				report.Movies, report.Rows, report.Duplicates, report.Skipped, report.Facts)

			if data.KBPath == "" && data.SQLitePath == "" {
				fmt.Fprintln(out, "Nothing written: pass --kb and/or --db")
				return nil
			}
			if data.KBPath != "" {
				exp := &maintenance.Exporter{
					Writer:     maintenance.FileWriter{Path: data.KBPath},
					Predicates: similarity.Schema,
				}
				if err := exp.Export(ctx, store, rs); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote knowledge base to %s\n", data.KBPath)
			}
			if data.SQLitePath != "" {
				snap, err := sqlite.Open(ctx, data.SQLitePath)
				if err != nil {
					return err
				}
				defer snap.Close()
				id, err := snap.Save(ctx, data.CSVPath, store.Facts())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Saved snapshot %s to %s\n", id, data.SQLitePath)
			}
			a.logger.Info("build complete",
				zap.Int("movies", report.Movies),
				zap.Int("facts", report.Facts))
			return nil
		},
	}
}

func (a *app) queryCmd() *cobra.Command {
	var max int
	cmd := &cobra.Command{
		Use:   "query <goal>",
		Short: "Run a goal and print its solutions",
		Example: `  cinelog query "recommend_score_4('avatar', Movie)"
  cinelog query "genre_similarity_score('avatar', M, S), S >= 4" --max 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := c.Query(cmd.Context(), args[0], max)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().IntVar(&max, "max", 0, "maximum number of solutions (0 uses the configured default)")
	return cmd
}

func (a *app) recommendCmd() *cobra.Command {
	var (
		level    int
		metric   string
		minScore int
		max      int
		explain  bool
	)
	cmd := &cobra.Command{
		Use:   "recommend <title>",
		Short: "Recommend movies similar to a title",
		Long: `Recommend movies by exact similarity level (--level 1..5) or by a
metric (--metric overall|genre|plot|actor|decade|budget) with a minimum
score (--min 1..5).`,
		Example: `  cinelog recommend "The Dark Knight" --level 4
  cinelog recommend avatar --metric genre --min 4 --explain`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			title := args[0]
			if err := requireMovie(cmd, c, title); err != nil {
				return err
			}

			var recs []cinelog.Recommendation
			if cmd.Flags().Changed("level") {
				recs, err = c.RecommendByLevel(ctx, title, level, max)
			} else {
				recs, err = c.RecommendByMetric(ctx, title, metric, minScore, max)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printRecommendations(out, recs)
			if !explain {
				return nil
			}
			for _, r := range recs {
				card, err := c.Explain(ctx, title, r.Movie)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\n%s (overall %d)\n", card.Movie, card.Level)
				for _, b := range card.Bullets {
					fmt.Fprintf(out, "  - %s\n", b)
				}
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&level, "level", 0, "exact overall similarity level (1-5)")
	flags.StringVar(&metric, "metric", "", "similarity metric: "+strings.Join(similarity.Metrics, ", "))
	flags.IntVar(&minScore, "min", similarity.MaxLevel, "minimum metric score (1-5)")
	flags.IntVar(&max, "max", 0, "maximum number of recommendations")
	flags.BoolVar(&explain, "explain", false, "print the shared attributes behind each recommendation")
	cmd.MarkFlagsMutuallyExclusive("level", "metric")
	cmd.MarkFlagsOneRequired("level", "metric")
	return cmd
}

func (a *app) levelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "List the similarity levels the rule set defines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, level := range c.AvailableLevels() {
				fmt.Fprintf(out, "%d  %s/2\n", level, similarity.LevelPredicate(level))
			}
			return nil
		},
	}
}

func requireMovie(cmd *cobra.Command, c *cinelog.Cinelog, title string) error {
	ok, err := c.MovieExists(cmd.Context(), title)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: movie %q is not in the knowledge base", internalerr.ErrNotFound, title)
	}
	return nil
}

func printResult(w io.Writer, res query.Result) {
	if len(res.Vars) == 0 {
		if len(res.Solutions) > 0 {
			fmt.Fprintln(w, "true.")
		} else {
			fmt.Fprintln(w, "false.")
		}
		return
	}
	if len(res.Solutions) == 0 {
		fmt.Fprintln(w, "No solutions.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(res.Vars, "\t")))
	for _, s := range res.Solutions {
		row := make([]string, len(res.Vars))
		for i, v := range res.Vars {
			row[i] = s.Display(v)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
	printer.Fprintf(w, "%d solutions, %d steps\n", len(res.Solutions), res.Stats.Steps)
}

func printRecommendations(w io.Writer, recs []cinelog.Recommendation) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No recommendations found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MOVIE\tSCORE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%d\n", r.Movie, r.Score)
	}
	tw.Flush()
}
