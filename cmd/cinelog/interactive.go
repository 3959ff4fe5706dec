package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognicore/cinelog/pkg/cinelog"
	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/similarity"
)

var errQuit = errors.New("quit")

func (a *app) interactiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Ask for titles and recommendation settings in a loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			s := &session{
				cmd: cmd,
				c:   c,
				in:  bufio.NewScanner(cmd.InOrStdin()),
				out: cmd.OutOrStdout(),
				max: a.cfg.Engine.DefaultMaxResults,
			}
			return s.run()
		},
	}
}

// session is one interactive menu loop.
type session struct {
	cmd *cobra.Command
	c   *cinelog.Cinelog
	in  *bufio.Scanner
	out io.Writer
	max int
}

func (s *session) run() error {
	fmt.Fprintln(s.out, "Movie recommendations. Enter an empty title or 'quit' to exit.")
	for {
		err := s.round()
		switch {
		case errors.Is(err, errQuit):
			fmt.Fprintln(s.out, "Goodbye.")
			return nil
		case errors.Is(err, internalerr.ErrInvalidInput),
			errors.Is(err, internalerr.ErrNotFound),
			errors.Is(err, internalerr.ErrUnknownPredicate):
			fmt.Fprintf(s.out, "%v\n\n", err)
		case err != nil:
			return err
		}
	}
}

func (s *session) round() error {
	title, err := s.ask("\nMovie title: ")
	if err != nil {
		return err
	}
	if title == "" || strings.EqualFold(title, "quit") {
		return errQuit
	}
	if err := requireMovie(s.cmd, s.c, title); err != nil {
		return err
	}

	choice, err := s.ask("Algorithm: [1] exact similarity level  [2] metric and minimum score: ")
	if err != nil {
		return err
	}
	ctx := s.cmd.Context()
	var recs []cinelog.Recommendation
	switch choice {
	case "1":
		level, err := s.askInt(fmt.Sprintf("Level (%v): ", s.c.AvailableLevels()), similarity.MaxLevel)
		if err != nil {
			return err
		}
		max, err := s.askInt(fmt.Sprintf("Max results [%d]: ", s.max), s.max)
		if err != nil {
			return err
		}
		recs, err = s.c.RecommendByLevel(ctx, title, level, max)
		if err != nil {
			return err
		}
	case "2":
		metric, err := s.ask(fmt.Sprintf("Metric (%s) [overall]: ", strings.Join(similarity.Metrics, ", ")))
		if err != nil {
			return err
		}
		if metric == "" {
			metric = "overall"
		}
		minScore, err := s.askInt("Minimum score (1-5) [4]: ", 4)
		if err != nil {
			return err
		}
		max, err := s.askInt(fmt.Sprintf("Max results [%d]: ", s.max), s.max)
		if err != nil {
			return err
		}
		recs, err = s.c.RecommendByMetric(ctx, title, metric, minScore, max)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: choose 1 or 2, got %q", internalerr.ErrInvalidInput, choice)
	}

	printRecommendations(s.out, recs)
	return nil
}

// ask prompts and reads one trimmed line; end of input quits.
func (s *session) ask(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", errQuit
	}
	return strings.TrimSpace(s.in.Text()), nil
}

func (s *session) askInt(prompt string, def int) (int, error) {
	text, err := s.ask(prompt)
	if err != nil {
		return 0, err
	}
	if text == "" {
		return def, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", internalerr.ErrInvalidInput, text)
	}
	return n, nil
}
