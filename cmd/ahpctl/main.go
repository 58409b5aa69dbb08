// Command ahpctl drives a running scorer over its HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/ahp/internal/client"
	"github.com/okian/ahp/pkg/logger"
)

const defaultURL = "http://localhost:6000"

// evaluationFile is the JSON accepted by score-distributions and best. It
// matches the POST /distribution_score body.
type evaluationFile struct {
	Distributions []client.Distribution `json:"distributions"`
	Criteria      map[string]struct {
		Weight         float64 `json:"weight"`
		HigherIsBetter *bool   `json:"higher_is_better"`
	} `json:"criteria"`
}

func main() {
	if err := logger.InitWithWriter(os.Stderr); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
		verbose bool
	)

	root := &cobra.Command{
		Use:   "ahpctl",
		Short: "Operate an AHP placement scorer",
		Long: `ahpctl scores candidate distributions, reports entity scores and
inspects the collection cycle of a running scorer.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if verbose {
				return logger.SetLevelString("debug")
			}
			return nil
		},
	}

	envURL := os.Getenv("AHP_URL")
	if envURL == "" {
		envURL = defaultURL
	}
	root.PersistentFlags().StringVarP(&baseURL, "url", "u", envURL, "Scorer base URL (env AHP_URL)")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "Request timeout")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log requests to stderr")

	newClient := func() (*client.Client, error) {
		return client.New(baseURL, client.WithTimeout(timeout))
	}

	root.AddCommand(
		newScoreDistributionsCommand(newClient),
		newBestCommand(newClient),
		newSubmitCommand(newClient),
		newScoresCommand(newClient),
		newHealthCommand(newClient),
	)
	return root
}

type clientFactory func() (*client.Client, error)

func newScoreDistributionsCommand(newClient clientFactory) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "score-distributions",
		Short: "Score the distributions in a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			distributions, criteria, err := readEvaluation(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			scores, err := c.EvaluateDistributions(cmd.Context(), distributions, criteria)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"scores": scores})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Evaluation JSON file, - for stdin")
	return cmd
}

func newBestCommand(newClient clientFactory) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "best",
		Short: "Print the highest scoring distribution in a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			distributions, criteria, err := readEvaluation(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			best, err := c.BestDistribution(cmd.Context(), distributions, criteria)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), best)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Evaluation JSON file, - for stdin")
	return cmd
}

func newSubmitCommand(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "submit ENTITY SCORE",
		Short: "Report the score of one entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("score must be an integer: %w", err)
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.SubmitScore(cmd.Context(), args[0], score); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"status": "success"})
		},
	}
}

func newScoresCommand(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "scores",
		Short: "Print the current collection cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			scores, err := c.ReadScores(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), scores)
		},
	}
}

func newHealthCommand(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the scorer and its policy store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), h); err != nil {
				return err
			}
			if !h.Healthy() {
				return fmt.Errorf("scorer unhealthy: %s", h.Error)
			}
			return nil
		},
	}
}

func readEvaluation(stdin io.Reader, path string) ([]client.Distribution, map[string]client.Criterion, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open evaluation file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var in evaluationFile
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, nil, fmt.Errorf("decode evaluation file: %w", err)
	}
	criteria := make(map[string]client.Criterion, len(in.Criteria))
	for name, c := range in.Criteria {
		higher := true
		if c.HigherIsBetter != nil {
			higher = *c.HigherIsBetter
		}
		criteria[name] = client.Criterion{Weight: c.Weight, HigherIsBetter: higher}
	}
	return in.Distributions, criteria, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
