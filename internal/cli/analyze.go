package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/filtergate/internal/complexity"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*CompileOptions
	Sorted bool
	Limit  int
	Offset int
}

// AnalyzeResult is the analyze command's output payload.
type AnalyzeResult struct {
	Backend  string              `json:"backend"`
	Analysis complexity.Analysis `json:"analysis"`
}

func (r AnalyzeResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "backend: %s\n", r.Backend)
	fmt.Fprintf(&b, "method:  %s\n", r.Analysis.Method)
	fmt.Fprintf(&b, "cost:    %.2f\n", r.Analysis.Cost)
	fmt.Fprintf(&b, "score:   %.1f", r.Analysis.NormalizedScore)
	for _, s := range r.Analysis.Suggestions {
		fmt.Fprintf(&b, "\nhint:    %s", s)
	}
	return b.String()
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{CompileOptions: &CompileOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "analyze <filter>",
		Short: "Estimate a filter's execution cost",
		Long: `Estimate the cost of a JSON filter document using heuristic
analysis and report its normalized 0-100 score. The --sorted, --limit,
and --offset flags describe the surrounding query shape, which affects
the estimate.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "schema YAML file (required)")
	cmd.Flags().StringVarP(&opts.Backend, "backend", "b", "memory", "target backend")
	cmd.Flags().BoolVar(&opts.Sorted, "sorted", false, "query orders its results")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "result limit (0 = unbounded)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "result offset")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, filterArg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	expr, table, adp, err := loadCompileInputs(opts.CompileOptions, filterArg, cmd)
	if err != nil {
		return err
	}

	analyzer := complexity.NewHeuristic(complexity.DefaultWeights(), complexity.DefaultCostCeiling)
	analysis := analyzer.Analyze(cmd.Context(), complexity.Request{
		Expr:   expr,
		Fields: table,
		Shape: complexity.QueryShape{
			Sorted: opts.Sorted,
			Limit:  opts.Limit,
			Offset: opts.Offset,
		},
	})

	return formatter.Success(AnalyzeResult{Backend: adp.ID(), Analysis: analysis})
}
