package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/filtergate/internal/admission"
	"github.com/roach88/filtergate/internal/complexity"
)

// AdmitOptions holds flags for the admit command.
type AdmitOptions struct {
	*AnalyzeOptions
	Config string
	Load   float64
}

// AdmitResult is the admit command's output payload.
type AdmitResult struct {
	Backend        string               `json:"backend"`
	Outcome        admission.Outcome    `json:"outcome"`
	EffectiveLimit float64              `json:"effectiveLimit"`
	LoadFactor     float64              `json:"loadFactor"`
	Analysis       complexity.Analysis  `json:"analysis"`
	Rejection      *admission.Rejection `json:"rejection,omitempty"`
}

func (r AdmitResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "outcome: %s\n", r.Outcome)
	fmt.Fprintf(&b, "score:   %.1f\n", r.Analysis.NormalizedScore)
	fmt.Fprintf(&b, "limit:   %.1f (load %.2f)", r.EffectiveLimit, r.LoadFactor)
	if r.Rejection != nil {
		fmt.Fprintf(&b, "\ncode:    %s", r.Rejection.Code)
		for _, s := range r.Rejection.Suggestions {
			fmt.Fprintf(&b, "\nhint:    %s", s)
		}
	}
	return b.String()
}

// NewAdmitCommand creates the admit command.
func NewAdmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AdmitOptions{
		AnalyzeOptions: &AnalyzeOptions{CompileOptions: &CompileOptions{RootOptions: rootOpts}},
	}

	cmd := &cobra.Command{
		Use:   "admit <filter>",
		Short: "Run an admission decision for a filter",
		Long: `Run the full admission pipeline for a JSON filter document:
heuristic cost analysis followed by the accept/warn/reject decision.
Exits non-zero when the query is rejected.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "schema YAML file (required)")
	cmd.Flags().StringVarP(&opts.Backend, "backend", "b", "memory", "target backend")
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "admission config YAML file")
	cmd.Flags().Float64Var(&opts.Load, "load", 0, "load factor in [0,1]")
	cmd.Flags().BoolVar(&opts.Sorted, "sorted", false, "query orders its results")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "result limit (0 = unbounded)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "result offset")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runAdmit(opts *AdmitOptions, filterArg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	expr, table, adp, err := loadCompileInputs(opts.CompileOptions, filterArg, cmd)
	if err != nil {
		return err
	}

	cfg := admission.DefaultConfig()
	if opts.Config != "" {
		f, err := os.Open(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "open config", err)
		}
		cfg, err = admission.LoadConfig(f)
		f.Close()
		if err != nil {
			_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
			return WrapExitError(ExitCommandError, "load config", err)
		}
	}
	if opts.Load < 0 || opts.Load > 1 {
		return WrapExitError(ExitCommandError, "invalid load", fmt.Errorf("load %v outside [0,1]", opts.Load))
	}

	analyzer := complexity.NewHeuristic(complexity.DefaultWeights(), complexity.DefaultCostCeiling)
	ctrl := admission.NewController(cfg, analyzer,
		admission.WithLoad(admission.StaticLoad(opts.Load)))

	d := ctrl.Decide(cmd.Context(), adp.ID(), complexity.Request{
		Expr:   expr,
		Fields: table,
		Shape: complexity.QueryShape{
			Sorted: opts.Sorted,
			Limit:  opts.Limit,
			Offset: opts.Offset,
		},
	})

	result := AdmitResult{
		Backend:        adp.ID(),
		Outcome:        d.Outcome,
		EffectiveLimit: d.EffectiveLimit,
		LoadFactor:     d.Load.LoadFactor,
		Analysis:       d.Analysis,
		Rejection:      d.Rejection,
	}
	if d.Outcome == admission.Rejected {
		_ = formatter.Error(ErrCodeRejected, "query too complex", result)
		return WrapExitError(ExitFailure, "query rejected", fmt.Errorf("score %.1f over limit %.1f", d.Analysis.NormalizedScore, d.EffectiveLimit))
	}
	return formatter.Success(result)
}
